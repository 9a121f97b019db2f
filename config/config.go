// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider identifiers usable in feature configuration
const (
	ProviderGemini  = "gemini"
	ProviderGateway = "gateway"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LogConfig       `yaml:"logging"`
	Providers ProvidersConfig `yaml:"providers"`
	Features  FeaturesConfig  `yaml:"features"`
	Video     VideoConfig     `yaml:"video"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Sentry    SentryConfig    `yaml:"sentry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// MasterKey enables bearer auth on feature routes when non-empty
	MasterKey       string        `yaml:"master_key"`
	BodySizeLimit   string        `yaml:"body_size_limit"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	AllowOrigins    []string      `yaml:"allow_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// SwaggerEnabled serves the API docs UI at /swagger/index.html
	SwaggerEnabled bool `yaml:"swagger_enabled"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	// Format is "text" (tint, colorized on terminals) or "json"
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// ProvidersConfig holds credentials for the two upstream AI APIs
type ProvidersConfig struct {
	Gemini     ProviderConfig   `yaml:"gemini"`
	Gateway    ProviderConfig   `yaml:"gateway"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ProviderConfig holds one upstream's credentials
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ResilienceConfig tunes retries and circuit breaking for every provider client
type ResilienceConfig struct {
	MaxRetries          int           `yaml:"max_retries"`
	InitialBackoff      time.Duration `yaml:"initial_backoff"`
	MaxBackoff          time.Duration `yaml:"max_backoff"`
	BreakerEnabled      bool          `yaml:"breaker_enabled"`
	ConsecutiveFailures uint32        `yaml:"breaker_failures"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout"`
}

// FeaturesConfig selects the provider and model per feature
type FeaturesConfig struct {
	// RequestTimeout bounds every provider exchange of one inbound request
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// StreamIdleTimeout aborts a stream that stops producing bytes
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"`

	Chat     FeatureConfig `yaml:"chat"`
	MealPlan FeatureConfig `yaml:"meal_plan"`
	Workout  FeatureConfig `yaml:"workout"`
	Video    FeatureConfig `yaml:"video"`
	Posture  FeatureConfig `yaml:"posture"`
}

// FeatureConfig binds a feature to a provider and model
type FeatureConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// VideoConfig holds the video analysis pipeline settings
type VideoConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxAttempts int           `yaml:"poll_max_attempts"`
	MaxBytes        int64         `yaml:"max_bytes"`
	// DeleteAfterAnalysis removes the uploaded provider file once analysis ends
	DeleteAfterAnalysis bool `yaml:"delete_after_analysis"`

	StorageURL     string `yaml:"storage_url"`
	ServiceRoleKey string `yaml:"service_role_key"`
	StorageBucket  string `yaml:"storage_bucket"`

	// GCSBucket enables gs:// and bare-path downloads from Cloud Storage
	GCSBucket          string `yaml:"gcs_bucket"`
	GCSCredentialsFile string `yaml:"gcs_credentials_file"`

	// AllowedURLHosts restricts videoUrl downloads to these hosts. A leading
	// dot admits a domain and its subdomains. Empty allows any public host.
	AllowedURLHosts []string `yaml:"allowed_url_hosts"`
	// AllowPrivateURLs lets videoUrl reach loopback, private and link-local addresses
	AllowPrivateURLs bool `yaml:"allow_private_urls"`
}

// CacheConfig holds the result cache settings
type CacheConfig struct {
	// Type is "local", "redis" or "none"
	Type  string        `yaml:"type"`
	TTL   time.Duration `yaml:"ttl"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// StorageConfig selects the history database
type StorageConfig struct {
	// Type is "sqlite", "postgresql" or "mongodb"
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite-specific settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific settings
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific settings
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// HistoryConfig controls the interaction history logger
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	RetentionDays int           `yaml:"retention_days"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// SentryConfig controls error reporting
type SentryConfig struct {
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Default returns the configuration used when no file or env overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			BodySizeLimit:   "25M",
			RateLimitBurst:  20,
			AllowOrigins:    []string{"*"},
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LogConfig{Format: "text", Level: "info"},
		Providers: ProvidersConfig{
			Gemini:  ProviderConfig{BaseURL: "https://generativelanguage.googleapis.com"},
			Gateway: ProviderConfig{BaseURL: "https://ai.gateway.lovable.dev/v1"},
			Resilience: ResilienceConfig{
				MaxRetries:          2,
				InitialBackoff:      500 * time.Millisecond,
				MaxBackoff:          8 * time.Second,
				BreakerEnabled:      true,
				ConsecutiveFailures: 5,
				BreakerOpenTimeout:  30 * time.Second,
			},
		},
		Features: FeaturesConfig{
			RequestTimeout:    120 * time.Second,
			StreamIdleTimeout: 60 * time.Second,
			Chat:              FeatureConfig{Provider: ProviderGemini, Model: "gemini-2.0-flash-exp"},
			MealPlan:          FeatureConfig{Provider: ProviderGemini, Model: "gemini-2.0-flash-exp"},
			Workout:           FeatureConfig{Provider: ProviderGateway, Model: "google/gemini-2.5-flash"},
			Video:             FeatureConfig{Provider: ProviderGemini, Model: "gemini-2.0-flash-exp"},
			Posture:           FeatureConfig{Provider: ProviderGateway, Model: "google/gemini-2.5-flash"},
		},
		Video: VideoConfig{
			PollInterval:        time.Second,
			PollMaxAttempts:     30,
			MaxBytes:            100 << 20,
			DeleteAfterAnalysis: true,
			StorageBucket:       "analysis-videos",
		},
		Cache: CacheConfig{
			Type:  "local",
			TTL:   5 * time.Minute,
			Redis: RedisConfig{Prefix: "ascendfit:"},
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: "data/ascendfit.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "ascendfit"},
		},
		History: HistoryConfig{
			Enabled:       true,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
			RetentionDays: 90,
		},
		Metrics: MetricsConfig{Endpoint: "/metrics"},
		Sentry:  SentryConfig{Environment: "development", SampleRate: 1.0},
	}
}

// Load reads .env, then the YAML file named by ASCENDFIT_CONFIG (default
// config.yaml, optional), then applies environment overrides and validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("ASCENDFIT_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFile(path)
}

// LoadFile is Load without the .env step. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. Unset variables without a
// default are left in place so the mistake stays visible.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		if parts[2] != "" {
			return parts[3]
		}
		return match
	})
}

// envOverride binds one environment variable to a config field
type envOverride struct {
	key   string
	apply func(cfg *Config, val string) error
}

func setString(dst func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		*dst(cfg) = val
		return nil
	}
}

func setBool(dst func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*dst(cfg) = b
		return nil
	}
}

func setDuration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		d, err := parseDuration(val)
		if err != nil {
			return err
		}
		*dst(cfg) = d
		return nil
	}
}

// parseDuration accepts plain seconds or Go duration strings
func parseDuration(val string) (time.Duration, error) {
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(val)
}

var envOverrides = []envOverride{
	{"PORT", setString(func(c *Config) *string { return &c.Server.Port })},
	{"ASCENDFIT_MASTER_KEY", setString(func(c *Config) *string { return &c.Server.MasterKey })},
	{"BODY_SIZE_LIMIT", setString(func(c *Config) *string { return &c.Server.BodySizeLimit })},
	{"RATE_LIMIT_RPS", func(c *Config, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		c.Server.RateLimitRPS = f
		return nil
	}},
	{"SWAGGER_ENABLED", setBool(func(c *Config) *bool { return &c.Server.SwaggerEnabled })},
	{"LOG_FORMAT", setString(func(c *Config) *string { return &c.Logging.Format })},
	{"LOG_LEVEL", setString(func(c *Config) *string { return &c.Logging.Level })},
	{"GEMINI_API_KEY", setString(func(c *Config) *string { return &c.Providers.Gemini.APIKey })},
	{"GEMINI_BASE_URL", setString(func(c *Config) *string { return &c.Providers.Gemini.BaseURL })},
	{"LOVABLE_API_KEY", setString(func(c *Config) *string { return &c.Providers.Gateway.APIKey })},
	{"AI_GATEWAY_BASE_URL", setString(func(c *Config) *string { return &c.Providers.Gateway.BaseURL })},
	{"REQUEST_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Features.RequestTimeout })},
	{"STREAM_IDLE_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Features.StreamIdleTimeout })},
	{"SUPABASE_URL", setString(func(c *Config) *string { return &c.Video.StorageURL })},
	{"SUPABASE_SERVICE_ROLE_KEY", setString(func(c *Config) *string { return &c.Video.ServiceRoleKey })},
	{"GCS_BUCKET", setString(func(c *Config) *string { return &c.Video.GCSBucket })},
	{"GOOGLE_APPLICATION_CREDENTIALS", setString(func(c *Config) *string { return &c.Video.GCSCredentialsFile })},
	{"VIDEO_ALLOWED_URL_HOSTS", func(c *Config, val string) error {
		c.Video.AllowedURLHosts = strings.Split(val, ",")
		return nil
	}},
	{"VIDEO_ALLOW_PRIVATE_URLS", setBool(func(c *Config) *bool { return &c.Video.AllowPrivateURLs })},
	{"VIDEO_POLL_INTERVAL", setDuration(func(c *Config) *time.Duration { return &c.Video.PollInterval })},
	{"VIDEO_POLL_MAX_ATTEMPTS", func(c *Config, val string) error {
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		c.Video.PollMaxAttempts = n
		return nil
	}},
	{"CACHE_TYPE", setString(func(c *Config) *string { return &c.Cache.Type })},
	{"CACHE_TTL", setDuration(func(c *Config) *time.Duration { return &c.Cache.TTL })},
	{"REDIS_URL", setString(func(c *Config) *string { return &c.Cache.Redis.URL })},
	{"STORAGE_TYPE", setString(func(c *Config) *string { return &c.Storage.Type })},
	{"SQLITE_PATH", setString(func(c *Config) *string { return &c.Storage.SQLite.Path })},
	{"POSTGRES_URL", setString(func(c *Config) *string { return &c.Storage.PostgreSQL.URL })},
	{"POSTGRES_MAX_CONNS", func(c *Config, val string) error {
		n, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return err
		}
		c.Storage.PostgreSQL.MaxConns = int32(n)
		return nil
	}},
	{"MONGODB_URL", setString(func(c *Config) *string { return &c.Storage.MongoDB.URL })},
	{"MONGODB_DATABASE", setString(func(c *Config) *string { return &c.Storage.MongoDB.Database })},
	{"HISTORY_ENABLED", setBool(func(c *Config) *bool { return &c.History.Enabled })},
	{"METRICS_ENABLED", setBool(func(c *Config) *bool { return &c.Metrics.Enabled })},
	{"METRICS_ENDPOINT", setString(func(c *Config) *string { return &c.Metrics.Endpoint })},
	{"SENTRY_DSN", setString(func(c *Config) *string { return &c.Sentry.DSN })},
	{"SENTRY_ENVIRONMENT", setString(func(c *Config) *string { return &c.Sentry.Environment })},
}

// applyEnvOverrides lets environment variables win over file values
func applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		val, ok := os.LookupEnv(o.key)
		if !ok || val == "" {
			continue
		}
		if err := o.apply(cfg, val); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", o.key, val, err)
		}
	}
	return nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if _, err := ParseByteSize(c.Server.BodySizeLimit); err != nil {
		errs = append(errs, fmt.Errorf("server.body_size_limit: %w", err))
	}
	if c.Video.PollMaxAttempts <= 0 {
		errs = append(errs, errors.New("video.poll_max_attempts must be positive"))
	}
	if c.Video.PollInterval < 0 {
		errs = append(errs, errors.New("video.poll_interval must not be negative"))
	}
	if c.Features.RequestTimeout <= 0 {
		errs = append(errs, errors.New("features.request_timeout must be positive"))
	}
	switch c.Cache.Type {
	case "local", "none", "":
	case "redis":
		if c.Cache.Redis.URL == "" {
			errs = append(errs, errors.New("cache.redis.url is required for redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.type %q", c.Cache.Type))
	}
	switch c.Storage.Type {
	case "sqlite", "postgresql", "mongodb":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.type %q", c.Storage.Type))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json", "":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}

	features := reflect.ValueOf(c.Features)
	for i := 0; i < features.NumField(); i++ {
		fc, ok := features.Field(i).Interface().(FeatureConfig)
		if !ok {
			continue
		}
		if fc.Provider != ProviderGemini && fc.Provider != ProviderGateway {
			errs = append(errs, fmt.Errorf("features.%s.provider %q is not one of %s, %s",
				features.Type().Field(i).Tag.Get("yaml"), fc.Provider, ProviderGemini, ProviderGateway))
		}
	}

	return errors.Join(errs...)
}

// ParseByteSize parses sizes like "25M", "512K", "1G" or a plain byte count.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, errors.New("empty size")
	}
	s = strings.TrimSuffix(s, "B")
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1<<10, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1<<20, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		mult, s = 1<<30, strings.TrimSuffix(s, "G")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}
