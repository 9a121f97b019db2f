// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the AscendFit server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ascendfit/config"
	"ascendfit/internal/cache"
	"ascendfit/internal/dispatch"
	"ascendfit/internal/features"
	"ascendfit/internal/history"
	"ascendfit/internal/httpclient"
	"ascendfit/internal/observability"
	"ascendfit/internal/poller"
	"ascendfit/internal/providers"
	"ascendfit/internal/server"
	"ascendfit/internal/storage"
	"ascendfit/internal/version"
	"ascendfit/internal/videosource"
)

const sentryFlushTimeout = 2 * time.Second

// App represents the main application with all its dependencies.
type App struct {
	config  *config.Config
	cache   cache.Cache
	storage storage.Storage
	history *history.Result
	gcs     *videosource.GCSReader
	server  *server.Server
	sentry  bool

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}

	app := &App{config: cfg}

	sentryOn, err := observability.InitSentry(cfg.Sentry, version.Version)
	if err != nil {
		slog.Warn("failed to initialize sentry, continuing without it", "error", err)
	}
	app.sentry = sentryOn

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	}

	var observer providers.CallObserver
	var dispatchMetrics dispatch.Metrics
	var videoObserver features.VideoObserver
	if metrics != nil {
		observer, dispatchMetrics, videoObserver = metrics, metrics, metrics
	}

	registry := providers.Build(cfg.Providers, observer)

	resultCache, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	app.cache = resultCache

	if cfg.History.Enabled {
		store, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return nil, app.abort(fmt.Errorf("failed to initialize storage: %w", err))
		}
		app.storage = store
	}
	historyResult, err := history.New(ctx, cfg.History, app.storage)
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to initialize history: %w", err))
	}
	app.history = historyResult

	var objects videosource.ObjectReader
	if cfg.Video.GCSBucket != "" {
		gcs, err := videosource.NewGCSReader(ctx, cfg.Video.GCSCredentialsFile)
		if err != nil {
			return nil, app.abort(fmt.Errorf("failed to initialize cloud storage: %w", err))
		}
		app.gcs = gcs
		objects = gcs
	}

	pipeline := &features.VideoPipeline{
		Source: videosource.New(cfg.Video, httpclient.NewHTTPClient(nil), objects),
		Poller: poller.New(poller.Config{
			Interval:    cfg.Video.PollInterval,
			MaxAttempts: cfg.Video.PollMaxAttempts,
		}),
		Observer:    videoObserver,
		DeleteAfter: cfg.Video.DeleteAfterAnalysis,
	}
	if files, err := registry.Files(cfg.Features.Video.Provider); err == nil {
		pipeline.Files = files
	} else {
		slog.Warn("video analysis provider has no file API", "provider", cfg.Features.Video.Provider, "error", err)
	}

	dispatcher := dispatch.New(dispatch.Options{
		Providers:         registry,
		Cache:             resultCache,
		Metrics:           dispatchMetrics,
		History:           historyResult.Logger,
		RequestTimeout:    cfg.Features.RequestTimeout,
		StreamIdleTimeout: cfg.Features.StreamIdleTimeout,
	})

	handler := server.NewHandler(dispatcher, features.New(cfg.Features, pipeline), historyResult.Reader)
	app.server = server.New(handler, &server.Config{
		MasterKey:       cfg.Server.MasterKey,
		BodySizeLimit:   cfg.Server.BodySizeLimit,
		AllowOrigins:    cfg.Server.AllowOrigins,
		RateLimitRPS:    cfg.Server.RateLimitRPS,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		Metrics:         metrics,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		SentryEnabled:   sentryOn,
		SwaggerEnabled:  cfg.Server.SwaggerEnabled,
	})

	app.logStartupInfo()
	return app, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown tears components down in dependency order: the HTTP server, the
// history logger (flushing pending entries), storage, cache, the cloud storage
// client and finally the Sentry buffer.
//
// Shutdown is idempotent. It attempts every step and returns the joined failures.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	errs = append(errs, a.closeResources()...)

	if a.sentry {
		observability.FlushSentry(sentryFlushTimeout)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	slog.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources() []error {
	var errs []error
	closeStep := func(name string, fn func() error) {
		if err := fn(); err != nil {
			slog.Error(name+" close error", "error", err)
			errs = append(errs, fmt.Errorf("%s close: %w", name, err))
		}
	}

	if a.history != nil {
		closeStep("history", a.history.Close)
	}
	if a.storage != nil {
		closeStep("storage", a.storage.Close)
	}
	if a.cache != nil {
		closeStep("cache", a.cache.Close)
	}
	if a.gcs != nil {
		closeStep("cloud storage", a.gcs.Close)
	}
	return errs
}

// abort releases whatever New managed to open before failing.
func (a *App) abort(err error) error {
	if closeErrs := a.closeResources(); len(closeErrs) > 0 {
		return errors.Join(append([]error{err}, closeErrs...)...)
	}
	return err
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Server.MasterKey == "" {
		slog.Warn("SECURITY WARNING: ASCENDFIT_MASTER_KEY not set - feature endpoints are unauthenticated",
			"recommendation", "set ASCENDFIT_MASTER_KEY to the service key clients send")
	} else {
		slog.Info("authentication enabled", "mode", "service_key")
	}

	for _, f := range []struct {
		name string
		cfg  config.FeatureConfig
	}{
		{features.NameChat, cfg.Features.Chat},
		{features.NameMealPlan, cfg.Features.MealPlan},
		{features.NameWorkout, cfg.Features.Workout},
		{features.NameVideo, cfg.Features.Video},
		{features.NamePosture, cfg.Features.Posture},
	} {
		slog.Info("feature configured", "feature", f.name, "provider", f.cfg.Provider, "model", f.cfg.Model)
	}

	if cfg.Server.SwaggerEnabled {
		slog.Info("swagger UI enabled", "path", "/swagger/index.html")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("result cache configured", "type", cfg.Cache.Type, "ttl", cfg.Cache.TTL)

	if cfg.History.Enabled {
		slog.Info("interaction history enabled",
			"storage", cfg.Storage.Type,
			"buffer_size", cfg.History.BufferSize,
			"flush_interval", cfg.History.FlushInterval,
			"retention_days", cfg.History.RetentionDays,
		)
	} else {
		slog.Info("interaction history disabled")
	}
}
