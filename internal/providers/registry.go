// Package providers builds the configured AI providers and hands them out by name.
package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"ascendfit/config"
	"ascendfit/internal/core"
	"ascendfit/internal/pkg/llmclient"
	"ascendfit/internal/providers/gemini"
	"ascendfit/internal/providers/openai"
)

// Registry maps provider names to providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]core.Provider
	files     map[string]core.FileAPI
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]core.Provider),
		files:     make(map[string]core.FileAPI),
	}
}

// Register adds a provider. Providers that also implement core.FileAPI are
// registered for uploads under the same name.
func (r *Registry) Register(p core.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	if f, ok := p.(core.FileAPI); ok {
		r.files[p.Name()] = f
	}
}

// RegisterFiles overrides the Files API registered for name
func (r *Registry) RegisterFiles(name string, f core.FileAPI) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[name] = f
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (core.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, core.NewInternalError(fmt.Sprintf("AI provider %q is not configured", name), nil)
	}
	return p, nil
}

// Files returns the Files API registered under name
func (r *Registry) Files(name string) (core.FileAPI, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[name]
	if !ok {
		return nil, core.NewInternalError(fmt.Sprintf("AI provider %q does not support file uploads", name), nil)
	}
	return f, nil
}

// Names lists registered providers in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClientConfig turns the resilience settings into a llmclient.Config
func ClientConfig(res config.ResilienceConfig, name, baseURL string) llmclient.Config {
	cfg := llmclient.DefaultConfig(name, baseURL)
	cfg.MaxRetries = res.MaxRetries
	if res.InitialBackoff > 0 {
		cfg.InitialBackoff = res.InitialBackoff
	}
	if res.MaxBackoff > 0 {
		cfg.MaxBackoff = res.MaxBackoff
	}
	if !res.BreakerEnabled {
		cfg.CircuitBreaker = nil
	} else {
		cfg.CircuitBreaker = &llmclient.CircuitBreakerConfig{
			ConsecutiveFailures: res.ConsecutiveFailures,
			HalfOpenRequests:    1,
			OpenTimeout:         res.BreakerOpenTimeout,
		}
	}
	return cfg
}

// Build creates every provider that has credentials. Providers without an API
// key are skipped with a warning; features bound to them fail at request time.
func Build(cfg config.ProvidersConfig, observer CallObserver) *Registry {
	r := NewRegistry()

	if cfg.Gemini.APIKey != "" {
		p := gemini.New(cfg.Gemini.APIKey, ClientConfig(cfg.Resilience, gemini.Name, cfg.Gemini.BaseURL))
		r.Register(newObservedProvider(p, observer))
		r.RegisterFiles(gemini.Name, newObservedFiles(p, gemini.Name, observer))
	} else {
		slog.Warn("GEMINI_API_KEY is not configured, gemini provider disabled")
	}

	if cfg.Gateway.APIKey != "" {
		p := openai.New(cfg.Gateway.APIKey, ClientConfig(cfg.Resilience, openai.Name, cfg.Gateway.BaseURL))
		r.Register(newObservedProvider(p, observer))
	} else {
		slog.Warn("LOVABLE_API_KEY is not configured, AI gateway provider disabled")
	}

	slog.Info("AI providers initialized", "providers", r.Names())
	return r
}
