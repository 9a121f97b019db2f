package providers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascendfit/config"
	"ascendfit/internal/core"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveProviderCall(provider, operation string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, provider+"/"+operation)
}

type stubProvider struct{ err error }

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Complete(context.Context, *core.CompletionRequest) (*core.Completion, error) {
	return &core.Completion{Text: "ok"}, s.err
}
func (s *stubProvider) Stream(context.Context, *core.CompletionRequest) (*core.EventStream, error) {
	return nil, s.err
}

func TestBuild_SkipsProvidersWithoutKeys(t *testing.T) {
	r := Build(config.ProvidersConfig{
		Gemini: config.ProviderConfig{APIKey: "g"},
	}, nil)

	assert.Equal(t, []string{"gemini"}, r.Names())

	_, err := r.Get("gateway")
	assert.Equal(t, core.ErrorKindInternal, core.KindOf(err))

	_, err = r.Files("gemini")
	require.NoError(t, err)
}

func TestBuild_BothProviders(t *testing.T) {
	r := Build(config.ProvidersConfig{
		Gemini:  config.ProviderConfig{APIKey: "g"},
		Gateway: config.ProviderConfig{APIKey: "l"},
	}, &recordingObserver{})

	assert.Equal(t, []string{"gateway", "gemini"}, r.Names())
	_, err := r.Files("gateway")
	assert.Error(t, err, "gateway has no Files API")
}

func TestObservedProvider(t *testing.T) {
	obs := &recordingObserver{}
	p := newObservedProvider(&stubProvider{err: errors.New("boom")}, obs)

	_, err := p.Complete(context.Background(), &core.CompletionRequest{})
	require.Error(t, err)
	_, _ = p.Stream(context.Background(), &core.CompletionRequest{})

	assert.Equal(t, []string{"stub/complete", "stub/stream"}, obs.calls)
	assert.Equal(t, "stub", p.Name())
}

func TestClientConfig(t *testing.T) {
	cfg := ClientConfig(config.ResilienceConfig{MaxRetries: 4, BreakerEnabled: false}, "gemini", "http://x")
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Nil(t, cfg.CircuitBreaker)

	cfg = ClientConfig(config.ResilienceConfig{BreakerEnabled: true, ConsecutiveFailures: 3, BreakerOpenTimeout: time.Second}, "gemini", "http://x")
	require.NotNil(t, cfg.CircuitBreaker)
	assert.Equal(t, uint32(3), cfg.CircuitBreaker.ConsecutiveFailures)
}
