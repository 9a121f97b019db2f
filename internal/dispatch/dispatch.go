package dispatch

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"ascendfit/internal/cache"
	"ascendfit/internal/core"
	"ascendfit/internal/extract"
	"ascendfit/internal/history"
	"ascendfit/internal/stream"
)

// Defaults applied when Options leaves a timeout unset
const (
	DefaultRequestTimeout    = 120 * time.Second
	DefaultStreamIdleTimeout = 60 * time.Second
)

// ProviderSource resolves providers by name
type ProviderSource interface {
	Get(name string) (core.Provider, error)
}

// Metrics receives per-feature measurements
type Metrics interface {
	extract.Recorder
	RecordFeature(feature string, err error, source string, elapsed time.Duration)
	RecordCacheLookup(feature string, hit bool)
}

// Options configures a Dispatcher. Only Providers is required.
type Options struct {
	Providers ProviderSource
	Cache     cache.Cache
	Metrics   Metrics
	History   history.Recorder

	// RequestTimeout bounds a whole feature run, or the wait for stream headers
	RequestTimeout time.Duration
	// StreamIdleTimeout aborts a stream that stops sending bytes
	StreamIdleTimeout time.Duration
}

// Dispatcher executes features. It is safe for concurrent use.
type Dispatcher struct {
	providers   ProviderSource
	cache       cache.Cache
	metrics     Metrics
	history     history.Recorder
	timeout     time.Duration
	idleTimeout time.Duration
	now         func() time.Time
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		providers:   opts.Providers,
		cache:       opts.Cache,
		metrics:     opts.Metrics,
		history:     opts.History,
		timeout:     opts.RequestTimeout,
		idleTimeout: opts.StreamIdleTimeout,
		now:         time.Now,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultRequestTimeout
	}
	if d.idleTimeout <= 0 {
		d.idleTimeout = DefaultStreamIdleTimeout
	}
	if d.history == nil {
		d.history = history.NoopLogger{}
	}
	return d
}

// outcome describes a finished run for metrics and history
type outcome struct {
	feature  string
	provider string
	model    string
	source   string
	score    *float64
	cached   bool
	usage    core.Usage
	err      error
}

// Output is a feature result. Value is the typed view; Raw, when present, is
// the JSON object the model produced and is what the result encodes as.
type Output[Out any] struct {
	Value  Out
	Raw    json.RawMessage
	Source extract.Source
	Cached bool
}

// MarshalJSON emits Raw verbatim, or Value when there is no model object.
func (o Output[Out]) MarshalJSON() ([]byte, error) {
	if len(o.Raw) > 0 {
		return o.Raw, nil
	}
	return json.Marshal(o.Value)
}

// Run executes f for in and returns its structured result. Extraction never
// fails; errors come from validation, preparation or the provider.
func Run[In any, Out any](ctx context.Context, d *Dispatcher, f *Feature[In, Out], in *In) (Output[Out], error) {
	start := d.now()
	ctx = core.WithFeature(ctx, f.Name)
	oc := outcome{feature: f.Name, provider: f.Provider, model: f.Model}

	out, err := run(ctx, d, f, in, &oc)
	oc.err = err
	d.finish(ctx, oc, start)
	return out, err
}

func run[In any, Out any](ctx context.Context, d *Dispatcher, f *Feature[In, Out], in *In, oc *outcome) (Output[Out], error) {
	var zero Output[Out]

	if f.Validate != nil {
		if err := f.Validate(in); err != nil {
			return zero, err
		}
	}

	var key string
	if f.Cacheable && d.cache != nil {
		key = cacheKey(f.Name, f.Model, in)
		if out, ok := cacheGet[Out](ctx, d, f.Name, key); ok {
			oc.cached = true
			if f.Score != nil {
				oc.score = f.Score(&out.Value)
			}
			return out, nil
		}
	}

	provider, err := d.providers.Get(f.Provider)
	if err != nil {
		return zero, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var attached []core.Part
	if f.Prepare != nil {
		parts, release, err := f.Prepare(ctx, in)
		if release != nil {
			defer release()
		}
		if err != nil {
			return zero, deadlineError(ctx, f.Provider, err)
		}
		attached = parts
	}

	req := &core.CompletionRequest{
		Model:       f.Model,
		Messages:    f.Messages(in, attached),
		Tool:        f.Tool,
		ForceTool:   f.Tool != nil,
		Temperature: f.Temperature,
		MaxTokens:   f.MaxTokens,
	}

	completion, err := provider.Complete(ctx, req)
	if err != nil {
		return zero, deadlineError(ctx, f.Provider, err)
	}
	oc.usage = completion.Usage

	opts := extract.Options[Out]{
		Schema:   f.toolSchema(),
		Fallback: f.Fallback,
		Recorder: d.metrics,
	}
	if f.Tool != nil {
		opts.ToolName = f.Tool.Name
	}
	res := extract.Extract(completion, opts)
	oc.source = string(res.Source)
	if f.Score != nil {
		oc.score = f.Score(&res.Value)
	}

	out := Output[Out]{Value: res.Value, Raw: res.Raw, Source: res.Source}
	if key != "" && res.Source != extract.SourceFallback {
		cacheSet(ctx, d, f.Name, key, out)
	}
	return out, nil
}

// Stream runs f and emits text deltas in order, ending with a Done chunk.
// Errors returned before the first emit mean nothing was sent.
func Stream[In any](ctx context.Context, d *Dispatcher, f *StreamFeature[In], in *In, emit stream.EmitFunc) error {
	start := d.now()
	ctx = core.WithFeature(ctx, f.Name)
	oc := outcome{feature: f.Name, provider: f.Provider, model: f.Model}

	oc.err = runStream(ctx, d, f, in, emit)
	d.finish(ctx, oc, start)
	return oc.err
}

func runStream[In any](ctx context.Context, d *Dispatcher, f *StreamFeature[In], in *In, emit stream.EmitFunc) error {
	if f.Validate != nil {
		if err := f.Validate(in); err != nil {
			return err
		}
	}

	provider, err := d.providers.Get(f.Provider)
	if err != nil {
		return err
	}

	// the request deadline covers the wait for headers; the idle watchdog takes over after
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	headers := time.AfterFunc(d.timeout, cancel)

	es, err := provider.Stream(ctx, &core.CompletionRequest{
		Model:       f.Model,
		Messages:    f.Messages(in),
		Temperature: f.Temperature,
		MaxTokens:   f.MaxTokens,
	})
	if !headers.Stop() && err != nil {
		return core.NewProviderError(f.Provider, 0, "AI provider request timed out", context.DeadlineExceeded)
	}
	if err != nil {
		return err
	}

	r := &stream.Reassembler{
		DeltaPath:   es.DeltaPath,
		BlockPath:   es.BlockPath,
		IdleTimeout: d.idleTimeout,
		Provider:    f.Provider,
		RequireText: true,
	}
	_, err = r.Run(ctx, es.Body, emit)
	return err
}

// deadlineError labels a failure caused by the expired request deadline.
func deadlineError(ctx context.Context, provider string, err error) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	var fe *core.FitError
	if errors.As(err, &fe) && fe.Kind != core.ErrorKindInternal {
		return err
	}
	return core.NewProviderError(provider, 0, "AI provider request timed out", err)
}

func (d *Dispatcher) finish(ctx context.Context, oc outcome, start time.Time) {
	elapsed := d.now().Sub(start)
	log := logger(oc.feature).With("request_id", core.GetRequestID(ctx), "duration", elapsed)

	if oc.err != nil {
		kind := core.KindOf(oc.err)
		switch {
		case kind == core.ErrorKindValidation:
			log.Info("feature request rejected", "error", oc.err)
		case errors.Is(oc.err, context.Canceled):
			log.Info("feature request canceled by client")
		default:
			log.Error("feature request failed", "error", oc.err, "kind", kind)
		}
	} else {
		log.Info("feature request completed", "source", oc.source, "cached", oc.cached)
	}

	if d.metrics != nil {
		d.metrics.RecordFeature(oc.feature, oc.err, oc.source, elapsed)
	}

	entry := &history.Entry{
		ID:           uuid.NewString(),
		RequestID:    core.GetRequestID(ctx),
		Timestamp:    start.UTC(),
		Feature:      oc.feature,
		Provider:     oc.provider,
		Model:        oc.model,
		Outcome:      history.OutcomeSuccess,
		Source:       oc.source,
		Score:        oc.score,
		Cached:       oc.cached,
		DurationMs:   elapsed.Milliseconds(),
		InputTokens:  oc.usage.PromptTokens,
		OutputTokens: oc.usage.CompletionTokens,
	}
	if oc.err != nil {
		entry.Outcome = history.OutcomeError
		entry.ErrorKind = string(core.KindOf(oc.err))
	}
	d.history.Write(entry)
}

// cacheKey hashes the feature, model and canonical JSON of the validated input.
func cacheKey(feature, model string, in any) string {
	b, err := json.Marshal(in)
	if err != nil {
		return ""
	}
	h := xxhash.New()
	_, _ = h.WriteString(feature)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(model)
	_, _ = h.WriteString("\x00")
	_, _ = h.Write(b)
	return feature + ":" + hex.EncodeToString(h.Sum(nil))
}

func cacheGet[Out any](ctx context.Context, d *Dispatcher, feature, key string) (Output[Out], bool) {
	var out Output[Out]
	if key == "" {
		return out, false
	}
	raw, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		logger(feature).Warn("cache read failed", "error", err)
	}
	if ok && !json.Valid(raw) {
		logger(feature).Warn("discarding unreadable cache entry")
		ok = false
	}
	if ok {
		out = Output[Out]{Raw: raw, Cached: true}
		var typeErr *json.UnmarshalTypeError
		if err := json.Unmarshal(raw, &out.Value); err != nil && !errors.As(err, &typeErr) {
			logger(feature).Warn("discarding unreadable cache entry", "error", err)
			out, ok = Output[Out]{}, false
		}
	}
	if d.metrics != nil {
		d.metrics.RecordCacheLookup(feature, ok)
	}
	return out, ok
}

func cacheSet(ctx context.Context, d *Dispatcher, feature, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger(feature).Warn("cache encode failed", "error", err)
		return
	}
	if err := d.cache.Set(ctx, key, b); err != nil {
		logger(feature).Warn("cache write failed", "error", err)
	}
}

func logger(feature string) *slog.Logger {
	return slog.Default().With("feature", feature)
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
