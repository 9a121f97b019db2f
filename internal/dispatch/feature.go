// Package dispatch runs AI-backed features: validation, prompt building, the
// provider call under a deadline, structured extraction, result caching and
// interaction history. Every endpoint is a Feature value; there is one code path.
package dispatch

import (
	"context"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ascendfit/internal/core"
	"ascendfit/internal/extract"
)

// PrepareFunc runs before the model call. It returns parts to attach to the
// prompt and a release func that runs after the call whatever the outcome.
type PrepareFunc[In any] func(ctx context.Context, in *In) (parts []core.Part, release func(), err error)

// Feature describes a request/response endpoint producing a structured Out.
type Feature[In any, Out any] struct {
	// Name labels logs, metrics, history and cache keys
	Name     string
	Provider string
	Model    string

	Validate func(in *In) error
	Prepare  PrepareFunc[In]
	// Messages builds the prompt. attached holds the parts returned by Prepare.
	Messages func(in *In, attached []core.Part) []core.Message

	// Tool, when set, is forced on the provider and its arguments are preferred
	Tool        *core.ToolSchema
	Temperature *float64
	MaxTokens   *int

	// Fallback builds the value used when nothing parseable came back
	Fallback func(raw string) Out
	// Score reports the numeric score carried by a result, if any
	Score func(out *Out) *float64
	// Cacheable results are stored under a hash of the validated input
	Cacheable bool

	schemaOnce sync.Once
	schema     *jsonschema.Schema
}

// toolSchema compiles the tool's parameter schema once. A schema that does not
// compile disables validation for the feature.
func (f *Feature[In, Out]) toolSchema() *jsonschema.Schema {
	if f.Tool == nil {
		return nil
	}
	f.schemaOnce.Do(func() {
		s, err := extract.CompileToolSchema(f.Tool)
		if err != nil {
			logger(f.Name).Warn("tool schema does not compile, validation disabled", "error", err)
			return
		}
		f.schema = s
	})
	return f.schema
}

// StreamFeature describes an endpoint whose text is streamed to the client.
type StreamFeature[In any] struct {
	Name     string
	Provider string
	Model    string

	Validate    func(in *In) error
	Messages    func(in *In) []core.Message
	Temperature *float64
	MaxTokens   *int
}
