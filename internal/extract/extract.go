// Package extract turns a provider completion into a typed value. It never fails:
// the tool-call arguments are preferred, then the first JSON object embedded in
// the text, then a caller-supplied fallback. The JSON object a value came from
// is kept verbatim next to it.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"ascendfit/internal/core"
)

// Source records which path produced a Result
type Source string

const (
	SourceToolCall Source = "tool_call"
	SourceText     Source = "text"
	SourceFallback Source = "fallback"
)

// maxCandidates bounds how many '{' positions are tried in free text
const maxCandidates = 32

// Result is a fully populated extraction outcome
type Result[T any] struct {
	Value T
	// Raw is the JSON object exactly as the model produced it. Nil for fallbacks.
	Raw    json.RawMessage
	Source Source
	// ParseErr is the recovered parse error, if any path failed before the one used
	ParseErr error
}

// Recorder counts recovered parse errors
type Recorder interface {
	RecordParseError(tool string, source Source)
}

// Options configures one extraction
type Options[T any] struct {
	// ToolName selects the tool call to read. Empty accepts the first call.
	ToolName string
	// Schema, when set, validates tool-call arguments. Violations are logged only.
	Schema *jsonschema.Schema
	// Fallback builds the default value from the raw completion text
	Fallback func(raw string) T
	Recorder Recorder
}

// Extract returns the structured value carried by c
func Extract[T any](c *core.Completion, opts Options[T]) Result[T] {
	var raw string
	var parseErr error
	if c != nil {
		raw = c.Text

		if call, ok := findToolCall(c.ToolCalls, opts.ToolName); ok {
			args := strings.TrimSpace(call.Arguments)
			if isObject(args) {
				validate(opts.Schema, call.Name, args)
				return Result[T]{Value: decode[T](args, call.Name), Raw: json.RawMessage(args), Source: SourceToolCall}
			}
			parseErr = core.NewParseError("tool call arguments are not a JSON object for "+call.Name, nil)
			record(opts, SourceToolCall, parseErr)
			if strings.TrimSpace(raw) == "" {
				raw = call.Arguments
			}
		}

		if obj, ok := firstObject(raw); ok {
			return Result[T]{Value: decode[T](obj, opts.ToolName), Raw: json.RawMessage(obj), Source: SourceText, ParseErr: parseErr}
		}
		if raw != "" {
			parseErr = core.NewParseError("no JSON object found in completion text", parseErr)
			record(opts, SourceText, parseErr)
		}
	}

	var v T
	if opts.Fallback != nil {
		v = opts.Fallback(raw)
	}
	return Result[T]{Value: v, Source: SourceFallback, ParseErr: parseErr}
}

func isObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}

// decode fills T from a JSON object. Fields whose type does not match T are
// left zero; the object itself stays available as Result.Raw.
func decode[T any](obj, tool string) T {
	var v T
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		slog.Warn("structured output does not fit the result type", "tool", tool, "error", err)
	}
	return v
}

func findToolCall(calls []core.ToolCall, name string) (core.ToolCall, bool) {
	for _, call := range calls {
		if name == "" || call.Name == name {
			return call, true
		}
	}
	return core.ToolCall{}, false
}

func record[T any](opts Options[T], source Source, err error) {
	slog.Warn("recovered structured output parse error",
		"tool", opts.ToolName,
		"source", string(source),
		"error", err,
	)
	if opts.Recorder != nil {
		opts.Recorder.RecordParseError(opts.ToolName, source)
	}
}

func validate(schema *jsonschema.Schema, tool, args string) {
	if schema == nil {
		return
	}
	var payload any
	if err := json.Unmarshal([]byte(args), &payload); err != nil {
		return
	}
	if err := schema.Validate(payload); err != nil {
		slog.Warn("tool call arguments do not match schema", "tool", tool, "error", err)
	}
}

// FromText decodes the first JSON object embedded in text into T.
func FromText[T any](text string) (T, bool) {
	obj, ok := firstObject(text)
	if !ok {
		var zero T
		return zero, false
	}
	return decode[T](obj, ""), true
}

// firstObject returns the first brace-balanced span of text that is a valid
// JSON object. Balanced spans that are not JSON, such as "{like this}" in
// prose, are skipped.
func firstObject(text string) (string, bool) {
	start := 0
	for tries := 0; tries < maxCandidates; tries++ {
		i := strings.IndexByte(text[start:], '{')
		if i < 0 {
			return "", false
		}
		i += start
		if end, ok := MatchObject(text, i); ok && isObject(text[i:end]) {
			return text[i:end], true
		}
		start = i + 1
	}
	return "", false
}

// MatchObject returns the end offset (exclusive) of the JSON object starting at
// text[start], counting braces outside string literals only.
func MatchObject(text string, start int) (int, bool) {
	if start >= len(text) || text[start] != '{' {
		return 0, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// CompileToolSchema compiles a tool's parameter schema for argument validation.
func CompileToolSchema(tool *core.ToolSchema) (*jsonschema.Schema, error) {
	url := fmt.Sprintf("https://schemas.ascendfit.app/tools/%s.json", tool.Name)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(tool.Parameters)); err != nil {
		return nil, fmt.Errorf("add tool schema %s: %w", tool.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile tool schema %s: %w", tool.Name, err)
	}
	return schema, nil
}
