// Package stream reassembles provider SSE bodies into ordered text deltas and
// writes the client-facing event stream.
package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"ascendfit/internal/core"
)

const (
	readSize = 32 << 10
	// maxPending bounds the held-back partial payload
	maxPending = 1 << 20
)

// ErrIdleTimeout is returned when the provider stops sending bytes
var ErrIdleTimeout = errors.New("stream idle timeout")

// EmitFunc receives chunks in arrival order. Returning an error stops the stream.
type EmitFunc func(core.StreamChunk) error

// Reassembler turns SSE bytes into deltas found at DeltaPath
type Reassembler struct {
	DeltaPath string
	// IdleTimeout aborts when no bytes arrive for this long. Zero disables it.
	IdleTimeout time.Duration
	// Provider labels errors reported inside the stream
	Provider string
	// BlockPath, when set, locates a block reason; an event carrying one fails the stream
	BlockPath string
	// RequireText fails a stream that completes without any text
	RequireText bool
}

// lineState carries the partial payload between lines
type lineState struct {
	pending string
	text    strings.Builder
	done    bool
}

type readResult struct {
	data []byte
	err  error
}

// Run consumes r until [DONE], EOF, an error, idle timeout or ctx cancellation.
// It emits every non-empty delta, then a final Done chunk on clean completion,
// and returns the concatenated text. If r is an io.Closer it is closed on return.
func (a *Reassembler) Run(ctx context.Context, r io.Reader, emit EmitFunc) (string, error) {
	reads := make(chan readResult)
	quit := make(chan struct{})
	defer func() {
		close(quit)
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
	}()

	go func() {
		for {
			buf := make([]byte, readSize)
			n, err := r.Read(buf)
			select {
			case reads <- readResult{data: buf[:n], err: err}:
			case <-quit:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var idle <-chan time.Time
	var timer *time.Timer
	if a.IdleTimeout > 0 {
		timer = time.NewTimer(a.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	st := &lineState{}
	var buf []byte

	for {
		select {
		case <-ctx.Done():
			return st.text.String(), ctx.Err()
		case <-idle:
			return st.text.String(), core.NewProviderError(a.Provider, 0, "AI provider stream stalled", ErrIdleTimeout)
		case res := <-reads:
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(a.IdleTimeout)
			}

			buf = append(buf, res.data...)
			for {
				i := bytes.IndexByte(buf, '\n')
				if i < 0 {
					break
				}
				line := string(buf[:i])
				buf = buf[i+1:]
				if err := a.processLine(st, line, emit); err != nil {
					return st.text.String(), err
				}
				if st.done {
					return a.finish(st, emit)
				}
			}

			if res.err != nil {
				if !errors.Is(res.err, io.EOF) {
					return st.text.String(), core.NewProviderError(a.Provider, 0, "AI provider stream interrupted", res.err)
				}
				// flush the unterminated last line
				if len(buf) > 0 {
					if err := a.processLine(st, string(buf), emit); err != nil {
						return st.text.String(), err
					}
				}
				if st.pending != "" {
					slog.Warn("discarding incomplete stream event at EOF", "bytes", len(st.pending))
				}
				return a.finish(st, emit)
			}
		}
	}
}

// finish emits the Done chunk after a clean end of stream
func (a *Reassembler) finish(st *lineState, emit EmitFunc) (string, error) {
	text := st.text.String()
	if a.RequireText && text == "" {
		return text, core.NewProviderError(a.Provider, 0, "No response from AI", nil)
	}
	return text, emit(core.StreamChunk{Done: true})
}

func (a *Reassembler) processLine(st *lineState, line string, emit EmitFunc) error {
	line = strings.TrimSuffix(line, "\r")

	if st.pending != "" && !isControlLine(line) {
		// a fresh complete event supersedes a payload that never completed
		payload, isData := dataPayload(line)
		if isData && (payload == "[DONE]" || gjson.Valid(payload)) {
			slog.Warn("discarding incomplete stream event", "bytes", len(st.pending))
			st.pending = ""
		} else {
			next := line
			if isData {
				next = payload
			}
			joined := st.pending + "\n" + next
			if !gjson.Valid(joined) {
				if len(joined) > maxPending {
					slog.Warn("dropping oversized incomplete stream event", "bytes", len(joined))
					st.pending = ""
					return nil
				}
				st.pending = joined
				return nil
			}
			st.pending = ""
			return a.handlePayload(st, joined, emit)
		}
	}

	if line == "" || strings.HasPrefix(line, ":") {
		return nil
	}
	payload, ok := dataPayload(line)
	if !ok {
		return nil
	}
	if payload == "[DONE]" {
		st.done = true
		return nil
	}
	if !gjson.Valid(payload) {
		st.pending = payload
		return nil
	}
	return a.handlePayload(st, payload, emit)
}

func (a *Reassembler) handlePayload(st *lineState, payload string, emit EmitFunc) error {
	if msg := gjson.Get(payload, "error.message"); msg.Exists() {
		return core.NewProviderError(a.Provider, int(gjson.Get(payload, "error.code").Int()), "AI provider stream error: "+msg.String(), nil)
	}
	if a.BlockPath != "" {
		if reason := gjson.Get(payload, a.BlockPath).String(); reason != "" {
			return core.NewProviderError(a.Provider, 0, "AI provider blocked the prompt: "+reason, nil)
		}
	}
	delta := gjson.Get(payload, a.DeltaPath).String()
	if delta == "" {
		return nil
	}
	st.text.WriteString(delta)
	return emit(core.StreamChunk{Delta: delta})
}

// isControlLine reports SSE lines that never continue a data payload: blank
// lines, comments and the event, id and retry fields.
func isControlLine(line string) bool {
	if line == "" || strings.HasPrefix(line, ":") {
		return true
	}
	for _, field := range []string{"event:", "id:", "retry:"} {
		if strings.HasPrefix(line, field) {
			return true
		}
	}
	return false
}

// dataPayload returns the trimmed value of a "data:" line
func dataPayload(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
