package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ascendfit/internal/core"
)

// Writer emits OpenAI-style chat completion chunks to the client
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewWriter wraps w. Flushing is skipped when w does not support it.
func NewWriter(w http.ResponseWriter) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

type chunkEvent struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	Index int `json:"index"`
}

// Started reports whether headers have been sent
func (sw *Writer) Started() bool { return sw.started }

func (sw *Writer) start() {
	if sw.started {
		return
	}
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	sw.w.WriteHeader(http.StatusOK)
	sw.started = true
}

// Emit writes one chunk. It is an EmitFunc.
func (sw *Writer) Emit(c core.StreamChunk) error {
	if c.Done {
		return sw.write("[DONE]")
	}
	ev := chunkEvent{Choices: []chunkChoice{{}}}
	ev.Choices[0].Delta.Content = c.Delta
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return sw.write(string(b))
}

// WriteError reports a failure after the stream has started
func (sw *Writer) WriteError(err *core.FitError) error {
	b, mErr := json.Marshal(err.ToJSON())
	if mErr != nil {
		return mErr
	}
	return sw.write(string(b))
}

func (sw *Writer) write(payload string) error {
	sw.start()
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}
