package stream

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascendfit/internal/core"
)

const openAIPath = "choices.0.delta.content"

// chunkedReader returns the input in the given chunk sizes, cycling through them
type chunkedReader struct {
	data  []byte
	sizes []int
	i     int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.sizes[r.i%len(r.sizes)]
	r.i++
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func collect(t *testing.T, a *Reassembler, r io.Reader) ([]core.StreamChunk, string, error) {
	t.Helper()
	var chunks []core.StreamChunk
	text, err := a.Run(context.Background(), r, func(c core.StreamChunk) error {
		chunks = append(chunks, c)
		return nil
	})
	return chunks, text, err
}

const sample = ": keep-alive\r\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\r\n\r\n" +
	"event: ping\n" +
	"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lo \\\"coach\\\" 💪\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n\n" +
	"data: [DONE]\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n"

func TestRun_Basic(t *testing.T) {
	a := &Reassembler{DeltaPath: openAIPath}

	chunks, text, err := collect(t, a, strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "Hello \"coach\" 💪!", text)
	require.Len(t, chunks, 4)
	assert.Equal(t, "Hel", chunks[0].Delta)
	assert.True(t, chunks[3].Done)
}

func TestRun_ChunkBoundaryIndependence(t *testing.T) {
	a := &Reassembler{DeltaPath: openAIPath}
	want, wantText, err := collect(t, a, strings.NewReader(sample))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		sizes := make([]int, 1+rng.Intn(5))
		for i := range sizes {
			sizes[i] = 1 + rng.Intn(16)
		}
		got, gotText, err := collect(t, a, &chunkedReader{data: []byte(sample), sizes: sizes})
		require.NoError(t, err)
		require.Equal(t, wantText, gotText, "sizes %v", sizes)
		require.Equal(t, want, got, "sizes %v", sizes)
	}
}

func TestRun_EOFWithoutDoneFlushesLastLine(t *testing.T) {
	a := &Reassembler{DeltaPath: "candidates.0.content.parts.0.text"}
	body := "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Keep \"}]}}]}\n\n" +
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"going\"}]}}]}"

	chunks, text, err := collect(t, a, strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, "Keep going", text)
	assert.True(t, chunks[len(chunks)-1].Done)
}

func TestRun_IncompleteLineIsHeldBack(t *testing.T) {
	a := &Reassembler{DeltaPath: openAIPath}
	body := "data: {\"choices\":[{\"delta\":\n" +
		"{\"content\":\"split\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" ok\"}}]}\n\n" +
		"data: [DONE]\n\n"

	_, text, err := collect(t, a, strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "split ok", text)
}

func TestRun_BrokenEventSupersededByNextEvent(t *testing.T) {
	a := &Reassembler{DeltaPath: openAIPath}
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"lost\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"kept\"}}]}\n\n" +
		"data: [DONE]\n\n"

	_, text, err := collect(t, a, strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "kept", text)
}

func TestRun_StreamErrorEvent(t *testing.T) {
	a := &Reassembler{DeltaPath: openAIPath, Provider: "gateway"}
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: {\"error\":{\"message\":\"overloaded\",\"code\":503}}\n\n"

	_, text, err := collect(t, a, strings.NewReader(body))
	assert.Equal(t, "a", text)
	assert.Equal(t, core.ErrorKindProvider, core.KindOf(err))
	assert.ErrorContains(t, err, "overloaded")
}

func TestRun_EmitErrorStops(t *testing.T) {
	a := &Reassembler{DeltaPath: openAIPath}
	stop := errors.New("client gone")

	calls := 0
	_, err := a.Run(context.Background(), strings.NewReader(sample), func(core.StreamChunk) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestRun_IdleTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	go func() {
		_, _ = pw.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n"))
		// then stall
	}()

	a := &Reassembler{DeltaPath: openAIPath, IdleTimeout: 30 * time.Millisecond}
	_, text, err := collect(t, a, pr)

	assert.Equal(t, "x", text)
	assert.ErrorIs(t, err, ErrIdleTimeout)
}

func TestRun_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	a := &Reassembler{DeltaPath: openAIPath}
	_, err := a.Run(ctx, pr, func(core.StreamChunk) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)

	require.NoError(t, w.Emit(core.StreamChunk{Delta: "Hi"}))
	require.NoError(t, w.Emit(core.StreamChunk{Done: true}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"},\"index\":0}]}\n\ndata: [DONE]\n\n",
		rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestWriter_RoundTripsThroughReassembler(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)
	for _, d := range []string{"a", "\n", "b\"c"} {
		require.NoError(t, w.Emit(core.StreamChunk{Delta: d}))
	}
	require.NoError(t, w.Emit(core.StreamChunk{Done: true}))

	_, text, err := collect(t, &Reassembler{DeltaPath: openAIPath}, strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\"c", text)
}

func TestRun_PendingEventSkipsControlLines(t *testing.T) {
	a := &Reassembler{DeltaPath: openAIPath}
	body := "data: {\"choices\":[{\"delta\":\n" +
		": keep-alive\n" +
		"event: ping\n" +
		"id: 7\n" +
		"\n" +
		"{\"content\":\"whole\"}}]}\n\n" +
		"data: [DONE]\n\n"

	_, text, err := collect(t, a, strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "whole", text)
}

func TestRun_BlockReasonFailsStream(t *testing.T) {
	a := &Reassembler{
		DeltaPath: "candidates.0.content.parts.0.text",
		BlockPath: "promptFeedback.blockReason",
		Provider:  "gemini",
	}
	body := "data: {\"promptFeedback\":{\"blockReason\":\"PROHIBITED_CONTENT\"}}\n\n"

	chunks, _, err := collect(t, a, strings.NewReader(body))
	assert.Equal(t, core.ErrorKindProvider, core.KindOf(err))
	assert.ErrorContains(t, err, "blocked the prompt: PROHIBITED_CONTENT")
	assert.Empty(t, chunks)
}

func TestRun_RequireText(t *testing.T) {
	for _, body := range []string{
		"data: [DONE]\n\n",
		": keep-alive\n\n",
		"data: {\"choices\":[{\"delta\":{}}]}\n\n",
	} {
		a := &Reassembler{DeltaPath: openAIPath, Provider: "gateway", RequireText: true}
		chunks, _, err := collect(t, a, strings.NewReader(body))
		assert.Equal(t, core.ErrorKindProvider, core.KindOf(err), body)
		assert.ErrorContains(t, err, "No response from AI")
		assert.Empty(t, chunks, "Done must not precede the error")

		a.RequireText = false
		chunks, _, err = collect(t, a, strings.NewReader(body))
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.True(t, chunks[0].Done)
	}
}
