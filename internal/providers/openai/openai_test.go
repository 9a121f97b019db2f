package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascendfit/internal/core"
	"ascendfit/internal/pkg/llmclient"
)

func testProvider(baseURL string) *Provider {
	cfg := llmclient.DefaultConfig(Name, baseURL)
	cfg.MaxRetries = 0
	cfg.CircuitBreaker = nil
	return NewWithHTTPClient("lovable-key", http.DefaultClient, cfg)
}

var postureTool = &core.ToolSchema{
	Name:        "provide_posture_feedback",
	Description: "Provide quick posture analysis",
	Parameters:  json.RawMessage(`{"type":"object","properties":{"score":{"type":"number"}}}`),
}

func TestComplete_ToolCall(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer lovable-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))

		_, _ = w.Write([]byte(`{
			"model": "google/gemini-2.5-flash",
			"choices": [{
				"message": {
					"role": "assistant",
					"tool_calls": [{"type": "function", "function": {
						"name": "provide_posture_feedback",
						"arguments": "{\"score\":91,\"feedback\":\"Great\",\"corrections\":[]}"
					}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
		}`))
	}))
	defer server.Close()

	resp, err := testProvider(server.URL).Complete(context.Background(), &core.CompletionRequest{
		Model: "google/gemini-2.5-flash",
		Messages: []core.Message{
			core.TextMessage(core.RoleSystem, "coach"),
			{Role: core.RoleUser, Parts: []core.Part{
				{Type: core.PartText, Text: "Analyze posture for squat."},
				{Type: core.PartImageURL, ImageURL: "data:image/jpeg;base64,AAAA"},
			}},
		},
		Tool:      postureTool,
		ForceTool: true,
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, `{"score":91,"feedback":"Great","corrections":[]}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 12, resp.Usage.TotalTokens)

	msgs := received["messages"].([]any)
	assert.Equal(t, "coach", msgs[0].(map[string]any)["content"], "single text part is sent as a string")
	userParts := msgs[1].(map[string]any)["content"].([]any)
	assert.Equal(t, "image_url", userParts[1].(map[string]any)["type"])

	choice := received["tool_choice"].(map[string]any)
	assert.Equal(t, "provide_posture_feedback", choice["function"].(map[string]any)["name"])
}

func TestComplete_ObjectArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"function":{"name":"f","arguments":{"a":1}}}]}}]}`))
	}))
	defer server.Close()

	resp, err := testProvider(server.URL).Complete(context.Background(), &core.CompletionRequest{Model: "m"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, resp.ToolCalls[0].Arguments)
}

func TestComplete_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   core.ErrorKind
	}{
		{http.StatusTooManyRequests, core.ErrorKindRateLimit},
		{http.StatusPaymentRequired, core.ErrorKindQuota},
		{http.StatusBadRequest, core.ErrorKindProvider},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := testProvider(server.URL).Complete(context.Background(), &core.CompletionRequest{Model: "m"})
			assert.Equal(t, tt.want, core.KindOf(err))
		})
	}
}

func TestComplete_RejectsFileParts(t *testing.T) {
	_, err := testProvider("http://unused.invalid").Complete(context.Background(), &core.CompletionRequest{
		Model: "m",
		Messages: []core.Message{{Role: core.RoleUser, Parts: []core.Part{
			{Type: core.PartText, Text: "a"},
			{Type: core.PartFile, FileURI: "files/x"},
		}}},
	})
	assert.Equal(t, core.ErrorKindInternal, core.KindOf(err))
}

func TestStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, true, body["stream"])
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	stream, err := testProvider(server.URL).Stream(context.Background(), &core.CompletionRequest{
		Model:    "m",
		Messages: []core.Message{core.TextMessage(core.RoleUser, "hello")},
	})
	require.NoError(t, err)
	defer func() { _ = stream.Body.Close() }()

	assert.Equal(t, DeltaPath, stream.DeltaPath)
	data, _ := io.ReadAll(stream.Body)
	assert.Contains(t, string(data), "[DONE]")
}
