package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"ascendfit/internal/core"
	"ascendfit/internal/pkg/llmclient"
)

func testProvider(baseURL string) *Provider {
	cfg := llmclient.DefaultConfig(Name, baseURL)
	cfg.MaxRetries = 0
	cfg.CircuitBreaker = nil
	return NewWithHTTPClient("test-api-key", http.DefaultClient, cfg)
}

func ptr[T any](v T) *T { return &v }

func TestComplete(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		responseBody  string
		wantKind      core.ErrorKind
		checkResponse func(*testing.T, *core.Completion)
	}{
		{
			name:       "text response",
			statusCode: http.StatusOK,
			responseBody: `{
				"candidates": [{
					"content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "athlete"}]},
					"finishReason": "STOP"
				}],
				"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 20, "totalTokenCount": 30},
				"modelVersion": "gemini-2.0-flash-exp"
			}`,
			checkResponse: func(t *testing.T, resp *core.Completion) {
				if resp.Text != "Hello athlete" {
					t.Errorf("Text = %q", resp.Text)
				}
				if resp.FinishReason != "STOP" {
					t.Errorf("FinishReason = %q", resp.FinishReason)
				}
				if resp.Usage.TotalTokens != 30 {
					t.Errorf("TotalTokens = %d, want 30", resp.Usage.TotalTokens)
				}
			},
		},
		{
			name:       "function call response",
			statusCode: http.StatusOK,
			responseBody: `{"candidates": [{"content": {"parts": [
				{"functionCall": {"name": "report_form_analysis", "args": {"formScore": 82, "feedback": "solid"}}}
			]}}]}`,
			checkResponse: func(t *testing.T, resp *core.Completion) {
				if len(resp.ToolCalls) != 1 {
					t.Fatalf("len(ToolCalls) = %d, want 1", len(resp.ToolCalls))
				}
				call := resp.ToolCalls[0]
				if call.Name != "report_form_analysis" {
					t.Errorf("Name = %q", call.Name)
				}
				if gjson.Get(call.Arguments, "formScore").Int() != 82 {
					t.Errorf("Arguments = %s", call.Arguments)
				}
			},
		},
		{
			name:         "blocked prompt",
			statusCode:   http.StatusOK,
			responseBody: `{"promptFeedback": {"blockReason": "SAFETY"}}`,
			wantKind:     core.ErrorKindProvider,
		},
		{
			name:         "rate limit",
			statusCode:   http.StatusTooManyRequests,
			responseBody: `{"error": {"message": "Resource has been exhausted"}}`,
			wantKind:     core.ErrorKindRateLimit,
		},
		{
			name:         "server error",
			statusCode:   http.StatusInternalServerError,
			responseBody: `{"error": {"message": "Internal error"}}`,
			wantKind:     core.ErrorKindProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1beta/models/gemini-2.0-flash-exp:generateContent" {
					t.Errorf("Path = %q", r.URL.Path)
				}
				if r.Header.Get("x-goog-api-key") != "test-api-key" {
					t.Error("missing x-goog-api-key header")
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			resp, err := testProvider(server.URL).Complete(context.Background(), &core.CompletionRequest{
				Model:    "gemini-2.0-flash-exp",
				Messages: []core.Message{core.TextMessage(core.RoleUser, "Hello")},
			})

			if tt.wantKind != "" {
				if got := core.KindOf(err); got != tt.wantKind {
					t.Fatalf("KindOf(err) = %v, want %v (err=%v)", got, tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.checkResponse(t, resp)
		})
	}
}

func TestBuildRequest(t *testing.T) {
	req := &core.CompletionRequest{
		Model: "gemini-2.0-flash-exp",
		Messages: []core.Message{
			core.TextMessage(core.RoleSystem, "be a coach"),
			core.TextMessage(core.RoleUser, "hi"),
			core.TextMessage(core.RoleAssistant, "hello"),
			{Role: core.RoleUser, Parts: []core.Part{
				{Type: core.PartText, Text: "analyze"},
				{Type: core.PartFile, FileURI: "https://files/abc", MimeType: "video/mp4"},
				{Type: core.PartImageURL, ImageURL: "data:image/png;base64,AAAA"},
			}},
		},
		Tool: &core.ToolSchema{
			Name:       "report_form_analysis",
			Parameters: []byte(`{"type":"object"}`),
		},
		ForceTool:   true,
		Temperature: ptr(0.4),
		MaxTokens:   ptr(2048),
	}

	out := buildRequest(req)

	if out.SystemInstruction == nil || out.SystemInstruction.Parts[0].Text != "be a coach" {
		t.Fatalf("system instruction not set: %+v", out.SystemInstruction)
	}
	if len(out.Contents) != 3 {
		t.Fatalf("len(Contents) = %d, want 3", len(out.Contents))
	}
	if out.Contents[1].Role != "model" {
		t.Errorf("assistant role should map to model, got %q", out.Contents[1].Role)
	}
	parts := out.Contents[2].Parts
	if parts[1].FileData == nil || parts[1].FileData.FileURI != "https://files/abc" {
		t.Errorf("file part = %+v", parts[1])
	}
	if parts[2].InlineData == nil || parts[2].InlineData.MimeType != "image/png" || parts[2].InlineData.Data != "AAAA" {
		t.Errorf("image part = %+v", parts[2])
	}
	if out.ToolConfig == nil || out.ToolConfig.FunctionCallingConfig.Mode != "ANY" {
		t.Error("forced tool should set mode ANY")
	}
	if *out.GenerationConfig.MaxOutputTokens != 2048 {
		t.Error("maxOutputTokens not propagated")
	}
}

func TestStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("alt = %q, want sse", r.URL.Query().Get("alt"))
		}
		if !strings.HasSuffix(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("Path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hi\"}]}}]}\r\n\r\n"))
	}))
	defer server.Close()

	stream, err := testProvider(server.URL).Stream(context.Background(), &core.CompletionRequest{
		Model:    "gemini-2.0-flash-exp",
		Messages: []core.Message{core.TextMessage(core.RoleUser, "Hello")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = stream.Body.Close() }()

	if stream.DeltaPath != DeltaPath {
		t.Errorf("DeltaPath = %q", stream.DeltaPath)
	}
	if stream.BlockPath != BlockPath {
		t.Errorf("BlockPath = %q", stream.BlockPath)
	}
	body, _ := io.ReadAll(stream.Body)
	if !strings.Contains(string(body), `"text":"Hi"`) {
		t.Errorf("unexpected body %q", body)
	}
}

func TestFilesHandshake(t *testing.T) {
	var uploadURL string
	var calls []string

	mux := http.NewServeMux()
	mux.HandleFunc("/upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "start")
		if r.Header.Get(headerUploadProtocol) != "resumable" || r.Header.Get(headerUploadCommand) != "start" {
			t.Errorf("bad start headers: %v", r.Header)
		}
		if r.Header.Get(headerUploadContentLength) != "5" || r.Header.Get(headerUploadContentType) != "video/mp4" {
			t.Errorf("bad declared size/type: %v", r.Header)
		}
		w.Header().Set(headerUploadURL, uploadURL)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session/1", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "upload")
		if r.Header.Get(headerUploadCommand) != "upload, finalize" || r.Header.Get(headerUploadOffset) != "0" {
			t.Errorf("bad upload headers: %v", r.Header)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "video" {
			t.Errorf("payload = %q", body)
		}
		_, _ = w.Write([]byte(`{"file":{"name":"files/abc","uri":"https://x/files/abc","mimeType":"video/mp4","state":"PROCESSING"}}`))
	})
	mux.HandleFunc("/v1beta/files/abc", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method)
		if r.Method == http.MethodDelete {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"files/abc","uri":"https://x/files/abc","state":"ACTIVE"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	uploadURL = server.URL + "/session/1"

	p := testProvider(server.URL)
	ctx := context.Background()

	gotURL, err := p.StartUpload(ctx, 5, "video/mp4", "squat.mp4")
	if err != nil {
		t.Fatalf("StartUpload: %v", err)
	}
	file, err := p.UploadAndFinalize(ctx, gotURL, []byte("video"))
	if err != nil {
		t.Fatalf("UploadAndFinalize: %v", err)
	}
	if file.Name != "files/abc" || file.State != "PROCESSING" {
		t.Errorf("file = %+v", file)
	}
	status, err := p.GetFile(ctx, file.Name)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if core.NormalizeState(status.State) != core.StateActive {
		t.Errorf("state = %q", status.State)
	}
	if err := p.DeleteFile(ctx, file.Name); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	want := []string{"start", "upload", http.MethodGet, http.MethodDelete}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestStartUpload_MissingURLHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := testProvider(server.URL).StartUpload(context.Background(), 1, "video/mp4", "x")
	if err == nil {
		t.Fatal("expected error when upload URL header is missing")
	}
}

func TestParseDataURL(t *testing.T) {
	mime, data, ok := parseDataURL("data:image/jpeg;base64,/9j/4AAQ")
	if !ok || mime != "image/jpeg" || data != "/9j/4AAQ" {
		t.Errorf("got %q %q %v", mime, data, ok)
	}
	if _, _, ok := parseDataURL("https://example.com/a.jpg"); ok {
		t.Error("http URL is not a data URL")
	}
}
