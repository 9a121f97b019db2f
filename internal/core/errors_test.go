package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFitError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *FitError
		expected string
	}{
		{
			name:     "validation without provider",
			err:      NewValidationError("message is required"),
			expected: "validation_error: message is required",
		},
		{
			name:     "rate limit with provider and status",
			err:      NewRateLimitError("gateway", "slow down"),
			expected: "[gateway] rate_limit_exceeded: Rate limit exceeded. Please try again later. (status 429)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFitError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *FitError
		expected int
	}{
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"rate limit", NewRateLimitError("gemini", ""), http.StatusTooManyRequests},
		{"quota", NewQuotaError("gemini", ""), http.StatusPaymentRequired},
		{"authentication", NewAuthenticationError("missing key"), http.StatusUnauthorized},
		{"not found", NewNotFoundError("no route"), http.StatusNotFound},
		{"upload", NewUploadError("start", http.StatusBadRequest, "", nil), http.StatusInternalServerError},
		{"processing timeout", NewProcessingTimeoutError("files/a", 30), http.StatusInternalServerError},
		{"processing failed", NewProcessingFailedError("files/a", "FAILED"), http.StatusInternalServerError},
		{"provider upstream 400", NewProviderError("gemini", http.StatusBadRequest, "x", nil), http.StatusInternalServerError},
		{"internal", NewInternalError("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFitError_ToJSON(t *testing.T) {
	err := NewQuotaError("gateway", "")

	result := err.ToJSON()

	if result["error"] != "Payment required. Please add credits to your workspace." {
		t.Errorf("ToJSON() error = %v", result["error"])
	}
	if result["code"] != ErrorKindQuota {
		t.Errorf("ToJSON() code = %v, want %v", result["code"], ErrorKindQuota)
	}
}

func TestParseProviderError(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantKind    ErrorKind
		wantMessage string
	}{
		{
			name:        "429 is rate limit",
			statusCode:  http.StatusTooManyRequests,
			body:        `{"error":{"message":"quota"}}`,
			wantKind:    ErrorKindRateLimit,
			wantMessage: rateLimitMessage,
		},
		{
			name:        "402 is quota",
			statusCode:  http.StatusPaymentRequired,
			body:        ``,
			wantKind:    ErrorKindQuota,
			wantMessage: quotaMessage,
		},
		{
			name:        "500 with structured body",
			statusCode:  http.StatusInternalServerError,
			body:        `{"error":{"message":"internal"}}`,
			wantKind:    ErrorKindProvider,
			wantMessage: "AI provider error: 500: internal",
		},
		{
			name:        "400 with plain body",
			statusCode:  http.StatusBadRequest,
			body:        `nope`,
			wantKind:    ErrorKindProvider,
			wantMessage: "AI provider error: 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseProviderError("gemini", tt.statusCode, []byte(tt.body), nil)
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.wantKind)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMessage)
			}
			if err.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %v, want %v", err.StatusCode, tt.statusCode)
			}
			if err.Body != tt.body {
				t.Errorf("Body = %q, want %q", err.Body, tt.body)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("analyze: %w", NewProcessingTimeoutError("files/x", 30))

	if got := KindOf(wrapped); got != ErrorKindProcessingTimeout {
		t.Errorf("KindOf(wrapped) = %v", got)
	}
	if got := KindOf(errors.New("plain")); got != ErrorKindInternal {
		t.Errorf("KindOf(plain) = %v", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %v", got)
	}
}

func TestFitError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUploadError("upload", 0, "", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if err.Phase != "upload" {
		t.Errorf("Phase = %q", err.Phase)
	}
}

func TestNormalizeState(t *testing.T) {
	cases := map[string]ProcessingState{
		"ACTIVE":     StateActive,
		"ready":      StateActive,
		"FAILED":     StateFailed,
		"PROCESSING": StateProcessing,
		"":           StateProcessing,
		"weird":      StateProcessing,
	}
	for in, want := range cases {
		if got := NormalizeState(in); got != want {
			t.Errorf("NormalizeState(%q) = %v, want %v", in, got, want)
		}
	}
	if StateProcessing.Terminal() {
		t.Error("processing must not be terminal")
	}
}
