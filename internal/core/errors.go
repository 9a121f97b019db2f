// Package core provides the shared types, interfaces and error taxonomy of the service.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies an error at the point its cause is first observed.
// Clients switch on the kind, which is returned as the "code" field.
type ErrorKind string

const (
	// ErrorKindValidation indicates a missing or malformed request field (400)
	ErrorKindValidation ErrorKind = "validation_error"
	// ErrorKindRateLimit indicates the provider answered 429
	ErrorKindRateLimit ErrorKind = "rate_limit_exceeded"
	// ErrorKindQuota indicates the provider answered 402
	ErrorKindQuota ErrorKind = "quota_exceeded"
	// ErrorKindUpload indicates a failed resumable upload handshake
	ErrorKindUpload ErrorKind = "upload_error"
	// ErrorKindProcessingTimeout indicates the poller hit its attempt ceiling
	ErrorKindProcessingTimeout ErrorKind = "processing_timeout"
	// ErrorKindProcessingFailed indicates the remote file reached a failure state
	ErrorKindProcessingFailed ErrorKind = "processing_failed"
	// ErrorKindProvider indicates any other non-OK provider response
	ErrorKindProvider ErrorKind = "provider_error"
	// ErrorKindParse indicates structured output could not be parsed.
	// It is recovered locally and never returned to HTTP callers.
	ErrorKindParse ErrorKind = "parse_error"
	// ErrorKindAuthentication indicates a missing or wrong service key (401)
	ErrorKindAuthentication ErrorKind = "authentication_error"
	// ErrorKindNotFound indicates an unknown resource (404)
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindInternal indicates a failure inside this service
	ErrorKindInternal ErrorKind = "internal_error"
)

const (
	rateLimitMessage = "Rate limit exceeded. Please try again later."
	quotaMessage     = "Payment required. Please add credits to your workspace."
)

// FitError is the single error type used across the service.
type FitError struct {
	Kind    ErrorKind `json:"code"`
	Message string    `json:"error"`
	// StatusCode is the upstream HTTP status, if one was observed
	StatusCode int    `json:"-"`
	Provider   string `json:"-"`
	// Phase names the step that failed (e.g. "upload:start", "poll")
	Phase string `json:"-"`
	// Body is the raw upstream response body (not exposed to clients)
	Body string `json:"-"`
	Err  error  `json:"-"`
}

// Error implements the error interface
func (e *FitError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		fmt.Fprintf(&b, "[%s] ", e.Provider)
	}
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	return b.String()
}

// Unwrap implements the error unwrapping interface
func (e *FitError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status this error is answered with.
// Upstream failures that are not rate or quota limits all surface as 500.
func (e *FitError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindRateLimit:
		return http.StatusTooManyRequests
	case ErrorKindQuota:
		return http.StatusPaymentRequired
	case ErrorKindAuthentication:
		return http.StatusUnauthorized
	case ErrorKindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the client-facing body
func (e *FitError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": e.Message,
		"code":  e.Kind,
	}
}

// NewValidationError creates a new validation error (400)
func NewValidationError(message string) *FitError {
	return &FitError{Kind: ErrorKindValidation, Message: message}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(provider, body string) *FitError {
	return &FitError{
		Kind:       ErrorKindRateLimit,
		Message:    rateLimitMessage,
		StatusCode: http.StatusTooManyRequests,
		Provider:   provider,
		Body:       body,
	}
}

// NewQuotaError creates a new quota error (402)
func NewQuotaError(provider, body string) *FitError {
	return &FitError{
		Kind:       ErrorKindQuota,
		Message:    quotaMessage,
		StatusCode: http.StatusPaymentRequired,
		Provider:   provider,
		Body:       body,
	}
}

// NewProviderError creates a new provider error carrying the upstream status and body
func NewProviderError(provider string, statusCode int, message string, err error) *FitError {
	return &FitError{
		Kind:       ErrorKindProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewUploadError creates a new upload handshake error
func NewUploadError(phase string, statusCode int, body string, err error) *FitError {
	msg := fmt.Sprintf("video upload failed during %s", phase)
	if statusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, statusCode)
	}
	return &FitError{
		Kind:       ErrorKindUpload,
		Message:    msg,
		StatusCode: statusCode,
		Phase:      phase,
		Body:       body,
		Err:        err,
	}
}

// NewProcessingTimeoutError creates an error for a poller that ran out of attempts
func NewProcessingTimeoutError(name string, attempts int) *FitError {
	return &FitError{
		Kind:    ErrorKindProcessingTimeout,
		Message: fmt.Sprintf("video processing did not finish after %d status checks", attempts),
		Phase:   "poll",
		Body:    name,
	}
}

// NewProcessingFailedError creates an error for a remote file that failed processing
func NewProcessingFailedError(name, state string) *FitError {
	return &FitError{
		Kind:    ErrorKindProcessingFailed,
		Message: fmt.Sprintf("video processing failed with state %s", state),
		Phase:   "poll",
		Body:    name,
	}
}

// NewParseError creates a recovered structured-output parse error
func NewParseError(message string, err error) *FitError {
	return &FitError{Kind: ErrorKindParse, Message: message, Err: err}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(message string) *FitError {
	return &FitError{Kind: ErrorKindAuthentication, Message: message}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *FitError {
	return &FitError{Kind: ErrorKindNotFound, Message: message}
}

// NewInternalError creates a new internal error (500)
func NewInternalError(message string, err error) *FitError {
	return &FitError{Kind: ErrorKindInternal, Message: message, Err: err}
}

// ParseProviderError maps a non-OK provider response to a typed error.
// This is the only place upstream status codes are classified.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *FitError {
	raw := string(body)
	switch statusCode {
	case http.StatusTooManyRequests:
		return NewRateLimitError(provider, raw)
	case http.StatusPaymentRequired:
		return NewQuotaError(provider, raw)
	}

	// Both OpenAI-style and Google-style bodies use {"error":{"message":...}}
	var errorResponse struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := fmt.Sprintf("AI provider error: %d", statusCode)
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error.Message != "" {
		message = fmt.Sprintf("AI provider error: %d: %s", statusCode, errorResponse.Error.Message)
	}

	e := NewProviderError(provider, statusCode, message, originalErr)
	e.Body = raw
	return e
}

// KindOf returns the error kind of err, or ErrorKindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *FitError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrorKindInternal
}
