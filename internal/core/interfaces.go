package core

import (
	"context"
	"io"
)

// Provider defines the interface for AI providers
type Provider interface {
	// Name identifies the provider in logs, metrics and errors
	Name() string

	// Complete executes a non-streaming completion request
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// Stream returns a raw SSE stream (caller must close)
	Stream(ctx context.Context, req *CompletionRequest) (*EventStream, error)
}

// EventStream is a raw SSE body plus the gjson path of the text delta in each event.
type EventStream struct {
	Body      io.ReadCloser
	DeltaPath string
	// BlockPath locates a block reason in an event, for providers that report one
	BlockPath string
}

// FileAPI is implemented by providers that accept resumable uploads of large media.
type FileAPI interface {
	// StartUpload opens a resumable upload session and returns its upload URL
	StartUpload(ctx context.Context, size int64, mimeType, displayName string) (string, error)

	// UploadAndFinalize sends the whole payload to uploadURL at offset 0 and closes the session
	UploadAndFinalize(ctx context.Context, uploadURL string, data []byte) (*RemoteFile, error)

	// GetFile returns the current state of a remote file
	GetFile(ctx context.Context, name string) (*RemoteFile, error)

	// DeleteFile removes a remote file
	DeleteFile(ctx context.Context, name string) error
}
