package providers

import (
	"context"
	"time"

	"ascendfit/internal/core"
)

// CallObserver receives one record per provider call
type CallObserver interface {
	ObserveProviderCall(provider, operation string, elapsed time.Duration, err error)
}

// observedProvider reports every Complete and Stream call to a CallObserver
type observedProvider struct {
	inner    core.Provider
	observer CallObserver
}

func newObservedProvider(p core.Provider, o CallObserver) core.Provider {
	if o == nil {
		return p
	}
	return &observedProvider{inner: p, observer: o}
}

func (w *observedProvider) Name() string { return w.inner.Name() }

func (w *observedProvider) Complete(ctx context.Context, req *core.CompletionRequest) (*core.Completion, error) {
	start := time.Now()
	resp, err := w.inner.Complete(ctx, req)
	w.observer.ObserveProviderCall(w.inner.Name(), "complete", time.Since(start), err)
	return resp, err
}

// Stream observes time to first byte only; the body is consumed later by the caller.
func (w *observedProvider) Stream(ctx context.Context, req *core.CompletionRequest) (*core.EventStream, error) {
	start := time.Now()
	stream, err := w.inner.Stream(ctx, req)
	w.observer.ObserveProviderCall(w.inner.Name(), "stream", time.Since(start), err)
	return stream, err
}

// observedFiles reports Files API calls
type observedFiles struct {
	inner    core.FileAPI
	name     string
	observer CallObserver
}

func newObservedFiles(f core.FileAPI, name string, o CallObserver) core.FileAPI {
	if o == nil {
		return f
	}
	return &observedFiles{inner: f, name: name, observer: o}
}

func (w *observedFiles) StartUpload(ctx context.Context, size int64, mimeType, displayName string) (string, error) {
	start := time.Now()
	url, err := w.inner.StartUpload(ctx, size, mimeType, displayName)
	w.observer.ObserveProviderCall(w.name, "upload_start", time.Since(start), err)
	return url, err
}

func (w *observedFiles) UploadAndFinalize(ctx context.Context, uploadURL string, data []byte) (*core.RemoteFile, error) {
	start := time.Now()
	f, err := w.inner.UploadAndFinalize(ctx, uploadURL, data)
	w.observer.ObserveProviderCall(w.name, "upload_finalize", time.Since(start), err)
	return f, err
}

func (w *observedFiles) GetFile(ctx context.Context, name string) (*core.RemoteFile, error) {
	start := time.Now()
	f, err := w.inner.GetFile(ctx, name)
	w.observer.ObserveProviderCall(w.name, "file_status", time.Since(start), err)
	return f, err
}

func (w *observedFiles) DeleteFile(ctx context.Context, name string) error {
	start := time.Now()
	err := w.inner.DeleteFile(ctx, name)
	w.observer.ObserveProviderCall(w.name, "file_delete", time.Since(start), err)
	return err
}
