// Package upload runs the two-step resumable upload handshake for large media.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ascendfit/internal/core"
)

// Phase is the lifecycle position of an upload session
type Phase string

const (
	PhaseStart     Phase = "start"
	PhaseUploading Phase = "uploading"
	PhaseFinalized Phase = "finalized"
	PhaseFailed    Phase = "failed"
)

// Session describes one upload. It is only mutated by the Coordinator.
type Session struct {
	UploadURL string
	Size      int64
	MimeType  string
	Phase     Phase
	File      *core.RemoteFile
}

// Coordinator uploads payloads through a core.FileAPI
type Coordinator struct {
	files core.FileAPI
}

// NewCoordinator creates a coordinator over files
func NewCoordinator(files core.FileAPI) *Coordinator {
	return &Coordinator{files: files}
}

// Upload starts a session, sends the full payload at offset 0 and finalizes it.
// The returned Session is always non-nil and records the last phase reached.
// Every failure is an upload_error; nothing is attempted after a failed start
// and a half-completed handshake is never retried.
func (c *Coordinator) Upload(ctx context.Context, data []byte, mimeType, displayName string) (*Session, error) {
	s := &Session{Size: int64(len(data)), MimeType: mimeType, Phase: PhaseStart}
	if len(data) == 0 {
		s.Phase = PhaseFailed
		return s, core.NewUploadError(string(PhaseStart), 0, "", errors.New("empty payload"))
	}

	start := time.Now()
	uploadURL, err := c.files.StartUpload(ctx, s.Size, mimeType, displayName)
	if err != nil {
		s.Phase = PhaseFailed
		return s, asUploadError(PhaseStart, err)
	}
	s.UploadURL = uploadURL
	s.Phase = PhaseUploading

	file, err := c.files.UploadAndFinalize(ctx, uploadURL, data)
	if err != nil {
		s.Phase = PhaseFailed
		return s, asUploadError(PhaseUploading, err)
	}
	s.File = file
	s.Phase = PhaseFinalized

	slog.Debug("upload finalized",
		"file", file.Name,
		"bytes", s.Size,
		"mime_type", mimeType,
		"elapsed", time.Since(start),
	)
	return s, nil
}

// asUploadError wraps any handshake failure, including 429 and 402, as an
// upload_error carrying the upstream status and body.
func asUploadError(phase Phase, err error) error {
	var fe *core.FitError
	if errors.As(err, &fe) {
		if fe.Kind == core.ErrorKindUpload {
			return fe
		}
		return core.NewUploadError(string(phase), fe.StatusCode, fe.Body, err)
	}
	return core.NewUploadError(string(phase), 0, "", err)
}
