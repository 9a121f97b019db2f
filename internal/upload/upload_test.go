package upload

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascendfit/internal/core"
)

type fakeFiles struct {
	startErr  error
	uploadErr error
	calls     []string
	gotData   []byte
	gotSize   int64
}

func (f *fakeFiles) StartUpload(_ context.Context, size int64, mimeType, _ string) (string, error) {
	f.calls = append(f.calls, "start")
	f.gotSize = size
	if f.startErr != nil {
		return "", f.startErr
	}
	return "https://upload.example/session/1", nil
}

func (f *fakeFiles) UploadAndFinalize(_ context.Context, uploadURL string, data []byte) (*core.RemoteFile, error) {
	f.calls = append(f.calls, "upload:"+uploadURL)
	f.gotData = data
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &core.RemoteFile{Name: "files/abc", URI: "https://x/files/abc", MimeType: "video/mp4", State: "PROCESSING"}, nil
}

func (f *fakeFiles) GetFile(context.Context, string) (*core.RemoteFile, error) {
	f.calls = append(f.calls, "get")
	return nil, nil
}

func (f *fakeFiles) DeleteFile(context.Context, string) error {
	f.calls = append(f.calls, "delete")
	return nil
}

func TestUpload_Success(t *testing.T) {
	files := &fakeFiles{}
	c := NewCoordinator(files)

	s, err := c.Upload(context.Background(), []byte("12345"), "video/mp4", "squat")
	require.NoError(t, err)

	assert.Equal(t, PhaseFinalized, s.Phase)
	assert.Equal(t, "files/abc", s.File.Name)
	assert.Equal(t, int64(5), files.gotSize)
	assert.Equal(t, []byte("12345"), files.gotData)
	assert.Equal(t, []string{"start", "upload:https://upload.example/session/1"}, files.calls)
}

func TestUpload_StartFailureMakesNoFurtherCalls(t *testing.T) {
	files := &fakeFiles{
		startErr: core.ParseProviderError("gemini", http.StatusBadRequest, []byte(`{"error":{"message":"bad"}}`), nil),
	}
	c := NewCoordinator(files)

	s, err := c.Upload(context.Background(), []byte("data"), "video/mp4", "x")
	require.Error(t, err)

	assert.Equal(t, []string{"start"}, files.calls)
	assert.Equal(t, PhaseFailed, s.Phase)

	var fe *core.FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.ErrorKindUpload, fe.Kind)
	assert.Equal(t, "start", fe.Phase)
	assert.Equal(t, http.StatusBadRequest, fe.StatusCode)
	assert.Contains(t, fe.Body, "bad")
}

func TestUpload_FinalizeFailure(t *testing.T) {
	files := &fakeFiles{
		uploadErr: core.ParseProviderError("gemini", http.StatusInternalServerError, []byte("oops"), nil),
	}

	s, err := NewCoordinator(files).Upload(context.Background(), []byte("data"), "video/mp4", "x")

	assert.Equal(t, core.ErrorKindUpload, core.KindOf(err))
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Equal(t, "https://upload.example/session/1", s.UploadURL)
	assert.Len(t, files.calls, 2, "no retry of a half-completed handshake")
}

func TestUpload_RateLimitDuringStartIsUploadError(t *testing.T) {
	files := &fakeFiles{startErr: core.NewRateLimitError("gemini", "")}

	_, err := NewCoordinator(files).Upload(context.Background(), []byte("data"), "video/mp4", "x")

	var fe *core.FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.ErrorKindUpload, fe.Kind)
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
}

func TestUpload_NetworkError(t *testing.T) {
	files := &fakeFiles{startErr: errors.New("connection refused")}

	_, err := NewCoordinator(files).Upload(context.Background(), []byte("data"), "video/mp4", "x")

	assert.Equal(t, core.ErrorKindUpload, core.KindOf(err))
	assert.ErrorContains(t, err, "start")
}

func TestUpload_EmptyPayload(t *testing.T) {
	files := &fakeFiles{}

	_, err := NewCoordinator(files).Upload(context.Background(), nil, "video/mp4", "x")

	assert.Equal(t, core.ErrorKindUpload, core.KindOf(err))
	assert.Empty(t, files.calls)
}
