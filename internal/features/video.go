package features

import (
	"context"
	"log/slog"
	"time"

	"ascendfit/internal/core"
	"ascendfit/internal/poller"
	"ascendfit/internal/upload"
	"ascendfit/internal/videosource"
)

const cleanupTimeout = 10 * time.Second

// VideoObserver receives upload size and poll counts
type VideoObserver interface {
	ObserveVideo(sizeBytes int64, pollAttempts int)
}

// VideoFetcher downloads a video by URL or storage path
type VideoFetcher interface {
	Fetch(ctx context.Context, videoURL, storagePath string) (*videosource.Video, error)
}

// VideoPipeline downloads a video, uploads it to the provider's file API and
// waits until the provider has processed it.
type VideoPipeline struct {
	Source   VideoFetcher
	Files    core.FileAPI
	Poller   *poller.Poller
	Observer VideoObserver
	// DeleteAfter removes the remote file once the analysis finishes
	DeleteAfter bool
}

// Prepare runs download → upload → finalize → poll and returns the file part
// to attach to the prompt.
func (v *VideoPipeline) Prepare(ctx context.Context, in *VideoRequest) ([]core.Part, func(), error) {
	if v.Files == nil {
		return nil, nil, core.NewInternalError("video analysis requires a provider with a file API", nil)
	}

	video, err := v.Source.Fetch(ctx, in.VideoURL, in.VideoPath)
	if err != nil {
		return nil, nil, err
	}

	session, err := upload.NewCoordinator(v.Files).Upload(ctx, video.Data, video.MimeType, video.Name)
	if err != nil {
		v.observe(int64(len(video.Data)), 0)
		return nil, nil, err
	}
	file := session.File
	release := v.release(file.Name)

	status, err := v.Poller.Poll(ctx, file.Name, v.Files.GetFile)
	v.observe(session.Size, status.Attempts)
	if err != nil {
		return nil, release, err
	}

	ready := file
	if status.File != nil && status.File.URI != "" {
		ready = status.File
	}
	mime := ready.MimeType
	if mime == "" {
		mime = video.MimeType
	}
	return []core.Part{{Type: core.PartFile, FileURI: ready.URI, MimeType: mime}}, release, nil
}

func (v *VideoPipeline) observe(size int64, attempts int) {
	if v.Observer != nil {
		v.Observer.ObserveVideo(size, attempts)
	}
}

// release deletes the remote file after the request, even if it was canceled
func (v *VideoPipeline) release(name string) func() {
	if !v.DeleteAfter {
		return nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := v.Files.DeleteFile(ctx, name); err != nil {
			slog.Warn("failed to delete uploaded video", "file", name, "error", err)
		}
	}
}
