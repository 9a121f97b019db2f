// Package videosource downloads workout videos from a direct URL, the
// backing object storage or a Cloud Storage bucket.
package videosource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"

	"ascendfit/config"
	"ascendfit/internal/core"
)

// DefaultMimeType is assumed when neither the response nor the name says otherwise
const DefaultMimeType = "video/mp4"

// Video is a downloaded payload
type Video struct {
	Data     []byte
	MimeType string
	// Name is the last path element of the source, used as the upload display name
	Name string
}

// ObjectReader opens objects in a bucket store
type ObjectReader interface {
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, string, error)
}

// Source resolves video references. It is safe for concurrent use.
type Source struct {
	httpClient *http.Client
	// direct fetches client-supplied URLs
	direct  *http.Client
	objects ObjectReader
	cfg     config.VideoConfig
}

// New creates a Source. objects may be nil when no bucket store is configured.
// Client-supplied URLs go through a copy of httpClient that refuses private,
// loopback and link-local addresses unless cfg.AllowPrivateURLs is set.
func New(cfg config.VideoConfig, httpClient *http.Client, objects ObjectReader) *Source {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	direct := httpClient
	if !cfg.AllowPrivateURLs {
		direct = guardedClient(httpClient)
	}
	return &Source{httpClient: httpClient, direct: direct, objects: objects, cfg: cfg}
}

// Fetch downloads the video named by videoURL or, when empty, by storagePath.
// videoURL may be http(s) or gs://bucket/object. storagePath is read from the
// configured GCS bucket if set, otherwise from the storage REST endpoint.
func (s *Source) Fetch(ctx context.Context, videoURL, storagePath string) (*Video, error) {
	switch {
	case videoURL != "":
		u, err := url.Parse(videoURL)
		if err != nil {
			return nil, core.NewValidationError("videoUrl is not a valid URL")
		}
		switch u.Scheme {
		case "http", "https":
			if !hostAllowed(s.cfg.AllowedURLHosts, u) {
				return nil, core.NewValidationError("videoUrl host is not allowed")
			}
			if ip, err := netip.ParseAddr(u.Hostname()); err == nil && !s.cfg.AllowPrivateURLs && !publicAddr(ip) {
				return nil, core.NewValidationError("videoUrl host is not allowed")
			}
			return s.fetchHTTP(ctx, s.direct, videoURL, "")
		case "gs":
			return s.fetchObject(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
		default:
			return nil, core.NewValidationError("videoUrl must be http(s) or gs://")
		}

	case storagePath != "":
		clean := strings.TrimPrefix(path.Clean("/"+storagePath), "/")
		if clean == "" || strings.Contains(storagePath, "..") {
			return nil, core.NewValidationError("videoPath is not a valid storage path")
		}
		if s.cfg.GCSBucket != "" {
			return s.fetchObject(ctx, s.cfg.GCSBucket, clean)
		}
		if s.cfg.StorageURL == "" {
			return nil, core.NewInternalError("video storage is not configured", nil)
		}
		u := fmt.Sprintf("%s/storage/v1/object/%s/%s",
			strings.TrimRight(s.cfg.StorageURL, "/"), s.cfg.StorageBucket, clean)
		return s.fetchHTTP(ctx, s.httpClient, u, s.cfg.ServiceRoleKey)

	default:
		return nil, core.NewValidationError("videoPath or videoUrl is required")
	}
}

func (s *Source) fetchHTTP(ctx context.Context, client *http.Client, rawURL, bearer string) (*Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, core.NewInternalError("failed to build video download request", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, errBlockedAddress) {
			return nil, core.NewValidationError("videoUrl host is not allowed")
		}
		return nil, core.NewInternalError("failed to download video", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close video download body", "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.NewNotFoundError("video not found")
	case resp.StatusCode != http.StatusOK:
		return nil, core.NewInternalError("Failed to download video: "+http.StatusText(resp.StatusCode), nil)
	}
	if s.cfg.MaxBytes > 0 && resp.ContentLength > s.cfg.MaxBytes {
		return nil, tooLarge(s.cfg.MaxBytes)
	}

	data, err := s.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	name := path.Base(req.URL.Path)
	return &Video{Data: data, MimeType: mimeType(resp.Header.Get("Content-Type"), name), Name: name}, nil
}

func (s *Source) fetchObject(ctx context.Context, bucket, object string) (*Video, error) {
	if s.objects == nil {
		return nil, core.NewValidationError("Cloud Storage video sources are not enabled")
	}
	if bucket == "" || object == "" {
		return nil, core.NewValidationError("gs:// URL needs a bucket and an object")
	}

	rc, contentType, err := s.objects.Open(ctx, bucket, object)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, core.NewNotFoundError("video not found")
		}
		return nil, core.NewInternalError("failed to read video from bucket", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := s.readLimited(rc)
	if err != nil {
		return nil, err
	}
	name := path.Base(object)
	return &Video{Data: data, MimeType: mimeType(contentType, name), Name: name}, nil
}

func (s *Source) readLimited(r io.Reader) ([]byte, error) {
	if s.cfg.MaxBytes > 0 {
		r = io.LimitReader(r, s.cfg.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, core.NewInternalError("failed to read video", err)
	}
	if s.cfg.MaxBytes > 0 && int64(len(data)) > s.cfg.MaxBytes {
		return nil, tooLarge(s.cfg.MaxBytes)
	}
	if len(data) == 0 {
		return nil, core.NewValidationError("video is empty")
	}
	return data, nil
}

func tooLarge(limit int64) error {
	return core.NewValidationError(fmt.Sprintf("video exceeds the %d byte limit", limit))
}

// mimeType prefers a video/* content type, then the file extension.
func mimeType(contentType, name string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "video/") {
		return mt
	}
	if mt := mime.TypeByExtension(path.Ext(name)); strings.HasPrefix(mt, "video/") {
		return mt
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	}
	return DefaultMimeType
}
