package videosource

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrObjectNotFound is returned by an ObjectReader for a missing object
var ErrObjectNotFound = errors.New("object not found")

// GCSReader reads objects from Google Cloud Storage
type GCSReader struct {
	Client *storage.Client
}

// NewGCSReader creates a client using credentialsFile, or application default
// credentials when it is empty.
func NewGCSReader(ctx context.Context, credentialsFile string) (*GCSReader, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSReader{Client: client}, nil
}

// Open returns a reader for the object and its content type
func (g *GCSReader) Open(ctx context.Context, bucket, object string) (io.ReadCloser, string, error) {
	rc, err := g.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", err
	}
	return rc, rc.Attrs.ContentType, nil
}

// Close releases the storage client
func (g *GCSReader) Close() error {
	return g.Client.Close()
}
