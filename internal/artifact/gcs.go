package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSHandler serves gs://bucket/object.
type GCSHandler struct {
	clientOpts []option.ClientOption

	mu     sync.Mutex
	client *storage.Client
}

// NewGCSHandler skips credential lookup when anonymous is set, which is
// enough for publicly readable release buckets.
func NewGCSHandler(anonymous bool, extra ...option.ClientOption) *GCSHandler {
	var opts []option.ClientOption
	if anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	return &GCSHandler{clientOpts: append(opts, extra...)}
}

func (h *GCSHandler) storageClient(ctx context.Context) (*storage.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		return h.client, nil
	}
	c, err := storage.NewClient(ctx, h.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	h.client = c
	return c, nil
}

func (h *GCSHandler) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucket, object, err := bucketObject(u)
	if err != nil {
		return nil, err
	}
	client, err := h.storageClient(ctx)
	if err != nil {
		return nil, err
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrNotFound, bucket, object)
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read: %w", err)
	}
	return r, nil
}

func (h *GCSHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}
