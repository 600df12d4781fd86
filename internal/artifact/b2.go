package artifact

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/Backblaze/blazer/b2"
)

// B2Handler serves b2://bucket/object with an application key.
type B2Handler struct {
	accountID string
	appKey    string

	mu     sync.Mutex
	client *b2.Client
}

func NewB2Handler(accountID, appKey string) *B2Handler {
	return &B2Handler{accountID: accountID, appKey: appKey}
}

func (h *B2Handler) b2Client(ctx context.Context) (*b2.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		return h.client, nil
	}
	c, err := b2.NewClient(ctx, h.accountID, h.appKey)
	if err != nil {
		return nil, fmt.Errorf("authorize b2 account: %w", err)
	}
	h.client = c
	return c, nil
}

func (h *B2Handler) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucketName, object, err := bucketObject(u)
	if err != nil {
		return nil, err
	}
	c, err := h.b2Client(ctx)
	if err != nil {
		return nil, err
	}

	bucket, err := c.Bucket(ctx, bucketName)
	if err != nil {
		if b2.IsNotExist(err) {
			return nil, fmt.Errorf("%w: b2://%s", ErrNotFound, bucketName)
		}
		return nil, fmt.Errorf("b2 bucket: %w", err)
	}

	obj := bucket.Object(object)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, fmt.Errorf("%w: b2://%s/%s", ErrNotFound, bucketName, object)
		}
		return nil, fmt.Errorf("b2 object attrs: %w", err)
	}
	return obj.NewReader(ctx), nil
}
