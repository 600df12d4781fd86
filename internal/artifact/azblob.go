package artifact

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureHandler serves azblob://account/container/blob from public containers.
type AzureHandler struct {
	serviceURL func(account string) string

	mu      sync.Mutex
	clients map[string]*azblob.Client
}

func defaultServiceURL(account string) string {
	return "https://" + account + ".blob.core.windows.net/"
}

// NewAzureHandler builds service URLs with serviceURL, or the public Azure
// endpoint when nil.
func NewAzureHandler(serviceURL func(account string) string) *AzureHandler {
	if serviceURL == nil {
		serviceURL = defaultServiceURL
	}
	return &AzureHandler{serviceURL: serviceURL, clients: make(map[string]*azblob.Client)}
}

func (h *AzureHandler) client(account string) (*azblob.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[account]; ok {
		return c, nil
	}
	c, err := azblob.NewClientWithNoCredential(h.serviceURL(account), nil)
	if err != nil {
		return nil, fmt.Errorf("create azblob client: %w", err)
	}
	h.clients[account] = c
	return c, nil
}

func splitAzure(u *url.URL) (account, container, blob string, err error) {
	account = u.Host
	container, blob, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if account == "" || container == "" || blob == "" {
		return "", "", "", fmt.Errorf("%w: azblob url needs account, container and blob, got %q", ErrInvalidURL, u.String())
	}
	return account, container, blob, nil
}

func (h *AzureHandler) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	account, container, blob, err := splitAzure(u)
	if err != nil {
		return nil, err
	}
	c, err := h.client(account)
	if err != nil {
		return nil, err
	}

	resp, err := c.DownloadStream(ctx, container, blob, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return nil, fmt.Errorf("%w: azblob://%s/%s/%s", ErrNotFound, account, container, blob)
	}
	if err != nil {
		return nil, fmt.Errorf("azblob download: %w", err)
	}
	return resp.Body, nil
}
