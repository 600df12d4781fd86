// Package artifact opens release artifacts by URL. Each URL scheme is served
// by its own handler; the update download step only sees a Source.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/codelanx/plugintemplate/internal/logging"
)

var log = logging.L("artifact")

var (
	// ErrNotFound means the artifact does not exist at the given location.
	ErrNotFound          = errors.New("artifact not found")
	ErrUnsupportedScheme = errors.New("unsupported artifact scheme")
	ErrInvalidURL        = errors.New("invalid artifact url")
)

// Source opens the artifact behind rawURL for reading.
type Source interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Handler serves one URL scheme.
type Handler interface {
	Open(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

type HandlerFunc func(ctx context.Context, u *url.URL) (io.ReadCloser, error)

func (f HandlerFunc) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	return f(ctx, u)
}

// Mux dispatches on the URL scheme.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Handle registers h for scheme, replacing any previous handler.
func (m *Mux) Handle(scheme string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[strings.ToLower(scheme)] = h
}

func (m *Mux) Schemes() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.handlers))
	for s := range m.handlers {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (m *Mux) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q has no scheme", ErrInvalidURL, rawURL)
	}

	m.mu.RLock()
	h, ok := m.handlers[strings.ToLower(u.Scheme)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}

	log.Debug("opening artifact", logging.KeyURL, u.Redacted())
	return h.Open(ctx, u)
}

// Close releases handlers that hold clients.
func (m *Mux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for scheme, h := range m.handlers {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", scheme, err))
			}
		}
	}
	return errors.Join(errs...)
}

// bucketObject splits scheme://bucket/path/to/object.
func bucketObject(u *url.URL) (bucket, object string, err error) {
	bucket = u.Host
	object = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %s url needs bucket and object, got %q", ErrInvalidURL, u.Scheme, u.String())
	}
	return bucket, object, nil
}
