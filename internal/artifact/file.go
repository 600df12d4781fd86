package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileHandler serves file:// URLs from below a root directory.
type FileHandler struct {
	root string
}

func NewFileHandler(root string) *FileHandler {
	return &FileHandler{root: root}
}

func (h *FileHandler) Open(_ context.Context, u *url.URL) (io.ReadCloser, error) {
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if u.Host != "" && u.Host != "localhost" {
		p = u.Host + "/" + strings.TrimPrefix(p, "/")
	}

	target, err := containedPath(h.root, p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	if err != nil {
		return nil, err
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, target)
	}
	return f, nil
}

// containedPath resolves untrusted below base and rejects anything that would
// escape it. Absolute paths already inside base are accepted as is.
func containedPath(base, untrusted string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	candidate := filepath.FromSlash(untrusted)
	if !filepath.IsAbs(candidate) || !within(absBase, filepath.Clean(candidate)) {
		candidate = filepath.Join(absBase, candidate)
	}
	resolved, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !within(absBase, resolved) {
		return "", fmt.Errorf("%w: %q resolves outside %q", ErrInvalidURL, untrusted, absBase)
	}
	return resolved, nil
}

func within(base, p string) bool {
	return p == base || strings.HasPrefix(p, base+string(filepath.Separator))
}
