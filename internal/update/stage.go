package update

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var errBadFileName = errors.New("plugin file name is not a plain file name")

// stage copies r into dir/name. The bytes go to a temporary file in dir first
// and are renamed into place only after a complete, verified write, so a
// failed transfer never leaves a truncated artifact under name. When
// wantMD5 is non-empty the digest must match.
func stage(dir, name string, r io.Reader, wantMD5 string) (int64, error) {
	base := filepath.Base(name)
	if base != name || base == "." || base == ".." || base == string(filepath.Separator) {
		return 0, fmt.Errorf("%w: %q", errBadFileName, name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create staging dir: %w", err)
	}
	if err := checkWritable(dir); err != nil {
		return 0, fmt.Errorf("staging dir not writable: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+base+".part-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	hasher := md5.New()
	n, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return n, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close artifact: %w", err)
	}

	if wantMD5 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, wantMD5) {
			return n, fmt.Errorf("checksum mismatch: expected %s, got %s", wantMD5, got)
		}
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, base)); err != nil {
		return n, fmt.Errorf("move artifact into place: %w", err)
	}
	committed = true
	return n, nil
}
