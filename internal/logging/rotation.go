package logging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
)

// RotatingWriter appends to a log file and shifts it to numbered backups
// (.1 newest) once the next write would push it past the size limit. It is
// safe for concurrent use.
type RotatingWriter struct {
	mu         sync.Mutex
	path       string
	limit      int64
	maxBackups int
	file       *os.File
	size       int64
}

// NewRotatingWriter opens path for appending. Non-positive limits fall back
// to 10 MB and 3 backups.
func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &RotatingWriter{path: path, limit: int64(maxSizeMB) << 20, maxBackups: maxBackups}
	if err := w.reopen(); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the active log file.
func (w *RotatingWriter) Path() string { return w.path }

// Write implements io.Writer. A single write larger than the limit still
// lands whole in a fresh file.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, fs.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.limit {
		if err := w.shift(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the underlying file. Further writes fail with fs.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) reopen() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file, w.size = f, info.Size()
	return nil
}

func (w *RotatingWriter) shift() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil
	oldest := w.backup(w.maxBackups)
	if err := os.Remove(oldest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for i := w.maxBackups - 1; i >= 0; i-- {
		err := os.Rename(w.backup(i), w.backup(i+1))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return w.reopen()
}

// backup(0) is the active file.
func (w *RotatingWriter) backup(i int) string {
	if i == 0 {
		return w.path
	}
	return fmt.Sprintf("%s.%d", w.path, i)
}

// Options configures Setup.
type Options struct {
	Format     string
	Level      string
	DebugLevel int
	// File enables a rotating log file next to console output when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Console defaults to os.Stdout.
	Console    io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the root handler described by opts. The returned closer
// releases the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	lvl := EffectiveLevel(opts.Level, opts.DebugLevel)
	if opts.File == "" {
		Init(opts.Format, lvl, console)
		return nopCloser{}, nil
	}
	w, err := NewRotatingWriter(opts.File, opts.MaxSizeMB, opts.MaxBackups)
	if err != nil {
		return nil, err
	}
	Init(opts.Format, lvl, io.MultiWriter(console, w))
	return w, nil
}
