package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Key constants for structured log fields.
const (
	KeyComponent = "component"
	KeyPlugin    = "plugin"
	KeyProjectID = "projectId"
	KeyVersion   = "version"
	KeyResult    = "result"
	KeyURL       = "url"
	KeyPath      = "path"
	KeyError     = "error"
)

type contextKey struct{}

// rootHandler forwards every record to the handler most recently installed by
// Init. Derived handlers replay their WithAttrs/WithGroup calls in order on
// top of the current target, so loggers created at package init follow later
// reconfiguration.
type rootHandler struct {
	target *atomic.Pointer[slog.Handler]
	steps  []func(slog.Handler) slog.Handler
}

func (h *rootHandler) resolve() slog.Handler {
	handler := *h.target.Load()
	for _, step := range h.steps {
		handler = step(handler)
	}
	return handler
}

func (h *rootHandler) derive(step func(slog.Handler) slog.Handler) *rootHandler {
	steps := make([]func(slog.Handler) slog.Handler, len(h.steps), len(h.steps)+1)
	copy(steps, h.steps)
	return &rootHandler{target: h.target, steps: append(steps, step)}
}

func (h *rootHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h *rootHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.resolve().Handle(ctx, record)
}

func (h *rootHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	attrs = append([]slog.Attr(nil), attrs...)
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *rootHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

var (
	level         = new(slog.LevelVar)
	target        atomic.Pointer[slog.Handler]
	defaultLogger = slog.New(&rootHandler{target: &target})
)

func init() {
	install("text", os.Stdout)
	slog.SetDefault(defaultLogger)
}

func install(format string, output io.Writer) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	target.Store(&handler)
}

// Init swaps the root handler. Loggers obtained from L before the call follow
// the new handler.
// format: "json" or "text" (default "text")
// level: "debug", "info", "warn", "error" (default "info")
// output: nil means os.Stdout
func Init(format, lvl string, output io.Writer) {
	if output == nil {
		output = os.Stdout
	}
	level.Set(ParseLevel(lvl))
	install(format, output)
}

// SetLevel changes the root level without replacing the handler.
func SetLevel(lvl string) { level.Set(ParseLevel(lvl)) }

// Level reports the current root level.
func Level() slog.Level { return level.Level() }

// L returns a logger tagged with the given component name.
func L(component string) *slog.Logger {
	return defaultLogger.With(slog.String(KeyComponent, component))
}

// WithPlugin returns a child logger carrying the plugin's full name.
func WithPlugin(logger *slog.Logger, fullName string) *slog.Logger {
	return logger.With(slog.String(KeyPlugin, fullName))
}

// NewContext returns a new context carrying the given logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger from context, falling back to the default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "fine", "finer", "finest":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "severe":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EffectiveLevel returns the level name to install for a configured level and
// plugin debug level. Any debug level above zero forces debug output.
func EffectiveLevel(lvl string, debugLevel int) string {
	if debugLevel > 0 {
		return "debug"
	}
	return lvl
}
