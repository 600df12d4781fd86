package update

import "log/slog"

// Result is the terminal outcome of a Checker run. The zero value is
// Incomplete.
type Result int32

const (
	Incomplete Result = iota
	Updated
	UpdateAvailable
	NoUpdate
	ErrorBadID
	ErrorNotFound
	ErrorDownloadFailed
)

var results = map[Result]struct {
	name    string
	level   slog.Level
	message string
}{
	Incomplete:          {"incomplete", slog.LevelWarn, "Update check has not completed yet"},
	Updated:             {"updated", slog.LevelInfo, "Plugin updated for next restart!"},
	UpdateAvailable:     {"update-available", slog.LevelInfo, "An update is available!"},
	NoUpdate:            {"no-update", slog.LevelInfo, "Plugin is up to date!"},
	ErrorBadID:          {"error-bad-id", slog.LevelError, "Invalid plugin ID provided!"},
	ErrorNotFound:       {"error-not-found", slog.LevelError, "Could not download the newest version!"},
	ErrorDownloadFailed: {"error-download-failed", slog.LevelError, "Failed to download new version!"},
}

func (r Result) String() string {
	if info, ok := results[r]; ok {
		return info.name
	}
	return "unknown"
}

// Level is the severity the result is logged at.
func (r Result) Level() slog.Level {
	if info, ok := results[r]; ok {
		return info.level
	}
	return slog.LevelError
}

// Message is the fixed text shown to operators.
func (r Result) Message() string {
	return results[r].message
}

// Failed reports whether r is one of the error results.
func (r Result) Failed() bool {
	return r == ErrorBadID || r == ErrorNotFound || r == ErrorDownloadFailed
}
