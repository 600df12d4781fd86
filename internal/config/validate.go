package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
	"severe":  true,
}

var validVersionSources = map[string]bool{
	"name": true,
	"file": true,
}

// ValidationResult separates problems that must stop a load from those that
// were corrected in place.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// All returns fatals followed by warnings.
func (r ValidationResult) All() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	return append(all, r.Warnings...)
}

// Validate checks the config and returns every problem found. Out of range
// values are clamped and invalid enumerations reset to their defaults.
func (c *Config) Validate() []error {
	return c.ValidateTiered().All()
}

// ValidateTiered is Validate with the errors split by severity. Warnings are
// logged; fatals are left to the caller.
func (c *Config) ValidateTiered() ValidationResult {
	var res ValidationResult
	def := Default()

	if err := checkURL("update.endpoint", c.Update.Endpoint); err != nil {
		res.Fatals = append(res.Fatals, err)
	} else if !strings.Contains(c.Update.Endpoint, "%d") {
		res.Fatals = append(res.Fatals, fmt.Errorf("update.endpoint %q has no %%d placeholder for the project id", c.Update.Endpoint))
	}

	if c.Update.Proxy != "" {
		if err := checkURL("update.proxy", c.Update.Proxy); err != nil {
			res.Fatals = append(res.Fatals, err)
		}
	}

	if !c.Metrics.OptOut {
		if err := checkURL("metrics.endpoint", c.Metrics.Endpoint); err != nil {
			res.Fatals = append(res.Fatals, err)
		}
	}

	if c.Update.ProjectID < 0 {
		res.Warnings = append(res.Warnings, fmt.Errorf("update.project-id %d is negative, update checks will report an invalid id", c.Update.ProjectID))
	}

	if c.Update.DelayTicks < 0 {
		res.Warnings = append(res.Warnings, fmt.Errorf("update.delay-ticks %d is below minimum 0, clamping", c.Update.DelayTicks))
		c.Update.DelayTicks = 0
	} else if c.Update.DelayTicks > 72000 {
		res.Warnings = append(res.Warnings, fmt.Errorf("update.delay-ticks %d exceeds maximum 72000, clamping", c.Update.DelayTicks))
		c.Update.DelayTicks = 72000
	}

	if c.Update.TimeoutSeconds < 1 {
		res.Warnings = append(res.Warnings, fmt.Errorf("update.timeout-seconds %d is below minimum 1, clamping", c.Update.TimeoutSeconds))
		c.Update.TimeoutSeconds = 1
	} else if c.Update.TimeoutSeconds > 300 {
		res.Warnings = append(res.Warnings, fmt.Errorf("update.timeout-seconds %d exceeds maximum 300, clamping", c.Update.TimeoutSeconds))
		c.Update.TimeoutSeconds = 300
	}

	if !validVersionSources[strings.ToLower(c.Update.VersionSource)] {
		res.Warnings = append(res.Warnings, fmt.Errorf("update.version-source %q is not valid (use name or file), using %q", c.Update.VersionSource, def.Update.VersionSource))
		c.Update.VersionSource = def.Update.VersionSource
	}

	if c.Metrics.GUID != "" {
		if _, err := uuid.Parse(c.Metrics.GUID); err != nil {
			res.Warnings = append(res.Warnings, fmt.Errorf("metrics.guid %q is not a valid UUID, a new one will be generated", c.Metrics.GUID))
			c.Metrics.GUID = ""
		}
	}

	if c.Metrics.IntervalMinutes < 1 {
		res.Warnings = append(res.Warnings, fmt.Errorf("metrics.interval-minutes %d is below minimum 1, clamping", c.Metrics.IntervalMinutes))
		c.Metrics.IntervalMinutes = 1
	} else if c.Metrics.IntervalMinutes > 1440 {
		res.Warnings = append(res.Warnings, fmt.Errorf("metrics.interval-minutes %d exceeds maximum 1440, clamping", c.Metrics.IntervalMinutes))
		c.Metrics.IntervalMinutes = 1440
	}

	if c.DebugLevel < 0 {
		res.Warnings = append(res.Warnings, fmt.Errorf("debug-level %d is below minimum 0, clamping", c.DebugLevel))
		c.DebugLevel = 0
	} else if c.DebugLevel > 3 {
		res.Warnings = append(res.Warnings, fmt.Errorf("debug-level %d exceeds maximum 3, clamping", c.DebugLevel))
		c.DebugLevel = 3
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		res.Warnings = append(res.Warnings, fmt.Errorf("log.level %q is not valid (use debug, info, warn, error)", c.Log.Level))
		c.Log.Level = def.Log.Level
	}

	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		res.Warnings = append(res.Warnings, fmt.Errorf("log.format %q is not valid (use text or json)", c.Log.Format))
		c.Log.Format = def.Log.Format
	}

	if c.Log.MaxSizeMB < 1 {
		res.Warnings = append(res.Warnings, fmt.Errorf("log.max-size-mb %d is below minimum 1, clamping", c.Log.MaxSizeMB))
		c.Log.MaxSizeMB = 1
	}
	if c.Log.MaxBackups < 0 {
		res.Warnings = append(res.Warnings, fmt.Errorf("log.max-backups %d is below minimum 0, clamping", c.Log.MaxBackups))
		c.Log.MaxBackups = 0
	}

	if c.Journal.MaxSizeMB < 1 {
		res.Warnings = append(res.Warnings, fmt.Errorf("journal.max-size-mb %d is below minimum 1, clamping", c.Journal.MaxSizeMB))
		c.Journal.MaxSizeMB = 1
	}
	if c.Journal.MaxBackups < 0 {
		res.Warnings = append(res.Warnings, fmt.Errorf("journal.max-backups %d is below minimum 0, clamping", c.Journal.MaxBackups))
		c.Journal.MaxBackups = 0
	}

	for _, err := range res.Warnings {
		log.Warn("config validation", "error", err)
	}

	return res
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is not a valid URL: %w", key, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got %q", key, u.Scheme)
	}
	return nil
}
