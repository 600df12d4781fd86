// Package health records the last known state of the plugin's background
// components, such as the update check and metrics submission.
package health

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/codelanx/plugintemplate/internal/logging"
)

var log = logging.L("health")

type Status string

const (
	Unknown   Status = "unknown"
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
)

var severity = map[Status]int{Healthy: 1, Degraded: 2, Unhealthy: 3}

// Worse reports whether s is more severe than other.
func (s Status) Worse(other Status) bool { return severity[s] > severity[other] }

// Component names used by the plugin.
const (
	ComponentUpdate  = "update"
	ComponentMetrics = "metrics"
	ComponentConfig  = "config"
)

// Check is the latest report for one component. Failures counts consecutive
// non-healthy reports and resets on a healthy one. Since is when the component
// entered its current status.
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Failures  int       `json:"failures,omitempty"`
	Since     time.Time `json:"since"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is the form included in metrics payloads.
type Summary struct {
	Status     Status            `json:"status"`
	Components map[string]Status `json:"components"`
}

type Monitor struct {
	mu     sync.RWMutex
	checks map[string]Check
	now    func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{checks: make(map[string]Check), now: time.Now}
}

// Update stores a report. Only status transitions are logged so a component
// failing on every run does not flood the log.
func (m *Monitor) Update(name string, status Status, message string) {
	m.mu.Lock()
	now := m.now()
	prev, seen := m.checks[name]
	c := Check{Name: name, Status: status, Message: message, Since: now, UpdatedAt: now}
	if seen && prev.Status == status {
		c.Since = prev.Since
	}
	if status != Healthy {
		c.Failures = prev.Failures + 1
	}
	m.checks[name] = c
	m.mu.Unlock()

	if seen && prev.Status == status {
		return
	}
	switch {
	case status == Healthy && seen:
		log.Info("component recovered", "name", name, "after", prev.Failures)
	case status != Healthy:
		log.Warn("component not healthy", "name", name, "status", string(status), "message", message)
	}
}

func (m *Monitor) Get(name string) (Check, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checks[name]
	return c, ok
}

// Overall is the worst reported status, or Unknown when nothing reported.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overallLocked()
}

func (m *Monitor) overallLocked() Status {
	if len(m.checks) == 0 {
		return Unknown
	}
	worst := Healthy
	for _, c := range m.checks {
		if c.Status.Worse(worst) {
			worst = c.Status
		}
	}
	return worst
}

// All returns the checks sorted by name.
func (m *Monitor) All() []Check {
	m.mu.RLock()
	out := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		out = append(out, c)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Check) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Summary{Status: m.overallLocked(), Components: make(map[string]Status, len(m.checks))}
	for name, c := range m.checks {
		s.Components[name] = c.Status
	}
	return s
}
