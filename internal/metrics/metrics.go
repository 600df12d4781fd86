// Package metrics periodically reports anonymous usage statistics for the
// plugin: which version runs, on how many servers, with how many players.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/codelanx/plugintemplate/internal/config"
	"github.com/codelanx/plugintemplate/internal/health"
	"github.com/codelanx/plugintemplate/internal/httputil"
	"github.com/codelanx/plugintemplate/internal/logging"
	"github.com/codelanx/plugintemplate/internal/scheduler"
	"github.com/codelanx/plugintemplate/internal/workerpool"
)

var log = logging.L("metrics")

// ErrOptedOut is returned by Start when the server owner disabled reporting.
var ErrOptedOut = errors.New("metrics: opted out")

// EnsureGUID assigns a server GUID when none is configured and reports
// whether cfg changed and should be saved.
func EnsureGUID(cfg *config.MetricsConfig) bool {
	if cfg.GUID != "" {
		if _, err := uuid.Parse(cfg.GUID); err == nil {
			return false
		}
	}
	cfg.GUID = uuid.NewString()
	return true
}

type Payload struct {
	GUID          string          `json:"guid"`
	Plugin        string          `json:"plugin"`
	PluginVersion string          `json:"version"`
	Server        string          `json:"server"`
	Players       int             `json:"players"`
	Ping          bool            `json:"ping,omitempty"`
	Host          HostFacts       `json:"host"`
	Health        *health.Summary `json:"health,omitempty"`
}

type Options struct {
	Config        config.MetricsConfig
	Plugin        string
	PluginVersion string
	Server        string
	Players       func() int
	Client        *http.Client
	Monitor       *health.Monitor
	Retry         httputil.RetryConfig
	// Host overrides CollectHost.
	Host func(ctx context.Context) HostFacts
}

type Reporter struct {
	opts Options

	submissions atomic.Int64
	hostOnce    sync.Once
	host        HostFacts

	mu   sync.Mutex
	task *scheduler.Task
}

func New(opts Options) *Reporter {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Players == nil {
		opts.Players = func() int { return 0 }
	}
	if opts.Host == nil {
		opts.Host = CollectHost
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialDelay == 0 {
		opts.Retry = httputil.DefaultRetryConfig()
	}
	return &Reporter{opts: opts}
}

// Start submits once right away and then every interval-minutes on s.
func (r *Reporter) Start(s *scheduler.Scheduler) error {
	if r.opts.Config.OptOut {
		return ErrOptedOut
	}
	if r.opts.Config.GUID == "" {
		return errors.New("metrics: server guid not set")
	}

	period := time.Duration(r.opts.Config.IntervalMinutes) * time.Minute
	if period <= 0 {
		period = 15 * time.Minute
	}
	periodTicks := int(period / scheduler.TickDuration)

	task, err := s.RunTaskTimer("metrics", 0, periodTicks, func(ctx context.Context) {
		if err := r.Submit(ctx); err != nil {
			log.Warn("metrics submission failed", logging.KeyError, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule metrics: %w", err)
	}

	r.mu.Lock()
	r.task = task
	r.mu.Unlock()
	log.Info("metrics enabled", "interval", period, "guid", r.opts.Config.GUID)
	return nil
}

func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.task != nil {
		r.task.Cancel()
		r.task = nil
	}
}

// Submissions counts successful submissions.
func (r *Reporter) Submissions() int64 {
	return r.submissions.Load()
}

// Build assembles the payload for the next submission.
func (r *Reporter) Build(ctx context.Context) Payload {
	r.hostOnce.Do(func() { r.host = r.opts.Host(ctx) })
	p := Payload{
		GUID:          r.opts.Config.GUID,
		Plugin:        r.opts.Plugin,
		PluginVersion: r.opts.PluginVersion,
		Server:        r.opts.Server,
		Players:       r.opts.Players(),
		Ping:          r.submissions.Load() > 0,
		Host:          r.host,
	}
	if r.opts.Monitor != nil {
		sum := r.opts.Monitor.Summary()
		p.Health = &sum
	}
	return p
}

func (r *Reporter) endpoint() string {
	return strings.TrimRight(r.opts.Config.Endpoint, "/") + "/" + url.PathEscape(r.opts.Plugin)
}

// Submit posts one payload. Failures are recorded on the health monitor.
func (r *Reporter) Submit(ctx context.Context) error {
	err := r.submit(ctx)
	if r.opts.Monitor != nil {
		if err != nil {
			r.opts.Monitor.Update(health.ComponentMetrics, health.Degraded, err.Error())
		} else {
			r.opts.Monitor.Update(health.ComponentMetrics, health.Healthy, "")
		}
	}
	return err
}

func (r *Reporter) submit(ctx context.Context) error {
	body, err := json.Marshal(r.Build(ctx))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "text/plain")

	resp, err := httputil.Do(ctx, r.opts.Client, http.MethodPost, r.endpoint(), body, headers, r.opts.Retry)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("metrics endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(reply)))
	}
	if strings.HasPrefix(string(reply), "ERR") {
		return fmt.Errorf("metrics endpoint rejected payload: %s", strings.TrimSpace(string(reply)))
	}

	r.submissions.Add(1)
	log.Debug("metrics submitted", "players", r.opts.Players())
	return nil
}

// poolTask adapts Submit for one-off runs on a worker pool.
func (r *Reporter) poolTask() workerpool.Task {
	return func(ctx context.Context) {
		if err := r.Submit(ctx); err != nil {
			log.Warn("metrics submission failed", logging.KeyError, err)
		}
	}
}

// SubmitAsync queues one submission on p.
func (r *Reporter) SubmitAsync(p *workerpool.Pool) error {
	if r.opts.Config.OptOut {
		return ErrOptedOut
	}
	return p.Submit("metrics-once", r.poolTask())
}
