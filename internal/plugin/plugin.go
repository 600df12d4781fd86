// Package plugin wires the plugin's managers together and drives its
// load/enable/disable lifecycle against a Host.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/codelanx/plugintemplate/internal/command"
	"github.com/codelanx/plugintemplate/internal/config"
	"github.com/codelanx/plugintemplate/internal/descriptor"
	"github.com/codelanx/plugintemplate/internal/event"
	"github.com/codelanx/plugintemplate/internal/health"
	"github.com/codelanx/plugintemplate/internal/journal"
	"github.com/codelanx/plugintemplate/internal/listener"
	"github.com/codelanx/plugintemplate/internal/logging"
	"github.com/codelanx/plugintemplate/internal/metrics"
	"github.com/codelanx/plugintemplate/internal/scheduler"
	"github.com/codelanx/plugintemplate/internal/update"
)

// Version is the plugin version used when no plugin.yml is present. It is
// set at build time.
var Version = "dev"

var ErrNotLoaded = errors.New("plugin: not loaded")

// Host is the server runtime the plugin lives in.
type Host interface {
	// Name identifies the server implementation in metrics.
	Name() string
	Logger() *slog.Logger
	Scheduler() *scheduler.Scheduler
	Events() *event.Bus
	// DataFolder holds config.yml and an optional plugin.yml.
	DataFolder() string
	// UpdateFolder is where downloaded releases are staged for the next
	// restart.
	UpdateFolder() string
	// PluginFile is the plugin's own file name.
	PluginFile() string
	Players() []event.Player
	RegisterCommand(label string, aliases []string, h *command.Handler)
}

type Plugin struct {
	host       Host
	log        *slog.Logger
	configPath string

	mu        sync.RWMutex
	desc      *descriptor.Descriptor
	cfg       *config.Config
	logCloser io.Closer
	enabled   bool

	health     *health.Monitor
	listeners  *listener.Manager
	commands   *command.Handler
	reporter   *metrics.Reporter
	checker    *update.Checker
	updateTask *scheduler.Task
	stopUpdate func() error
	journal    *journal.Journal
}

// New creates an unloaded plugin. desc may be nil, in which case Load reads
// plugin.yml from the data folder or falls back to the built-in descriptor.
func New(host Host, desc *descriptor.Descriptor) *Plugin {
	return &Plugin{
		host:   host,
		desc:   desc,
		log:    host.Logger(),
		health: health.NewMonitor(),
	}
}

// WithConfigPath reads and writes the configuration at path instead of
// config.yml inside the data folder.
func (p *Plugin) WithConfigPath(path string) *Plugin {
	p.configPath = path
	return p
}

func (p *Plugin) ConfigPath() string {
	if p.configPath != "" {
		return p.configPath
	}
	return config.Path(p.host.DataFolder())
}

// Load reads the descriptor and configuration and sets up logging. Missing
// configuration keys are written back with their defaults.
func (p *Plugin) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.desc == nil {
		d, err := descriptor.Load(filepath.Join(p.host.DataFolder(), descriptor.FileName))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			d = descriptor.Builtin(Version)
		case err != nil:
			return fmt.Errorf("load descriptor: %w", err)
		}
		p.desc = d
	}
	p.log = logging.WithPlugin(p.host.Logger(), p.desc.FullName())
	p.log.Info("loading configuration")

	cfg, err := p.readConfig()
	if err != nil {
		return err
	}
	p.cfg = cfg
	return p.setupLogging()
}

func (p *Plugin) readConfig() (*config.Config, error) {
	path := p.ConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		p.health.Update(health.ComponentConfig, health.Unhealthy, err.Error())
		return nil, err
	}

	res := cfg.ValidateTiered()
	if res.HasFatals() {
		err := fmt.Errorf("invalid configuration %s: %w", path, errors.Join(res.Fatals...))
		p.health.Update(health.ComponentConfig, health.Unhealthy, err.Error())
		return nil, err
	}
	if len(res.Warnings) > 0 {
		p.health.Update(health.ComponentConfig, health.Degraded, errors.Join(res.Warnings...).Error())
	} else {
		p.health.Update(health.ComponentConfig, health.Healthy, "")
	}
	return cfg, nil
}

func (p *Plugin) setupLogging() error {
	lc := p.cfg.Log
	file := lc.File
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(p.host.DataFolder(), file)
	}
	closer, err := logging.Setup(logging.Options{
		Format:     lc.Format,
		Level:      lc.Level,
		DebugLevel: p.cfg.DebugLevel,
		File:       file,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if p.logCloser != nil {
		p.logCloser.Close()
	}
	p.logCloser = closer
	return nil
}

// Enable starts metrics, registers listeners and commands and schedules the
// update check. Metrics failures are logged and do not stop the plugin.
func (p *Plugin) Enable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg == nil {
		return ErrNotLoaded
	}
	if p.enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.cfg.Journal.Enabled {
		j, err := journal.Open(p.host.DataFolder(), p.cfg.Journal)
		if err != nil {
			p.log.Warn("journal unavailable", logging.KeyError, err)
		}
		p.journal = j
	}

	p.log.Info("enabling metrics")
	p.startMetrics()

	p.log.Info("enabling listeners")
	p.listeners = listener.NewManager(p.desc.Name, p.host.Events())
	if err := p.listeners.Register("example", exampleListener{log: p.log}); err != nil {
		p.log.Warn("listener registration failed", logging.KeyError, err)
	}

	p.log.Info("enabling command handler")
	p.commands = p.newCommandHandler()
	p.commands.OnExecute(p.recordCommand)
	for _, name := range p.commandNames() {
		p.host.RegisterCommand(name, p.desc.Labels(name)[1:], p.commands)
	}

	p.log.Info("evaluating update checks")
	if err := p.scheduleUpdate(ctx); err != nil {
		p.log.Error("update check not scheduled", logging.KeyError, err)
	}

	p.enabled = true
	p.journal.Record(journal.EventEnabled, "", map[string]any{
		"version": p.desc.Version,
		"choice":  update.ChoiceFor(p.cfg.Update.Check, p.cfg.Update.Download).String(),
	})
	return nil
}

// Disable unregisters every listener and stops background tasks.
func (p *Plugin) Disable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return nil
	}

	if p.listeners != nil {
		p.listeners.Cleanup()
	}
	if p.reporter != nil {
		p.reporter.Stop()
	}
	if p.updateTask != nil {
		p.updateTask.Cancel()
	}

	var errs []error
	if p.stopUpdate != nil {
		if err := p.stopUpdate(); err != nil {
			errs = append(errs, err)
		}
		p.stopUpdate = nil
	}
	p.enabled = false
	p.log.Info("plugin disabled")

	p.journal.Record(journal.EventDisabled, "", nil)
	if err := p.journal.Close(); err != nil {
		errs = append(errs, err)
	}
	p.journal = nil

	if p.logCloser != nil {
		logging.Init(p.cfg.Log.Format, p.cfg.Log.Level, nil)
		errs = append(errs, p.logCloser.Close())
		p.logCloser = nil
	}
	return errors.Join(errs...)
}

// Reload re-reads config.yml. The running update check is not restarted.
func (p *Plugin) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.desc == nil {
		return ErrNotLoaded
	}

	cfg, err := p.readConfig()
	if err != nil {
		return err
	}
	p.cfg = cfg
	if err := p.setupLogging(); err != nil {
		return err
	}
	p.log.Info("configuration reloaded")
	p.journal.Record(journal.EventConfigReload, "", nil)
	return nil
}

func (p *Plugin) newCommandHandler() *command.Handler {
	label := strings.ToLower(p.desc.Name)
	if names := p.commandNames(); len(names) > 0 {
		label = names[0]
	}
	h := command.NewHandler(label)
	for _, c := range []command.SubCommand{
		command.Help(h),
		command.Version(p.desc),
		command.UpdateStatus(p.updateStatus),
		command.Reload(p.desc.Permission("reload"), p.Reload),
	} {
		if err := h.Register(c); err != nil {
			p.log.Warn("command registration failed", logging.KeyError, err)
		}
	}
	return h
}

func (p *Plugin) commandNames() []string {
	names := make([]string, 0, len(p.desc.Commands))
	for name := range p.desc.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Plugin) updateStatus() command.StatusSource {
	if c := p.Checker(); c != nil {
		return c
	}
	return nil
}

func (p *Plugin) startMetrics() {
	mc := p.cfg.Metrics
	if mc.OptOut {
		p.log.Info("metrics opted out")
		return
	}
	if metrics.EnsureGUID(&mc) {
		p.cfg.Metrics.GUID = mc.GUID
		if err := config.SaveTo(p.cfg, p.ConfigPath()); err != nil {
			p.log.Warn("saving metrics guid failed", logging.KeyError, err)
		}
	}

	p.reporter = metrics.New(metrics.Options{
		Config:        mc,
		Plugin:        p.desc.Name,
		PluginVersion: p.desc.Version,
		Server:        p.host.Name(),
		Players:       func() int { return len(p.host.Players()) },
		Client:        p.httpClient(),
		Monitor:       p.health,
	})
	if err := p.reporter.Start(p.host.Scheduler()); err != nil {
		p.log.Error("error enabling metrics", logging.KeyError, err)
		p.health.Update(health.ComponentMetrics, health.Degraded, err.Error())
	}
}

func (p *Plugin) recordCommand(s command.Sender, name string, args []string, ok bool) {
	p.mu.RLock()
	j := p.journal
	p.mu.RUnlock()
	j.Record(journal.EventCommand, s.Name(), map[string]any{
		"command": name,
		"args":    args,
		"ok":      ok,
	})
}

func (p *Plugin) Descriptor() *descriptor.Descriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.desc
}

// Config returns the active configuration. Callers must not modify it.
func (p *Plugin) Config() *config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *Plugin) Health() *health.Monitor { return p.health }

func (p *Plugin) Listeners() *listener.Manager {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.listeners
}

func (p *Plugin) Commands() *command.Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.commands
}

// Checker is the update checker built by Enable, or nil.
func (p *Plugin) Checker() *update.Checker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.checker
}

func (p *Plugin) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}
