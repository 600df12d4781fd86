package plugin

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/codelanx/plugintemplate/internal/artifact"
	"github.com/codelanx/plugintemplate/internal/chat"
	"github.com/codelanx/plugintemplate/internal/event"
	"github.com/codelanx/plugintemplate/internal/health"
	"github.com/codelanx/plugintemplate/internal/httputil"
	"github.com/codelanx/plugintemplate/internal/journal"
	"github.com/codelanx/plugintemplate/internal/logging"
	"github.com/codelanx/plugintemplate/internal/update"
	"github.com/codelanx/plugintemplate/pkg/api"
)

const updateListener = "update"

func (p *Plugin) httpClient() *http.Client {
	return httputil.NewClient(httputil.ClientOptions{
		Timeout:   time.Duration(p.cfg.Update.TimeoutSeconds) * time.Second,
		Proxy:     p.cfg.Update.Proxy,
		UserAgent: p.desc.FullName(),
	})
}

// newChecker builds an update checker from the current configuration. The
// returned mux must be closed once the checker is no longer used.
func (p *Plugin) newChecker(notify update.Notifier) (*update.Checker, *artifact.Mux) {
	uc := p.cfg.Update
	client := p.httpClient()
	mux := artifact.FromConfig(client, uc.Sources, "")

	vs, err := update.ParseVersionSource(uc.VersionSource)
	if err != nil {
		vs = update.FromName
	}

	c := update.New(update.Options{
		Choice:         update.ChoiceFor(uc.Check, uc.Download),
		CurrentVersion: p.desc.Version,
		ProjectID:      uc.ProjectID,
		FileName:       p.host.PluginFile(),
		StagingDir:     p.host.UpdateFolder(),
		Client:         api.NewClient(uc.Endpoint, api.WithHTTPClient(client), api.WithUserAgent(p.desc.FullName())),
		Source:         mux,
		VersionSource:  vs,
		Notifier:       notify,
		DebugLevel:     p.cfg.DebugLevel,
		Logger:         p.log,
	})
	return c, mux
}

const (
	runIdle int32 = iota
	runActive
	runStopped
)

// scheduleUpdate runs the update check once after update.delay-ticks. The run
// is bound to ctx and to stopUpdate, which Disable calls. The artifact mux is
// closed by whichever side finishes last with it.
func (p *Plugin) scheduleUpdate(ctx context.Context) error {
	c, mux := p.newChecker(update.NotifierFunc(p.notifyUpdate))
	p.checker = c

	runCtx, cancel := context.WithCancel(ctx)
	var state atomic.Int32
	p.stopUpdate = func() error {
		cancel()
		if state.CompareAndSwap(runIdle, runStopped) {
			return mux.Close()
		}
		return nil
	}

	task, err := p.host.Scheduler().RunTaskLater("update-check", p.cfg.Update.DelayTicks, func(poolCtx context.Context) {
		if !state.CompareAndSwap(runIdle, runActive) {
			return
		}
		defer mux.Close()
		ctx, stop := context.WithCancel(runCtx)
		defer stop()
		defer context.AfterFunc(poolCtx, stop)()

		res := c.Run(logging.NewContext(ctx, p.log))
		if ctx.Err() != nil {
			p.log.Debug("update check interrupted", logging.KeyResult, res.String())
			return
		}
		p.recordUpdate(c, res)
	})
	if err != nil {
		p.stopUpdate()
		p.stopUpdate = nil
		p.health.Update(health.ComponentUpdate, health.Unhealthy, err.Error())
		return err
	}
	p.updateTask = task
	return nil
}

// CheckNow runs a fresh update check synchronously, outside the scheduler.
// Players are not notified.
func (p *Plugin) CheckNow(ctx context.Context) (update.Result, error) {
	p.mu.RLock()
	if p.cfg == nil {
		p.mu.RUnlock()
		return update.Incomplete, ErrNotLoaded
	}
	c, mux := p.newChecker(nil)
	p.mu.RUnlock()

	defer mux.Close()
	res := c.Run(ctx)
	p.recordUpdate(c, res)
	return res, nil
}

func (p *Plugin) recordUpdate(c *update.Checker, res update.Result) {
	p.mu.RLock()
	j := p.journal
	p.mu.RUnlock()

	details := map[string]any{"result": res.String()}
	if rel, ok := c.Latest(); ok {
		details["latest"] = rel.Name
		details["version"] = rel.Version
	}
	j.Record(journal.EventUpdateResult, "", details)
	if res == update.Updated {
		j.Record(journal.EventUpdateStaged, "", map[string]any{
			"path": filepath.Join(p.host.UpdateFolder(), p.host.PluginFile()),
		})
	}

	if res.Failed() {
		p.health.Update(health.ComponentUpdate, health.Unhealthy, res.Message())
	} else {
		p.health.Update(health.ComponentUpdate, health.Healthy, res.Message())
	}
}

// notifyUpdate registers the join listener that tells permitted players about
// the release.
func (p *Plugin) notifyUpdate(rel update.Release) {
	p.mu.RLock()
	lm := p.listeners
	desc := p.desc
	enabled := p.enabled
	p.mu.RUnlock()
	if lm == nil || !enabled {
		return
	}

	l := &updateNotifier{
		permission: desc.Permission("update", "notify"),
		message:    chat.Colorize(chat.Aqua + "A new update is available for " + desc.FullName() + "!"),
	}
	if err := lm.Register(updateListener, l); err != nil {
		p.log.Warn("update notifier not registered", logging.KeyError, err, "latest", rel.Name)
	}
}

type updateNotifier struct {
	event.NopHandler
	permission string
	message    string
}

func (n *updateNotifier) HandleJoin(pl event.Player) {
	if pl.HasPermission(n.permission) {
		pl.SendMessage(n.message)
	}
}

type exampleListener struct {
	event.NopHandler
	log *slog.Logger
}

func (l exampleListener) HandleJoin(pl event.Player) {
	l.log.Debug("player joined", "player", pl.Name())
}

func (l exampleListener) HandleQuit(pl event.Player) {
	l.log.Debug("player quit", "player", pl.Name())
}
