package command

import (
	"log/slog"
	"strings"

	"github.com/codelanx/plugintemplate/internal/chat"
	"github.com/codelanx/plugintemplate/internal/descriptor"
	"github.com/codelanx/plugintemplate/internal/logging"
	"github.com/codelanx/plugintemplate/internal/update"
)

type versionCommand struct {
	d *descriptor.Descriptor
}

// Version prints the plugin name, version and authors.
func Version(d *descriptor.Descriptor) SubCommand { return versionCommand{d: d} }

func (versionCommand) Name() string { return "version" }
func (versionCommand) Usage() string { return "/<command> version" }
func (versionCommand) Description() string { return "Shows the plugin version" }
func (versionCommand) Permission() string { return "" }

func (c versionCommand) Execute(s Sender, _ []string) bool {
	msg := chat.Gold + c.d.FullName()
	if authors := c.d.AllAuthors(); len(authors) > 0 {
		msg += chat.White + " by " + chat.Yellow + strings.Join(authors, ", ")
	}
	send(s, msg)
	if c.d.Website != "" {
		send(s, chat.Gray+c.d.Website)
	}
	return true
}

// StatusSource reports the state of the update check.
type StatusSource interface {
	Status() update.Result
	Latest() (update.Release, bool)
}

type updateCommand struct {
	src func() StatusSource
}

// UpdateStatus prints the update check result. src returns nil when update
// checking is disabled.
func UpdateStatus(src func() StatusSource) SubCommand { return updateCommand{src: src} }

func (updateCommand) Name() string { return "update" }
func (updateCommand) Usage() string { return "/<command> update" }
func (updateCommand) Description() string { return "Shows the result of the update check" }
func (updateCommand) Permission() string { return "" }

func (c updateCommand) Execute(s Sender, _ []string) bool {
	src := c.src()
	if src == nil {
		send(s, chat.Gray+"Update checking is disabled.")
		return true
	}

	res := src.Status()
	send(s, severityColor(res.Level())+res.Message())
	if rel, ok := src.Latest(); ok && rel.Name != "" {
		send(s, chat.Gray+"Latest release: "+chat.White+rel.Name)
	}
	return true
}

func severityColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return chat.Red
	case l >= slog.LevelWarn:
		return chat.Yellow
	default:
		return chat.Green
	}
}

type reloadCommand struct {
	permission string
	reload     func() error
}

// Reload re-reads the configuration through fn. permission is normally
// "<name>.reload".
func Reload(permission string, fn func() error) SubCommand {
	return reloadCommand{permission: permission, reload: fn}
}

func (reloadCommand) Name() string { return "reload" }
func (reloadCommand) Usage() string { return "/<command> reload" }
func (reloadCommand) Description() string { return "Reloads the configuration from disk" }
func (c reloadCommand) Permission() string { return c.permission }

func (c reloadCommand) Execute(s Sender, _ []string) bool {
	if err := c.reload(); err != nil {
		log.Warn("reload failed", "sender", s.Name(), logging.KeyError, err)
		send(s, chat.Red+"Reload failed: "+err.Error())
		return true
	}
	send(s, chat.Green+"Configuration reloaded.")
	return true
}
