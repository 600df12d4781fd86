// Package command routes "/<label> <sub-command> [args]" invocations to the
// plugin's sub-commands.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/codelanx/plugintemplate/internal/chat"
	"github.com/codelanx/plugintemplate/internal/logging"
)

var log = logging.L("command")

var ErrCommandRegistered = errors.New("command already registered")

const (
	MsgNoPermission = "You do not have permission to do that."
	msgUnknown      = "Unknown command: %s"
)

// Sender is whoever issued the command: a player or the console.
type Sender interface {
	Name() string
	SendMessage(msg string)
	HasPermission(node string) bool
}

// SubCommand is one "/<label> <name>" action. Execute returns false when the
// arguments were not understood, which prints the usage.
type SubCommand interface {
	Name() string
	Usage() string
	Description() string
	// Permission is the node required to run the command, or "" for none.
	Permission() string
	Execute(s Sender, args []string) bool
}

// Hook observes every executed sub-command and whether it succeeded.
type Hook func(s Sender, name string, args []string, ok bool)

// Handler owns the sub-commands registered under one command label.
type Handler struct {
	label string

	mu       sync.RWMutex
	commands map[string]SubCommand
	hook     Hook
}

func NewHandler(label string) *Handler {
	return &Handler{label: label, commands: make(map[string]SubCommand)}
}

func (h *Handler) Label() string { return h.label }

func (h *Handler) Register(cmd SubCommand) error {
	name := strings.ToLower(cmd.Name())
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.commands[name]; ok {
		return fmt.Errorf("%w: %s", ErrCommandRegistered, name)
	}
	h.commands[name] = cmd
	return nil
}

// OnExecute installs fn as the execution hook, replacing any earlier one.
func (h *Handler) OnExecute(fn Hook) {
	h.mu.Lock()
	h.hook = fn
	h.mu.Unlock()
}

func (h *Handler) Get(name string) (SubCommand, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cmd, ok := h.commands[strings.ToLower(name)]
	return cmd, ok
}

// Commands returns the registered sub-commands sorted by name.
func (h *Handler) Commands() []SubCommand {
	h.mu.RLock()
	out := make([]SubCommand, 0, len(h.commands))
	for _, c := range h.commands {
		out = append(out, c)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Execute runs the sub-command selected by args[0], "help" when args is
// empty. It reports whether a sub-command accepted the invocation.
func (h *Handler) Execute(s Sender, args []string) bool {
	name := "help"
	var rest []string
	if len(args) > 0 {
		name, rest = args[0], args[1:]
	}

	cmd, ok := h.Get(name)
	if !ok {
		send(s, chat.Red+fmt.Sprintf(msgUnknown, name))
		return false
	}
	if node := cmd.Permission(); node != "" && !s.HasPermission(node) {
		send(s, chat.Red+MsgNoPermission)
		return false
	}

	log.Debug("executing command", "sender", s.Name(), "command", cmd.Name(), "args", rest)
	ok = cmd.Execute(s, rest)

	h.mu.RLock()
	hook := h.hook
	h.mu.RUnlock()
	if hook != nil {
		hook(s, cmd.Name(), rest, ok)
	}

	if !ok {
		send(s, "Usage: "+h.usage(cmd))
		send(s, cmd.Description())
	}
	return ok
}

func (h *Handler) usage(cmd SubCommand) string {
	return strings.ReplaceAll(cmd.Usage(), "<command>", h.label)
}

func send(s Sender, msg string) {
	s.SendMessage(chat.Colorize(msg))
}
