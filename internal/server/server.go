// Package server is a minimal standalone host for running the plugin from a
// terminal: a scheduler, an event bus, a player registry and a console.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/codelanx/plugintemplate/internal/chat"
	"github.com/codelanx/plugintemplate/internal/command"
	"github.com/codelanx/plugintemplate/internal/event"
	"github.com/codelanx/plugintemplate/internal/logging"
	"github.com/codelanx/plugintemplate/internal/scheduler"
	"github.com/codelanx/plugintemplate/internal/workerpool"
)

// UpdateFolderName is the staging folder inside the data directory.
const UpdateFolderName = "update"

type Options struct {
	DataDir    string
	PluginFile string
	Workers    int
	QueueSize  int
	// Output receives console and player messages; nil means os.Stdout.
	Output io.Writer
	// Color keeps formatting codes as ANSI escapes instead of stripping them.
	Color  bool
	Logger *slog.Logger
}

type Server struct {
	opts Options
	log  *slog.Logger

	sched *scheduler.Scheduler
	bus   *event.Bus

	outMu sync.Mutex
	out   io.Writer

	mu       sync.RWMutex
	commands map[string]*command.Handler
	players  map[string]*Player
}

func New(opts Options) *Server {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 64
	}
	if opts.PluginFile == "" {
		opts.PluginFile = "PluginTemplate.jar"
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	l := opts.Logger
	if l == nil {
		l = logging.L("server")
	}

	return &Server{
		opts:     opts,
		log:      l,
		sched:    scheduler.New(workerpool.New(opts.Workers, opts.QueueSize)),
		bus:      event.NewBus(),
		out:      opts.Output,
		commands: make(map[string]*command.Handler),
		players:  make(map[string]*Player),
	}
}

func (s *Server) Name() string { return "standalone" }
func (s *Server) Logger() *slog.Logger { return s.log }
func (s *Server) Scheduler() *scheduler.Scheduler { return s.sched }
func (s *Server) Events() *event.Bus { return s.bus }
func (s *Server) DataFolder() string { return s.opts.DataDir }
func (s *Server) PluginFile() string { return s.opts.PluginFile }

func (s *Server) UpdateFolder() string {
	return filepath.Join(s.opts.DataDir, UpdateFolderName)
}

// RegisterCommand binds label and its aliases to h. A later registration of
// the same label replaces the earlier one.
func (s *Server) RegisterCommand(label string, aliases []string, h *command.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range append([]string{label}, aliases...) {
		s.commands[strings.ToLower(l)] = h
	}
	s.log.Debug("command registered", "label", label, "aliases", aliases)
}

// Labels lists every registered command label and alias.
func (s *Server) Labels() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.commands))
	for l := range s.commands {
		out = append(out, l)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Dispatch runs one command line as sender. The leading '/' is optional.
// It reports whether a command accepted the line.
func (s *Server) Dispatch(sender command.Sender, line string) bool {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return false
	}

	s.mu.RLock()
	h, ok := s.commands[strings.ToLower(fields[0])]
	s.mu.RUnlock()
	if !ok {
		sender.SendMessage(chat.Colorize(chat.Red + "Unknown command: " + fields[0]))
		return false
	}
	return h.Execute(sender, fields[1:])
}

// Join adds a player holding perms and fires the join event.
func (s *Server) Join(name string, perms ...string) *Player {
	p := newPlayer(s, name, perms)
	s.mu.Lock()
	if old, ok := s.players[strings.ToLower(name)]; ok {
		s.mu.Unlock()
		return old
	}
	s.players[strings.ToLower(name)] = p
	s.mu.Unlock()

	s.log.Info("player joined", "player", name)
	s.bus.Join(p)
	return p
}

// Quit removes the player and fires the quit event. It reports whether the
// player was online.
func (s *Server) Quit(name string) bool {
	s.mu.Lock()
	p, ok := s.players[strings.ToLower(name)]
	delete(s.players, strings.ToLower(name))
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.log.Info("player quit", "player", name)
	s.bus.Quit(p)
	return true
}

func (s *Server) Player(name string) (*Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[strings.ToLower(name)]
	return p, ok
}

// Players returns the online players sorted by name.
func (s *Server) Players() []event.Player {
	s.mu.RLock()
	list := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		list = append(list, p)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
	out := make([]event.Player, len(list))
	for i, p := range list {
		out[i] = p
	}
	return out
}

// Shutdown stops the scheduler and waits for running tasks until ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	s.log.Info("stopping server")
	s.sched.Shutdown(ctx)
}

func (s *Server) print(prefix, msg string) {
	if s.opts.Color {
		msg = chat.ANSI(msg)
	} else {
		msg = chat.Strip(msg)
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, "%s%s\n", prefix, msg)
}
