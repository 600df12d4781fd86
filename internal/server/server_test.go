package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codelanx/plugintemplate/internal/chat"
	"github.com/codelanx/plugintemplate/internal/command"
	"github.com/codelanx/plugintemplate/internal/descriptor"
	"github.com/codelanx/plugintemplate/internal/event"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func newServer(t *testing.T) (*Server, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	s := New(Options{DataDir: t.TempDir(), Output: out})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, out
}

func TestHostFolders(t *testing.T) {
	s, _ := newServer(t)
	if s.UpdateFolder() != filepath.Join(s.DataFolder(), "update") {
		t.Fatalf("UpdateFolder = %q", s.UpdateFolder())
	}
	if s.PluginFile() != "PluginTemplate.jar" {
		t.Fatalf("PluginFile = %q", s.PluginFile())
	}
}

func versionHandler() *command.Handler {
	h := command.NewHandler("plugintemplate")
	h.Register(command.Help(h))
	h.Register(command.Version(descriptor.Builtin("1.0.0")))
	return h
}

func TestDispatchByLabelAndAlias(t *testing.T) {
	s, out := newServer(t)
	s.RegisterCommand("plugintemplate", []string{"pt"}, versionHandler())

	if got := s.Labels(); len(got) != 2 || got[0] != "plugintemplate" || got[1] != "pt" {
		t.Fatalf("Labels = %v", got)
	}

	src := consoleSender{srv: s}
	if !s.Dispatch(src, "/pt version") {
		t.Fatal("alias dispatch failed")
	}
	if !s.Dispatch(src, "PluginTemplate version") {
		t.Fatal("label dispatch is case insensitive")
	}
	if strings.Count(out.String(), "PluginTemplate v1.0.0 by 1Rogue") != 2 {
		t.Fatalf("output = %q", out.String())
	}

	if s.Dispatch(src, "nope") {
		t.Fatal("unknown label dispatched")
	}
	if !strings.Contains(out.String(), "Unknown command: nope") {
		t.Fatalf("output = %q", out.String())
	}
}

type joins struct {
	event.NopHandler
	mu    sync.Mutex
	names []string
}

func (j *joins) HandleJoin(p event.Player) {
	j.mu.Lock()
	j.names = append(j.names, p.Name())
	j.mu.Unlock()
}

func (j *joins) HandleQuit(p event.Player) {
	j.mu.Lock()
	j.names = append(j.names, "-"+p.Name())
	j.mu.Unlock()
}

func TestJoinQuit(t *testing.T) {
	s, _ := newServer(t)
	j := &joins{}
	s.Events().Subscribe("test", j)

	p := s.Join("Steve", "plugintemplate.update.notify")
	if !p.HasPermission("plugintemplate.update.notify") || p.HasPermission("other") {
		t.Fatal("permissions not applied")
	}
	if again := s.Join("steve"); again != p {
		t.Fatal("joining twice must return the online player")
	}
	s.Join("alex")

	players := s.Players()
	if len(players) != 2 || players[0].Name() != "Steve" || players[1].Name() != "alex" {
		t.Fatalf("Players = %v", players)
	}

	if !s.Quit("STEVE") || s.Quit("steve") {
		t.Fatal("quit must succeed once")
	}
	if _, ok := s.Player("steve"); ok {
		t.Fatal("player still online after quit")
	}
	want := []string{"Steve", "alex", "-Steve"}
	if strings.Join(j.names, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", j.names, want)
	}
}

func TestPlayerMessagesEchoed(t *testing.T) {
	s, out := newServer(t)
	p := s.Join("alex", "*")
	if !p.HasPermission("anything") {
		t.Fatal("wildcard permission")
	}
	p.SendMessage(chat.Colorize("&aHello"))

	if msgs := p.Messages(); len(msgs) != 1 || chat.Strip(msgs[0]) != "Hello" {
		t.Fatalf("Messages = %q", msgs)
	}
	if !strings.Contains(out.String(), "[alex] Hello\n") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestColorOutput(t *testing.T) {
	out := &syncBuffer{}
	s := New(Options{DataDir: t.TempDir(), Output: out, Color: true})
	defer s.Shutdown(context.Background())

	consoleSender{srv: s}.SendMessage(chat.Colorize("&cWarn"))
	if !strings.Contains(out.String(), "\x1b[91mWarn") {
		t.Fatalf("output = %q", out.String())
	}
}

func runConsole(t *testing.T, s *Server, input string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return NewConsole(s).WithReader(strings.NewReader(input)).Run(ctx)
}

func TestConsoleRunsCommandsUntilStop(t *testing.T) {
	s, out := newServer(t)
	s.RegisterCommand("plugintemplate", []string{"pt"}, versionHandler())

	input := "\npt version\njoin alex\nlist\nquit alex\nquit bob\nstop\npt version\n"
	if err := runConsole(t, s, input); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := out.String()
	for _, want := range []string{"PluginTemplate v1.0.0 by 1Rogue", "Online: alex", "No such player."} {
		if !strings.Contains(got, want) {
			t.Fatalf("output %q missing %q", got, want)
		}
	}
	if strings.Count(got, "PluginTemplate v1.0.0") != 1 {
		t.Fatal("lines after stop must not run")
	}
	if len(s.Players()) != 0 {
		t.Fatal("alex should have quit")
	}
}

func TestConsoleEOF(t *testing.T) {
	s, _ := newServer(t)
	if err := runConsole(t, s, "list\n"); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

func TestConsoleCancelled(t *testing.T) {
	s, _ := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewConsole(s).WithReader(blockingReader{}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestConsoleReadError(t *testing.T) {
	s, _ := newServer(t)
	if err := runConsole(t, s, ""); err != nil {
		t.Fatalf("empty input: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := NewConsole(s).WithReader(failingReader{}).Run(ctx)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Run = %v", err)
	}
}
