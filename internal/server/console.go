package server

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/codelanx/plugintemplate/internal/chat"
)

// ConsoleName is the sender name of console commands.
const ConsoleName = "CONSOLE"

// Console reads command lines from an io.Reader, os.Stdin by default, and
// dispatches them as the operator console.
type Console struct {
	srv    *Server
	reader io.Reader
}

func NewConsole(srv *Server) *Console {
	return &Console{srv: srv, reader: os.Stdin}
}

// WithReader sets the input the console reads from.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run consumes lines until "stop", EOF or ctx cancellation. Besides plugin
// commands the console understands:
//
//	stop                    end the loop
//	join <name> [perm...]   simulate a player joining
//	quit <name>             simulate a player leaving
//	list                    show online players
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.reader)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
		close(lines)
	}()

	src := consoleSender{srv: c.srv}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					c.srv.log.Error("console input error", "error", err)
					return err
				}
				return nil
			}
			if c.exec(src, strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

// exec runs one line and reports whether the console should stop.
func (c *Console) exec(src consoleSender, line string) bool {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "stop":
		return true
	case "join":
		if len(fields) < 2 {
			src.SendMessage(chat.Colorize(chat.Red + "Usage: join <name> [permission...]"))
			return false
		}
		c.srv.Join(fields[1], fields[2:]...)
	case "quit":
		if len(fields) < 2 || !c.srv.Quit(fields[1]) {
			src.SendMessage(chat.Colorize(chat.Red + "No such player."))
		}
	case "list":
		names := make([]string, 0)
		for _, p := range c.srv.Players() {
			names = append(names, p.Name())
		}
		src.SendMessage(chat.Colorize(chat.Gold + "Online: " + chat.White + strings.Join(names, ", ")))
	default:
		c.srv.Dispatch(src, line)
	}
	return false
}

// consoleSender is the operator console; it holds every permission.
type consoleSender struct {
	srv *Server
}

func (consoleSender) Name() string { return ConsoleName }
func (consoleSender) HasPermission(string) bool { return true }
func (c consoleSender) SendMessage(msg string) { c.srv.print("", msg) }
