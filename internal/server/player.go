package server

import (
	"sync"
)

// Player is a simulated online player.
type Player struct {
	srv   *Server
	name  string
	perms map[string]bool

	mu   sync.Mutex
	msgs []string
}

func newPlayer(s *Server, name string, perms []string) *Player {
	p := &Player{srv: s, name: name, perms: make(map[string]bool, len(perms))}
	for _, n := range perms {
		p.perms[n] = true
	}
	return p
}

func (p *Player) Name() string { return p.name }

// HasPermission reports whether node or the "*" wildcard was granted.
func (p *Player) HasPermission(node string) bool {
	return p.perms[node] || p.perms["*"]
}

// SendMessage records msg and echoes it to the server output.
func (p *Player) SendMessage(msg string) {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	p.srv.print("["+p.name+"] ", msg)
}

// Messages returns everything sent to the player so far.
func (p *Player) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.msgs...)
}
