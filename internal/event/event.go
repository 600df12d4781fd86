// Package event dispatches player join and quit events to handlers registered
// by plugins.
package event

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/codelanx/plugintemplate/internal/logging"
)

var log = logging.L("event")

// Player is the subject of join and quit events.
type Player interface {
	Name() string
	SendMessage(msg string)
	HasPermission(node string) bool
}

// Handler receives player events. Embed NopHandler to implement only the
// events of interest.
type Handler interface {
	HandleJoin(p Player)
	HandleQuit(p Player)
}

type NopHandler struct{}

func (NopHandler) HandleJoin(Player) {}
func (NopHandler) HandleQuit(Player) {}

var _ Handler = NopHandler{}

// ID identifies one subscription.
type ID uint64

type registration struct {
	owner   string
	handler Handler
	id      ID
}

// Bus delivers events to handlers in subscription order. Dispatch reads an
// immutable snapshot, so handlers may subscribe or unsubscribe while an event
// is being delivered.
type Bus struct {
	mu    sync.Mutex
	regs  []registration
	next  ID
	chain atomic.Pointer[[]registration]
}

func NewBus() *Bus {
	b := &Bus{}
	b.chain.Store(&[]registration{})
	return b
}

// Subscribe registers h under owner. A nil handler is ignored and yields 0.
func (b *Bus) Subscribe(owner string, h Handler) ID {
	if h == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.regs = append(b.regs, registration{owner: owner, handler: h, id: b.next})
	b.publish()
	return b.next
}

func (b *Bus) Unsubscribe(id ID) {
	b.filter(func(r registration) bool { return r.id != id })
}

// UnsubscribeOwner removes every handler registered by owner.
func (b *Bus) UnsubscribeOwner(owner string) {
	b.filter(func(r registration) bool { return r.owner != owner })
}

// Len reports the number of subscriptions held by owner, or by everyone when
// owner is empty.
func (b *Bus) Len(owner string) int {
	n := 0
	for _, r := range *b.chain.Load() {
		if owner == "" || r.owner == owner {
			n++
		}
	}
	return n
}

func (b *Bus) Join(p Player) {
	b.dispatch("join", p, Handler.HandleJoin)
}

func (b *Bus) Quit(p Player) {
	b.dispatch("quit", p, Handler.HandleQuit)
}

func (b *Bus) filter(keep func(registration) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := make([]registration, 0, len(b.regs))
	for _, r := range b.regs {
		if keep(r) {
			regs = append(regs, r)
		}
	}
	b.regs = regs
	b.publish()
}

func (b *Bus) publish() {
	snap := make([]registration, len(b.regs))
	copy(snap, b.regs)
	b.chain.Store(&snap)
}

func (b *Bus) dispatch(event string, p Player, call func(Handler, Player)) {
	for _, r := range *b.chain.Load() {
		b.deliver(event, r, p, call)
	}
}

func (b *Bus) deliver(event string, r registration, p Player, call func(Handler, Player)) {
	defer func() {
		if v := recover(); v != nil {
			log.Error("event handler panicked",
				"event", event,
				logging.KeyPlugin, r.owner,
				"player", p.Name(),
				"panic", v,
				"stack", string(debug.Stack()),
			)
		}
	}()
	call(r.handler, p)
}
