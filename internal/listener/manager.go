// Package listener keeps the plugin's named event listeners and their
// subscriptions on the host event bus.
package listener

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/codelanx/plugintemplate/internal/event"
	"github.com/codelanx/plugintemplate/internal/logging"
)

var log = logging.L("listener")

// ErrListenerRegistered is returned when a name is registered twice.
var ErrListenerRegistered = errors.New("listener already registered")

type Listener = event.Handler

type entry struct {
	listener Listener
	id       event.ID
}

type Manager struct {
	owner string
	bus   *event.Bus

	mu        sync.RWMutex
	listeners map[string]entry
}

// NewManager subscribes listeners on bus under owner, normally the plugin name.
func NewManager(owner string, bus *event.Bus) *Manager {
	return &Manager{owner: owner, bus: bus, listeners: make(map[string]entry)}
}

func (m *Manager) Register(name string, l Listener) error {
	if l == nil {
		return fmt.Errorf("listener %q is nil", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listeners[name]; ok {
		return fmt.Errorf("%w: %s", ErrListenerRegistered, name)
	}
	m.listeners[name] = entry{listener: l, id: m.bus.Subscribe(m.owner, l)}
	log.Debug("listener registered", "name", name, logging.KeyPlugin, m.owner)
	return nil
}

// Unregister removes one listener and reports whether it existed.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.listeners[name]
	if !ok {
		return false
	}
	m.bus.Unsubscribe(e.id)
	delete(m.listeners, name)
	return true
}

func (m *Manager) Get(name string) (Listener, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.listeners[name]
	return e.listener, ok
}

func (m *Manager) IsRegistered(name string) bool {
	_, ok := m.Get(name)
	return ok
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.listeners))
	for name := range m.listeners {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Cleanup drops every handler the owner holds on the bus, including ones
// subscribed outside this manager.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus.UnsubscribeOwner(m.owner)
	n := len(m.listeners)
	m.listeners = make(map[string]entry)
	log.Debug("listeners cleaned up", logging.KeyPlugin, m.owner, "count", n)
}
