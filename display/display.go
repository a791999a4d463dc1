// Package display owns the compositor's display handle: the event loop every
// backend and client event is dispatched on, the listening socket clients
// discover through WAYLAND_DISPLAY, and the list of advertised globals.
package display

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/listener"
)

// Events are the display level signals. They are emitted on the event loop.
type Events struct {
	ClientCreated   *listener.Signal[*Client]
	ClientDestroyed *listener.Signal[*Client]
	Destroy         *listener.Signal[*Display]
}

// Display is the server side display handle.
type Display struct {
	Events Events

	loop *EventLoop

	// stop is created by Run and closed by Terminate; nil while idle.
	runMu    sync.Mutex
	stop     chan struct{}
	stopping bool

	mu        sync.Mutex
	socket    *socket
	clients   map[*Client]struct{}
	globals   []*Global
	nextID    uint64
	destroyed bool
}

// ErrDestroyed is returned by operations on a destroyed display.
var ErrDestroyed = errors.New("display destroyed")

// Create allocates a display and its event loop.
func Create() (*Display, error) {
	d := &Display{
		Events: Events{
			ClientCreated:   listener.NewSignal[*Client](),
			ClientDestroyed: listener.NewSignal[*Client](),
			Destroy:         listener.NewSignal[*Display](),
		},
		loop:    newEventLoop(),
		clients: make(map[*Client]struct{}),
	}
	return d, nil
}

// EventLoop returns the loop the display runs.
func (d *Display) EventLoop() *EventLoop {
	return d.loop
}

// Run dispatches events on the calling goroutine until Terminate is called.
func (d *Display) Run() {
	stop := make(chan struct{})
	d.runMu.Lock()
	if d.stop != nil {
		d.runMu.Unlock()
		logger.Warn("Display.Run called while already running")
		return
	}
	d.stop = stop
	d.stopping = false
	d.runMu.Unlock()

	defer func() {
		d.runMu.Lock()
		d.stop = nil
		d.stopping = false
		d.runMu.Unlock()
	}()

	logger.Debug("Entering display event loop")
	d.loop.run(stop)
	logger.Debug("Display event loop stopped")
}

// Running reports whether Run is currently dispatching.
func (d *Display) Running() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.stop != nil
}

// Terminate asks Run to return once the in-flight dispatch has completed.
// It may be called from any goroutine, any number of times. It does nothing
// when Run is not executing; a later Run is not affected.
func (d *Display) Terminate() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.stop == nil || d.stopping {
		return
	}
	d.stopping = true
	close(d.stop)
}

// Terminated reports whether the current Run has been asked to stop.
func (d *Display) Terminated() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.stopping
}

// Destroy closes the socket, disconnects clients and removes every global.
func (d *Display) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	sock := d.socket
	d.socket = nil
	clients := make([]*Client, 0, len(d.clients))
	for c := range d.clients {
		clients = append(clients, c)
	}
	d.clients = map[*Client]struct{}{}
	globals := d.globals
	d.globals = nil
	d.mu.Unlock()

	d.Terminate()

	for _, c := range clients {
		c.close()
		d.Events.ClientDestroyed.Emit(c)
	}
	for _, g := range globals {
		g.destroyed.Store(true)
	}
	if sock != nil {
		if err := sock.close(); err != nil {
			logger.Warnf("Failed to close display socket: %v", err)
		}
	}
	d.Events.Destroy.Emit(d)
}

// Global is an interface advertised to clients.
type Global struct {
	Name    string
	Version uint32

	display   *Display
	destroyed atomic.Bool
}

// CreateGlobal advertises an interface to clients.
func (d *Display) CreateGlobal(name string, version uint32) (*Global, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDestroyed
	}
	for _, g := range d.globals {
		if g.Name == name {
			return nil, fmt.Errorf("global %s already exists", name)
		}
	}
	g := &Global{Name: name, Version: version, display: d}
	d.globals = append(d.globals, g)
	logger.Debugf("Created global %s v%d", name, version)
	return g, nil
}

// Destroy withdraws the global.
func (g *Global) Destroy() {
	if g.destroyed.Swap(true) {
		return
	}
	d := g.display
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, cur := range d.globals {
		if cur == g {
			d.globals = append(d.globals[:i], d.globals[i+1:]...)
			return
		}
	}
}

// Globals returns the advertised globals.
func (d *Display) Globals() []*Global {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Global(nil), d.globals...)
}

// Clients returns the number of connected clients.
func (d *Display) Clients() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}
