// Package compositor ties a backend, a display and the application's
// handlers together and runs them.
//
// A Compositor is built once, run once and destroyed. Only one Compositor may
// run at a time in a process; while it runs it is reachable through Active,
// which lets code far from the handlers (signal handlers, the control socket)
// find it.
package compositor

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/display"
	"github.com/bnema/wlcore/extensions/decoration"
	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/render"
)

var (
	ErrBackendCreate  = errors.New("could not auto-create backend")
	ErrSocketCreate   = errors.New("unable to open wayland socket")
	ErrBackendStart   = errors.New("failed to start backend")
	ErrAlreadyRunning = errors.New("a compositor is already running")
	ErrAlreadyRan     = errors.New("compositor has already run")
)

// DefaultSocketEnv is the variable the socket name is published in.
const DefaultSocketEnv = "_WAYLAND_DISPLAY"

var active atomic.Pointer[Compositor]

// Active returns the running compositor, or nil.
func Active() *Compositor {
	return active.Load()
}

// Terminate stops the running compositor. It does nothing when no
// compositor runs.
func Terminate() {
	if c := active.Load(); c != nil {
		c.Terminate()
	}
}

// Builder configures a Compositor.
type Builder struct {
	decoration     bool
	decorationMode decoration.Mode
	renderer       bool
	backend        backend.Options
	socketEnv      string
	socketName     string
}

// NewBuilder returns a builder with optional modules disabled, backend
// autodetection and the socket published in _WAYLAND_DISPLAY.
func NewBuilder() *Builder {
	return &Builder{
		decorationMode: decoration.ModeClient,
		backend:        backend.DefaultOptions(),
		socketEnv:      DefaultSocketEnv,
	}
}

// DecorationManager enables the server side decoration global.
func (b *Builder) DecorationManager(enable bool) *Builder {
	b.decoration = enable
	return b
}

// DecorationMode sets the mode the decoration manager announces.
func (b *Builder) DecorationMode(mode decoration.Mode) *Builder {
	b.decorationMode = mode
	return b
}

// Renderer enables the software renderer.
func (b *Builder) Renderer(enable bool) *Builder {
	b.renderer = enable
	return b
}

// Backend sets the backend options passed to backend.Autocreate.
func (b *Builder) Backend(opts backend.Options) *Builder {
	b.backend = opts
	return b
}

// SocketEnv names the environment variable the socket name is published
// in. An empty name disables publishing.
func (b *Builder) SocketEnv(name string) *Builder {
	b.socketEnv = name
	return b
}

// Socket uses a fixed socket name instead of the first free wayland-N.
func (b *Builder) Socket(name string) *Builder {
	b.socketName = name
	return b
}

// Compositor is a built compositor.
type Compositor struct {
	// Data is the application state given to Build.
	Data any

	// Decoration is set when the decoration manager is enabled.
	Decoration *decoration.Manager
	// Renderer is set when the renderer is enabled.
	Renderer *render.Renderer

	display    *display.Display
	loop       *display.EventLoop
	backend    backend.Backend
	inputs     *InputManager
	outputs    *OutputManager
	socketName string

	ran            atomic.Bool
	destroyOnce    sync.Once
	backendDestroy sync.Once
}

// Build creates the display, the backend and the device managers, then
// opens the client socket. Nil handlers are replaced by no-op ones.
func (b *Builder) Build(data any, inputs InputHandler, outputs OutputHandler) (*Compositor, error) {
	if inputs == nil {
		inputs = NopInputHandler{}
	}
	if outputs == nil {
		outputs = NopOutputHandler{}
	}

	d, err := display.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create display: %w", err)
	}
	loop := d.EventLoop()

	be, err := backend.Autocreate(loop, b.backend)
	if err != nil {
		d.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrBackendCreate, err)
	}
	logger.Debugf("Using %s backend", be.Name())

	c := &Compositor{
		Data:    data,
		display: d,
		loop:    loop,
		backend: be,
	}
	c.inputs = newInputManager(c, inputs)
	c.outputs = newOutputManager(c, outputs)

	ev := be.Events()
	if err := c.inputs.listen(ev.InputAdd, ev.InputRemove); err != nil {
		c.Destroy()
		return nil, err
	}
	if err := c.outputs.listen(ev.OutputAdd, ev.OutputRemove); err != nil {
		c.Destroy()
		return nil, err
	}

	if b.decoration {
		if m, err := decoration.New(d); err != nil {
			logger.Warnf("Decoration manager unavailable: %v", err)
		} else {
			if err := m.SetDefaultMode(b.decorationMode); err != nil {
				logger.Warnf("Keeping default decoration mode: %v", err)
			}
			c.Decoration = m
		}
	}
	if b.renderer {
		if r, err := render.New(be); err != nil {
			logger.Warnf("Renderer unavailable: %v", err)
		} else {
			c.Renderer = r
		}
	}

	name := b.socketName
	if name != "" {
		err = d.AddSocket(name)
	} else {
		name, err = d.AddSocketAuto()
	}
	if err != nil {
		c.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrSocketCreate, err)
	}
	c.socketName = name

	if b.socketEnv != "" {
		if err := os.Setenv(b.socketEnv, name); err != nil {
			logger.Warnf("Failed to publish %s=%s: %v", b.socketEnv, name, err)
		}
	}
	logger.Debugf("Running compositor on wayland display %s", name)
	return c, nil
}

// Run starts the backend and dispatches events until Terminate is called.
// It may be called once per Compositor and fails when another Compositor
// is running.
func (c *Compositor) Run() error {
	if c.ran.Load() {
		return ErrAlreadyRan
	}
	if !active.CompareAndSwap(nil, c) {
		return ErrAlreadyRunning
	}
	defer active.CompareAndSwap(c, nil)
	if !c.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRan
	}

	logger.Info("Starting compositor")
	if err := c.backend.Start(); err != nil {
		c.destroyBackend()
		return fmt.Errorf("%w: %w", ErrBackendStart, err)
	}

	c.display.Run()
	logger.Info("Compositor stopped")
	return nil
}

// Running reports whether c is the active compositor.
func (c *Compositor) Running() bool {
	return active.Load() == c
}

// Terminate makes Run return after the current dispatch. It is safe to
// call from any goroutine and more than once. It does nothing when c is not
// running, so a later Run is unaffected.
func (c *Compositor) Terminate() {
	if c.display.Running() {
		c.display.Terminate()
		return
	}
	if c.Running() {
		// Run is starting the backend; stop as soon as the loop runs.
		c.loop.Post(c.display.Terminate)
	}
}

func (c *Compositor) destroyBackend() {
	c.backendDestroy.Do(func() {
		c.backend.Destroy()
	})
}

// Destroy releases everything the compositor owns. Listeners go first so
// that no handler runs while the backend tears its devices down. Call it
// after Run has returned.
func (c *Compositor) Destroy() {
	c.destroyOnce.Do(func() {
		c.Terminate()
		c.inputs.destroy()
		c.outputs.destroy()
		if c.Renderer != nil {
			c.Renderer.Destroy()
		}
		if c.Decoration != nil {
			c.Decoration.Destroy()
		}
		c.destroyBackend()
		c.display.Destroy()
	})
}

// Inputs returns the input device manager.
func (c *Compositor) Inputs() *InputManager { return c.inputs }

// Outputs returns the output manager.
func (c *Compositor) Outputs() *OutputManager { return c.outputs }

func (c *Compositor) Display() *display.Display { return c.display }

func (c *Compositor) EventLoop() *display.EventLoop { return c.loop }

func (c *Compositor) Backend() backend.Backend { return c.backend }

// SocketName returns the name clients connect to, such as "wayland-1".
func (c *Compositor) SocketName() string { return c.socketName }
