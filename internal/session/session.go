// Package session holds the default behaviour of `wlcore run`: outputs are
// packed left to right into one layout, every pointer drives a shared
// cursor, frames are rendered when something moves, and Alt+Escape quits.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/compositor"
	"github.com/bnema/wlcore/cursor"
	"github.com/bnema/wlcore/events"
	"github.com/bnema/wlcore/internal/ipc"
	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/layout"
	"github.com/bnema/wlcore/listener"
	"github.com/bnema/wlcore/render"
	"github.com/bnema/wlcore/xcursor"
)

// Linux input keycodes
const (
	keyEsc      = 1
	keyLeftAlt  = 56
	keyRightAlt = 100
)

// ErrNoOutput is returned for screenshots when no output matches.
var ErrNoOutput = errors.New("no such output")

// DefaultBackground fills frames behind the cursor.
var DefaultBackground = color.RGBA{R: 0x1e, G: 0x1e, B: 0x2e, A: 0xff}

// Options configures a session.
type Options struct {
	CursorTheme   string
	CursorSize    int
	Background    color.Color
	ThemeSources  []xcursor.Source
	ControlSocket string
}

type inputState struct {
	pointer bool
	buttons int
}

// Session is the compositor's Data and both of its handlers.
type Session struct {
	opts Options

	comp      *compositor.Compositor
	layout    *layout.OutputLayout
	cursor    *cursor.Cursor
	theme     *xcursor.Theme
	control   *ipc.SocketServer
	listeners listener.Set

	alt    map[uint32]bool
	frames uint64
}

// New loads the cursor theme and creates the layout and cursor.
func New(opts Options) (*Session, error) {
	if opts.Background == nil {
		opts.Background = DefaultBackground
	}
	var loadOpts []xcursor.Option
	for _, src := range opts.ThemeSources {
		loadOpts = append(loadOpts, xcursor.WithSource(src))
	}
	theme, err := xcursor.Load(opts.CursorTheme, opts.CursorSize, loadOpts...)
	if errors.Is(err, xcursor.ErrThemeNotFound) {
		logger.Warnf("Cursor theme %q not found, using the builtin theme", opts.CursorTheme)
		theme, err = xcursor.Load("", opts.CursorSize)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor theme: %w", err)
	}

	s := &Session{
		opts:   opts,
		layout: layout.NewOutputLayout(),
		cursor: cursor.New(),
		theme:  theme,
		alt:    make(map[uint32]bool),
	}
	s.cursor.AttachOutputLayout(s.layout)
	if !s.cursor.SetXCursor(theme, "left_ptr") {
		logger.Warnf("Theme %s has no left_ptr cursor", theme.Name())
	}

	redraw := func() { s.renderAll() }
	if _, err := listener.Attach(&s.listeners, s.cursor.Events.Motion, func(*backend.PointerMotionEvent) { redraw() }); err != nil {
		return nil, err
	}
	if _, err := listener.Attach(&s.listeners, s.cursor.Events.MotionAbsolute, func(*backend.PointerMotionAbsoluteEvent) { redraw() }); err != nil {
		return nil, err
	}
	if _, err := listener.Attach(&s.listeners, s.layout.Change, func(*layout.OutputLayout) { redraw() }); err != nil {
		return nil, err
	}
	return s, nil
}

// Layout returns the output layout.
func (s *Session) Layout() *layout.OutputLayout { return s.layout }

// Cursor returns the shared cursor.
func (s *Session) Cursor() *cursor.Cursor { return s.cursor }

// Theme returns the loaded cursor theme.
func (s *Session) Theme() *xcursor.Theme { return s.theme }

// Frames returns the number of frames rendered.
func (s *Session) Frames() uint64 { return s.frames }

// Attach binds the session to c and starts the control socket when one is
// configured. Call it after Build and before Run.
func (s *Session) Attach(c *compositor.Compositor) error {
	s.comp = c
	if s.opts.ControlSocket == "" {
		return nil
	}
	s.control = ipc.NewSocketServer(s.opts.ControlSocket, s)
	if err := s.control.Start(); err != nil {
		s.control = nil
		return fmt.Errorf("failed to start control socket: %w", err)
	}
	return nil
}

// Close stops the control socket and releases the cursor and layout.
func (s *Session) Close() {
	if s.control != nil {
		s.control.Stop()
		s.control = nil
	}
	s.listeners.RemoveAll()
	s.cursor.Destroy()
	s.layout.Destroy()
}

func (s *Session) InputAdded(c *compositor.Compositor, dev *compositor.Input) {
	s.comp = c
	native := dev.Native()
	state := &inputState{}
	dev.Data = state

	if native.Type == backend.DevicePointer {
		if err := s.cursor.AttachInputDevice(native); err != nil {
			logger.Warnf("Cannot attach %s to the cursor: %v", native.Name, err)
		} else {
			state.pointer = true
		}
	}
	logger.Infof("Input %s (%s) added", native.Name, native.Type)
}

func (s *Session) InputRemoved(_ *compositor.Compositor, dev *compositor.Input) {
	native := dev.Native()
	if state, ok := dev.Data.(*inputState); ok && state.pointer {
		s.cursor.DetachInputDevice(native)
	}
	for code := range s.alt {
		delete(s.alt, code)
	}
	logger.Infof("Input %s removed", native.Name)
}

func (s *Session) PointerButton(_ *compositor.Compositor, dev *compositor.Input, ev events.ButtonEvent) {
	if state, ok := dev.Data.(*inputState); ok {
		if ev.Pressed() {
			state.buttons++
		} else if state.buttons > 0 {
			state.buttons--
		}
	}
	x, y := s.cursor.Coords()
	logger.Debugf("Button %#x %s at %.0f,%.0f", ev.Button(), ev.State(), x, y)
}

func (s *Session) PointerAxis(_ *compositor.Compositor, _ *compositor.Input, ev events.AxisEvent) {
	logger.Debugf("Axis %v %.1f (%d)", ev.Orientation(), ev.Delta(), ev.DeltaDiscrete())
}

// KeyboardKey terminates the compositor on Alt+Escape.
func (s *Session) KeyboardKey(c *compositor.Compositor, _ *compositor.Input, ev events.KeyEvent) {
	code := ev.Keycode()
	switch code {
	case keyLeftAlt, keyRightAlt:
		if ev.Pressed() {
			s.alt[code] = true
		} else {
			delete(s.alt, code)
		}
	case keyEsc:
		if ev.Pressed() && len(s.alt) > 0 {
			logger.Info("Alt+Escape pressed, terminating")
			c.Terminate()
		}
	}
}

func (s *Session) OutputAdded(c *compositor.Compositor, o *compositor.Output) {
	s.comp = c
	native := o.Native()
	s.layout.AddAuto(native)
	box, _ := s.layout.OutputBox(native)
	logger.Infof("Output %s added at %s", native.Name, box)
}

func (s *Session) OutputRemoved(_ *compositor.Compositor, o *compositor.Output) {
	s.layout.Remove(o.Native())
	logger.Infof("Output %s removed", o.Native().Name)
}

func (s *Session) OutputMode(_ *compositor.Compositor, o *compositor.Output) {
	native := o.Native()
	logger.Debugf("Output %s now %dx%d@%d scale %.2f", native.Name, native.Width, native.Height, native.Refresh, native.Scale)
}

func (s *Session) renderer() *render.Renderer {
	if s.comp == nil {
		return nil
	}
	return s.comp.Renderer
}

// cursorSprite places the cursor image on o, or returns false when the
// cursor is hidden or off the output.
func (s *Session) cursorSprite(o *backend.Output) (render.Sprite, bool) {
	if !s.cursor.Visible() {
		return render.Sprite{}, false
	}
	box, ok := s.layout.OutputBox(o)
	if !ok {
		return render.Sprite{}, false
	}
	x, y := s.cursor.Coords()
	if !box.Contains(x, y) {
		return render.Sprite{}, false
	}
	img := s.cursor.Image()
	scale := img.Scale
	return render.Sprite{
		Image: render.RGBA(img.Pixels, img.Stride, img.Width, img.Height),
		X:     x - float64(box.X) - float64(img.HotspotX)/scale,
		Y:     y - float64(box.Y) - float64(img.HotspotY)/scale,
		Scale: scale,
	}, true
}

func (s *Session) renderOutput(r *render.Renderer, o *backend.Output) *image.RGBA {
	var sprites []render.Sprite
	if sp, ok := s.cursorSprite(o); ok {
		sprites = append(sprites, sp)
	}
	s.frames++
	return r.Render(o, s.opts.Background, sprites...)
}

func (s *Session) renderAll() {
	r := s.renderer()
	if r == nil {
		return
	}
	for _, p := range s.layout.Outputs() {
		s.renderOutput(r, p.Output)
	}
}

// Status implements ipc.Handler.
func (s *Session) Status(ctx context.Context) (*ipc.Status, error) {
	c := s.comp
	if c == nil {
		return nil, errors.New("compositor not attached")
	}
	st := &ipc.Status{}
	err := c.EventLoop().Invoke(ctx, func() {
		st.Running = c.Running()
		st.Socket = c.SocketName()
		st.Backend = c.Backend().Name()
		st.Clients = c.Display().Clients()
		for _, g := range c.Display().Globals() {
			st.Globals = append(st.Globals, g.Name)
		}
		for _, p := range s.layout.Outputs() {
			o := p.Output
			box := p.Box()
			st.Outputs = append(st.Outputs, ipc.OutputStatus{
				Name:    o.Name,
				Width:   int(o.Width),
				Height:  int(o.Height),
				Refresh: int(o.Refresh),
				Scale:   o.Scale,
				X:       box.X,
				Y:       box.Y,
			})
		}
		for _, dev := range c.Inputs().Devices() {
			n := dev.Native()
			st.Inputs = append(st.Inputs, ipc.InputStatus{Name: n.Name, Type: n.Type.String()})
		}
		st.CursorX, st.CursorY = s.cursor.Coords()
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(st.Inputs, func(i, j int) bool { return st.Inputs[i].Name < st.Inputs[j].Name })
	return st, nil
}

// Terminate implements ipc.Handler.
func (s *Session) Terminate(context.Context) error {
	if s.comp == nil {
		return errors.New("compositor not attached")
	}
	s.comp.Terminate()
	return nil
}

// Screenshot implements ipc.Handler. It renders a fresh frame of the named
// output, or of the first output in the layout when name is empty.
func (s *Session) Screenshot(ctx context.Context, name string) (*ipc.Screenshot, error) {
	c := s.comp
	if c == nil {
		return nil, errors.New("compositor not attached")
	}
	var (
		frame *image.RGBA
		found string
		err   error
	)
	invokeErr := c.EventLoop().Invoke(ctx, func() {
		r := s.renderer()
		if r == nil {
			err = errors.New("renderer disabled")
			return
		}
		for _, p := range s.layout.Outputs() {
			if name == "" || p.Output.Name == name {
				fb := s.renderOutput(r, p.Output)
				frame = image.NewRGBA(fb.Bounds())
				copy(frame.Pix, fb.Pix)
				found = p.Output.Name
				return
			}
		}
		err = fmt.Errorf("%w: %q", ErrNoOutput, name)
	})
	if invokeErr != nil {
		return nil, invokeErr
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := render.WritePNG(&buf, frame); err != nil {
		return nil, err
	}
	b := frame.Bounds()
	return &ipc.Screenshot{Output: found, Width: b.Dx(), Height: b.Dy(), PNG: buf.Bytes()}, nil
}
