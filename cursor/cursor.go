// Package cursor tracks the position and image of one on-screen pointer.
//
// A Cursor is driven by the pointer devices attached to it and is bounded
// by an optional output layout. Several cursors may share a layout. A
// Cursor is not safe for concurrent use; it lives on the event loop.
package cursor

import (
	"errors"
	"fmt"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/layout"
	"github.com/bnema/wlcore/listener"
	"github.com/bnema/wlcore/xcursor"
)

// ErrNotPointer is returned when attaching a device without pointer events.
var ErrNotPointer = errors.New("cursor: device is not a pointer")

// ErrInvalidImage is returned by SetImage for a bitmap whose size does not
// match its buffer.
var ErrInvalidImage = errors.New("cursor: invalid image")

// Events are re-emitted for every attached device after the cursor moved.
type Events struct {
	Motion         *listener.Signal[*backend.PointerMotionEvent]
	MotionAbsolute *listener.Signal[*backend.PointerMotionAbsoluteEvent]
	Button         *listener.Signal[*backend.PointerButtonEvent]
	Axis           *listener.Signal[*backend.PointerAxisEvent]
}

// Image is the bitmap shown at the cursor position.
type Image struct {
	Pixels   []byte
	Stride   int
	Width    int
	Height   int
	HotspotX int
	HotspotY int
	Scale    float64
}

type attachment struct {
	dev       *backend.InputDevice
	mapped    *backend.Output
	listeners listener.Set
}

// Cursor is a pointer position plus the image drawn at it.
type Cursor struct {
	Events Events

	x, y float64

	layout         *layout.OutputLayout
	layoutListener *listener.Listener[*layout.OutputLayout]

	mapped         *backend.Output
	mappedListener *listener.Listener[*backend.Output]

	devices []*attachment
	image   Image
}

// New returns a cursor at (0, 0) with no layout, devices or image.
func New() *Cursor {
	return &Cursor{
		Events: Events{
			Motion:         listener.NewSignal[*backend.PointerMotionEvent](),
			MotionAbsolute: listener.NewSignal[*backend.PointerMotionAbsoluteEvent](),
			Button:         listener.NewSignal[*backend.PointerButtonEvent](),
			Axis:           listener.NewSignal[*backend.PointerAxisEvent](),
		},
	}
}

// Coords returns the cursor position in layout coordinates.
func (c *Cursor) Coords() (x, y float64) {
	return c.x, c.y
}

// AttachOutputLayout bounds the cursor by l, replacing any previous layout.
// The previous layout is only forgotten, never destroyed. A nil l removes
// the bounds.
func (c *Cursor) AttachOutputLayout(l *layout.OutputLayout) {
	c.layoutListener.Remove()
	c.layoutListener = nil
	c.layout = l
	if l == nil {
		return
	}

	lst, err := listener.Register(l.Change, func(*layout.OutputLayout) {
		c.clampToLayout()
	})
	if err != nil {
		logger.Warnf("Cursor cannot follow layout changes: %v", err)
		return
	}
	c.layoutListener = lst
	c.clampToLayout()
}

// OutputLayout returns the attached layout, or nil.
func (c *Cursor) OutputLayout() *layout.OutputLayout {
	return c.layout
}

// clampToLayout pulls the cursor back on screen after outputs moved.
func (c *Cursor) clampToLayout() {
	if c.layout == nil || c.layout.Len() == 0 {
		return
	}
	if c.layout.Contains(nil, c.x, c.y) {
		return
	}
	c.x, c.y = c.layout.ClosestPoint(nil, c.x, c.y)
}

// mapping returns the box a device is confined to. A device mapping wins
// over the cursor mapping. The box is empty when nothing applies.
func (c *Cursor) mapping(dev *backend.InputDevice) layout.Box {
	if c.layout == nil {
		return layout.Box{}
	}
	if a := c.find(dev); a != nil && a.mapped != nil {
		if box, ok := c.layout.OutputBox(a.mapped); ok {
			return box
		}
	}
	if c.mapped != nil {
		if box, ok := c.layout.OutputBox(c.mapped); ok {
			return box
		}
	}
	return layout.Box{}
}

// Warp moves the cursor to (x, y) if that point is allowed for dev (which
// may be nil). It reports whether the cursor moved.
func (c *Cursor) Warp(dev *backend.InputDevice, x, y float64) bool {
	if !c.allowed(dev, x, y) {
		return false
	}
	c.x, c.y = x, y
	return true
}

func (c *Cursor) allowed(dev *backend.InputDevice, x, y float64) bool {
	if c.layout == nil {
		return true
	}
	if box := c.mapping(dev); !box.Empty() {
		return box.Contains(x, y)
	}
	return c.layout.Contains(nil, x, y)
}

// WarpAbsolute moves the cursor to normalized coordinates in [0, 1] over the
// region dev is confined to, or over the whole layout. Without a layout the
// call does nothing.
func (c *Cursor) WarpAbsolute(dev *backend.InputDevice, nx, ny float64) {
	if c.layout == nil {
		return
	}
	box := c.mapping(dev)
	if box.Empty() {
		box = c.layout.Extents()
	}
	if box.Empty() {
		return
	}
	nx = min(max(nx, 0), 1)
	ny = min(max(ny, 0), 1)
	x := float64(box.X) + nx*float64(box.Width)
	y := float64(box.Y) + ny*float64(box.Height)
	if !c.Warp(dev, x, y) {
		c.x, c.y = box.ClosestPoint(x, y)
	}
}

// MoveTo moves the cursor by (dx, dy). A destination outside the allowed
// region is replaced by the closest allowed point.
func (c *Cursor) MoveTo(dev *backend.InputDevice, dx, dy float64) {
	x, y := c.x+dx, c.y+dy
	if c.layout == nil {
		c.x, c.y = x, y
		return
	}
	if box := c.mapping(dev); !box.Empty() {
		c.x, c.y = box.ClosestPoint(x, y)
		return
	}
	c.x, c.y = c.layout.ClosestPoint(nil, x, y)
}

// MapToOutput confines the cursor to o. A nil o clears the restriction. The
// restriction is dropped when o is destroyed.
func (c *Cursor) MapToOutput(o *backend.Output) {
	c.mappedListener.Remove()
	c.mappedListener = nil
	c.mapped = o
	if o == nil {
		return
	}
	lst, err := listener.Register(o.Destroy, func(*backend.Output) {
		c.MapToOutput(nil)
	})
	if err != nil {
		logger.Warnf("Cursor cannot watch output %s: %v", o.Name, err)
		return
	}
	c.mappedListener = lst
}

// MappedOutput returns the output the cursor is confined to, or nil.
func (c *Cursor) MappedOutput() *backend.Output {
	return c.mapped
}

// MapInputToOutput confines the movement caused by dev to o. dev must be
// attached; a nil o clears the restriction.
func (c *Cursor) MapInputToOutput(dev *backend.InputDevice, o *backend.Output) {
	a := c.find(dev)
	if a == nil {
		logger.Debugf("Cannot map %s: device is not attached to the cursor", dev.Name)
		return
	}
	a.mapped = o
}

// SetImage sets the cursor bitmap. The pixels are copied. Nil pixels hide
// the cursor. Pixels are ARGB8888, so stride must hold width*4 bytes and
// the buffer stride*height bytes; otherwise the image is left unchanged.
func (c *Cursor) SetImage(pixels []byte, stride, width, height, hotspotX, hotspotY int, scale float64) error {
	if pixels != nil {
		switch {
		case width <= 0 || height <= 0:
			return fmt.Errorf("%w: size %dx%d", ErrInvalidImage, width, height)
		case stride < width*4:
			return fmt.Errorf("%w: stride %d is shorter than %d pixels", ErrInvalidImage, stride, width)
		case len(pixels) < stride*height:
			return fmt.Errorf("%w: %d bytes for %d rows of %d", ErrInvalidImage, len(pixels), height, stride)
		}
	}
	if scale <= 0 {
		scale = 1
	}
	c.image = Image{
		Stride:   stride,
		Width:    width,
		Height:   height,
		HotspotX: hotspotX,
		HotspotY: hotspotY,
		Scale:    scale,
	}
	if pixels != nil {
		c.image.Pixels = append([]byte(nil), pixels...)
	}
	return nil
}

// Image returns the current bitmap. The returned pixels must not be
// modified.
func (c *Cursor) Image() Image {
	return c.image
}

// Visible reports whether an image is set.
func (c *Cursor) Visible() bool {
	return len(c.image.Pixels) > 0
}

// SetXCursorImage shows one frame of a theme cursor. A nil frame is
// ignored.
func (c *Cursor) SetXCursorImage(img *xcursor.Image) error {
	if img == nil {
		return nil
	}
	return c.SetImage(img.Pixels, img.Stride(), img.Width, img.Height, img.HotspotX, img.HotspotY, 1)
}

// SetXCursor shows the first frame of the named cursor from theme. It
// reports false and leaves the image untouched when the theme lacks it.
func (c *Cursor) SetXCursor(theme *xcursor.Theme, name string) bool {
	xc, err := theme.Cursor(name)
	if err != nil || len(xc.Images) == 0 {
		logger.Debugf("Cursor image %q unavailable: %v", name, err)
		return false
	}
	if err := c.SetXCursorImage(xc.Images[0]); err != nil {
		logger.Warnf("Cursor image %q: %v", name, err)
		return false
	}
	return true
}

func (c *Cursor) find(dev *backend.InputDevice) *attachment {
	if dev == nil {
		return nil
	}
	for _, a := range c.devices {
		if a.dev == dev {
			return a
		}
	}
	return nil
}

// AttachInputDevice lets dev drive the cursor. Its events move the cursor
// and are then re-emitted on Events. Attaching twice does nothing.
func (c *Cursor) AttachInputDevice(dev *backend.InputDevice) error {
	if dev == nil || dev.Pointer == nil {
		return ErrNotPointer
	}
	if c.find(dev) != nil {
		return nil
	}

	a := &attachment{dev: dev}
	ptr := dev.Pointer
	err := errors.Join(
		attach(&a.listeners, ptr.Motion, func(ev *backend.PointerMotionEvent) {
			c.MoveTo(dev, ev.DeltaX, ev.DeltaY)
			c.Events.Motion.Emit(ev)
		}),
		attach(&a.listeners, ptr.MotionAbsolute, func(ev *backend.PointerMotionAbsoluteEvent) {
			c.WarpAbsolute(dev, ev.X, ev.Y)
			c.Events.MotionAbsolute.Emit(ev)
		}),
		attach(&a.listeners, ptr.Button, c.Events.Button.Emit),
		attach(&a.listeners, ptr.Axis, c.Events.Axis.Emit),
		attach(&a.listeners, dev.Destroy, func(*backend.InputDevice) {
			c.DetachInputDevice(dev)
		}),
	)
	if err != nil {
		a.listeners.RemoveAll()
		return fmt.Errorf("failed to attach %s: %w", dev.Name, err)
	}

	c.devices = append(c.devices, a)
	logger.Debugf("Attached %s to cursor", dev.Name)
	return nil
}

func attach[T any](set *listener.Set, sig *listener.Signal[T], fn func(T)) error {
	_, err := listener.Attach(set, sig, fn)
	return err
}

// DetachInputDevice stops dev from driving the cursor. Unknown devices are
// ignored.
func (c *Cursor) DetachInputDevice(dev *backend.InputDevice) {
	for i, a := range c.devices {
		if a.dev == dev {
			a.listeners.RemoveAll()
			c.devices = append(c.devices[:i], c.devices[i+1:]...)
			logger.Debugf("Detached %s from cursor", dev.Name)
			return
		}
	}
}

// InputDevices returns the attached devices in attach order.
func (c *Cursor) InputDevices() []*backend.InputDevice {
	out := make([]*backend.InputDevice, 0, len(c.devices))
	for _, a := range c.devices {
		out = append(out, a.dev)
	}
	return out
}

// Destroy detaches every device and forgets the layout and mapping. The
// layout itself is left alone.
func (c *Cursor) Destroy() {
	for len(c.devices) > 0 {
		c.DetachInputDevice(c.devices[0].dev)
	}
	c.MapToOutput(nil)
	c.AttachOutputLayout(nil)
}
