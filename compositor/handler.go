package compositor

import (
	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/events"
)

// Input is an attached input device.
type Input = Device[*backend.InputDevice]

// Output is an attached output.
type Output = Device[*backend.Output]

// InputHandler is told about input devices coming and going. It may also
// implement any of the Pointer*Handler and KeyboardKeyHandler interfaces to
// receive device events; only the events a handler implements are wired.
type InputHandler interface {
	InputAdded(c *Compositor, dev *Input)
	InputRemoved(c *Compositor, dev *Input)
}

// OutputHandler is told about outputs coming and going. It may also
// implement OutputModeHandler.
type OutputHandler interface {
	OutputAdded(c *Compositor, o *Output)
	OutputRemoved(c *Compositor, o *Output)
}

type PointerMotionHandler interface {
	PointerMotion(c *Compositor, dev *Input, ev events.MotionEvent)
}

type PointerMotionAbsoluteHandler interface {
	PointerMotionAbsolute(c *Compositor, dev *Input, ev events.AbsoluteMotionEvent)
}

type PointerButtonHandler interface {
	PointerButton(c *Compositor, dev *Input, ev events.ButtonEvent)
}

type PointerAxisHandler interface {
	PointerAxis(c *Compositor, dev *Input, ev events.AxisEvent)
}

type KeyboardKeyHandler interface {
	KeyboardKey(c *Compositor, dev *Input, ev events.KeyEvent)
}

// OutputModeHandler is called after an output changed mode or scale.
type OutputModeHandler interface {
	OutputMode(c *Compositor, o *Output)
}

// NopInputHandler ignores hotplug. Embed it to implement only event
// callbacks.
type NopInputHandler struct{}

func (NopInputHandler) InputAdded(*Compositor, *Input)   {}
func (NopInputHandler) InputRemoved(*Compositor, *Input) {}

// NopOutputHandler ignores hotplug.
type NopOutputHandler struct{}

func (NopOutputHandler) OutputAdded(*Compositor, *Output)   {}
func (NopOutputHandler) OutputRemoved(*Compositor, *Output) {}

// wireInput registers the device level listeners h asks for.
func wireInput(h InputHandler) func(c *Compositor, dev *Input) error {
	return func(c *Compositor, dev *Input) error {
		native := dev.Native()
		if ptr := native.Pointer; ptr != nil {
			if mh, ok := h.(PointerMotionHandler); ok {
				if err := attach(dev, ptr.Motion, func(ev *backend.PointerMotionEvent) {
					mh.PointerMotion(c, dev, events.NewMotionEvent(ev))
				}); err != nil {
					return err
				}
			}
			if ah, ok := h.(PointerMotionAbsoluteHandler); ok {
				if err := attach(dev, ptr.MotionAbsolute, func(ev *backend.PointerMotionAbsoluteEvent) {
					ah.PointerMotionAbsolute(c, dev, events.NewAbsoluteMotionEvent(ev))
				}); err != nil {
					return err
				}
			}
			if bh, ok := h.(PointerButtonHandler); ok {
				if err := attach(dev, ptr.Button, func(ev *backend.PointerButtonEvent) {
					bh.PointerButton(c, dev, events.NewButtonEvent(ev))
				}); err != nil {
					return err
				}
			}
			if xh, ok := h.(PointerAxisHandler); ok {
				if err := attach(dev, ptr.Axis, func(ev *backend.PointerAxisEvent) {
					xh.PointerAxis(c, dev, events.NewAxisEvent(ev))
				}); err != nil {
					return err
				}
			}
		}
		if kbd := native.Keyboard; kbd != nil {
			if kh, ok := h.(KeyboardKeyHandler); ok {
				if err := attach(dev, kbd.Key, func(ev *backend.KeyboardKeyEvent) {
					kh.KeyboardKey(c, dev, events.NewKeyEvent(ev))
				}); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func wireOutput(h OutputHandler) func(c *Compositor, o *Output) error {
	return func(c *Compositor, o *Output) error {
		mh, ok := h.(OutputModeHandler)
		if !ok {
			return nil
		}
		return attach(o, o.Native().Mode, func(*backend.Output) {
			mh.OutputMode(c, o)
		})
	}
}
