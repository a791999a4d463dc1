package evdev

import (
	evdev "github.com/gvalkov/golang-evdev"

	"github.com/bnema/wlcore/backend"
)

// wheelStep is the scroll distance of one wheel click, matching what
// libinput reports for a standard mouse wheel.
const wheelStep = 15

// classify picks the device type from its capabilities. Pointers win over
// keyboards for combined devices. Absolute X/Y devices (tablets, touch
// screens, VM pointers) count as pointers.
func classify(caps map[evdev.CapabilityType][]evdev.CapabilityCode) (backend.DeviceType, bool) {
	var hasRelX, hasRelY, hasAbsX, hasAbsY, hasBtnLeft, hasLetters bool
	for capType, codes := range caps {
		switch capType.Type {
		case evdev.EV_ABS:
			for _, c := range codes {
				switch c.Code {
				case evdev.ABS_X:
					hasAbsX = true
				case evdev.ABS_Y:
					hasAbsY = true
				}
			}
		case evdev.EV_REL:
			for _, c := range codes {
				switch c.Code {
				case evdev.REL_X:
					hasRelX = true
				case evdev.REL_Y:
					hasRelY = true
				}
			}
		case evdev.EV_KEY:
			for _, c := range codes {
				if c.Code == evdev.BTN_LEFT {
					hasBtnLeft = true
				}
				if c.Code >= evdev.KEY_A && c.Code <= evdev.KEY_Z {
					hasLetters = true
				}
			}
		}
	}

	switch {
	case (hasRelX && hasRelY) || (hasAbsX && hasAbsY) || hasBtnLeft:
		return backend.DevicePointer, true
	case hasLetters:
		return backend.DeviceKeyboard, true
	default:
		return 0, false
	}
}

// decoder turns raw evdev events of one device into backend payloads. The
// kernel groups events in frames closed by SYN_REPORT; payloads are released
// per frame with the accumulated motion first.
type decoder struct {
	dev     *backend.InputDevice
	dx, dy  int32
	pending []any

	// abs is nil for devices without absolute axes. The kernel only sends
	// axes that changed, so the last position is kept across frames.
	abs        *absAxes
	absX, absY int32
	absMoved   bool
}

func newDecoder(dev *backend.InputDevice) *decoder {
	return &decoder{dev: dev}
}

// newAbsDecoder decodes a device with absolute axes, starting from the
// position the kernel reported when it was opened.
func newAbsDecoder(dev *backend.InputDevice, axes *absAxes) *decoder {
	d := newDecoder(dev)
	if axes != nil {
		d.abs = axes
		d.absX, d.absY = axes.x.value, axes.y.value
	}
	return d
}

func eventTime(ev evdev.InputEvent) uint32 {
	return uint32(ev.Time.Sec*1000 + ev.Time.Usec/1000)
}

// decode consumes one event and returns the payloads of a completed frame.
// Payload types are *backend.PointerMotionEvent, *backend.PointerButtonEvent,
// *backend.PointerMotionAbsoluteEvent, *backend.PointerAxisEvent and
// *backend.KeyboardKeyEvent.
func (d *decoder) decode(ev evdev.InputEvent) []any {
	ms := eventTime(ev)
	switch ev.Type {
	case evdev.EV_ABS:
		if d.dev.Pointer == nil || d.abs == nil {
			return nil
		}
		switch ev.Code {
		case evdev.ABS_X:
			d.absX = ev.Value
			d.absMoved = true
		case evdev.ABS_Y:
			d.absY = ev.Value
			d.absMoved = true
		}

	case evdev.EV_REL:
		if d.dev.Pointer == nil {
			return nil
		}
		switch ev.Code {
		case evdev.REL_X:
			d.dx += ev.Value
		case evdev.REL_Y:
			d.dy += ev.Value
		case evdev.REL_WHEEL:
			d.pending = append(d.pending, &backend.PointerAxisEvent{
				Device:        d.dev,
				TimeMsec:      ms,
				Source:        backend.AxisSourceWheel,
				Orientation:   backend.AxisVertical,
				Delta:         float64(-ev.Value * wheelStep),
				DeltaDiscrete: -ev.Value,
			})
		case evdev.REL_HWHEEL:
			d.pending = append(d.pending, &backend.PointerAxisEvent{
				Device:        d.dev,
				TimeMsec:      ms,
				Source:        backend.AxisSourceWheel,
				Orientation:   backend.AxisHorizontal,
				Delta:         float64(ev.Value * wheelStep),
				DeltaDiscrete: ev.Value,
			})
		}

	case evdev.EV_KEY:
		// Value 2 is autorepeat; repeat is the client's business.
		if ev.Value != 0 && ev.Value != 1 {
			return nil
		}
		if ev.Code >= evdev.BTN_MISC && ev.Code < evdev.KEY_OK && d.dev.Pointer != nil {
			state := backend.ButtonReleased
			if ev.Value == 1 {
				state = backend.ButtonPressed
			}
			d.pending = append(d.pending, &backend.PointerButtonEvent{
				Device:   d.dev,
				TimeMsec: ms,
				Button:   uint32(ev.Code),
				State:    state,
			})
			return nil
		}
		if d.dev.Keyboard != nil {
			state := backend.KeyReleased
			if ev.Value == 1 {
				state = backend.KeyPressed
			}
			d.pending = append(d.pending, &backend.KeyboardKeyEvent{
				Device:   d.dev,
				TimeMsec: ms,
				Keycode:  uint32(ev.Code),
				State:    state,
			})
		}

	case evdev.EV_SYN:
		if ev.Code != evdev.SYN_REPORT {
			return nil
		}
		return d.flush(ms)
	}
	return nil
}

func (d *decoder) flush(ms uint32) []any {
	var out []any
	if d.dx != 0 || d.dy != 0 {
		out = append(out, &backend.PointerMotionEvent{
			Device:   d.dev,
			TimeMsec: ms,
			DeltaX:   float64(d.dx),
			DeltaY:   float64(d.dy),
		})
		d.dx, d.dy = 0, 0
	}
	if d.absMoved {
		out = append(out, &backend.PointerMotionAbsoluteEvent{
			Device:   d.dev,
			TimeMsec: ms,
			X:        d.abs.x.normalize(d.absX),
			Y:        d.abs.y.normalize(d.absY),
		})
		d.absMoved = false
	}
	out = append(out, d.pending...)
	d.pending = nil
	return out
}

// emit delivers one payload on the device's signals.
func emit(dev *backend.InputDevice, payload any) {
	switch p := payload.(type) {
	case *backend.PointerMotionEvent:
		dev.Pointer.Motion.Emit(p)
	case *backend.PointerMotionAbsoluteEvent:
		dev.Pointer.MotionAbsolute.Emit(p)
	case *backend.PointerButtonEvent:
		dev.Pointer.Button.Emit(p)
	case *backend.PointerAxisEvent:
		dev.Pointer.Axis.Emit(p)
	case *backend.KeyboardKeyEvent:
		dev.Keyboard.Key.Emit(p)
	}
}
