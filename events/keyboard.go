package events

import "github.com/bnema/wlcore/backend"

// KeyEvent is a keyboard key press or release.
type KeyEvent struct {
	event *backend.KeyboardKeyEvent
}

// NewKeyEvent wraps a non-nil key payload.
func NewKeyEvent(e *backend.KeyboardKeyEvent) KeyEvent {
	return KeyEvent{event: e}
}

func (e KeyEvent) Device() *backend.InputDevice { return e.event.Device }

// Keycode returns the Linux input event code of the key.
func (e KeyEvent) Keycode() uint32 { return e.event.Keycode }

func (e KeyEvent) State() backend.KeyState { return e.event.State }

func (e KeyEvent) Pressed() bool { return e.event.State == backend.KeyPressed }

func (e KeyEvent) TimeMsec() uint32 { return e.event.TimeMsec }
