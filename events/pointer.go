// Package events provides read-only views over backend event payloads.
//
// A view borrows the payload it was built from and is only valid while the
// signal emission that delivered the payload is running. Handlers that need a
// value afterwards copy it out; they never keep the view.
package events

import "github.com/bnema/wlcore/backend"

// MotionEvent is a relative pointer motion.
type MotionEvent struct {
	event *backend.PointerMotionEvent
}

// NewMotionEvent wraps a non-nil motion payload.
func NewMotionEvent(e *backend.PointerMotionEvent) MotionEvent {
	return MotionEvent{event: e}
}

// Device returns the pointer that moved.
func (e MotionEvent) Device() *backend.InputDevice { return e.event.Device }

// Delta returns the relative motion.
func (e MotionEvent) Delta() (dx, dy float64) { return e.event.DeltaX, e.event.DeltaY }

// TimeMsec returns the event timestamp in milliseconds.
func (e MotionEvent) TimeMsec() uint32 { return e.event.TimeMsec }

// AbsoluteMotionEvent is an absolute pointer motion. Coordinates are
// normalized by the backend and consumed by the cursor, so the view only
// exposes where the event came from.
type AbsoluteMotionEvent struct {
	event *backend.PointerMotionAbsoluteEvent
}

// NewAbsoluteMotionEvent wraps a non-nil absolute motion payload.
func NewAbsoluteMotionEvent(e *backend.PointerMotionAbsoluteEvent) AbsoluteMotionEvent {
	return AbsoluteMotionEvent{event: e}
}

func (e AbsoluteMotionEvent) Device() *backend.InputDevice { return e.event.Device }

func (e AbsoluteMotionEvent) TimeMsec() uint32 { return e.event.TimeMsec }

// ButtonEvent is a pointer button press or release.
type ButtonEvent struct {
	event *backend.PointerButtonEvent
}

// NewButtonEvent wraps a non-nil button payload.
func NewButtonEvent(e *backend.PointerButtonEvent) ButtonEvent {
	return ButtonEvent{event: e}
}

func (e ButtonEvent) Device() *backend.InputDevice { return e.event.Device }

// Button returns the Linux input event code of the button.
func (e ButtonEvent) Button() uint32 { return e.event.Button }

func (e ButtonEvent) State() backend.ButtonState { return e.event.State }

// Pressed is shorthand for State() == backend.ButtonPressed.
func (e ButtonEvent) Pressed() bool { return e.event.State == backend.ButtonPressed }

func (e ButtonEvent) TimeMsec() uint32 { return e.event.TimeMsec }

// AxisEvent is a scroll step.
type AxisEvent struct {
	event *backend.PointerAxisEvent
}

// NewAxisEvent wraps a non-nil axis payload.
func NewAxisEvent(e *backend.PointerAxisEvent) AxisEvent {
	return AxisEvent{event: e}
}

func (e AxisEvent) Device() *backend.InputDevice { return e.event.Device }

// Delta returns the scroll distance.
func (e AxisEvent) Delta() float64 { return e.event.Delta }

// DeltaDiscrete returns the number of wheel clicks, 0 for continuous sources.
func (e AxisEvent) DeltaDiscrete() int32 { return e.event.DeltaDiscrete }

func (e AxisEvent) Orientation() backend.AxisOrientation { return e.event.Orientation }

func (e AxisEvent) Source() backend.AxisSource { return e.event.Source }

func (e AxisEvent) TimeMsec() uint32 { return e.event.TimeMsec }
