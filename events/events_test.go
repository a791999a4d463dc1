package events

import (
	"testing"

	"github.com/bnema/wlcore/backend"
	"github.com/stretchr/testify/assert"
)

const btnLeft = 0x110

func TestButtonEvent(t *testing.T) {
	dev := backend.NewInputDevice("mouse", backend.DevicePointer)
	tests := []struct {
		name    string
		payload backend.PointerButtonEvent
		pressed bool
	}{
		{
			name:    "press",
			payload: backend.PointerButtonEvent{Device: dev, TimeMsec: 10, Button: btnLeft, State: backend.ButtonPressed},
			pressed: true,
		},
		{
			name:    "release",
			payload: backend.PointerButtonEvent{Device: dev, TimeMsec: 11, Button: btnLeft + 1, State: backend.ButtonReleased},
			pressed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewButtonEvent(&tt.payload)
			assert.Equal(t, tt.payload.Button, ev.Button())
			assert.Equal(t, tt.pressed, ev.Pressed())
			assert.Equal(t, tt.payload.State, ev.State())
			assert.Same(t, dev, ev.Device())
			assert.Equal(t, tt.payload.TimeMsec, ev.TimeMsec())
		})
	}
}

func TestAxisEvent(t *testing.T) {
	payload := &backend.PointerAxisEvent{
		Orientation:   backend.AxisHorizontal,
		Source:        backend.AxisSourceFinger,
		Delta:         1.5,
		DeltaDiscrete: 0,
	}
	ev := NewAxisEvent(payload)
	assert.Equal(t, 1.5, ev.Delta())
	assert.Equal(t, backend.AxisHorizontal, ev.Orientation())
	assert.Equal(t, backend.AxisSourceFinger, ev.Source())
	assert.Zero(t, ev.DeltaDiscrete())
}

func TestMotionEvents(t *testing.T) {
	dev := backend.NewInputDevice("touchpad", backend.DevicePointer)

	rel := NewMotionEvent(&backend.PointerMotionEvent{Device: dev, DeltaX: 3, DeltaY: -2.5, TimeMsec: 7})
	dx, dy := rel.Delta()
	assert.Equal(t, 3.0, dx)
	assert.Equal(t, -2.5, dy)
	assert.Same(t, dev, rel.Device())
	assert.Equal(t, uint32(7), rel.TimeMsec())

	abs := NewAbsoluteMotionEvent(&backend.PointerMotionAbsoluteEvent{Device: dev, X: 0.5, Y: 0.5, TimeMsec: 8})
	assert.Same(t, dev, abs.Device())
	assert.Equal(t, uint32(8), abs.TimeMsec())
}

func TestKeyEvent(t *testing.T) {
	dev := backend.NewInputDevice("kbd", backend.DeviceKeyboard)
	ev := NewKeyEvent(&backend.KeyboardKeyEvent{Device: dev, Keycode: 30, State: backend.KeyPressed})
	assert.Equal(t, uint32(30), ev.Keycode())
	assert.True(t, ev.Pressed())
	assert.Same(t, dev, ev.Device())
}
