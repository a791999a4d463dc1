package backend

// ButtonState is the state of a pointer button.
type ButtonState uint32

const (
	ButtonReleased ButtonState = iota
	ButtonPressed
)

func (s ButtonState) String() string {
	if s == ButtonPressed {
		return "pressed"
	}
	return "released"
}

// KeyState is the state of a keyboard key.
type KeyState uint32

const (
	KeyReleased KeyState = iota
	KeyPressed
)

// AxisSource is the kind of device that produced a scroll.
type AxisSource uint32

const (
	AxisSourceWheel AxisSource = iota
	AxisSourceFinger
	AxisSourceContinuous
	AxisSourceWheelTilt
)

// AxisOrientation is the direction of a scroll.
type AxisOrientation uint32

const (
	AxisVertical AxisOrientation = iota
	AxisHorizontal
)

// The payloads below are owned by the backend and are only valid for the
// duration of the emission that carries them.

// PointerMotionEvent is a relative pointer motion.
type PointerMotionEvent struct {
	Device   *InputDevice
	TimeMsec uint32
	DeltaX   float64
	DeltaY   float64
}

// PointerMotionAbsoluteEvent is an absolute motion; X and Y are normalized
// to [0, 1].
type PointerMotionAbsoluteEvent struct {
	Device   *InputDevice
	TimeMsec uint32
	X        float64
	Y        float64
}

// PointerButtonEvent is a button press or release. Button is a Linux
// input event code (BTN_LEFT is 0x110).
type PointerButtonEvent struct {
	Device   *InputDevice
	TimeMsec uint32
	Button   uint32
	State    ButtonState
}

// PointerAxisEvent is a scroll step.
type PointerAxisEvent struct {
	Device        *InputDevice
	TimeMsec      uint32
	Source        AxisSource
	Orientation   AxisOrientation
	Delta         float64
	DeltaDiscrete int32
}

// KeyboardKeyEvent is a key press or release. Keycode is a Linux input
// event code.
type KeyboardKeyEvent struct {
	Device   *InputDevice
	TimeMsec uint32
	Keycode  uint32
	State    KeyState
}
