package backend

import (
	"fmt"

	"github.com/bnema/wlcore/listener"
)

// DeviceType is the class of an input device.
type DeviceType int

const (
	DeviceKeyboard DeviceType = iota
	DevicePointer
	DeviceTouch
	DeviceTabletTool
	DeviceTabletPad
	DeviceSwitch
)

func (t DeviceType) String() string {
	switch t {
	case DeviceKeyboard:
		return "keyboard"
	case DevicePointer:
		return "pointer"
	case DeviceTouch:
		return "touch"
	case DeviceTabletTool:
		return "tablet-tool"
	case DeviceTabletPad:
		return "tablet-pad"
	case DeviceSwitch:
		return "switch"
	default:
		return fmt.Sprintf("DeviceType(%d)", int(t))
	}
}

// InputDevice is a hot-pluggable input device. Devices are compared by
// pointer identity.
type InputDevice struct {
	Name    string
	Type    DeviceType
	Vendor  uint32
	Product uint32

	// Pointer is set for DevicePointer devices.
	Pointer *PointerEvents
	// Keyboard is set for DeviceKeyboard devices.
	Keyboard *KeyboardEvents

	// Destroy is emitted once, right after the backend's InputRemove.
	Destroy *listener.Signal[*InputDevice]
}

// PointerEvents are the signals emitted by a pointer device.
type PointerEvents struct {
	Motion         *listener.Signal[*PointerMotionEvent]
	MotionAbsolute *listener.Signal[*PointerMotionAbsoluteEvent]
	Button         *listener.Signal[*PointerButtonEvent]
	Axis           *listener.Signal[*PointerAxisEvent]
}

// KeyboardEvents are the signals emitted by a keyboard device.
type KeyboardEvents struct {
	Key *listener.Signal[*KeyboardKeyEvent]
}

// NewInputDevice allocates a device and the signals matching its type.
func NewInputDevice(name string, typ DeviceType) *InputDevice {
	dev := &InputDevice{
		Name:    name,
		Type:    typ,
		Destroy: listener.NewSignal[*InputDevice](),
	}
	switch typ {
	case DevicePointer:
		dev.Pointer = &PointerEvents{
			Motion:         listener.NewSignal[*PointerMotionEvent](),
			MotionAbsolute: listener.NewSignal[*PointerMotionAbsoluteEvent](),
			Button:         listener.NewSignal[*PointerButtonEvent](),
			Axis:           listener.NewSignal[*PointerAxisEvent](),
		}
	case DeviceKeyboard:
		dev.Keyboard = &KeyboardEvents{
			Key: listener.NewSignal[*KeyboardKeyEvent](),
		}
	}
	return dev
}

func (d *InputDevice) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Type)
}

// Output is a display connected to the backend.
type Output struct {
	Name  string
	Make  string
	Model string

	// Width and Height are the current mode in physical pixels.
	Width   int32
	Height  int32
	Refresh int32 // mHz
	Scale   float64

	// Mode is emitted after the current mode or scale changes.
	Mode *listener.Signal[*Output]
	// Destroy is emitted once, right after the backend's OutputRemove.
	Destroy *listener.Signal[*Output]
}

// NewOutput allocates an output with a current mode.
func NewOutput(name string, width, height int32) *Output {
	return &Output{
		Name:    name,
		Width:   width,
		Height:  height,
		Scale:   1,
		Mode:    listener.NewSignal[*Output](),
		Destroy: listener.NewSignal[*Output](),
	}
}

// SetMode updates the current mode and emits Mode when it changed.
func (o *Output) SetMode(width, height, refresh int32) {
	if o.Width == width && o.Height == height && o.Refresh == refresh {
		return
	}
	o.Width, o.Height, o.Refresh = width, height, refresh
	o.Mode.Emit(o)
}

// SetScale updates the output scale and emits Mode when it changed.
func (o *Output) SetScale(scale float64) {
	if scale <= 0 || scale == o.Scale {
		return
	}
	o.Scale = scale
	o.Mode.Emit(o)
}

// EffectiveResolution returns the size in layout coordinates, that is the
// mode divided by the scale.
func (o *Output) EffectiveResolution() (width, height int) {
	scale := o.Scale
	if scale <= 0 {
		scale = 1
	}
	return int(float64(o.Width) / scale), int(float64(o.Height) / scale)
}

func (o *Output) String() string {
	return fmt.Sprintf("%s (%dx%d@%.2g)", o.Name, o.Width, o.Height, o.Scale)
}
