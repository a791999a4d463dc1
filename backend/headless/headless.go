// Package headless provides a backend without real hardware. Outputs and
// input devices are created programmatically, which makes it the backend of
// choice for tests and for running wlcore on machines without a seat.
package headless

import (
	"fmt"
	"sync"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/internal/logger"
)

const Name = "headless"

func init() {
	backend.Register(Name, func(loop backend.Dispatcher, opts backend.Options) (backend.Backend, error) {
		return New(loop, opts), nil
	})
}

// Backend is a backend whose devices are driven by the caller.
//
// Add and remove methods must be called on the event loop goroutine once the
// backend is started; use the Post variants from other goroutines.
type Backend struct {
	mu      sync.Mutex
	loop    backend.Dispatcher
	events  *backend.Events
	outputs []*backend.Output
	inputs  []*backend.InputDevice
	started bool

	// StartErr makes Start fail, for exercising error paths.
	StartErr error

	destroyed   bool
	outputCount int
}

// New creates a headless backend and the outputs listed in opts.
func New(loop backend.Dispatcher, opts backend.Options) *Backend {
	b := &Backend{
		loop:   loop,
		events: backend.NewEvents(),
	}
	for _, spec := range opts.HeadlessOutputs {
		o := b.AddOutput(spec.Width, spec.Height)
		if spec.Name != "" {
			o.Name = spec.Name
		}
		if spec.Scale > 0 {
			o.Scale = spec.Scale
		}
	}
	return b
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Events() *backend.Events { return b.events }

// Start announces every device created so far.
func (b *Backend) Start() error {
	if b.StartErr != nil {
		return b.StartErr
	}

	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("headless backend already started")
	}
	b.started = true
	outputs := append([]*backend.Output(nil), b.outputs...)
	inputs := append([]*backend.InputDevice(nil), b.inputs...)
	b.mu.Unlock()

	logger.Debugf("Starting headless backend with %d outputs and %d inputs", len(outputs), len(inputs))
	for _, o := range outputs {
		b.events.OutputAdd.Emit(o)
	}
	for _, dev := range inputs {
		b.events.InputAdd.Emit(dev)
	}
	return nil
}

// Started reports whether Start succeeded.
func (b *Backend) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// AddOutput creates an output named HEADLESS-N. It is announced right away
// when the backend is started, otherwise on Start.
func (b *Backend) AddOutput(width, height int32) *backend.Output {
	b.mu.Lock()
	b.outputCount++
	o := backend.NewOutput(fmt.Sprintf("HEADLESS-%d", b.outputCount), width, height)
	o.Make = "headless"
	o.Model = "headless"
	o.Refresh = 60000
	b.outputs = append(b.outputs, o)
	started := b.started
	b.mu.Unlock()

	if started {
		b.events.OutputAdd.Emit(o)
	}
	return o
}

// AddInputDevice creates an input device of the given type.
func (b *Backend) AddInputDevice(name string, typ backend.DeviceType) *backend.InputDevice {
	dev := backend.NewInputDevice(name, typ)

	b.mu.Lock()
	b.inputs = append(b.inputs, dev)
	started := b.started
	b.mu.Unlock()

	if started {
		b.events.InputAdd.Emit(dev)
	}
	return dev
}

// RemoveOutput unplugs o. Unknown outputs are ignored.
func (b *Backend) RemoveOutput(o *backend.Output) {
	b.mu.Lock()
	found := false
	for i, cur := range b.outputs {
		if cur == o {
			b.outputs = append(b.outputs[:i], b.outputs[i+1:]...)
			found = true
			break
		}
	}
	started := b.started
	b.mu.Unlock()

	if !found {
		return
	}
	if started {
		b.events.OutputRemove.Emit(o)
	}
	o.Destroy.Emit(o)
}

// RemoveInputDevice unplugs dev. Unknown devices are ignored.
func (b *Backend) RemoveInputDevice(dev *backend.InputDevice) {
	b.mu.Lock()
	found := false
	for i, cur := range b.inputs {
		if cur == dev {
			b.inputs = append(b.inputs[:i], b.inputs[i+1:]...)
			found = true
			break
		}
	}
	started := b.started
	b.mu.Unlock()

	if !found {
		return
	}
	if started {
		b.events.InputRemove.Emit(dev)
	}
	dev.Destroy.Emit(dev)
}

// PostAddOutput is AddOutput run on the event loop.
func (b *Backend) PostAddOutput(width, height int32) {
	b.loop.Post(func() { b.AddOutput(width, height) })
}

// PostAddInputDevice is AddInputDevice run on the event loop.
func (b *Backend) PostAddInputDevice(name string, typ backend.DeviceType) {
	b.loop.Post(func() { b.AddInputDevice(name, typ) })
}

// Outputs returns the outputs currently plugged.
func (b *Backend) Outputs() []*backend.Output {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*backend.Output(nil), b.outputs...)
}

// InputDevices returns the input devices currently plugged.
func (b *Backend) InputDevices() []*backend.InputDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*backend.InputDevice(nil), b.inputs...)
}

// Destroy unplugs every device and emits the backend destroy signal.
func (b *Backend) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.mu.Unlock()

	for _, dev := range b.InputDevices() {
		b.RemoveInputDevice(dev)
	}
	for _, o := range b.Outputs() {
		b.RemoveOutput(o)
	}
	b.events.Destroy.Emit(b)
	logger.Debug("Headless backend destroyed")
}

// Destroyed reports whether Destroy has been called.
func (b *Backend) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}
