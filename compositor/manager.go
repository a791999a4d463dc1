package compositor

import (
	"fmt"
	"sync"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/listener"
)

// Device is one hot-plugged device tracked by a DeviceManager.
type Device[D comparable] struct {
	// Data holds application state for the device.
	Data any

	native    D
	listeners listener.Set
}

// Native returns the backend device.
func (d *Device[D]) Native() D {
	return d.native
}

// Listeners returns how many device level listeners are attached.
func (d *Device[D]) Listeners() int {
	return d.listeners.Len()
}

func attach[D comparable, T any](d *Device[D], sig *listener.Signal[T], fn func(T)) error {
	_, err := listener.Attach(&d.listeners, sig, fn)
	return err
}

// DeviceManager tracks the attached devices of one class. Its collection
// only changes through the backend's add and remove signals.
type DeviceManager[D comparable] struct {
	kind string
	comp *Compositor

	added   func(*Compositor, *Device[D])
	removed func(*Compositor, *Device[D])
	wire    func(*Compositor, *Device[D]) error

	mu      sync.RWMutex
	devices []*Device[D]

	signals listener.Set
}

// InputManager tracks input devices.
type InputManager = DeviceManager[*backend.InputDevice]

// OutputManager tracks outputs.
type OutputManager = DeviceManager[*backend.Output]

func newInputManager(c *Compositor, h InputHandler) *InputManager {
	return &InputManager{
		kind:    "input",
		comp:    c,
		added:   h.InputAdded,
		removed: h.InputRemoved,
		wire:    wireInput(h),
	}
}

func newOutputManager(c *Compositor, h OutputHandler) *OutputManager {
	return &OutputManager{
		kind:    "output",
		comp:    c,
		added:   h.OutputAdded,
		removed: h.OutputRemoved,
		wire:    wireOutput(h),
	}
}

// listen subscribes the manager to a backend's add and remove signals.
func (m *DeviceManager[D]) listen(add, remove *listener.Signal[D]) error {
	if _, err := listener.Attach(&m.signals, add, m.add); err != nil {
		return fmt.Errorf("failed to listen for %s add: %w", m.kind, err)
	}
	if _, err := listener.Attach(&m.signals, remove, m.remove); err != nil {
		m.signals.RemoveAll()
		return fmt.Errorf("failed to listen for %s remove: %w", m.kind, err)
	}
	return nil
}

func (m *DeviceManager[D]) add(native D) {
	if m.Find(native) != nil {
		logger.Debugf("Ignoring duplicate %s add for %v", m.kind, native)
		return
	}

	dev := &Device[D]{native: native}
	if err := m.wire(m.comp, dev); err != nil {
		dev.listeners.RemoveAll()
		logger.Errorf("Failed to wire %s %v: %v", m.kind, native, err)
		return
	}
	m.added(m.comp, dev)

	m.mu.Lock()
	m.devices = append(m.devices, dev)
	m.mu.Unlock()
	logger.Debugf("Added %s %v", m.kind, native)
}

func (m *DeviceManager[D]) remove(native D) {
	dev := m.Find(native)
	if dev == nil {
		logger.Debugf("Ignoring remove of unknown %s %v", m.kind, native)
		return
	}

	m.removed(m.comp, dev)
	dev.listeners.RemoveAll()

	m.mu.Lock()
	for i, cur := range m.devices {
		if cur == dev {
			m.devices = append(m.devices[:i], m.devices[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	logger.Debugf("Removed %s %v", m.kind, native)
}

// Devices returns the attached devices in the order they were added.
func (m *DeviceManager[D]) Devices() []*Device[D] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Device[D](nil), m.devices...)
}

// Len returns the number of attached devices.
func (m *DeviceManager[D]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// Find returns the entry for native, or nil.
func (m *DeviceManager[D]) Find(native D) *Device[D] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, dev := range m.devices {
		if dev.native == native {
			return dev
		}
	}
	return nil
}

// destroy stops listening to the backend and detaches every device's
// listeners without calling the handler.
func (m *DeviceManager[D]) destroy() {
	m.signals.RemoveAll()

	m.mu.Lock()
	devices := m.devices
	m.devices = nil
	m.mu.Unlock()

	for _, dev := range devices {
		dev.listeners.RemoveAll()
	}
}
