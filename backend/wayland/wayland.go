// Package wayland runs the compositor nested in a host Wayland session. The
// host's wl_output globals become outputs and the capabilities of its seats
// become input devices.
package wayland

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rajveermalviya/go-wayland/wayland/client"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/internal/logger"
)

const Name = "wayland"

const (
	maxOutputVersion = 4
	maxSeatVersion   = 5
)

func init() {
	backend.Register(Name, func(loop backend.Dispatcher, opts backend.Options) (backend.Backend, error) {
		return New(loop, opts)
	})
}

type hostOutput struct {
	global    uint32
	version   uint32
	wl        *client.Output
	native    *backend.Output
	announced bool
}

type hostSeat struct {
	global   uint32
	wl       *client.Seat
	name     string
	pointer  *backend.InputDevice
	keyboard *backend.InputDevice
}

// Backend mirrors the globals of a host compositor.
type Backend struct {
	loop   backend.Dispatcher
	events *backend.Events

	display  *client.Display
	ctx      *client.Context
	registry *client.Registry

	mu        sync.Mutex
	started   bool
	destroyed bool
	outputs   map[uint32]*hostOutput
	seats     map[uint32]*hostSeat
	done      chan struct{}
}

// New connects to the host display named by opts.WaylandDisplay, or
// WAYLAND_DISPLAY when empty, and collects its initial globals.
func New(loop backend.Dispatcher, opts backend.Options) (*Backend, error) {
	if loop == nil {
		return nil, errors.New("wayland backend needs an event loop")
	}
	display, err := client.Connect(opts.WaylandDisplay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host display: %w", err)
	}

	b := newBackend(loop)
	b.display = display
	b.ctx = display.Context()

	registry, err := display.GetRegistry()
	if err != nil {
		b.ctx.Close()
		return nil, fmt.Errorf("failed to get registry: %w", err)
	}
	b.registry = registry
	registry.SetGlobalHandler(b.handleGlobal)
	registry.SetGlobalRemoveHandler(func(e client.RegistryGlobalRemoveEvent) {
		b.run(func() { b.removeGlobal(e.Name) })
	})

	// One roundtrip for the globals, one for the events of bound objects.
	for i := 0; i < 2; i++ {
		if err := b.roundtrip(); err != nil {
			b.ctx.Close()
			return nil, fmt.Errorf("host roundtrip failed: %w", err)
		}
	}

	logger.Debugf("Connected to host display with %d outputs and %d seats", len(b.outputs), len(b.seats))
	return b, nil
}

func newBackend(loop backend.Dispatcher) *Backend {
	return &Backend{
		loop:    loop,
		events:  backend.NewEvents(),
		outputs: make(map[uint32]*hostOutput),
		seats:   make(map[uint32]*hostSeat),
		done:    make(chan struct{}),
	}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Events() *backend.Events { return b.events }

func (b *Backend) roundtrip() error {
	cb, err := b.display.Sync()
	if err != nil {
		return err
	}
	done := false
	cb.SetDoneHandler(func(client.CallbackDoneEvent) { done = true })
	for !done {
		if err := b.ctx.Dispatch(); err != nil {
			return err
		}
	}
	return nil
}

// run applies fn directly while the backend is being set up and through the
// event loop once started, so that signals are always emitted from the
// loop.
func (b *Backend) run(fn func()) {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if started {
		b.loop.Post(fn)
		return
	}
	fn()
}

func (b *Backend) handleGlobal(e client.RegistryGlobalEvent) {
	switch e.Interface {
	case "wl_output":
		version := min(e.Version, maxOutputVersion)
		wl := client.NewOutput(b.ctx)
		if err := b.registry.Bind(e.Name, e.Interface, version, wl); err != nil {
			logger.Warnf("Failed to bind host output %d: %v", e.Name, err)
			return
		}
		ho := &hostOutput{
			global:  e.Name,
			version: version,
			wl:      wl,
			native:  backend.NewOutput(fmt.Sprintf("WL-%d", e.Name), 0, 0),
		}
		b.watchOutput(ho)
		b.run(func() { b.addOutput(ho) })

	case "wl_seat":
		wl := client.NewSeat(b.ctx)
		if err := b.registry.Bind(e.Name, e.Interface, min(e.Version, maxSeatVersion), wl); err != nil {
			logger.Warnf("Failed to bind host seat %d: %v", e.Name, err)
			return
		}
		hs := &hostSeat{global: e.Name, wl: wl, name: fmt.Sprintf("seat%d", e.Name)}
		wl.SetNameHandler(func(ev client.SeatNameEvent) {
			b.run(func() { hs.name = ev.Name })
		})
		wl.SetCapabilitiesHandler(func(ev client.SeatCapabilitiesEvent) {
			b.run(func() { b.applyCapabilities(hs, ev.Capabilities) })
		})
		b.run(func() { b.addSeat(hs) })
	}
}

func (b *Backend) watchOutput(ho *hostOutput) {
	ho.wl.SetGeometryHandler(func(e client.OutputGeometryEvent) {
		b.run(func() {
			ho.native.Make = e.Make
			ho.native.Model = e.Model
		})
	})
	ho.wl.SetModeHandler(func(e client.OutputModeEvent) {
		if e.Flags&uint32(client.OutputModeCurrent) == 0 {
			return
		}
		b.run(func() { b.applyMode(ho, e.Width, e.Height, e.Refresh) })
	})
	ho.wl.SetScaleHandler(func(e client.OutputScaleEvent) {
		b.run(func() { ho.native.SetScale(float64(e.Factor)) })
	})
	ho.wl.SetNameHandler(func(e client.OutputNameEvent) {
		b.run(func() {
			if !ho.announced {
				ho.native.Name = e.Name
			}
		})
	})
	ho.wl.SetDoneHandler(func(client.OutputDoneEvent) {
		b.run(func() { b.announceOutput(ho) })
	})
}

func (b *Backend) addOutput(ho *hostOutput) {
	b.mu.Lock()
	b.outputs[ho.global] = ho
	b.mu.Unlock()
}

func (b *Backend) addSeat(hs *hostSeat) {
	b.mu.Lock()
	b.seats[hs.global] = hs
	b.mu.Unlock()
}

func (b *Backend) isStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started && !b.destroyed
}

// applyMode records the current mode. Version 1 outputs never send done, so
// their first mode announces them.
func (b *Backend) applyMode(ho *hostOutput, width, height, refresh int32) {
	if !ho.announced {
		ho.native.Width, ho.native.Height, ho.native.Refresh = width, height, refresh
		if ho.version < 2 {
			b.announceOutput(ho)
		}
		return
	}
	ho.native.SetMode(width, height, refresh)
}

func (b *Backend) announceOutput(ho *hostOutput) {
	if ho.announced || !b.isStarted() || ho.native.Width <= 0 || ho.native.Height <= 0 {
		return
	}
	ho.announced = true
	logger.Infof("Host output %s (%dx%d)", ho.native.Name, ho.native.Width, ho.native.Height)
	b.events.OutputAdd.Emit(ho.native)
}

// applyCapabilities creates and removes the seat's devices to follow caps.
func (b *Backend) applyCapabilities(hs *hostSeat, caps uint32) {
	hasPointer := caps&uint32(client.SeatCapabilityPointer) != 0
	hasKeyboard := caps&uint32(client.SeatCapabilityKeyboard) != 0

	switch {
	case hasPointer && hs.pointer == nil:
		hs.pointer = backend.NewInputDevice(hs.name+"-pointer", backend.DevicePointer)
		b.announceInput(hs.pointer)
	case !hasPointer && hs.pointer != nil:
		b.dropInput(hs.pointer)
		hs.pointer = nil
	}

	switch {
	case hasKeyboard && hs.keyboard == nil:
		hs.keyboard = backend.NewInputDevice(hs.name+"-keyboard", backend.DeviceKeyboard)
		b.announceInput(hs.keyboard)
	case !hasKeyboard && hs.keyboard != nil:
		b.dropInput(hs.keyboard)
		hs.keyboard = nil
	}
}

func (b *Backend) announceInput(dev *backend.InputDevice) {
	if !b.isStarted() {
		return
	}
	logger.Infof("Host input device %s", dev.Name)
	b.events.InputAdd.Emit(dev)
}

func (b *Backend) dropInput(dev *backend.InputDevice) {
	if b.isStarted() {
		b.events.InputRemove.Emit(dev)
	}
	dev.Destroy.Emit(dev)
}

func (b *Backend) dropOutput(ho *hostOutput) {
	if ho.announced {
		b.events.OutputRemove.Emit(ho.native)
	}
	ho.native.Destroy.Emit(ho.native)
}

func (b *Backend) removeGlobal(name uint32) {
	b.mu.Lock()
	ho, isOutput := b.outputs[name]
	hs, isSeat := b.seats[name]
	delete(b.outputs, name)
	delete(b.seats, name)
	b.mu.Unlock()

	switch {
	case isOutput:
		logger.Infof("Host output %s removed", ho.native.Name)
		b.dropOutput(ho)
	case isSeat:
		b.applyCapabilities(hs, 0)
	}
}

// Start announces the host's outputs and devices, then dispatches host
// events in the background.
func (b *Backend) Start() error {
	b.mu.Lock()
	if b.started || b.destroyed {
		b.mu.Unlock()
		return errors.New("wayland backend already started")
	}
	b.started = true
	outputs, seats := b.sortedLocked()
	b.mu.Unlock()

	for _, ho := range outputs {
		b.announceOutput(ho)
	}
	for _, hs := range seats {
		for _, dev := range []*backend.InputDevice{hs.pointer, hs.keyboard} {
			if dev != nil {
				b.announceInput(dev)
			}
		}
	}

	if b.ctx != nil {
		go b.dispatch()
	} else {
		close(b.done)
	}
	return nil
}

func (b *Backend) dispatch() {
	defer close(b.done)
	for {
		if err := b.ctx.Dispatch(); err != nil {
			b.mu.Lock()
			destroyed := b.destroyed
			b.mu.Unlock()
			if !destroyed {
				logger.Errorf("Lost connection to host display: %v", err)
			}
			return
		}
	}
}

func (b *Backend) sortedLocked() ([]*hostOutput, []*hostSeat) {
	outputs := make([]*hostOutput, 0, len(b.outputs))
	for _, ho := range b.outputs {
		outputs = append(outputs, ho)
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].global < outputs[j].global })
	seats := make([]*hostSeat, 0, len(b.seats))
	for _, hs := range b.seats {
		seats = append(seats, hs)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].global < seats[j].global })
	return outputs, seats
}

// Outputs returns the outputs announced so far.
func (b *Backend) Outputs() []*backend.Output {
	b.mu.Lock()
	outputs, _ := b.sortedLocked()
	b.mu.Unlock()
	var out []*backend.Output
	for _, ho := range outputs {
		if ho.announced {
			out = append(out, ho.native)
		}
	}
	return out
}

// Destroy disconnects from the host and announces the removal of every
// device.
func (b *Backend) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	started := b.started
	outputs, seats := b.sortedLocked()
	b.outputs = make(map[uint32]*hostOutput)
	b.seats = make(map[uint32]*hostSeat)
	b.mu.Unlock()

	for _, hs := range seats {
		b.applyCapabilities(hs, 0)
	}
	for _, ho := range outputs {
		b.dropOutput(ho)
	}

	b.mu.Lock()
	b.destroyed = true
	b.mu.Unlock()

	if b.ctx != nil {
		if err := b.ctx.Close(); err != nil {
			logger.Debugf("Closing host connection: %v", err)
		}
	}
	if started {
		<-b.done
	}
	b.events.Destroy.Emit(b)
}
