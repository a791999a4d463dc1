// Package backend describes the native layer a compositor sits on: the
// hardware (or host) backend that discovers input and output devices and
// emits their events.
//
// Backends never call application code directly. They emit on the signals
// exposed through Events, InputDevice and Output, and every emission happens
// on the event loop goroutine (backends with their own I/O goroutines hand
// their work to the loop through a Dispatcher).
package backend

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/listener"
)

// Backend is a source of input and output devices.
type Backend interface {
	// Name identifies the backend implementation ("headless", "evdev", ...).
	Name() string

	// Events returns the signals the backend emits on.
	Events() *Events

	// Start begins device discovery. Add signals for devices that are
	// already present are emitted before Start returns.
	Start() error

	// Destroy releases every resource held by the backend. Removal and
	// destroy signals are emitted for devices still present.
	Destroy()
}

// Events holds the backend level signals.
type Events struct {
	InputAdd     *listener.Signal[*InputDevice]
	InputRemove  *listener.Signal[*InputDevice]
	OutputAdd    *listener.Signal[*Output]
	OutputRemove *listener.Signal[*Output]
	Destroy      *listener.Signal[Backend]
}

// NewEvents allocates every backend signal.
func NewEvents() *Events {
	return &Events{
		InputAdd:     listener.NewSignal[*InputDevice](),
		InputRemove:  listener.NewSignal[*InputDevice](),
		OutputAdd:    listener.NewSignal[*Output](),
		OutputRemove: listener.NewSignal[*Output](),
		Destroy:      listener.NewSignal[Backend](),
	}
}

// Dispatcher runs functions on the event loop goroutine.
type Dispatcher interface {
	Post(fn func())
}

// OutputSpec describes an output a backend should create up front.
type OutputSpec struct {
	Name   string  `mapstructure:"name"`
	Width  int32   `mapstructure:"width"`
	Height int32   `mapstructure:"height"`
	Scale  float64 `mapstructure:"scale"`
}

// Options configures backend creation.
type Options struct {
	// Type selects a backend by name, or "auto" to probe.
	Type string

	// InputDir is scanned for evdev nodes.
	InputDir string

	// DRMDir is scanned for DRM connectors.
	DRMDir string

	// OutputPollSeconds is the DRM connector polling interval.
	OutputPollSeconds int

	// HeadlessOutputs are created by the headless backend at creation time.
	HeadlessOutputs []OutputSpec

	// WaylandDisplay names the host compositor socket for the nested
	// backend. Empty means $WAYLAND_DISPLAY.
	WaylandDisplay string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Type:              "auto",
		InputDir:          "/dev/input",
		DRMDir:            "/sys/class/drm",
		OutputPollSeconds: 2,
	}
}

// Factory creates a backend bound to an event loop.
type Factory func(loop Dispatcher, opts Options) (Backend, error)

// ErrNoBackend is returned by Autocreate when no backend could be created.
var ErrNoBackend = errors.New("no suitable backend available")

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// autoOrder is the probing order used for Type "auto".
var autoOrder = []string{"wayland", "evdev", "headless"}

// Register makes a backend available to Autocreate under name.
// Registering the same name twice replaces the earlier factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Registered returns the names of all registered backends, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Autocreate picks and creates a backend.
//
// With an explicit Type only that backend is tried. With "auto" (or an
// empty Type) the nested Wayland backend is tried when a host compositor is
// advertised, then evdev, then headless.
func Autocreate(loop Dispatcher, opts Options) (Backend, error) {
	if opts.Type != "" && opts.Type != "auto" {
		f, ok := lookup(opts.Type)
		if !ok {
			return nil, fmt.Errorf("unknown backend %q (registered: %v)", opts.Type, Registered())
		}
		b, err := f(loop, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s backend: %w", opts.Type, err)
		}
		return b, nil
	}

	var errs []error
	for _, name := range autoOrder {
		if name == "wayland" && opts.WaylandDisplay == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			continue
		}
		f, ok := lookup(name)
		if !ok {
			continue
		}

		logger.Debugf("Autocreate: trying backend %s", name)
		b, err := f(loop, opts)
		if err == nil {
			logger.Debugf("Autocreate: using backend %s", name)
			return b, nil
		}
		logger.Debugf("Autocreate: backend %s failed: %v", name, err)
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}

	if len(errs) == 0 {
		return nil, ErrNoBackend
	}
	return nil, fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
}
