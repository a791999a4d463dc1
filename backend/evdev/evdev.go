// Package evdev is the Linux backend. Input devices are read from
// /dev/input/event* and hotplugged through an fsnotify watch on the
// directory. Outputs are the connected DRM connectors found in sysfs, which
// is polled for changes.
package evdev

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/internal/logger"
)

const Name = "evdev"

func init() {
	backend.Register(Name, func(loop backend.Dispatcher, opts backend.Options) (backend.Backend, error) {
		return New(loop, opts)
	})
}

type inputNode struct {
	path    string
	file    *evdev.InputDevice
	dev     *backend.InputDevice
	abs     *absAxes
	closing atomic.Bool
}

func (n *inputNode) close() {
	n.closing.Store(true)
	if err := n.file.File.Close(); err != nil {
		logger.Debugf("Failed to close %s: %v", n.path, err)
	}
}

// Backend reads local input devices and DRM connectors.
type Backend struct {
	loop   backend.Dispatcher
	opts   backend.Options
	events *backend.Events

	mu        sync.Mutex
	inputs    map[string]*inputNode
	outputs   map[string]*backend.Output
	watcher   *fsnotify.Watcher
	cancel    context.CancelFunc
	started   bool
	destroyed bool

	wg sync.WaitGroup
}

// New probes the input directory. It fails when no event node can be
// opened, so that autodetection moves on to another backend.
func New(loop backend.Dispatcher, opts backend.Options) (*Backend, error) {
	if loop == nil {
		return nil, errors.New("evdev backend needs an event loop")
	}
	defaults := backend.DefaultOptions()
	if opts.InputDir == "" {
		opts.InputDir = defaults.InputDir
	}
	if opts.DRMDir == "" {
		opts.DRMDir = defaults.DRMDir
	}

	paths, err := eventNodes(opts.InputDir)
	if err != nil {
		return nil, err
	}
	usable := 0
	for _, p := range paths {
		dev, err := evdev.Open(p)
		if err != nil {
			continue
		}
		usable++
		dev.File.Close()
	}
	if usable == 0 {
		return nil, fmt.Errorf("no accessible input devices in %s", opts.InputDir)
	}

	return newBackend(loop, opts), nil
}

func newBackend(loop backend.Dispatcher, opts backend.Options) *Backend {
	return &Backend{
		loop:    loop,
		opts:    opts,
		events:  backend.NewEvents(),
		inputs:  make(map[string]*inputNode),
		outputs: make(map[string]*backend.Output),
	}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Events() *backend.Events { return b.events }

func isEventNode(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "event")
}

func eventNodes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if isEventNode(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Start announces present outputs and input devices, then starts watching
// for changes.
func (b *Backend) Start() error {
	b.mu.Lock()
	if b.started || b.destroyed {
		b.mu.Unlock()
		return errors.New("evdev backend already started")
	}
	b.started = true
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.mu.Unlock()

	conns, err := readConnectors(b.opts.DRMDir)
	if err != nil {
		logger.Warnf("No DRM outputs: %v", err)
	}
	b.syncOutputs(conns)

	paths, err := eventNodes(b.opts.InputDir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		b.addInput(p)
	}

	if err := b.startWatcher(ctx); err != nil {
		logger.Warnf("Input hotplug disabled: %v", err)
	}
	if b.opts.OutputPollSeconds > 0 {
		b.wg.Add(1)
		go b.pollOutputs(ctx, time.Duration(b.opts.OutputPollSeconds)*time.Second)
	}

	logger.Infof("evdev backend started with %d inputs and %d outputs", len(b.InputDevices()), len(b.Outputs()))
	return nil
}

func (b *Backend) startWatcher(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(b.opts.InputDir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", b.opts.InputDir, err)
	}
	b.mu.Lock()
	b.watcher = w
	b.mu.Unlock()

	b.wg.Add(1)
	go b.watch(ctx, w)
	return nil
}

// watch forwards node creation and removal to the event loop. Freshly
// created nodes are often unreadable until udev fixes their permissions, so
// permission changes are treated as another chance to open them.
func (b *Backend) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !isEventNode(ev.Name) {
				continue
			}
			path := ev.Name
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Chmod):
				b.loop.Post(func() { b.addInput(path) })
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				b.loop.Post(func() { b.removeInput(path) })
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warnf("Input watcher error: %v", err)
		}
	}
}

func (b *Backend) pollOutputs(ctx context.Context, interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conns, err := readConnectors(b.opts.DRMDir)
			if err != nil {
				logger.Debugf("DRM poll failed: %v", err)
				continue
			}
			b.loop.Post(func() { b.syncOutputs(conns) })
		}
	}
}

// addInput opens and announces the device at path. Runs on the event loop.
func (b *Backend) addInput(path string) {
	b.mu.Lock()
	_, known := b.inputs[path]
	destroyed := b.destroyed
	b.mu.Unlock()
	if known || destroyed {
		return
	}

	file, err := evdev.Open(path)
	if err != nil {
		logger.Debugf("Cannot open input device %s: %v", path, err)
		return
	}
	typ, ok := classify(file.Capabilities)
	if !ok {
		logger.Debugf("Ignoring %s (%s): no pointer or keyboard capabilities", path, file.Name)
		file.File.Close()
		return
	}

	dev := backend.NewInputDevice(file.Name, typ)
	dev.Vendor = uint32(file.Vendor)
	dev.Product = uint32(file.Product)
	n := &inputNode{path: path, file: file, dev: dev}
	if typ == backend.DevicePointer {
		n.abs = readAbsAxes(file.File)
	}

	b.mu.Lock()
	b.inputs[path] = n
	b.mu.Unlock()

	logger.Infof("Added input device %s (%s) at %s", dev.Name, typ, path)
	b.events.InputAdd.Emit(dev)

	b.wg.Add(1)
	go b.read(n)
}

// read decodes events of one device until its file is closed.
func (b *Backend) read(n *inputNode) {
	defer b.wg.Done()
	dec := newAbsDecoder(n.dev, n.abs)
	for {
		evs, err := n.file.Read()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if !n.closing.Load() {
				logger.Debugf("Stopped reading %s: %v", n.path, err)
				b.loop.Post(func() { b.removeInput(n.path) })
			}
			return
		}

		var batch []any
		for _, ev := range evs {
			batch = append(batch, dec.decode(ev)...)
		}
		if len(batch) == 0 {
			continue
		}
		b.loop.Post(func() {
			b.mu.Lock()
			current := b.inputs[n.path] == n
			b.mu.Unlock()
			if !current {
				return
			}
			for _, p := range batch {
				emit(n.dev, p)
			}
		})
	}
}

// removeInput unplugs the device at path. Runs on the event loop.
func (b *Backend) removeInput(path string) {
	b.mu.Lock()
	n, ok := b.inputs[path]
	delete(b.inputs, path)
	b.mu.Unlock()
	if !ok {
		return
	}

	n.close()
	logger.Infof("Removed input device %s at %s", n.dev.Name, path)
	b.events.InputRemove.Emit(n.dev)
	n.dev.Destroy.Emit(n.dev)
}

// syncOutputs reconciles the outputs with the connected connectors. Runs on
// the event loop.
func (b *Backend) syncOutputs(conns []connector) {
	seen := make(map[string]bool, len(conns))
	var added []*backend.Output

	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	var changed []*backend.Output
	var modes [][2]int32
	for _, c := range conns {
		if !c.Connected || c.Width <= 0 || c.Height <= 0 {
			continue
		}
		seen[c.Key] = true
		if o, ok := b.outputs[c.Key]; ok {
			changed = append(changed, o)
			modes = append(modes, [2]int32{c.Width, c.Height})
			continue
		}
		o := backend.NewOutput(c.Name, c.Width, c.Height)
		o.Make = "drm"
		o.Refresh = defaultRefresh
		b.outputs[c.Key] = o
		added = append(added, o)
	}
	var removed []*backend.Output
	for key, o := range b.outputs {
		if !seen[key] {
			delete(b.outputs, key)
			removed = append(removed, o)
		}
	}
	b.mu.Unlock()

	sort.Slice(removed, func(i, j int) bool { return removed[i].Name < removed[j].Name })
	for _, o := range removed {
		logger.Infof("Output %s disconnected", o.Name)
		b.events.OutputRemove.Emit(o)
		o.Destroy.Emit(o)
	}
	for i, o := range changed {
		o.SetMode(modes[i][0], modes[i][1], o.Refresh)
	}
	for _, o := range added {
		logger.Infof("Output %s connected (%dx%d)", o.Name, o.Width, o.Height)
		b.events.OutputAdd.Emit(o)
	}
}

// Outputs returns the connected outputs sorted by name.
func (b *Backend) Outputs() []*backend.Output {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*backend.Output, 0, len(b.outputs))
	for _, o := range b.outputs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// InputDevices returns the open input devices sorted by node path.
func (b *Backend) InputDevices() []*backend.InputDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	paths := make([]string, 0, len(b.inputs))
	for p := range b.inputs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]*backend.InputDevice, 0, len(paths))
	for _, p := range paths {
		out = append(out, b.inputs[p].dev)
	}
	return out
}

// Destroy stops every goroutine, closes the devices and announces their
// removal.
func (b *Backend) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	cancel, w := b.cancel, b.watcher
	paths := make([]string, 0, len(b.inputs))
	for p := range b.inputs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	inputs := make([]*inputNode, 0, len(paths))
	for _, p := range paths {
		inputs = append(inputs, b.inputs[p])
	}
	b.inputs = make(map[string]*inputNode)
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if w != nil {
		w.Close()
	}
	for _, n := range inputs {
		n.close()
	}
	b.wg.Wait()

	for _, n := range inputs {
		b.events.InputRemove.Emit(n.dev)
		n.dev.Destroy.Emit(n.dev)
	}

	b.mu.Lock()
	outputs := make([]*backend.Output, 0, len(b.outputs))
	for _, o := range b.outputs {
		outputs = append(outputs, o)
	}
	b.outputs = make(map[string]*backend.Output)
	b.mu.Unlock()
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Name < outputs[j].Name })
	for _, o := range outputs {
		b.events.OutputRemove.Emit(o)
		o.Destroy.Emit(o)
	}

	b.events.Destroy.Emit(b)
	logger.Debug("evdev backend destroyed")
}
