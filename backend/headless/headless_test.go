package headless

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/listener"
)

type queue []func()

func (q *queue) Post(fn func()) { *q = append(*q, fn) }

func (q *queue) drain() {
	for len(*q) > 0 {
		fn := (*q)[0]
		*q = (*q)[1:]
		fn()
	}
}

type log []string

func watch(t *testing.T, b *Backend) *log {
	t.Helper()
	l := &log{}
	ev := b.Events()
	for _, err := range []error{
		register(ev.OutputAdd, func(o *backend.Output) { *l = append(*l, "+"+o.Name) }),
		register(ev.OutputRemove, func(o *backend.Output) { *l = append(*l, "-"+o.Name) }),
		register(ev.InputAdd, func(d *backend.InputDevice) { *l = append(*l, "+"+d.Name) }),
		register(ev.InputRemove, func(d *backend.InputDevice) { *l = append(*l, "-"+d.Name) }),
		register(ev.Destroy, func(backend.Backend) { *l = append(*l, "destroy") }),
	} {
		require.NoError(t, err)
	}
	return l
}

func register[T any](sig *listener.Signal[T], fn func(T)) error {
	_, err := listener.Register(sig, fn)
	return err
}

func TestDevicesBeforeStartAreAnnouncedOnStart(t *testing.T) {
	b := New(&queue{}, backend.Options{HeadlessOutputs: []backend.OutputSpec{
		{Name: "LEFT", Width: 800, Height: 600, Scale: 2},
		{Width: 640, Height: 480},
	}})
	l := watch(t, b)
	b.AddInputDevice("mouse", backend.DevicePointer)
	assert.Empty(t, *l)

	outs := b.Outputs()
	require.Len(t, outs, 2)
	assert.Equal(t, "LEFT", outs[0].Name)
	assert.Equal(t, 2.0, outs[0].Scale)
	assert.Equal(t, "HEADLESS-2", outs[1].Name)
	assert.Equal(t, int32(60000), outs[1].Refresh)

	require.NoError(t, b.Start())
	assert.True(t, b.Started())
	assert.Equal(t, log{"+LEFT", "+HEADLESS-2", "+mouse"}, *l)
	assert.Error(t, b.Start(), "starting twice fails")
}

func TestHotplugAfterStart(t *testing.T) {
	b := New(&queue{}, backend.Options{})
	l := watch(t, b)
	require.NoError(t, b.Start())

	o := b.AddOutput(1024, 768)
	kbd := b.AddInputDevice("kbd", backend.DeviceKeyboard)

	destroyed := 0
	_, err := listener.Register(o.Destroy, func(*backend.Output) { destroyed++ })
	require.NoError(t, err)

	b.RemoveOutput(o)
	b.RemoveOutput(o)
	b.RemoveInputDevice(kbd)
	assert.Equal(t, log{"+HEADLESS-1", "+kbd", "-HEADLESS-1", "-kbd"}, *l)
	assert.Equal(t, 1, destroyed, "removing an unknown output is ignored")
	assert.Empty(t, b.Outputs())
}

func TestPostVariantsRunOnTheLoop(t *testing.T) {
	q := &queue{}
	b := New(q, backend.Options{})
	l := watch(t, b)
	require.NoError(t, b.Start())

	b.PostAddOutput(320, 200)
	b.PostAddInputDevice("mouse", backend.DevicePointer)
	assert.Empty(t, *l)
	q.drain()
	assert.Equal(t, log{"+HEADLESS-1", "+mouse"}, *l)
}

func TestDestroyUnplugsEverything(t *testing.T) {
	b := New(&queue{}, backend.Options{})
	l := watch(t, b)
	b.AddOutput(100, 100)
	b.AddInputDevice("mouse", backend.DevicePointer)
	require.NoError(t, b.Start())
	*l = nil

	b.Destroy()
	b.Destroy()
	assert.True(t, b.Destroyed())
	assert.Equal(t, log{"-mouse", "-HEADLESS-1", "destroy"}, *l)
}

func TestStartErr(t *testing.T) {
	b := New(&queue{}, backend.Options{})
	b.StartErr = assert.AnError
	assert.ErrorIs(t, b.Start(), assert.AnError)
	assert.False(t, b.Started())
}

func TestAutocreateByName(t *testing.T) {
	b, err := backend.Autocreate(&queue{}, backend.Options{Type: Name})
	require.NoError(t, err)
	assert.Equal(t, Name, b.Name())
	assert.IsType(t, &Backend{}, b)

	_, err = backend.Autocreate(&queue{}, backend.Options{Type: "x11"})
	assert.ErrorContains(t, err, "unknown backend")
}
