package wayland

import (
	"testing"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/listener"
)

type queue struct{ fns []func() }

func (q *queue) Post(fn func()) { q.fns = append(q.fns, fn) }

func (q *queue) drain() {
	for len(q.fns) > 0 {
		fn := q.fns[0]
		q.fns = q.fns[1:]
		fn()
	}
}

type recorder struct{ calls []string }

func record(t *testing.T, b *Backend) *recorder {
	t.Helper()
	r := &recorder{}
	ev := b.Events()
	_, err := listener.Register(ev.OutputAdd, func(o *backend.Output) { r.calls = append(r.calls, "+"+o.Name) })
	require.NoError(t, err)
	_, err = listener.Register(ev.OutputRemove, func(o *backend.Output) { r.calls = append(r.calls, "-"+o.Name) })
	require.NoError(t, err)
	_, err = listener.Register(ev.InputAdd, func(d *backend.InputDevice) { r.calls = append(r.calls, "+"+d.Name) })
	require.NoError(t, err)
	_, err = listener.Register(ev.InputRemove, func(d *backend.InputDevice) { r.calls = append(r.calls, "-"+d.Name) })
	require.NoError(t, err)
	return r
}

const pointerAndKeyboard = uint32(client.SeatCapabilityPointer) | uint32(client.SeatCapabilityKeyboard)

func TestNewFailsWithoutHost(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	_, err := New(&queue{}, backend.Options{WaylandDisplay: "wayland-missing"})
	assert.Error(t, err)

	_, err = New(nil, backend.Options{})
	assert.Error(t, err)
}

func TestStartAnnouncesCollectedGlobals(t *testing.T) {
	b := newBackend(&queue{})
	r := record(t, b)

	ho := &hostOutput{global: 3, version: 4, native: backend.NewOutput("WL-3", 0, 0)}
	b.addOutput(ho)
	b.applyMode(ho, 1920, 1080, 60000)
	ho.native.Name = "DP-2"
	b.announceOutput(ho)

	hs := &hostSeat{global: 7, name: "seat0"}
	b.addSeat(hs)
	b.applyCapabilities(hs, pointerAndKeyboard)

	assert.Empty(t, r.calls, "nothing is announced before Start")

	require.NoError(t, b.Start())
	assert.Equal(t, []string{"+DP-2", "+seat0-pointer", "+seat0-keyboard"}, r.calls)
	assert.Equal(t, int32(1920), b.Outputs()[0].Width)
	assert.Error(t, b.Start())
}

func TestModeAfterAnnounce(t *testing.T) {
	b := newBackend(&queue{})
	require.NoError(t, b.Start())
	r := record(t, b)

	v1 := &hostOutput{global: 1, version: 1, native: backend.NewOutput("WL-1", 0, 0)}
	b.addOutput(v1)
	b.applyMode(v1, 800, 600, 60000)
	assert.Equal(t, []string{"+WL-1"}, r.calls, "version 1 outputs are announced by their first mode")

	modes := 0
	_, err := listener.Register(v1.native.Mode, func(*backend.Output) { modes++ })
	require.NoError(t, err)
	b.applyMode(v1, 1024, 768, 60000)
	assert.Equal(t, 1, modes)
	assert.Equal(t, int32(1024), v1.native.Width)

	v4 := &hostOutput{global: 2, version: 4, native: backend.NewOutput("WL-2", 0, 0)}
	b.addOutput(v4)
	b.announceOutput(v4)
	assert.Len(t, r.calls, 1, "outputs without a mode are held back")
}

func TestCapabilityChanges(t *testing.T) {
	b := newBackend(&queue{})
	require.NoError(t, b.Start())
	r := record(t, b)

	hs := &hostSeat{global: 9, name: "seat0"}
	b.addSeat(hs)
	b.applyCapabilities(hs, uint32(client.SeatCapabilityPointer))
	ptr := hs.pointer
	require.NotNil(t, ptr)

	var destroyed bool
	_, err := listener.Register(ptr.Destroy, func(*backend.InputDevice) { destroyed = true })
	require.NoError(t, err)

	b.applyCapabilities(hs, uint32(client.SeatCapabilityKeyboard))
	assert.True(t, destroyed)
	assert.Nil(t, hs.pointer)
	assert.Equal(t, []string{"+seat0-pointer", "-seat0-pointer", "+seat0-keyboard"}, r.calls)

	b.removeGlobal(9)
	assert.Equal(t, "-seat0-keyboard", r.calls[len(r.calls)-1])
	b.removeGlobal(9)
	assert.Len(t, r.calls, 4, "unknown globals are ignored")
}

func TestRunPostsAfterStart(t *testing.T) {
	q := &queue{}
	b := newBackend(q)
	ran := 0
	b.run(func() { ran++ })
	assert.Equal(t, 1, ran)

	require.NoError(t, b.Start())
	b.run(func() { ran++ })
	assert.Equal(t, 1, ran)
	q.drain()
	assert.Equal(t, 2, ran)
}

func TestDestroyRemovesEverything(t *testing.T) {
	b := newBackend(&queue{})
	ho := &hostOutput{global: 1, version: 4, native: backend.NewOutput("WL-1", 0, 0)}
	b.addOutput(ho)
	b.applyMode(ho, 640, 480, 60000)
	hs := &hostSeat{global: 2, name: "seat0"}
	b.addSeat(hs)
	b.applyCapabilities(hs, pointerAndKeyboard)
	require.NoError(t, b.Start())

	r := record(t, b)
	var destroyed bool
	_, err := listener.Register(b.Events().Destroy, func(backend.Backend) { destroyed = true })
	require.NoError(t, err)

	b.Destroy()
	b.Destroy()
	assert.Equal(t, []string{"-seat0-pointer", "-seat0-keyboard", "-WL-1"}, r.calls)
	assert.True(t, destroyed)
	assert.Empty(t, b.Outputs())
}
