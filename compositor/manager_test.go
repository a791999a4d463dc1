package compositor

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/listener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutputManager(t *testing.T) (*OutputManager, *backend.Events) {
	t.Helper()
	ev := backend.NewEvents()
	m := newOutputManager(nil, NopOutputHandler{})
	require.NoError(t, m.listen(ev.OutputAdd, ev.OutputRemove))
	return m, ev
}

// Whatever order add and remove signals arrive in, the manager holds the
// added minus the removed devices in first-added order.
func TestDeviceManagerTracksSignals(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			m, ev := newTestOutputManager(t)
			defer m.destroy()

			pool := make([]*backend.Output, 8)
			for i := range pool {
				pool[i] = backend.NewOutput(fmt.Sprintf("OUT-%d", i), 100, 100)
			}

			var want []*backend.Output
			contains := func(o *backend.Output) int {
				for i, cur := range want {
					if cur == o {
						return i
					}
				}
				return -1
			}

			for step := 0; step < 200; step++ {
				o := pool[rng.Intn(len(pool))]
				if rng.Intn(2) == 0 {
					ev.OutputAdd.Emit(o)
					if contains(o) < 0 {
						want = append(want, o)
					}
				} else {
					ev.OutputRemove.Emit(o)
					if i := contains(o); i >= 0 {
						want = append(want[:i], want[i+1:]...)
					}
				}

				got := m.Devices()
				require.Len(t, got, len(want), "step %d", step)
				for i := range want {
					require.Same(t, want[i], got[i].Native(), "step %d index %d", step, i)
				}
			}
		})
	}
}

type modeCounter struct {
	NopOutputHandler
	modes int
}

func (h *modeCounter) OutputMode(*Compositor, *Output) { h.modes++ }

func TestDeviceManagerDestroy(t *testing.T) {
	ev := backend.NewEvents()
	h := &modeCounter{}
	m := newOutputManager(nil, h)
	require.NoError(t, m.listen(ev.OutputAdd, ev.OutputRemove))

	o := backend.NewOutput("A", 10, 10)
	ev.OutputAdd.Emit(o)
	require.Equal(t, 1, o.Mode.Len())
	require.Equal(t, 1, m.Find(o).Listeners())

	m.destroy()
	assert.Zero(t, ev.OutputAdd.Len())
	assert.Zero(t, ev.OutputRemove.Len())
	assert.Zero(t, o.Mode.Len())
	assert.Zero(t, m.Len())

	o.SetMode(20, 20, 0)
	assert.Zero(t, h.modes)
}

func TestDeviceManagerListenNilSignal(t *testing.T) {
	ev := backend.NewEvents()
	m := newOutputManager(nil, NopOutputHandler{})

	err := m.listen(ev.OutputAdd, nil)
	assert.ErrorIs(t, err, listener.ErrNilSignal)
	assert.Zero(t, ev.OutputAdd.Len(), "a failed listen leaves nothing attached")
}
