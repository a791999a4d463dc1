package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRemoveRoundTrip(t *testing.T) {
	sig := NewSignal[int]()
	_, err := Register(sig, func(int) {})
	require.NoError(t, err)
	before := sig.Len()

	l, err := Register(sig, func(int) {})
	require.NoError(t, err)
	assert.Equal(t, before+1, sig.Len())

	l.Remove()
	assert.Equal(t, before, sig.Len())
	assert.False(t, l.Attached())
}

func TestRegisterNilSignal(t *testing.T) {
	var sig *Signal[string]
	l, err := Register(sig, func(string) {})
	assert.ErrorIs(t, err, ErrNilSignal)
	assert.Nil(t, l)
}

func TestEmitOrder(t *testing.T) {
	sig := NewSignal[int]()
	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		_, err := Register(sig, func(v int) {
			got = append(got, name)
		})
		require.NoError(t, err)
	}

	sig.Emit(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestRemoveDuringEmit(t *testing.T) {
	sig := NewSignal[int]()
	var second *Listener[int]
	calls := map[string]int{}

	_, err := Register(sig, func(int) {
		calls["first"]++
		second.Remove()
	})
	require.NoError(t, err)
	second, err = Register(sig, func(int) {
		calls["second"]++
	})
	require.NoError(t, err)

	sig.Emit(0)
	assert.Equal(t, 1, calls["first"])
	assert.Equal(t, 0, calls["second"])
	assert.Equal(t, 1, sig.Len())
}

func TestAddDuringEmitNotCalledUntilNextRound(t *testing.T) {
	sig := NewSignal[int]()
	late := 0
	added := false
	_, err := Register(sig, func(int) {
		if added {
			return
		}
		added = true
		_, err := Register(sig, func(int) { late++ })
		require.NoError(t, err)
	})
	require.NoError(t, err)

	sig.Emit(0)
	assert.Equal(t, 0, late)
	sig.Emit(0)
	assert.Equal(t, 1, late)
}

func TestRemoveIsIdempotent(t *testing.T) {
	sig := NewSignal[int]()
	l, err := Register(sig, func(int) {})
	require.NoError(t, err)

	l.Remove()
	l.Remove()
	assert.Equal(t, 0, sig.Len())

	var nilListener *Listener[int]
	assert.NotPanics(t, nilListener.Remove)
}

func TestSetRemoveAll(t *testing.T) {
	ints := NewSignal[int]()
	strs := NewSignal[string]()
	var set Set

	_, err := Attach(&set, ints, func(int) {})
	require.NoError(t, err)
	_, err = Attach(&set, strs, func(string) {})
	require.NoError(t, err)
	_, err = Attach(&set, ints, func(int) {})
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, 2, ints.Len())
	assert.Equal(t, 1, strs.Len())

	set.RemoveAll()
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, 0, ints.Len())
	assert.Equal(t, 0, strs.Len())
}

func TestAttachNilSignalLeavesSetEmpty(t *testing.T) {
	var set Set
	_, err := Attach[int](&set, nil, func(int) {})
	assert.ErrorIs(t, err, ErrNilSignal)
	assert.Equal(t, 0, set.Len())
}
