package display

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/wlcore/listener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDisplay(t *testing.T) *Display {
	t.Helper()
	d, err := Create()
	require.NoError(t, err)
	t.Cleanup(d.Destroy)
	return d
}

func runDisplay(t *testing.T, d *Display) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run()
	}()
	require.Eventually(t, d.Running, time.Second, 5*time.Millisecond)
	return done
}

func TestEventLoopRunsInOrder(t *testing.T) {
	d := newTestDisplay(t)
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		d.EventLoop().Post(func() { got = append(got, i) })
	}
	d.EventLoop().Post(d.Terminate)

	d.Run()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestTerminateIsIdempotent(t *testing.T) {
	d := newTestDisplay(t)
	done := runDisplay(t, d)
	assert.False(t, d.Terminated())

	d.Terminate()
	d.Terminate()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Terminate")
	}
	assert.False(t, d.Running())
	assert.False(t, d.Terminated(), "the stop request ends with the run")
}

func TestTerminateBeforeRunIsForgotten(t *testing.T) {
	d := newTestDisplay(t)
	d.Terminate()
	assert.False(t, d.Terminated())

	done := runDisplay(t, d)
	ran := make(chan struct{})
	d.EventLoop().Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Run stopped because of a Terminate issued before it started")
	}
	select {
	case <-done:
		t.Fatal("Run returned without Terminate")
	default:
	}

	d.Terminate()
	<-done

	// The display can run again after a terminated run.
	done = runDisplay(t, d)
	d.Terminate()
	<-done
}

func TestTerminateFinishesInFlightDispatch(t *testing.T) {
	d := newTestDisplay(t)
	completed := false
	d.EventLoop().Post(func() {
		d.Terminate()
		completed = true
	})
	d.EventLoop().Post(func() {
		t.Error("dispatch after Terminate should not run")
	})

	d.Run()
	assert.True(t, completed)
	assert.Equal(t, 1, d.EventLoop().Pending())
}

func TestInvoke(t *testing.T) {
	d := newTestDisplay(t)
	done := runDisplay(t, d)

	value := 0
	err := d.EventLoop().Invoke(context.Background(), func() { value = 42 })
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	d.Terminate()
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = d.EventLoop().Invoke(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatchPending(t *testing.T) {
	d := newTestDisplay(t)
	calls := 0
	d.EventLoop().Post(func() { calls++ })
	d.EventLoop().Post(func() { calls++ })
	assert.Equal(t, 2, d.EventLoop().DispatchPending())
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, d.EventLoop().DispatchPending())
}

func TestAddSocketAutoRequiresRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	d := newTestDisplay(t)
	_, err := d.AddSocketAuto()
	assert.ErrorIs(t, err, ErrNoRuntimeDir)
}

func TestAddSocketAutoSkipsLockedNames(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	first := newTestDisplay(t)
	name, err := first.AddSocketAuto()
	require.NoError(t, err)
	assert.Equal(t, "wayland-0", name)
	assert.Equal(t, name, first.SocketName())

	second := newTestDisplay(t)
	name2, err := second.AddSocketAuto()
	require.NoError(t, err)
	assert.Equal(t, "wayland-1", name2)

	assert.FileExists(t, filepath.Join(dir, "wayland-0.lock"))
	first.Destroy()
	_, err = os.Stat(filepath.Join(dir, "wayland-0"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "wayland-0.lock"))
	assert.True(t, os.IsNotExist(err))
}

func TestClientTracking(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	d := newTestDisplay(t)
	name, err := d.AddSocketAuto()
	require.NoError(t, err)

	created := make(chan *Client, 1)
	destroyed := make(chan *Client, 1)
	_, err = listener.Register(d.Events.ClientCreated, func(c *Client) { created <- c })
	require.NoError(t, err)
	_, err = listener.Register(d.Events.ClientDestroyed, func(c *Client) { destroyed <- c })
	require.NoError(t, err)

	done := runDisplay(t, d)
	defer func() {
		d.Terminate()
		<-done
	}()

	conn, err := net.Dial("unix", filepath.Join(os.Getenv("XDG_RUNTIME_DIR"), name))
	require.NoError(t, err)

	var c *Client
	select {
	case c = <-created:
	case <-time.After(2 * time.Second):
		t.Fatal("client was not reported")
	}
	assert.Equal(t, int32(os.Getpid()), c.PID)
	assert.Equal(t, 1, d.Clients())

	require.NoError(t, conn.Close())
	select {
	case gone := <-destroyed:
		assert.Same(t, c, gone)
	case <-time.After(2 * time.Second):
		t.Fatal("client disconnect was not reported")
	}
	assert.Equal(t, 0, d.Clients())
}

func TestGlobals(t *testing.T) {
	d := newTestDisplay(t)
	g, err := d.CreateGlobal("wl_test", 2)
	require.NoError(t, err)

	_, err = d.CreateGlobal("wl_test", 1)
	assert.Error(t, err)
	assert.Len(t, d.Globals(), 1)

	g.Destroy()
	g.Destroy()
	assert.Empty(t, d.Globals())

	d.Destroy()
	_, err = d.CreateGlobal("wl_other", 1)
	assert.ErrorIs(t, err, ErrDestroyed)
}
