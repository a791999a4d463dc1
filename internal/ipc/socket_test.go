package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	mu         sync.Mutex
	terminated int
	outputs    []string
	statusErr  error
}

func (h *fakeHandler) Status(context.Context) (*Status, error) {
	if h.statusErr != nil {
		return nil, h.statusErr
	}
	return &Status{Running: true, Socket: "wayland-0", Backend: "headless"}, nil
}

func (h *fakeHandler) Terminate(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminated++
	return nil
}

func (h *fakeHandler) Screenshot(_ context.Context, output string) (*Screenshot, error) {
	h.mu.Lock()
	h.outputs = append(h.outputs, output)
	h.mu.Unlock()
	if output == "missing" {
		return nil, errors.New("no output named missing")
	}
	return &Screenshot{Output: "HEADLESS-1", Width: 1, Height: 1, PNG: []byte("png")}, nil
}

func startServer(t *testing.T, h Handler) (*SocketServer, *Client) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wlcore.sock")
	s := NewSocketServer(path, h)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s, NewClient(path, time.Second)
}

func TestClientServerRoundTrip(t *testing.T) {
	h := &fakeHandler{}
	_, c := startServer(t, h)

	status, err := c.Status()
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, "headless", status.Backend)
	assert.True(t, c.IsRunning())

	shot, err := c.Screenshot("")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), shot.PNG)

	_, err = c.Screenshot("missing")
	assert.ErrorContains(t, err, "no output named missing")

	require.NoError(t, c.Terminate())
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, 1, h.terminated)
	assert.Equal(t, []string{"", "missing"}, h.outputs)
}

func TestHandlerErrorsReachClient(t *testing.T) {
	_, c := startServer(t, &fakeHandler{statusErr: errors.New("loop stopped")})
	_, err := c.Status()
	assert.ErrorContains(t, err, "loop stopped")
	assert.False(t, c.IsRunning())
}

func TestUnknownMessageType(t *testing.T) {
	s, _ := startServer(t, &fakeHandler{})

	conn, err := net.Dial("unix", s.SocketPath())
	require.NoError(t, err)
	defer conn.Close()

	msg, err := newMessage("reboot", nil)
	require.NoError(t, err)
	require.NoError(t, writeMessage(conn, msg))
	resp, err := readMessage(conn)
	require.NoError(t, err)

	text, err := GetError(resp)
	require.NoError(t, err)
	assert.Contains(t, text, "reboot")

	// The connection stays usable for further requests.
	status, err := NewStatusMessage()
	require.NoError(t, err)
	require.NoError(t, writeMessage(conn, status))
	resp, err = readMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, TypeStatusResponse, MessageType(resp))
}

func TestClientWithoutServer(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "none.sock"), 0)
	_, err := c.Status()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, c.IsRunning())
}

func TestSocketServerLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "wlcore.sock")
	s := NewSocketServer(path, &fakeHandler{})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "starting twice is a no-op")
	_, err := os.Stat(path)
	require.NoError(t, err)

	other := NewSocketServer(path, &fakeHandler{})
	assert.Error(t, other.Start(), "a live socket is not stolen")

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop took too long")
	}

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	s.Stop()
}

func TestStopClosesIdleConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wlcore.sock")
	s := NewSocketServer(path, &fakeHandler{})
	require.NoError(t, s.Start())

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("an idle client kept the server alive")
	}
}

func TestStaleSocketFileIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wlcore.sock")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	s := NewSocketServer(path, &fakeHandler{})
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.True(t, NewClient(path, time.Second).IsRunning())
}
