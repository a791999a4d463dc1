package display

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/bnema/wlcore/internal/logger"
	"golang.org/x/sys/unix"
)

// ErrNoRuntimeDir is returned when XDG_RUNTIME_DIR is not set.
var ErrNoRuntimeDir = errors.New("XDG_RUNTIME_DIR is not set")

// maxAutoSockets bounds the wayland-N names tried by AddSocketAuto.
const maxAutoSockets = 33

type socket struct {
	name     string
	path     string
	lockPath string
	lock     *os.File
	listener *net.UnixListener
}

func (s *socket) close() error {
	var errs []error
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := os.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := s.lock.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SocketName returns the name of the listening socket, or "" when none was
// added.
func (d *Display) SocketName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.socket == nil {
		return ""
	}
	return d.socket.name
}

// AddSocketAuto listens on the first free wayland-N socket in
// XDG_RUNTIME_DIR and returns its name.
func (d *Display) AddSocketAuto() (string, error) {
	if os.Getenv("XDG_RUNTIME_DIR") == "" {
		return "", ErrNoRuntimeDir
	}

	var lastErr error
	for i := 0; i < maxAutoSockets; i++ {
		name := fmt.Sprintf("wayland-%d", i)
		err := d.AddSocket(name)
		if err == nil {
			return name, nil
		}
		if errors.Is(err, ErrDestroyed) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("no free socket name in %s: %w", os.Getenv("XDG_RUNTIME_DIR"), lastErr)
}

// AddSocket listens on XDG_RUNTIME_DIR/name. A name whose lock file is held
// by another process is refused.
func (d *Display) AddSocket(name string) error {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return ErrNoRuntimeDir
	}

	d.mu.Lock()
	destroyed, hasSocket := d.destroyed, d.socket != nil
	d.mu.Unlock()
	if destroyed {
		return ErrDestroyed
	}
	if hasSocket {
		return fmt.Errorf("display already listens on a socket")
	}

	path := filepath.Join(runtimeDir, name)
	lockPath := path + ".lock"

	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0660)
	if err != nil {
		return fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lock.Close()
		return fmt.Errorf("socket %s is locked by another compositor: %w", name, err)
	}

	// Holding the lock means any socket file left behind is stale.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		lock.Close()
		return fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		lock.Close()
		return fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	ln.SetUnlinkOnClose(false)

	s := &socket{
		name:     name,
		path:     path,
		lockPath: lockPath,
		lock:     lock,
		listener: ln,
	}

	d.mu.Lock()
	d.socket = s
	d.mu.Unlock()

	go d.acceptClients(s)

	logger.Debugf("Listening for clients on %s", path)
	return nil
}

func (d *Display) acceptClients(s *socket) {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Errorf("Failed to accept client: %v", err)
			continue
		}
		d.loop.Post(func() { d.addClient(conn) })
	}
}

func (d *Display) addClient(conn *net.UnixConn) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		conn.Close()
		return
	}
	d.nextID++
	c := &Client{ID: d.nextID, conn: conn}
	d.clients[c] = struct{}{}
	d.mu.Unlock()

	c.readCredentials()
	logger.Debugf("Client %d connected (pid %d)", c.ID, c.PID)
	d.Events.ClientCreated.Emit(c)

	go func() {
		// Protocol messages are handled by the protocol library; here we only
		// need to notice the disconnect.
		_, _ = io.Copy(io.Discard, conn)
		d.loop.Post(func() { d.removeClient(c) })
	}()
}

func (d *Display) removeClient(c *Client) {
	d.mu.Lock()
	_, ok := d.clients[c]
	delete(d.clients, c)
	d.mu.Unlock()
	if !ok {
		return
	}

	c.close()
	logger.Debugf("Client %d disconnected", c.ID)
	d.Events.ClientDestroyed.Emit(c)
}

// Client is a connected client.
type Client struct {
	ID  uint64
	PID int32
	UID uint32
	GID uint32

	conn *net.UnixConn
}

func (c *Client) readCredentials() {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return
	}
	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || credErr != nil {
		return
	}
	c.PID, c.UID, c.GID = cred.Pid, cred.Uid, cred.Gid
}

func (c *Client) close() {
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Debugf("Failed to close client %d: %v", c.ID, err)
	}
}
