package ipc

import (
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/wlcore/internal/logger"
)

// ErrNotRunning is returned when nothing listens on the control socket
var ErrNotRunning = errors.New("wlcore is not running")

// Client talks to a running compositor over its control socket
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the socket at socketPath. A zero timeout
// means five seconds.
func NewClient(socketPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{socketPath: socketPath, timeout: timeout}
}

// Status queries the compositor state
func (c *Client) Status() (*Status, error) {
	msg, err := NewStatusMessage()
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(msg, TypeStatusResponse)
	if err != nil {
		return nil, err
	}
	return GetStatus(resp)
}

// Terminate asks the compositor to stop
func (c *Client) Terminate() error {
	msg, err := NewTerminateMessage()
	if err != nil {
		return err
	}
	_, err = c.roundTrip(msg, TypeOK)
	return err
}

// Screenshot fetches the last rendered frame of output
func (c *Client) Screenshot(output string) (*Screenshot, error) {
	msg, err := NewScreenshotMessage(output)
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(msg, TypeScreenshotResult)
	if err != nil {
		return nil, err
	}
	return GetScreenshot(resp)
}

// IsRunning reports whether a compositor answers on the socket
func (c *Client) IsRunning() bool {
	_, err := c.Status()
	return err == nil
}

func (c *Client) roundTrip(msg *structpb.Struct, want string) (*structpb.Struct, error) {
	resp, err := c.sendMessage(msg)
	if err != nil {
		return nil, err
	}
	switch MessageType(resp) {
	case want:
		return resp, nil
	case TypeError:
		text, _ := GetError(resp)
		return nil, fmt.Errorf("server error: %s", text)
	default:
		return nil, fmt.Errorf("unexpected response type: %q", MessageType(resp))
	}
}

// sendMessage sends a message and returns the response
func (c *Client) sendMessage(msg *structpb.Struct) (*structpb.Struct, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to connect to wlcore: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("Failed to close IPC connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}

	if err := writeMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	response, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return response, nil
}

// isConnectionRefused checks if the error is a failed dial
func isConnectionRefused(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr) && netErr.Op == "dial"
}
