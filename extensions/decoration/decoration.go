// Package decoration advertises server side window decorations to clients.
package decoration

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/wlcore/display"
	"github.com/bnema/wlcore/internal/logger"
)

const (
	// GlobalName is the interface clients bind to negotiate decorations.
	GlobalName = "org_kde_kwin_server_decoration_manager"
	// Version of the advertised interface.
	Version = 1
)

// Mode is who draws window decorations.
type Mode uint32

const (
	ModeNone Mode = iota
	ModeClient
	ModeServer
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeClient:
		return "client"
	case ModeServer:
		return "server"
	default:
		return fmt.Sprintf("Mode(%d)", uint32(m))
	}
}

// ParseMode reads a mode name as written in the configuration file.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return ModeNone, nil
	case "client", "":
		return ModeClient, nil
	case "server":
		return ModeServer, nil
	default:
		return 0, fmt.Errorf("invalid decoration mode %q (want none, client or server)", s)
	}
}

// Manager owns the decoration global.
type Manager struct {
	mu     sync.Mutex
	global *display.Global
	mode   Mode
}

// New registers the decoration global on d. The default mode is
// ModeClient.
func New(d *display.Display) (*Manager, error) {
	g, err := d.CreateGlobal(GlobalName, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoration global: %w", err)
	}
	logger.Debugf("Decoration manager advertised as %s v%d", GlobalName, Version)
	return &Manager{global: g, mode: ModeClient}, nil
}

// SetDefaultMode changes the mode announced to new clients.
func (m *Manager) SetDefaultMode(mode Mode) error {
	if mode > ModeServer {
		return fmt.Errorf("invalid decoration mode %d", mode)
	}
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	return nil
}

func (m *Manager) DefaultMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Manager) Global() *display.Global {
	return m.global
}

// Destroy withdraws the global.
func (m *Manager) Destroy() {
	m.global.Destroy()
}
