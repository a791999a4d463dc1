package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlcore/extensions/decoration"
)

func reset(t *testing.T) {
	t.Helper()
	viper.Reset()
	cfg = nil
	configPathOverride = ""
	t.Cleanup(func() {
		viper.Reset()
		cfg = nil
		configPathOverride = ""
	})
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wlcore.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestInitDefaults(t *testing.T) {
	reset(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, Init())
	c := Get()
	assert.Equal(t, "auto", c.Backend.Type)
	assert.Equal(t, "/dev/input", c.Backend.InputDir)
	assert.Equal(t, 2, c.Backend.OutputPollInterval)
	assert.Equal(t, "_WAYLAND_DISPLAY", c.Compositor.SocketEnv)
	assert.Equal(t, decoration.ModeClient, c.DecorationMode())
	assert.Equal(t, 24, c.Cursor.Size)
	assert.Equal(t, 5*time.Second, c.Control.Timeout)
}

func TestInitReadsFile(t *testing.T) {
	reset(t)
	SetConfigPath(writeConfig(t, `
[backend]
type = "headless"
output_poll_interval = 0

[[backend.headless_outputs]]
name = "HEADLESS-1"
width = 1280
height = 720
scale = 2.0

[compositor]
decoration_mode = "server"
renderer = false
socket = "wlcore-1"

[cursor]
theme = "Adwaita"
size = 32

[control]
socket_path = "/tmp/wlcore-test.sock"
timeout = "250ms"

[logging]
log_level = "debug"
`))

	require.NoError(t, Init())
	c := Get()
	assert.Equal(t, "headless", c.Backend.Type)
	require.Len(t, c.Backend.HeadlessOutputs, 1)
	assert.Equal(t, int32(1280), c.Backend.HeadlessOutputs[0].Width)
	assert.Equal(t, 2.0, c.Backend.HeadlessOutputs[0].Scale)
	assert.Equal(t, decoration.ModeServer, c.DecorationMode())
	assert.False(t, c.Compositor.Renderer)
	assert.True(t, c.Compositor.DecorationManager, "unset keys keep their default")
	assert.Equal(t, "wlcore-1", c.Compositor.Socket)
	assert.Equal(t, "Adwaita", c.Cursor.Theme)
	assert.Equal(t, "/tmp/wlcore-test.sock", c.ControlSocketPath())
	assert.Equal(t, 250*time.Millisecond, c.Control.Timeout)
	assert.Equal(t, "debug", c.Logging.LogLevel)

	opts := c.BackendOptions()
	assert.Equal(t, "headless", opts.Type)
	assert.Zero(t, opts.OutputPollSeconds)
	assert.Len(t, opts.HeadlessOutputs, 1)
}

func TestInitEnvironmentOverride(t *testing.T) {
	reset(t)
	SetConfigPath(writeConfig(t, "[backend]\ntype = \"evdev\"\n"))
	t.Setenv("WLCORE_BACKEND_TYPE", "headless")

	require.NoError(t, Init())
	assert.Equal(t, "headless", Get().Backend.Type)
}

func TestInitRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid toml", "[backend\ntype = 1"},
		{"unknown backend", "[backend]\ntype = \"x11\"\n"},
		{"bad decoration mode", "[compositor]\ndecoration_mode = \"fancy\"\n"},
		{"negative poll", "[backend]\noutput_poll_interval = -1\n"},
		{"empty headless output", "[[backend.headless_outputs]]\nname = \"A\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset(t)
			SetConfigPath(writeConfig(t, tt.body))
			assert.Error(t, Init())
			assert.Nil(t, cfg, "a rejected file does not replace the current config")
		})
	}
}

func TestGetWithoutInit(t *testing.T) {
	reset(t)
	c := Get()
	c.Backend.Type = "mutated"
	assert.Equal(t, "auto", Get().Backend.Type, "defaults are returned by value")
}

func TestControlSocketPathDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	c := DefaultConfig
	assert.Equal(t, filepath.Join(dir, "wlcore.sock"), c.ControlSocketPath())
}

func TestConfigPathResolution(t *testing.T) {
	t.Run("override", func(t *testing.T) {
		reset(t)
		SetConfigPath("/etc/wlcore.toml")
		assert.Equal(t, "/etc/wlcore.toml", GetConfigPath())
	})

	t.Run("xdg config home", func(t *testing.T) {
		reset(t)
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, "/xdg/wlcore/wlcore.toml", GetConfigPath())
	})

	t.Run("home", func(t *testing.T) {
		reset(t)
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/testuser")
		assert.Equal(t, "/home/testuser/.config/wlcore/wlcore.toml", GetConfigPath())
	})
}

func TestSaveWritesDefaults(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "nested", "wlcore.toml")
	SetConfigPath(path)
	setDefaults()

	require.NoError(t, Save())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[backend]")
	assert.Contains(t, string(data), "socket_env")

	require.NoError(t, Init())
	assert.Equal(t, "auto", Get().Backend.Type)
}
