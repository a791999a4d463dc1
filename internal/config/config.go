// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/extensions/decoration"
)

// Config represents the application configuration
type Config struct {
	Backend    BackendConfig    `mapstructure:"backend"`
	Compositor CompositorConfig `mapstructure:"compositor"`
	Cursor     CursorConfig     `mapstructure:"cursor"`
	Control    ControlConfig    `mapstructure:"control"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// BackendConfig selects and tunes the backend
type BackendConfig struct {
	Type               string               `mapstructure:"type"` // auto, wayland, evdev or headless
	InputDir           string               `mapstructure:"input_dir"`
	DRMDir             string               `mapstructure:"drm_dir"`
	OutputPollInterval int                  `mapstructure:"output_poll_interval"` // seconds
	WaylandDisplay     string               `mapstructure:"wayland_display"`
	HeadlessOutputs    []backend.OutputSpec `mapstructure:"headless_outputs"`
}

// CompositorConfig contains the optional modules and socket settings
type CompositorConfig struct {
	DecorationManager bool   `mapstructure:"decoration_manager"`
	DecorationMode    string `mapstructure:"decoration_mode"` // none, client or server
	Renderer          bool   `mapstructure:"renderer"`
	SocketEnv         string `mapstructure:"socket_env"`
	Socket            string `mapstructure:"socket"` // empty picks wayland-N
}

// CursorConfig selects the xcursor theme
type CursorConfig struct {
	Theme string `mapstructure:"theme"`
	Size  int    `mapstructure:"size"`
}

// ControlConfig configures the control socket used by status, stop and watch
type ControlConfig struct {
	SocketPath string        `mapstructure:"socket_path"` // empty means $XDG_RUNTIME_DIR/wlcore.sock
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Backend: BackendConfig{
			Type:               "auto",
			InputDir:           "/dev/input",
			DRMDir:             "/sys/class/drm",
			OutputPollInterval: 2,
			HeadlessOutputs:    []backend.OutputSpec{},
		},
		Compositor: CompositorConfig{
			DecorationManager: true,
			DecorationMode:    "client",
			Renderer:          true,
			SocketEnv:         "_WAYLAND_DISPLAY",
		},
		Cursor: CursorConfig{
			Theme: "default",
			Size:  24,
		},
		Control: ControlConfig{
			Timeout: 5 * time.Second,
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("wlcore")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "wlcore"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "wlcore"))
		}
		viper.AddConfigPath(".")
	}

	// WLCORE_BACKEND_TYPE=headless and friends
	viper.SetEnvPrefix("wlcore")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A --config path that does not exist yet is fine, `config init` creates it
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

func setDefaults() {
	d := DefaultConfig
	viper.SetDefault("backend.type", d.Backend.Type)
	viper.SetDefault("backend.input_dir", d.Backend.InputDir)
	viper.SetDefault("backend.drm_dir", d.Backend.DRMDir)
	viper.SetDefault("backend.output_poll_interval", d.Backend.OutputPollInterval)
	viper.SetDefault("backend.wayland_display", d.Backend.WaylandDisplay)
	viper.SetDefault("backend.headless_outputs", d.Backend.HeadlessOutputs)

	viper.SetDefault("compositor.decoration_manager", d.Compositor.DecorationManager)
	viper.SetDefault("compositor.decoration_mode", d.Compositor.DecorationMode)
	viper.SetDefault("compositor.renderer", d.Compositor.Renderer)
	viper.SetDefault("compositor.socket_env", d.Compositor.SocketEnv)
	viper.SetDefault("compositor.socket", d.Compositor.Socket)

	viper.SetDefault("cursor.theme", d.Cursor.Theme)
	viper.SetDefault("cursor.size", d.Cursor.Size)

	viper.SetDefault("control.socket_path", d.Control.SocketPath)
	viper.SetDefault("control.timeout", d.Control.Timeout)

	viper.SetDefault("logging.log_level", d.Logging.LogLevel)
}

// Validate rejects values the compositor cannot start with
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case "auto", "wayland", "evdev", "headless":
	default:
		return fmt.Errorf("invalid backend.type %q (must be auto, wayland, evdev or headless)", c.Backend.Type)
	}
	if c.Backend.OutputPollInterval < 0 {
		return fmt.Errorf("backend.output_poll_interval must not be negative")
	}
	if _, err := decoration.ParseMode(c.Compositor.DecorationMode); err != nil {
		return fmt.Errorf("invalid compositor.decoration_mode: %w", err)
	}
	if c.Cursor.Size < 0 {
		return fmt.Errorf("cursor.size must not be negative")
	}
	for i, o := range c.Backend.HeadlessOutputs {
		if o.Width <= 0 || o.Height <= 0 {
			return fmt.Errorf("backend.headless_outputs[%d] needs a positive width and height", i)
		}
	}
	return nil
}

// BackendOptions converts the backend section for backend.Autocreate
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		Type:              c.Backend.Type,
		InputDir:          c.Backend.InputDir,
		DRMDir:            c.Backend.DRMDir,
		OutputPollSeconds: c.Backend.OutputPollInterval,
		HeadlessOutputs:   c.Backend.HeadlessOutputs,
		WaylandDisplay:    c.Backend.WaylandDisplay,
	}
}

// DecorationMode returns the parsed default decoration mode
func (c *Config) DecorationMode() decoration.Mode {
	mode, err := decoration.ParseMode(c.Compositor.DecorationMode)
	if err != nil {
		return decoration.ModeClient
	}
	return mode
}

// ControlSocketPath returns the control socket path, defaulting to the
// runtime directory
func (c *Config) ControlSocketPath() string {
	if c.Control.SocketPath != "" {
		return c.Control.SocketPath
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "wlcore.sock")
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		d := DefaultConfig
		return &d
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save writes the current settings to the config file
func Save() error {
	configPath := GetConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wlcore", "wlcore.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "wlcore.toml"
	}

	return filepath.Join(home, ".config", "wlcore", "wlcore.toml")
}
