package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlcore/compositor"
	"github.com/bnema/wlcore/internal/config"
	"github.com/bnema/wlcore/internal/ipc"
)

// resetFlags puts every flag of c and its subcommands back to its default,
// since cobra keeps parsed values between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	config.Set(nil)
	resetFlags(rootCmd)
	t.Cleanup(func() {
		viper.Reset()
		config.Set(nil)
		config.SetConfigPath("")
		resetFlags(rootCmd)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wlcore.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func headlessConfig(t *testing.T) (path, control string) {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("WLCORE_TEST_DISPLAY", "")
	control = filepath.Join(t.TempDir(), "control.sock")
	path = writeConfig(t, fmt.Sprintf(`
[backend]
type = "headless"

[[backend.headless_outputs]]
name = "TEST-1"
width = 640
height = 480

[compositor]
socket_env = "WLCORE_TEST_DISPLAY"
decoration_mode = "server"

[control]
socket_path = %q
timeout = "2s"
`, control))
	return path, control
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--config", writeConfig(t, ""))
	require.NoError(t, err)
	assert.Contains(t, out, "wlcore "+Version)
	assert.Contains(t, out, "commit: "+Commit)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "wlcore.toml")

	_, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[backend]")

	require.NoError(t, os.WriteFile(path, []byte("# edited\n"), 0o600))
	_, err = execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# edited\n", string(content), "an existing file is kept without --force")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "decoration_mode")
}

// lineInput hands out one line per Read so each prompt gets its own answer.
type lineInput []string

func (a *lineInput) Read(p []byte) (int, error) {
	if len(*a) == 0 {
		return 0, io.EOF
	}
	n := copy(p, (*a)[0]+"\n")
	*a = (*a)[1:]
	return n, nil
}

func TestConfigInitAccessible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wlcore.toml")
	in := lineInput{"3", "y", "1", "n", "", "32"}
	rootCmd.SetIn(&in)
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	out, err := execute(t, "config", "init", "--config", path, "--accessible")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration initialized")

	_, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	cfg := config.Get()
	assert.Equal(t, "evdev", cfg.Backend.Type)
	assert.True(t, cfg.Compositor.DecorationManager)
	assert.Equal(t, "none", cfg.Compositor.DecorationMode)
	assert.False(t, cfg.Compositor.Renderer)
	assert.Equal(t, "default", cfg.Cursor.Theme)
	assert.Equal(t, 32, cfg.Cursor.Size)
}

func TestFlagsDoNotLeakBetweenRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wlcore.toml")

	_, err := execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("# edited\n"), 0o600))

	_, err = execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# edited\n", string(content), "--force from an earlier run is not kept")

	cfgPath, _ := headlessConfig(t)
	_, err = execute(t, "screenshot", "--config", cfgPath, "-o", "HDMI-A-1")
	require.ErrorIs(t, err, ipc.ErrNotRunning)
	assert.Equal(t, "HDMI-A-1", screenshotOutput)
	_, err = execute(t, "version", "--config", cfgPath)
	require.NoError(t, err)
	assert.Empty(t, screenshotOutput)
}

func TestConfigShowAndPath(t *testing.T) {
	path, control := headlessConfig(t)

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	for _, want := range []string{"[backend]", "headless", "TEST-1 640x480", "server", control} {
		assert.Contains(t, out, want)
	}

	out, err = execute(t, "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := writeConfig(t, "[backend]\ntype = \"x11\"\n")
	_, err := execute(t, "status", "--config", path)
	assert.ErrorContains(t, err, "invalid backend.type")

	path = writeConfig(t, "[backend\n")
	_, err = execute(t, "status", "--config", path)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestClientCommandsWithoutCompositor(t *testing.T) {
	path, _ := headlessConfig(t)

	out, err := execute(t, "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "not running")

	out, err = execute(t, "stop", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "not running")

	_, err = execute(t, "screenshot", "--config", path)
	assert.ErrorIs(t, err, ipc.ErrNotRunning)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, isFatal(fmt.Errorf("%w: no backend", compositor.ErrBackendCreate)))
	assert.True(t, isFatal(fmt.Errorf("%w: busy", compositor.ErrSocketCreate)))
	assert.True(t, isFatal(compositor.ErrBackendStart))
	assert.True(t, isFatal(compositor.ErrAlreadyRunning))
	assert.False(t, isFatal(compositor.ErrAlreadyRan))
	assert.False(t, isFatal(assert.AnError))
}

func buildFromConfig(t *testing.T, path string) *compositor.Compositor {
	t.Helper()
	config.SetConfigPath(path)
	require.NoError(t, config.Init())
	cfg := config.Get()

	sess, err := newSession(cfg)
	require.NoError(t, err)
	c, err := buildCompositor(cfg, sess)
	require.NoError(t, err)
	require.NoError(t, sess.Attach(c))
	t.Cleanup(func() {
		c.Destroy()
		sess.Close()
	})
	return c
}

// startCompositor builds and serves a compositor from the config at path
// the way `wlcore run` does.
func startCompositor(t *testing.T, ctx context.Context, path string) <-chan error {
	t.Helper()
	c := buildFromConfig(t, path)

	done := make(chan error, 1)
	go func() { done <- serve(ctx, c) }()
	require.Eventually(t, c.Running, 2*time.Second, 5*time.Millisecond)
	return done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("compositor did not stop")
	}
}

func TestRunStatusScreenshotStop(t *testing.T) {
	path, control := headlessConfig(t)
	done := startCompositor(t, context.Background(), path)

	client := ipc.NewClient(control, time.Second)
	require.Eventually(t, func() bool {
		st, err := client.Status()
		return err == nil && len(st.Outputs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	out, err := execute(t, "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Running")
	assert.Contains(t, out, "headless")
	assert.Contains(t, out, "TEST-1")
	assert.Contains(t, out, "org_kde_kwin_server_decoration_manager")

	shot := filepath.Join(t.TempDir(), "shot.png")
	out, err = execute(t, "screenshot", "--config", path, shot)
	require.NoError(t, err)
	assert.Contains(t, out, "TEST-1 640x480")
	data, err := os.ReadFile(shot)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])

	out, err = execute(t, "stop", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wlcore stopped")
	waitDone(t, done)
}

func TestServeStopsWithContext(t *testing.T) {
	path, _ := headlessConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := startCompositor(t, ctx, path)
	cancel()
	waitDone(t, done)
}

func TestServeWithCancelledContext(t *testing.T) {
	path, _ := headlessConfig(t)
	c := buildFromConfig(t, path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- serve(ctx, c) }()
	waitDone(t, done)
	assert.Nil(t, compositor.Active())
}
