package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/wlcore/compositor"
	"github.com/bnema/wlcore/internal/config"
	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the compositor",
	Long: `Run the compositor in the foreground. The backend is picked from the
configuration, or detected in the order wayland, evdev, headless.

Press Alt+Escape, send SIGINT/SIGTERM or use 'wlcore stop' to quit.`,
	RunE: runCompositor,
}

func init() {
	runCmd.Flags().StringP("backend", "b", "", "Backend to use: auto, wayland, evdev or headless")
	runCmd.Flags().StringP("socket", "s", "", "Wayland socket name (default: first free wayland-N)")
	runCmd.Flags().String("control-socket", "", "Control socket path")

	// Bind flags to viper
	_ = viper.BindPFlag("backend.type", runCmd.Flags().Lookup("backend"))
	_ = viper.BindPFlag("compositor.socket", runCmd.Flags().Lookup("socket"))
	_ = viper.BindPFlag("control.socket_path", runCmd.Flags().Lookup("control-socket"))

	rootCmd.AddCommand(runCmd)
}

// fatalErrors are the conditions that end the process without cleanup.
var fatalErrors = []error{
	compositor.ErrBackendCreate,
	compositor.ErrSocketCreate,
	compositor.ErrBackendStart,
	compositor.ErrAlreadyRunning,
}

func isFatal(err error) bool {
	for _, target := range fatalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func newSession(cfg *config.Config) (*session.Session, error) {
	return session.New(session.Options{
		CursorTheme:   cfg.Cursor.Theme,
		CursorSize:    cfg.Cursor.Size,
		ControlSocket: cfg.ControlSocketPath(),
	})
}

func buildCompositor(cfg *config.Config, sess *session.Session) (*compositor.Compositor, error) {
	b := compositor.NewBuilder().
		Backend(cfg.BackendOptions()).
		DecorationManager(cfg.Compositor.DecorationManager).
		DecorationMode(cfg.DecorationMode()).
		Renderer(cfg.Compositor.Renderer).
		SocketEnv(cfg.Compositor.SocketEnv)
	if cfg.Compositor.Socket != "" {
		b.Socket(cfg.Compositor.Socket)
	}
	return b.Build(sess, sess, sess)
}

// serve runs c until it is terminated or ctx is done.
func serve(ctx context.Context, c *compositor.Compositor) error {
	stop := context.AfterFunc(ctx, func() { c.EventLoop().Post(c.Terminate) })
	defer stop()
	return c.Run()
}

func runCompositor(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	sess, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	c, err := buildCompositor(cfg, sess)
	if err != nil {
		if isFatal(err) {
			logger.Fatal("Cannot create compositor", "err", err)
		}
		return err
	}
	defer c.Destroy()

	if err := sess.Attach(c); err != nil {
		return err
	}

	logger.Infof("Backend %s, %s=%s", c.Backend().Name(), cfg.Compositor.SocketEnv, c.SocketName())
	logger.Infof("Control socket %s", cfg.ControlSocketPath())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, c); err != nil {
		if isFatal(err) {
			logger.Fatal("Compositor failed", "err", err)
		}
		return fmt.Errorf("compositor: %w", err)
	}
	return nil
}
