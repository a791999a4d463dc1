package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bnema/wlcore/internal/config"
	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/internal/setup"
	"github.com/bnema/wlcore/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wlcore configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(cmd.OutOrStdout(), config.Get())
	},
}

func showConfig(out io.Writer, cfg *config.Config) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	section := func(name string) {
		fmt.Fprintln(w, ui.SubheaderStyle.Render("["+name+"]"))
	}
	field := func(key string, value any) {
		fmt.Fprintf(w, "  %s\t%v\n", key, value)
	}

	fmt.Fprintf(w, "Config file: %s\n\n", config.GetConfigPath())

	section("backend")
	field("type", cfg.Backend.Type)
	field("input_dir", cfg.Backend.InputDir)
	field("drm_dir", cfg.Backend.DRMDir)
	field("output_poll_interval", fmt.Sprintf("%ds", cfg.Backend.OutputPollInterval))
	if cfg.Backend.WaylandDisplay != "" {
		field("wayland_display", cfg.Backend.WaylandDisplay)
	}
	for i, o := range cfg.Backend.HeadlessOutputs {
		field(fmt.Sprintf("headless_outputs[%d]", i), fmt.Sprintf("%s %dx%d scale %.2g", o.Name, o.Width, o.Height, o.Scale))
	}

	fmt.Fprintln(w)
	section("compositor")
	field("decoration_manager", cfg.Compositor.DecorationManager)
	field("decoration_mode", cfg.Compositor.DecorationMode)
	field("renderer", cfg.Compositor.Renderer)
	field("socket_env", cfg.Compositor.SocketEnv)
	if cfg.Compositor.Socket != "" {
		field("socket", cfg.Compositor.Socket)
	}

	fmt.Fprintln(w)
	section("cursor")
	field("theme", cfg.Cursor.Theme)
	field("size", cfg.Cursor.Size)

	fmt.Fprintln(w)
	section("control")
	field("socket_path", cfg.ControlSocketPath())
	field("timeout", cfg.Control.Timeout)

	if cfg.Logging.LogLevel != "" {
		fmt.Fprintln(w)
		section("logging")
		field("log_level", cfg.Logging.LogLevel)
	}
	return w.Flush()
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	Long: `Write the configuration file. With --interactive the backend, decoration,
renderer and cursor settings are asked first; --accessible asks them line by
line instead of showing a form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Infof("Configuration file already exists at: %s", configPath)
				logger.Info("Use --force to overwrite")
				return nil
			}
		}

		interactive, _ := cmd.Flags().GetBool("interactive")
		accessible, _ := cmd.Flags().GetBool("accessible")
		if interactive || accessible {
			answers := setup.FromConfig(config.Get())
			if err := setup.Run(cmd.Context(), answers, accessible, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			if err := answers.Apply(); err != nil {
				return err
			}
		}

		if err := config.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, "Configuration initialized at "+configPath))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().Bool("force", false, "Force overwrite existing configuration")
	configInitCmd.Flags().BoolP("interactive", "i", false, "Choose the main settings with a form")
	configInitCmd.Flags().Bool("accessible", false, "Ask the settings line by line (implies --interactive)")
}
