package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/wlcore/internal/config"
	"github.com/bnema/wlcore/internal/logger"
)

var (
	configFile string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "wlcore",
		Short: "wlcore - a minimal Wayland compositor core",
		Long: `wlcore is a minimal Wayland compositor core. It opens a Wayland socket,
drives a shared cursor across every detected output from evdev, nested
Wayland or headless backends, and exposes its state on a control socket.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/wlcore/wlcore.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// initConfig loads the configuration and applies the log level. LOG_LEVEL
// wins over the file, the flag wins over both.
func initConfig(cmd *cobra.Command, _ []string) error {
	config.SetConfigPath(configFile)
	if err := config.Init(); err != nil {
		return err
	}

	switch {
	case logLevel != "":
		logger.SetLevel(logLevel)
	case os.Getenv("LOG_LEVEL") != "":
	case config.Get().Logging.LogLevel != "":
		logger.SetLevel(config.Get().Logging.LogLevel)
	}
	logger.Debugf("Using config %s", config.GetConfigPath())
	return nil
}
