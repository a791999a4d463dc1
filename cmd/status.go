package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/wlcore/internal/config"
	"github.com/bnema/wlcore/internal/ipc"
	"github.com/bnema/wlcore/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the running compositor",
	Long:  `Query the running compositor over its control socket and show its socket, backend, outputs, input devices and cursor position.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := controlClient().Status()
		if errors.Is(err, ipc.ErrNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatStatus(false, "wlcore is not running"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderStatus(status))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// controlClient connects to the control socket named by the configuration
func controlClient() *ipc.Client {
	cfg := config.Get()
	return ipc.NewClient(cfg.ControlSocketPath(), cfg.Control.Timeout)
}
