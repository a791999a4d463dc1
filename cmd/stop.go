package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/wlcore/internal/ipc"
	"github.com/bnema/wlcore/internal/ui"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running compositor",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := controlClient().Terminate()
		if errors.Is(err, ipc.ErrNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.WarningStyle.Render("wlcore is not running"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to stop compositor: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, "wlcore stopped"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
