package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/wlcore/internal/ipc"
	"github.com/bnema/wlcore/internal/ui"
)

var screenshotOutput string

var screenshotCmd = &cobra.Command{
	Use:   "screenshot [file]",
	Short: "Save a frame of an output as PNG",
	Long: `Ask the running compositor to render a frame of an output and write it
as PNG. Without --output the first output of the layout is used. The file
defaults to wlcore-<output>.png in the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shot, err := controlClient().Screenshot(screenshotOutput)
		if errors.Is(err, ipc.ErrNotRunning) {
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to take screenshot: %w", err)
		}

		path := fmt.Sprintf("wlcore-%s.png", shot.Output)
		if len(args) == 1 {
			path = args[0]
		}
		if err := os.WriteFile(path, shot.PNG, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, fmt.Sprintf("%s %dx%d saved to %s", shot.Output, shot.Width, shot.Height, path)))
		return nil
	},
}

func init() {
	screenshotCmd.Flags().StringVarP(&screenshotOutput, "output", "o", "", "Output name (default: first output)")
	rootCmd.AddCommand(screenshotCmd)
}
