package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bnema/wlcore/internal/ui"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the running compositor live",
	Long:  `Poll the control socket and show outputs, input devices and the cursor as they change. Press q to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		model := ui.NewWatchModel(controlClient(), watchInterval)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		_, err := p.Run()
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", time.Second, "Refresh interval")
	rootCmd.AddCommand(watchCmd)
}
