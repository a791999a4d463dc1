package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bnema/wlcore/internal/inject"
	"github.com/bnema/wlcore/internal/logger"
)

var (
	injectDevice string
	injectName   string
	injectScript = inject.DefaultScript
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Plug in a virtual pointer and move it around",
	Long: `Create a virtual mouse through uinput, move it along a square, click and
scroll, then unplug it. A running evdev backend sees the device appear and
disappear, which makes this handy to test hotplug without hardware.

Requires write access to /dev/uinput.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := injectScript.Validate(); err != nil {
			return err
		}
		p, err := inject.Open(injectDevice, injectName)
		if err != nil {
			return err
		}
		defer func() {
			if err := p.Close(); err != nil {
				logger.Warnf("Failed to close virtual mouse: %v", err)
			}
		}()
		logger.Infof("Created virtual mouse %q", injectName)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := inject.Run(ctx, p, injectScript); err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("Virtual mouse removed")
		return nil
	},
}

func init() {
	f := injectCmd.Flags()
	f.StringVar(&injectDevice, "device", inject.DefaultDevice, "uinput device node")
	f.StringVar(&injectName, "name", "wlcore virtual pointer", "Device name")
	f.DurationVar(&injectScript.Settle, "settle", injectScript.Settle, "Wait before the first event")
	f.IntVar(&injectScript.Steps, "steps", injectScript.Steps, "Moves per side of the square")
	f.Int32Var(&injectScript.StepSize, "step", injectScript.StepSize, "Distance per move")
	f.DurationVar(&injectScript.Interval, "interval", injectScript.Interval, "Delay between events")
	f.BoolVar(&injectScript.Click, "click", injectScript.Click, "Click the left button at the end")
	f.IntVar(&injectScript.Scroll, "scroll", injectScript.Scroll, "Wheel notches, negative scrolls up")
	f.DurationVar(&injectScript.Hold, "hold", injectScript.Hold, "Keep the device plugged in this long after the last event")
	rootCmd.AddCommand(injectCmd)
}
