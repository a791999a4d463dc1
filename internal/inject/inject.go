// Package inject drives a virtual uinput pointer. `wlcore inject` uses it to
// exercise evdev hotplug and event decoding without touching real hardware.
package inject

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThomasT75/uinput"

	"github.com/bnema/wlcore/internal/logger"
)

// DefaultDevice is the uinput control node.
const DefaultDevice = "/dev/uinput"

// ErrInvalidScript is returned for scripts that would do nothing sensible.
var ErrInvalidScript = errors.New("invalid inject script")

// Pointer is the part of uinput.Mouse a script needs.
type Pointer interface {
	Move(x, y int32) error
	LeftPress() error
	LeftRelease() error
	Wheel(horizontal bool, delta int32) error
	Close() error
}

// Open creates a virtual mouse named name on device.
func Open(device, name string) (Pointer, error) {
	if device == "" {
		device = DefaultDevice
	}
	mouse, err := uinput.CreateMouse(device, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual mouse: %w", err)
	}
	return mouse, nil
}

// Script describes what the virtual pointer does once created.
type Script struct {
	// Settle is waited before the first event so the compositor can pick
	// the new device up.
	Settle time.Duration
	// Steps moves per side of a square path.
	Steps int
	// StepSize is the distance of each move in device units.
	StepSize int32
	// Interval between moves.
	Interval time.Duration
	// Click presses and releases the left button at the end.
	Click bool
	// Scroll sends that many wheel notches, negative scrolls up.
	Scroll int
	// Hold keeps the device present after the last event.
	Hold time.Duration
}

// DefaultScript draws a 200 unit square, clicks once and leaves.
var DefaultScript = Script{
	Settle:   500 * time.Millisecond,
	Steps:    10,
	StepSize: 20,
	Interval: 20 * time.Millisecond,
	Click:    true,
}

// Validate rejects negative durations and sizes.
func (s Script) Validate() error {
	switch {
	case s.Steps < 0:
		return fmt.Errorf("%w: negative steps", ErrInvalidScript)
	case s.Steps > 0 && s.StepSize <= 0:
		return fmt.Errorf("%w: step size must be positive", ErrInvalidScript)
	case s.Settle < 0 || s.Interval < 0 || s.Hold < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidScript)
	}
	return nil
}

// square is the unit path: right, down, left, up.
var square = [4][2]int32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// Run plays s on p. It stops early when ctx is done and returns ctx.Err().
func Run(ctx context.Context, p Pointer, s Script) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := sleep(ctx, s.Settle); err != nil {
		return err
	}

	moves := 0
	for _, dir := range square {
		for i := 0; i < s.Steps; i++ {
			if err := p.Move(dir[0]*s.StepSize, dir[1]*s.StepSize); err != nil {
				return fmt.Errorf("move: %w", err)
			}
			moves++
			if err := sleep(ctx, s.Interval); err != nil {
				return err
			}
		}
	}
	logger.Debugf("Injected %d moves", moves)

	if s.Click {
		if err := p.LeftPress(); err != nil {
			return fmt.Errorf("press: %w", err)
		}
		if err := p.LeftRelease(); err != nil {
			return fmt.Errorf("release: %w", err)
		}
	}

	delta := int32(-1)
	n := s.Scroll
	if n < 0 {
		delta, n = 1, -n
	}
	for i := 0; i < n; i++ {
		if err := p.Wheel(false, delta); err != nil {
			return fmt.Errorf("wheel: %w", err)
		}
		if err := sleep(ctx, s.Interval); err != nil {
			return err
		}
	}

	return sleep(ctx, s.Hold)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
