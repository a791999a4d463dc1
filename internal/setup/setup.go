// Package setup asks for the main configuration choices with an
// interactive form and stores them for config.Save.
package setup

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/viper"

	"github.com/bnema/wlcore/internal/config"
)

// Answers are the settings the form asks for.
type Answers struct {
	Backend           string
	DecorationManager bool
	DecorationMode    string
	Renderer          bool
	CursorTheme       string
	CursorSize        string
}

// FromConfig seeds the answers with the current values of cfg.
func FromConfig(cfg *config.Config) *Answers {
	return &Answers{
		Backend:           cfg.Backend.Type,
		DecorationManager: cfg.Compositor.DecorationManager,
		DecorationMode:    cfg.Compositor.DecorationMode,
		Renderer:          cfg.Compositor.Renderer,
		CursorTheme:       cfg.Cursor.Theme,
		CursorSize:        strconv.Itoa(cfg.Cursor.Size),
	}
}

func validateSize(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("cursor size must be a positive number")
	}
	return nil
}

// NewForm builds the setup form. Submitted values are written into a.
func NewForm(a *Answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Backend").
				Description("auto tries wayland, then evdev, then headless").
				Options(huh.NewOptions("auto", "wayland", "evdev", "headless")...).
				Value(&a.Backend),
			huh.NewConfirm().
				Title("Advertise the server side decoration manager?").
				Value(&a.DecorationManager),
			huh.NewSelect[string]().
				Title("Default decoration mode").
				Options(huh.NewOptions("none", "client", "server")...).
				Value(&a.DecorationMode),
			huh.NewConfirm().
				Title("Enable the software renderer?").
				Description("Needed for screenshots and the cursor overlay").
				Value(&a.Renderer),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Cursor theme").
				Placeholder("default").
				Value(&a.CursorTheme),
			huh.NewInput().
				Title("Cursor size").
				Validate(validateSize).
				Value(&a.CursorSize),
		),
	)
}

// Run shows the form. In accessible mode the questions are asked line by
// line on in and out instead of a full-screen form.
func Run(ctx context.Context, a *Answers, accessible bool, in io.Reader, out io.Writer) error {
	form := NewForm(a).WithAccessible(accessible)
	if in != nil {
		form = form.WithInput(in)
	}
	if out != nil {
		form = form.WithOutput(out)
	}
	if err := form.RunWithContext(ctx); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	return nil
}

// Apply stores the answers in viper so that config.Save writes them.
func (a *Answers) Apply() error {
	if err := validateSize(a.CursorSize); err != nil {
		return err
	}
	size, _ := strconv.Atoi(strings.TrimSpace(a.CursorSize))
	theme := strings.TrimSpace(a.CursorTheme)
	if theme == "" {
		theme = config.DefaultConfig.Cursor.Theme
	}

	viper.Set("backend.type", a.Backend)
	viper.Set("compositor.decoration_manager", a.DecorationManager)
	viper.Set("compositor.decoration_mode", a.DecorationMode)
	viper.Set("compositor.renderer", a.Renderer)
	viper.Set("cursor.theme", theme)
	viper.Set("cursor.size", size)
	return nil
}
