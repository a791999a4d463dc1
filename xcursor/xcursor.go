// Package xcursor models cursor themes: a theme holds named cursors, a
// cursor holds one image per animation frame.
//
// Theme files are not parsed here. Themes come from a Source; the builtin
// source draws a small default theme so a compositor always has a pointer.
package xcursor

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrThemeNotFound is returned by Load when no source knows the theme.
	ErrThemeNotFound = errors.New("xcursor: theme not found")
	// ErrCursorNotFound is returned when a theme has no cursor by that name.
	ErrCursorNotFound = errors.New("xcursor: cursor not found")
)

// DefaultSize is the nominal cursor size used when none is configured.
const DefaultSize = 24

// Image is one frame of a cursor. Pixels use the image.RGBA layout
// (premultiplied, four bytes per pixel) with rows packed without padding.
type Image struct {
	Width    int
	Height   int
	HotspotX int
	HotspotY int
	// Delay is how long the frame is shown, in milliseconds.
	Delay  uint32
	Pixels []byte
}

// Stride returns the number of bytes per row.
func (img *Image) Stride() int {
	return img.Width * 4
}

// Cursor is a named, possibly animated cursor.
type Cursor struct {
	Name       string
	Images     []*Image
	TotalDelay uint32
}

// NewCursor builds a cursor and sums the frame delays.
func NewCursor(name string, images ...*Image) *Cursor {
	c := &Cursor{Name: name, Images: images}
	for _, img := range images {
		c.TotalDelay += img.Delay
	}
	return c
}

// Frame returns the index of the image to show at timeMsec.
//
// The time is taken modulo the total delay and frames are skipped while
// their delay fits in what remains. A zero delay frame stops the walk, so it
// is shown until the time wraps.
func (c *Cursor) Frame(timeMsec uint32) int {
	if len(c.Images) <= 1 || c.TotalDelay == 0 {
		return 0
	}
	t := timeMsec % c.TotalDelay
	i := 0
	for i < len(c.Images)-1 {
		delay := c.Images[i].Delay
		if delay == 0 || delay > t {
			break
		}
		t -= delay
		i++
	}
	return i
}

// Theme is a loaded set of cursors at one nominal size.
type Theme struct {
	name    string
	size    int
	cursors []*Cursor
	index   map[string]int
}

// NewTheme builds a theme. A later cursor replaces an earlier one of the
// same name.
func NewTheme(name string, size int, cursors ...*Cursor) *Theme {
	t := &Theme{name: name, size: size, index: make(map[string]int, len(cursors))}
	for _, c := range cursors {
		if i, dup := t.index[c.Name]; dup {
			t.cursors[i] = c
			continue
		}
		t.index[c.Name] = len(t.cursors)
		t.cursors = append(t.cursors, c)
	}
	return t
}

func (t *Theme) Name() string { return t.name }

func (t *Theme) Size() int { return t.size }

// Cursor looks a cursor up by name.
func (t *Theme) Cursor(name string) (*Cursor, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in theme %q", ErrCursorNotFound, name, t.name)
	}
	return t.cursors[i], nil
}

// Cursors returns every cursor in load order.
func (t *Theme) Cursors() []*Cursor {
	return append([]*Cursor(nil), t.cursors...)
}

func (t *Theme) CursorCount() int { return len(t.cursors) }

// Names returns the cursor names, sorted.
func (t *Theme) Names() []string {
	names := make([]string, 0, len(t.index))
	for name := range t.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source produces themes by name. A source returns ErrThemeNotFound for
// themes it does not provide.
type Source interface {
	Load(name string, size int) (*Theme, error)
}

type loadOptions struct {
	sources []Source
}

// Option configures Load.
type Option func(*loadOptions)

// WithSource adds a source tried before the builtin one.
func WithSource(src Source) Option {
	return func(o *loadOptions) {
		o.sources = append(o.sources, src)
	}
}

// Load returns the theme called name at the given size. An empty name
// means "default" and a size below 1 means DefaultSize.
func Load(name string, size int, opts ...Option) (*Theme, error) {
	if name == "" {
		name = "default"
	}
	if size < 1 {
		size = DefaultSize
	}

	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	sources := append(o.sources, Builtin{})

	for _, src := range sources {
		theme, err := src.Load(name, size)
		if err == nil {
			return theme, nil
		}
		if !errors.Is(err, ErrThemeNotFound) {
			return nil, fmt.Errorf("failed to load cursor theme %q: %w", name, err)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrThemeNotFound, name)
}
