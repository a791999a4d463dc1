// Package render is a software renderer. It keeps one RGBA framebuffer per
// output and composes a background plus scaled sprites into it.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/listener"
)

// Sprite is an image placed on an output. X and Y are output local layout
// coordinates of the top left corner. Scale is the sprite's own buffer
// scale; an image at scale 2 covers half its pixel size.
type Sprite struct {
	Image image.Image
	X, Y  float64
	Scale float64
}

// Renderer owns the framebuffers.
type Renderer struct {
	mu      sync.Mutex
	buffers map[*backend.Output]*image.RGBA
	remove  *listener.Listener[*backend.Output]
}

// New creates a renderer that drops an output's framebuffer when b removes
// the output.
func New(b backend.Backend) (*Renderer, error) {
	r := &Renderer{buffers: make(map[*backend.Output]*image.RGBA)}
	l, err := listener.Register(b.Events().OutputRemove, r.drop)
	if err != nil {
		return nil, fmt.Errorf("failed to watch output removal: %w", err)
	}
	r.remove = l
	return r, nil
}

func (r *Renderer) drop(o *backend.Output) {
	r.mu.Lock()
	delete(r.buffers, o)
	r.mu.Unlock()
	logger.Debugf("Dropped framebuffer of %s", o.Name)
}

// Render draws a frame for o and returns its framebuffer. The buffer is
// reused between frames and reallocated when the mode changes.
func (r *Renderer) Render(o *backend.Output, background color.Color, sprites ...Sprite) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	bounds := image.Rect(0, 0, int(o.Width), int(o.Height))
	fb := r.buffers[o]
	if fb == nil || fb.Bounds() != bounds {
		fb = image.NewRGBA(bounds)
		r.buffers[o] = fb
	}

	draw.Draw(fb, bounds, image.NewUniform(background), image.Point{}, draw.Src)

	outScale := o.Scale
	if outScale <= 0 {
		outScale = 1
	}
	for _, s := range sprites {
		if s.Image == nil {
			continue
		}
		scale := s.Scale
		if scale <= 0 {
			scale = 1
		}
		src := s.Image.Bounds()
		w := float64(src.Dx()) / scale * outScale
		h := float64(src.Dy()) / scale * outScale
		x := s.X * outScale
		y := s.Y * outScale
		dst := image.Rect(int(x), int(y), int(x+w+0.5), int(y+h+0.5))
		if dst.Dx() == src.Dx() && dst.Dy() == src.Dy() {
			draw.Draw(fb, dst, s.Image, src.Min, draw.Over)
			continue
		}
		xdraw.ApproxBiLinear.Scale(fb, dst, s.Image, src, xdraw.Over, nil)
	}
	return fb
}

// Frame returns a copy of the last frame rendered for o.
func (r *Renderer) Frame(o *backend.Output) (*image.RGBA, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fb, ok := r.buffers[o]
	if !ok {
		return nil, false
	}
	out := image.NewRGBA(fb.Bounds())
	copy(out.Pix, fb.Pix)
	return out, true
}

// Buffers returns the number of framebuffers held.
func (r *Renderer) Buffers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

// Destroy stops watching the backend and frees every framebuffer.
func (r *Renderer) Destroy() {
	r.remove.Remove()
	r.mu.Lock()
	r.buffers = make(map[*backend.Output]*image.RGBA)
	r.mu.Unlock()
}

// RGBA wraps tightly packed RGBA pixels as an image without copying.
func RGBA(pixels []byte, stride, width, height int) *image.RGBA {
	return &image.RGBA{
		Pix:    pixels,
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
