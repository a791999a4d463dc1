package xcursor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// Builtin is the Source used when no theme on disk is available. It
// provides the "default" theme with left_ptr and an animated watch cursor.
type Builtin struct{}

const (
	builtinTheme = "default"

	// Arrow outline in a 16 unit design grid, hotspot at (1, 1).
	arrowGrid = 16

	watchFrames = 8
	watchDelay  = 60
)

var (
	arrowOuter = [][2]float32{{1, 1}, {1, 15}, {4.6, 11.6}, {7, 16}, {9.4, 15}, {7.2, 10.6}, {12, 10.6}}
	arrowInner = [][2]float32{{2, 3.4}, {2, 12.6}, {4.9, 9.9}, {7.5, 14.4}, {8.1, 14.1}, {5.7, 9.6}, {9.6, 9.6}}
)

func (Builtin) Load(name string, size int) (*Theme, error) {
	if name != builtinTheme {
		return nil, fmt.Errorf("%w: builtin source only provides %q", ErrThemeNotFound, builtinTheme)
	}
	arrow := NewCursor("left_ptr", drawArrow(size))
	return NewTheme(builtinTheme, size,
		arrow,
		NewCursor("default", arrow.Images...),
		NewCursor("watch", drawWatch(size)...),
	), nil
}

func drawArrow(size int) *Image {
	scale := float32(size) / arrowGrid
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	fillPolygon(dst, arrowOuter, scale, color.White)
	fillPolygon(dst, arrowInner, scale, color.Black)

	hot := int(math.Round(float64(scale)))
	return &Image{
		Width:    size,
		Height:   size,
		HotspotX: hot,
		HotspotY: hot,
		Pixels:   dst.Pix,
	}
}

func drawWatch(size int) []*Image {
	c := float32(size) / 2
	outer := c * 0.8
	inner := c * 0.5
	dot := c * 0.15
	frames := make([]*Image, 0, watchFrames)
	for i := 0; i < watchFrames; i++ {
		dst := image.NewRGBA(image.Rect(0, 0, size, size))

		z := vector.NewRasterizer(size, size)
		z.DrawOp = draw.Over
		circle(z, c, c, outer, false)
		circle(z, c, c, inner, true)
		z.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{})

		angle := 2 * math.Pi * float64(i) / watchFrames
		r := (outer + inner) / 2
		dx := c + r*float32(math.Cos(angle))
		dy := c + r*float32(math.Sin(angle))
		z = vector.NewRasterizer(size, size)
		z.DrawOp = draw.Over
		circle(z, dx, dy, dot, false)
		z.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{})

		frames = append(frames, &Image{
			Width:    size,
			Height:   size,
			HotspotX: size / 2,
			HotspotY: size / 2,
			Delay:    watchDelay,
			Pixels:   dst.Pix,
		})
	}
	return frames
}

func fillPolygon(dst *image.RGBA, pts [][2]float32, scale float32, col color.Color) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	z.MoveTo(pts[0][0]*scale, pts[0][1]*scale)
	for _, p := range pts[1:] {
		z.LineTo(p[0]*scale, p[1]*scale)
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}

// circle adds a closed polygonal circle to z. Reversed circles cancel the
// coverage of forward ones, which punches holes.
func circle(z *vector.Rasterizer, cx, cy, r float32, reverse bool) {
	const steps = 32
	for i := 0; i <= steps; i++ {
		k := i
		if reverse {
			k = steps - i
		}
		a := 2 * math.Pi * float64(k) / steps
		x := cx + r*float32(math.Cos(a))
		y := cy + r*float32(math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}
