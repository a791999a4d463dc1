package layout

import "fmt"

// Box is an axis aligned rectangle in layout coordinates.
type Box struct {
	X, Y          int
	Width, Height int
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Contains reports whether the point lies inside the box. The right and
// bottom edges are exclusive.
func (b Box) Contains(x, y float64) bool {
	if b.Empty() {
		return false
	}
	return x >= float64(b.X) && x < float64(b.X+b.Width) &&
		y >= float64(b.Y) && y < float64(b.Y+b.Height)
}

// ClosestPoint returns the point of the box nearest to (x, y).
func (b Box) ClosestPoint(x, y float64) (float64, float64) {
	const edge = 1.0 / 65536
	return clamp(x, float64(b.X), float64(b.X+b.Width)-edge),
		clamp(y, float64(b.Y), float64(b.Y+b.Height)-edge)
}

func (b Box) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", b.Width, b.Height, b.X, b.Y)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
