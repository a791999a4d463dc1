// Package layout arranges outputs in a shared coordinate space. The layout
// bounds cursor movement and may be referenced by any number of cursors, so
// every method takes the layout's lock.
package layout

import (
	"math"
	"sync"

	"github.com/bnema/wlcore/backend"
	"github.com/bnema/wlcore/internal/logger"
	"github.com/bnema/wlcore/listener"
)

// Placement is the position of one output in the layout.
type Placement struct {
	Output *backend.Output
	X, Y   int
	Auto   bool
}

// Box returns the area the output covers in layout coordinates.
func (p Placement) Box() Box {
	w, h := p.Output.EffectiveResolution()
	return Box{X: p.X, Y: p.Y, Width: w, Height: h}
}

type entry struct {
	Placement
	listeners listener.Set
}

// OutputLayout is an ordered set of positioned outputs.
type OutputLayout struct {
	// Change is emitted after outputs are added, moved or removed.
	Change *listener.Signal[*OutputLayout]

	mu      sync.RWMutex
	entries []*entry
}

// NewOutputLayout returns an empty layout.
func NewOutputLayout() *OutputLayout {
	return &OutputLayout{
		Change: listener.NewSignal[*OutputLayout](),
	}
}

// Add places o at (x, y), or moves it there if it is already in the layout.
func (l *OutputLayout) Add(o *backend.Output, x, y int) {
	l.place(o, x, y, false)
}

// AddAuto places o to the right of everything already in the layout. Auto
// placed outputs are repacked when other outputs change.
func (l *OutputLayout) AddAuto(o *backend.Output) {
	l.place(o, 0, 0, true)
}

func (l *OutputLayout) place(o *backend.Output, x, y int, auto bool) {
	l.mu.Lock()
	e := l.find(o)
	if e == nil {
		e = &entry{Placement: Placement{Output: o}}
		l.entries = append(l.entries, e)
		l.watch(e)
	}
	e.X, e.Y, e.Auto = x, y, auto
	l.reconfigure()
	l.mu.Unlock()

	logger.Debugf("Output %s placed in layout", o.Name)
	l.Change.Emit(l)
}

// watch drops the output when it is destroyed and repacks on mode changes.
// Called with the lock held.
func (l *OutputLayout) watch(e *entry) {
	o := e.Output
	if _, err := listener.Attach(&e.listeners, o.Destroy, func(*backend.Output) {
		l.Remove(o)
	}); err != nil {
		logger.Warnf("Layout cannot watch destroy of %s: %v", o.Name, err)
	}
	if _, err := listener.Attach(&e.listeners, o.Mode, func(*backend.Output) {
		l.mu.Lock()
		l.reconfigure()
		l.mu.Unlock()
		l.Change.Emit(l)
	}); err != nil {
		logger.Warnf("Layout cannot watch mode of %s: %v", o.Name, err)
	}
}

// reconfigure lays auto placed outputs out left to right after the
// rightmost fixed output. Called with the lock held.
func (l *OutputLayout) reconfigure() {
	maxX := math.MinInt
	for _, e := range l.entries {
		if e.Auto {
			continue
		}
		box := e.Box()
		if right := box.X + box.Width; right > maxX {
			maxX = right
		}
	}
	if maxX == math.MinInt {
		maxX = 0
	}
	for _, e := range l.entries {
		if !e.Auto {
			continue
		}
		e.X, e.Y = maxX, 0
		w, _ := e.Output.EffectiveResolution()
		maxX += w
	}
}

func (l *OutputLayout) find(o *backend.Output) *entry {
	for _, e := range l.entries {
		if e.Output == o {
			return e
		}
	}
	return nil
}

// Remove takes o out of the layout. Unknown outputs are ignored.
func (l *OutputLayout) Remove(o *backend.Output) {
	l.mu.Lock()
	var removed *entry
	for i, e := range l.entries {
		if e.Output == o {
			removed = e
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
	if removed != nil {
		l.reconfigure()
	}
	l.mu.Unlock()

	if removed == nil {
		return
	}
	removed.listeners.RemoveAll()
	logger.Debugf("Output %s removed from layout", o.Name)
	l.Change.Emit(l)
}

// Outputs returns the placements in insertion order.
func (l *OutputLayout) Outputs() []Placement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Placement, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.Placement)
	}
	return out
}

// Len returns the number of outputs in the layout.
func (l *OutputLayout) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// OutputBox returns the area covered by o.
func (l *OutputLayout) OutputBox(o *backend.Output) (Box, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e := l.find(o)
	if e == nil {
		return Box{}, false
	}
	return e.Box(), true
}

// OutputAt returns the output under (x, y), or nil.
func (l *OutputLayout) OutputAt(x, y float64) *backend.Output {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.Box().Contains(x, y) {
			return e.Output
		}
	}
	return nil
}

// Contains reports whether (x, y) lies on o, or on any output when o is nil.
func (l *OutputLayout) Contains(o *backend.Output, x, y float64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if o != nil {
		e := l.find(o)
		return e != nil && e.Box().Contains(x, y)
	}
	for _, e := range l.entries {
		if e.Box().Contains(x, y) {
			return true
		}
	}
	return false
}

// ClosestPoint returns the point on o (or on any output when o is nil)
// nearest to (x, y). With no candidate output the point is returned as is.
func (l *OutputLayout) ClosestPoint(o *backend.Output, x, y float64) (float64, float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bestX, bestY := x, y
	bestDist := math.Inf(1)
	for _, e := range l.entries {
		if o != nil && e.Output != o {
			continue
		}
		box := e.Box()
		if box.Empty() {
			continue
		}
		cx, cy := box.ClosestPoint(x, y)
		dist := (cx-x)*(cx-x) + (cy-y)*(cy-y)
		if dist < bestDist {
			bestX, bestY, bestDist = cx, cy, dist
		}
	}
	return bestX, bestY
}

// Extents returns the bounding box of every output.
func (l *OutputLayout) Extents() Box {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Box{}
	}
	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	for _, e := range l.entries {
		b := e.Box()
		minX = min(minX, b.X)
		minY = min(minY, b.Y)
		maxX = max(maxX, b.X+b.Width)
		maxY = max(maxY, b.Y+b.Height)
	}
	return Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Destroy detaches the layout from every output.
func (l *OutputLayout) Destroy() {
	l.mu.Lock()
	entries := l.entries
	l.entries = nil
	l.mu.Unlock()

	for _, e := range entries {
		e.listeners.RemoveAll()
	}
}
