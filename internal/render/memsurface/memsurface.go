// Package memsurface is a headless render.Surface that keeps the drawn
// state in memory. The HTTP service and tests draw on it.
package memsurface

import (
	"math"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/render"
)

// Surface records layers, styles, stacking order and view.
type Surface struct {
	width, height float64

	mu     sync.Mutex
	order  []string // bottom to top
	styles map[string]map[string]catalog.Style
	center orb.Point
	zoom   float64
	calls  []string
}

// New returns a surface with a viewport of width x height pixels.
func New(width, height float64) *Surface {
	return &Surface{
		width:  width,
		height: height,
		styles: make(map[string]map[string]catalog.Style),
	}
}

var _ render.Surface = (*Surface)(nil)

func (s *Surface) AddLayer(layerID string, features []render.Renderable) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := make(map[string]catalog.Style, len(features))
	for _, f := range features {
		if _, dup := st[f.ID()]; !dup {
			st[f.ID()] = f.Style()
		}
	}
	s.styles[layerID] = st
	s.order = append(slices.DeleteFunc(s.order, func(id string) bool { return id == layerID }), layerID)
	s.calls = append(s.calls, "add "+layerID)
}

func (s *Surface) RemoveLayer(layerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.styles, layerID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == layerID })
	s.calls = append(s.calls, "remove "+layerID)
}

func (s *Surface) SetStyle(layerID, featureID string, st catalog.Style) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.styles[layerID]; ok {
		m[featureID] = st
	}
}

func (s *Surface) BringToFront(layerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.Index(s.order, layerID); i >= 0 {
		s.order = append(slices.Delete(s.order, i, i+1), layerID)
	}
	s.calls = append(s.calls, "front "+layerID)
}

func (s *Surface) BringToBack(layerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.Index(s.order, layerID); i >= 0 {
		s.order = append([]string{layerID}, slices.Delete(s.order, i, i+1)...)
	}
	s.calls = append(s.calls, "back "+layerID)
}

// FitBounds centers on b and picks the largest zoom at which b fits the
// viewport in Web Mercator, capped at maxZoom.
func (s *Surface) FitBounds(b orb.Bound, maxZoom float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lo := project.WGS84.ToMercator(b.Min)
	hi := project.WGS84.ToMercator(b.Max)
	w, h := hi[0]-lo[0], hi[1]-lo[1]

	zoom := maxZoom
	if w > 0 || h > 0 {
		// 2^z * 256 px cover the whole world width.
		world := 2 * math.Pi * 6378137.0
		zx := math.Log2(s.width * world / (256 * math.Max(w, 1e-9)))
		zy := math.Log2(s.height * world / (256 * math.Max(h, 1e-9)))
		zoom = math.Min(math.Floor(math.Min(zx, zy)), maxZoom)
	}
	s.center = b.Center()
	s.zoom = zoom
	s.calls = append(s.calls, "fit")
}

func (s *Surface) SetView(center orb.Point, zoom float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.center, s.zoom = center, zoom
	s.calls = append(s.calls, "view")
}

func (s *Surface) View() (orb.Point, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center, s.zoom
}

// Order returns the layer ids bottom to top.
func (s *Surface) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// StyleOf returns the drawn style of a feature.
func (s *Surface) StyleOf(layerID, featureID string) (catalog.Style, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.styles[layerID][featureID]
	return st, ok
}

// Has reports whether a layer is drawn.
func (s *Surface) Has(layerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.styles[layerID]
	return ok
}

// Calls returns the recorded command log and resets it.
func (s *Surface) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.calls
	s.calls = nil
	return out
}
