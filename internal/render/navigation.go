package render

import (
	"math"

	"github.com/paulmach/orb"
)

// ZoomIn zooms one level in, up to the configured maximum.
func (e *Engine) ZoomIn() MapView { return e.zoomBy(1) }

// ZoomOut zooms one level out, down to the configured minimum.
func (e *Engine) ZoomOut() MapView { return e.zoomBy(-1) }

func (e *Engine) zoomBy(delta float64) MapView {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.catalog.View()
	center, zoom := e.surface.View()
	next := clamp(math.Round(zoom)+delta, v.MinZoom, v.MaxZoom)
	if next != zoom {
		e.surface.SetView(center, next)
	}
	return e.viewLocked()
}

// Recenter pans to center, optionally changing the zoom.
func (e *Engine) Recenter(center orb.Point, zoom ...float64) MapView {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.catalog.View()
	_, z := e.surface.View()
	if len(zoom) > 0 {
		z = zoom[0]
	}
	e.surface.SetView(center, clamp(z, v.MinZoom, v.MaxZoom))
	return e.viewLocked()
}

// ResetHome returns to the configured home center and zoom.
func (e *Engine) ResetHome() MapView {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.catalog.View()
	e.surface.SetView(orb.Point{v.Center[0], v.Center[1]}, v.Zoom)
	return e.viewLocked()
}

// FitBounds shows b as closely as the maximum zoom allows.
func (e *Engine) FitBounds(b orb.Bound) MapView {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.surface.FitBounds(b, e.catalog.View().MaxZoom)
	return e.viewLocked()
}

// View returns the current map view.
func (e *Engine) View() MapView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Engine) viewLocked() MapView {
	center, zoom := e.surface.View()
	return MapView{Center: center, Zoom: zoom, Scale: Scale(zoom)}
}

func clamp(z, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, z))
}
