package render

import (
	"math"

	"github.com/paulmach/orb"
)

type selectOptions struct {
	center   *orb.Point
	zoom     *float64
	recenter bool
}

// SelectOption adjusts how Select moves the view.
type SelectOption func(*selectOptions)

// WithCenter pans to an explicit position instead of fitting the feature.
func WithCenter(p orb.Point) SelectOption {
	return func(o *selectOptions) { o.center = &p }
}

// WithZoom sets the zoom used together with WithCenter.
func WithZoom(z float64) SelectOption {
	return func(o *selectOptions) { o.zoom = &z }
}

// WithoutRecenter leaves the view where it is.
func WithoutRecenter() SelectOption {
	return func(o *selectOptions) { o.recenter = false }
}

// Select highlights a feature, looked up by record id or by any alias
// identifier. The previous selection's style is restored first. When the
// target is not found nothing changes and the error wraps
// ErrFeatureNotFound.
func (e *Engine) Select(layerID, featureID string, opts ...SelectOption) (Selection, error) {
	o := selectOptions{recenter: true}
	for _, opt := range opts {
		opt(&o)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectLocked(layerID, featureID, o)
}

func (e *Engine) selectLocked(layerID, featureID string, o selectOptions) (Selection, error) {
	target, err := e.lookupLocked(layerID, featureID)
	if err != nil {
		return e.currentLocked(), err
	}

	e.unhoverLocked()
	e.clearLocked()

	saved := target.Style()
	target.ApplyHighlight(e.catalog.Highlight())
	e.sel = &selection{
		Selection: Selection{LayerID: layerID, FeatureID: target.ID()},
		target:    target,
		saved:     saved,
	}

	if o.recenter {
		e.recenterOnLocked(target, o)
	}
	return e.sel.Selection, nil
}

func (e *Engine) recenterOnLocked(target Renderable, o selectOptions) {
	v := e.catalog.View()
	if o.center != nil {
		_, zoom := e.surface.View()
		if o.zoom != nil {
			zoom = *o.zoom
		}
		e.surface.SetView(*o.center, clamp(zoom, v.MinZoom, v.MaxZoom))
		return
	}
	if b, ok := target.Record().Bound(); ok {
		e.surface.FitBounds(b, v.MaxZoom)
	}
}

// Clear restores the selected feature's style and empties the selection.
// It is a no-op when nothing is selected.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLocked()
}

func (e *Engine) clearLocked() {
	if e.sel == nil {
		return
	}
	e.sel.target.RestoreStyle(e.sel.saved)
	e.sel = nil
}

// Selection returns the current selection.
func (e *Engine) Selection() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

func (e *Engine) currentLocked() Selection {
	if e.sel == nil {
		return Selection{}
	}
	return e.sel.Selection
}

// Hover applies or removes the layer's hover style on a feature. The
// selected feature keeps its highlight and ignores hover.
func (e *Engine) Hover(layerID, featureID string, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	target, err := e.lookupLocked(layerID, featureID)
	if err != nil {
		return err
	}
	if !on {
		if e.hov != nil && e.hov.target == target {
			e.unhoverLocked()
		}
		return nil
	}
	if e.sel != nil && e.sel.target == target {
		return nil
	}
	if e.hov != nil && e.hov.target == target {
		return nil
	}
	e.unhoverLocked()

	saved := target.Style()
	target.ApplyStyle(HoverStyle(e.layers[layerID].desc, saved))
	e.hov = &hover{target: target, saved: saved}
	return nil
}

func (e *Engine) unhoverLocked() {
	if e.hov == nil {
		return
	}
	e.hov.target.RestoreStyle(e.hov.saved)
	e.hov = nil
}

// Click selects a feature without moving the view and notifies the click
// listeners.
func (e *Engine) Click(layerID, featureID string) (Selection, error) {
	e.mu.Lock()
	sel, err := e.selectLocked(layerID, featureID, selectOptions{})
	if err != nil {
		e.mu.Unlock()
		return sel, err
	}
	ev := ClickEvent{LayerID: layerID, FeatureID: sel.FeatureID, Record: e.sel.target.Record()}
	listeners := append([]func(ClickEvent){}, e.listeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
	return sel, nil
}

// ClickAt clicks the topmost feature under p. The hit tolerance is a few
// screen pixels at the current zoom.
func (e *Engine) ClickAt(p orb.Point) (Selection, error) {
	e.mu.Lock()
	_, zoom := e.surface.View()
	tol := pixelTolerance(zoom)

	ordered := e.orderedLocked()
	var layerID, featureID string
	for i := len(ordered) - 1; i >= 0; i-- {
		if r, ok := ordered[i].FeatureAt(p, tol); ok {
			layerID, featureID = r.LayerID(), r.ID()
			break
		}
	}
	e.mu.Unlock()

	if layerID == "" {
		return e.Selection(), ErrFeatureNotFound
	}
	return e.Click(layerID, featureID)
}

// pixelTolerance is five 256px-tile pixels at zoom, in degrees.
func pixelTolerance(zoom float64) float64 {
	return 5 * 360 / (256 * math.Pow(2, zoom))
}
