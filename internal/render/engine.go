// Package render keeps the map state: which layers are on the surface, in
// what order, how each feature is styled and which single feature is
// highlighted.
package render

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/feature"
	"github.com/joeblew999/geoportal/internal/source"
)

// ErrFeatureNotFound is returned when a selection, hover or click target
// is not in an active layer.
var ErrFeatureNotFound = errors.New("feature not found")

// Catalog is what the engine reads from the layer catalog.
type Catalog interface {
	Describe(id string) (catalog.Layer, error)
	Position(id string) int
	Highlight() catalog.Highlight
	View() catalog.View
}

// Loader fetches the features of a layer.
type Loader interface {
	Fetch(ctx context.Context, layerID string) (source.Result, error)
}

// Activation reports the outcome of Activate.
type Activation struct {
	LayerID     string        `json:"layerId"`
	Count       int           `json:"count" doc:"Features on the surface"`
	Origin      source.Origin `json:"origin" enum:"remote,fallback,none"`
	Dropped     int           `json:"dropped" doc:"Features dropped by reprojection"`
	Unavailable bool          `json:"unavailable" doc:"Neither the service nor the fallback produced data; the layer is empty"`
	Discarded   bool          `json:"discarded" doc:"The fetch was superseded or the layer was deactivated meanwhile"`
}

// Selection identifies the highlighted feature. The zero value is the
// empty selection.
type Selection struct {
	LayerID   string `json:"layerId,omitempty"`
	FeatureID string `json:"featureId,omitempty"`
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return s.LayerID == "" }

// ClickEvent is delivered to click listeners.
type ClickEvent struct {
	LayerID   string
	FeatureID string
	Record    feature.Record
}

// LayerInfo summarizes an active layer.
type LayerInfo struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	GeometryType catalog.GeometryType `json:"geometryType"`
	Rank         int                  `json:"rank" doc:"Stacking position, 0 at the bottom"`
	Count        int                  `json:"count"`
	Origin       source.Origin        `json:"origin"`
	Unavailable  bool                 `json:"unavailable"`
}

type selection struct {
	Selection
	target Renderable
	saved  catalog.Style
}

type hover struct {
	target Renderable
	saved  catalog.Style
}

// Engine owns the rendered layers and the single selection. All methods
// are safe for concurrent use; fetches run without holding the lock.
type Engine struct {
	catalog Catalog
	loader  Loader
	surface Surface
	log     *slog.Logger

	mu        sync.Mutex
	layers    map[string]*RenderedLayer
	pending   map[string]uint64
	gen       uint64
	sel       *selection
	hov       *hover
	listeners []func(ClickEvent)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine drawing on surface. The surface starts at
// the catalog's home view.
func NewEngine(c Catalog, loader Loader, surface Surface, opts ...Option) *Engine {
	e := &Engine{
		catalog: c,
		loader:  loader,
		surface: surface,
		log:     slog.Default(),
		layers:  make(map[string]*RenderedLayer),
		pending: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	v := c.View()
	surface.SetView(orb.Point{v.Center[0], v.Center[1]}, v.Zoom)
	return e
}

// Activate fetches a layer and puts it on the surface. Re-activating an
// active layer replaces it. If the layer is deactivated, or activated
// again, before this fetch completes, the result is discarded.
//
// Unavailable data is not an error: an empty layer is added and the
// outcome says so.
func (e *Engine) Activate(ctx context.Context, layerID string) (Activation, error) {
	e.mu.Lock()
	desc, err := e.catalog.Describe(layerID)
	if err != nil {
		e.mu.Unlock()
		return Activation{LayerID: layerID}, err
	}
	e.gen++
	token := e.gen
	e.pending[layerID] = token
	e.mu.Unlock()

	res, err := e.loader.Fetch(ctx, layerID)
	unavailable := errors.Is(err, source.ErrDataUnavailable)
	if err != nil && !unavailable {
		e.mu.Lock()
		if e.pending[layerID] == token {
			delete(e.pending, layerID)
		}
		e.mu.Unlock()
		return Activation{LayerID: layerID}, err
	}
	records := res.Records()

	e.mu.Lock()
	defer e.mu.Unlock()

	out := Activation{
		LayerID:     layerID,
		Count:       len(records),
		Origin:      res.Origin,
		Dropped:     res.Dropped,
		Unavailable: unavailable,
	}
	if e.pending[layerID] != token {
		e.log.Debug("discarding stale layer fetch", "layer", layerID, "generation", token)
		out.Discarded = true
		return out, nil
	}
	delete(e.pending, layerID)

	if old, ok := e.layers[layerID]; ok {
		e.dropLocked(old)
	}

	l := newRenderedLayer(desc, records, e.surface)
	l.origin = res.Origin
	l.unavailable = unavailable
	e.layers[layerID] = l
	e.surface.AddLayer(layerID, l.Features())
	e.reconcileLocked()

	e.log.Info("layer activated", "layer", layerID, "features", out.Count, "origin", out.Origin, "dropped", out.Dropped)
	return out, nil
}

// Deactivate removes a layer from the surface and cancels any pending
// activation of it. It reports whether the layer was active or pending.
func (e *Engine) Deactivate(layerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, pending := e.pending[layerID]
	delete(e.pending, layerID)

	l, ok := e.layers[layerID]
	if !ok {
		return pending
	}
	e.dropLocked(l)
	e.reconcileLocked()
	e.log.Info("layer deactivated", "layer", layerID)
	return true
}

func (e *Engine) dropLocked(l *RenderedLayer) {
	if e.sel != nil && e.sel.LayerID == l.ID() {
		e.sel = nil
	}
	if e.hov != nil && e.hov.target.LayerID() == l.ID() {
		e.hov = nil
	}
	e.surface.RemoveLayer(l.ID())
	delete(e.layers, l.ID())
}

// ReconcileOrder re-applies the fixed stacking order to every active
// layer: ascending zIndex, ties broken by catalog position. Calling it
// repeatedly has no further effect.
func (e *Engine) ReconcileOrder() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reconcileLocked()
}

func (e *Engine) reconcileLocked() {
	for i, l := range e.orderedLocked() {
		l.rank = i
		e.surface.BringToFront(l.ID())
	}
}

// orderedLocked returns the active layers bottom to top.
func (e *Engine) orderedLocked() []*RenderedLayer {
	out := make([]*RenderedLayer, 0, len(e.layers))
	for _, l := range e.layers {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b *RenderedLayer) int {
		return cmp.Or(
			cmp.Compare(a.desc.ZIndex, b.desc.ZIndex),
			cmp.Compare(e.catalog.Position(a.ID()), e.catalog.Position(b.ID())),
			cmp.Compare(a.ID(), b.ID()),
		)
	})
	return out
}

// Layers lists the active layers bottom to top.
func (e *Engine) Layers() []LayerInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	ordered := e.orderedLocked()
	out := make([]LayerInfo, 0, len(ordered))
	for _, l := range ordered {
		out = append(out, LayerInfo{
			ID:           l.ID(),
			Name:         l.desc.Name,
			GeometryType: l.desc.GeometryType,
			Rank:         l.rank,
			Count:        l.Len(),
			Origin:       l.origin,
			Unavailable:  l.unavailable,
		})
	}
	return out
}

// Active reports whether a layer is on the surface.
func (e *Engine) Active(layerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.layers[layerID]
	return ok
}

// Records returns the records of an active layer.
func (e *Engine) Records(layerID string) ([]feature.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.layers[layerID]
	if !ok {
		return nil, false
	}
	return l.Records(), true
}

// Style returns the current style of a feature.
func (e *Engine) Style(layerID, featureID string) (catalog.Style, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.lookupLocked(layerID, featureID)
	if err != nil {
		return catalog.Style{}, err
	}
	return r.Style(), nil
}

// Bound returns the extent of an active layer.
func (e *Engine) Bound(layerID string) (orb.Bound, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.layers[layerID]
	if !ok {
		return orb.Bound{}, false
	}
	return l.Bound()
}

func (e *Engine) lookupLocked(layerID, featureID string) (Renderable, error) {
	l, ok := e.layers[layerID]
	if !ok {
		return nil, fmt.Errorf("%w: layer %q is not active", ErrFeatureNotFound, layerID)
	}
	r, ok := l.Lookup(featureID)
	if !ok {
		return nil, fmt.Errorf("%w: %q in layer %q", ErrFeatureNotFound, featureID, layerID)
	}
	return r, nil
}

// OnClick registers a listener called after every successful click.
// Listeners run outside the engine lock.
func (e *Engine) OnClick(fn func(ClickEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}
