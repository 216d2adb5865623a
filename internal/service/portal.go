package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/feature"
	"github.com/joeblew999/geoportal/internal/render"
	"github.com/joeblew999/geoportal/internal/table"
)

// ErrLayerInactive is returned for table operations on a layer that is
// not on the map.
var ErrLayerInactive = errors.New("layer not active")

// ErrGroupNotFound is returned for unknown group ids.
var ErrGroupNotFound = errors.New("group not found")

// Mirror receives the records of every activated layer.
type Mirror interface {
	ReplaceLayer(ctx context.Context, layerID string, recs []feature.Record) error
	DropLayer(ctx context.Context, layerID string) error
}

// Portal ties the map engine to one attribute table per active layer.
// Selecting a table row highlights the feature on the map; clicking a
// feature reveals its row.
type Portal struct {
	catalog  *catalog.Catalog
	engine   *render.Engine
	bus      *EventBus
	mirror   Mirror
	log      *slog.Logger
	viewOpts []table.ViewOption

	mu    sync.Mutex
	views map[string]*table.View
}

// PortalOption configures a Portal.
type PortalOption func(*Portal)

// WithBus publishes events on b instead of a private bus.
func WithBus(b *EventBus) PortalOption {
	return func(p *Portal) { p.bus = b }
}

// WithMirror copies activated layers into m.
func WithMirror(m Mirror) PortalOption {
	return func(p *Portal) { p.mirror = m }
}

// WithLogger sets the portal logger.
func WithLogger(l *slog.Logger) PortalOption {
	return func(p *Portal) { p.log = l }
}

// WithViewOptions applies opts to every table view.
func WithViewOptions(opts ...table.ViewOption) PortalOption {
	return func(p *Portal) { p.viewOpts = append(p.viewOpts, opts...) }
}

// NewPortal wraps engine. The catalog must be the one engine was built on.
func NewPortal(c *catalog.Catalog, engine *render.Engine, opts ...PortalOption) *Portal {
	p := &Portal{
		catalog: c,
		engine:  engine,
		log:     slog.Default(),
		views:   make(map[string]*table.View),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bus == nil {
		p.bus = NewEventBus()
	}
	engine.OnClick(p.revealClicked)
	return p
}

// Catalog returns the layer catalog.
func (p *Portal) Catalog() *catalog.Catalog { return p.catalog }

// Engine returns the map engine.
func (p *Portal) Engine() *render.Engine { return p.engine }

// Bus returns the event bus.
func (p *Portal) Bus() *EventBus { return p.bus }

// Activate loads a layer onto the map and builds its table.
func (p *Portal) Activate(ctx context.Context, layerID string) (render.Activation, error) {
	act, err := p.engine.Activate(ctx, layerID)
	if err != nil || act.Discarded {
		return act, err
	}

	// The mirror is written under p.mu so that a concurrent Deactivate
	// drops the table after this write, and the latest records win.
	p.mu.Lock()
	recs, ok := p.engine.Records(layerID)
	if !ok {
		// deactivated after the engine accepted the result
		p.mu.Unlock()
		act.Discarded = true
		return act, nil
	}
	if v, ok := p.views[layerID]; ok {
		v.SetRecords(recs)
	} else {
		p.views[layerID] = table.NewView(layerID, p.catalog.DisplayName(layerID), recs, p.viewOpts...)
	}
	if p.mirror != nil {
		if err := p.mirror.ReplaceLayer(ctx, layerID, recs); err != nil {
			p.log.Warn("mirror update failed", "layer", layerID, "error", err)
		}
	}
	p.mu.Unlock()

	p.bus.Publish(Event{Resource: ResourceLayers, Action: "activated", ID: layerID})
	return act, nil
}

// Deactivate removes a layer and its table. It reports whether the layer
// was active or loading.
func (p *Portal) Deactivate(ctx context.Context, layerID string) bool {
	p.mu.Lock()
	before := p.engine.Selection()
	ok := p.engine.Deactivate(layerID)
	delete(p.views, layerID)
	if ok && p.mirror != nil {
		if err := p.mirror.DropLayer(ctx, layerID); err != nil {
			p.log.Warn("mirror drop failed", "layer", layerID, "error", err)
		}
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	p.bus.Publish(Event{Resource: ResourceLayers, Action: "deactivated", ID: layerID})
	if before.LayerID == layerID {
		p.bus.Publish(Event{Resource: ResourceSelection, Action: "cleared"})
	}
	return true
}

func (p *Portal) group(id string) (catalog.Group, error) {
	for _, g := range p.catalog.Groups() {
		if g.ID == id {
			return g, nil
		}
	}
	return catalog.Group{}, fmt.Errorf("%w: %q", ErrGroupNotFound, id)
}

// ActivateGroup activates every member of a group concurrently.
func (p *Portal) ActivateGroup(ctx context.Context, groupID string) ([]render.Activation, error) {
	g, err := p.group(groupID)
	if err != nil {
		return nil, err
	}

	out := make([]render.Activation, len(g.Layers))
	eg, ctx := errgroup.WithContext(ctx)
	for i, id := range g.Layers {
		eg.Go(func() error {
			act, err := p.Activate(ctx, id)
			out[i] = act
			return err
		})
	}
	return out, eg.Wait()
}

// DeactivateGroup deactivates every member of a group.
func (p *Portal) DeactivateGroup(ctx context.Context, groupID string) error {
	g, err := p.group(groupID)
	if err != nil {
		return err
	}
	for _, id := range g.Layers {
		p.Deactivate(ctx, id)
	}
	return nil
}

// View returns the table of an active layer.
func (p *Portal) View(layerID string) (*table.View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.views[layerID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLayerInactive, layerID)
	}
	return v, nil
}

// UpdateView applies fn to a layer's table and announces the change.
func (p *Portal) UpdateView(layerID, action string, fn func(*table.View) error) (table.Page, error) {
	v, err := p.View(layerID)
	if err != nil {
		return table.Page{}, err
	}
	if err := fn(v); err != nil {
		return v.Page(), err
	}
	p.bus.Publish(Event{Resource: ResourceView, Action: action, ID: layerID})
	return v.Page(), nil
}

// SelectRow highlights the feature behind a table row and moves the map
// to it.
func (p *Portal) SelectRow(layerID, rowID string, opts ...render.SelectOption) (render.Selection, error) {
	sel, err := p.engine.Select(layerID, rowID, opts...)
	if err != nil {
		return sel, err
	}
	p.bus.Publish(Event{Resource: ResourceSelection, Action: "selected", ID: layerID + "/" + sel.FeatureID})
	p.bus.Publish(Event{Resource: ResourceMap, Action: "moved"})
	return sel, nil
}

// ClearSelection removes the map highlight.
func (p *Portal) ClearSelection() {
	p.engine.Clear()
	p.bus.Publish(Event{Resource: ResourceSelection, Action: "cleared"})
}

// Click selects a feature as a map click does.
func (p *Portal) Click(layerID, featureID string) (render.Selection, error) {
	return p.engine.Click(layerID, featureID)
}

// ClickAt clicks the topmost feature under a coordinate.
func (p *Portal) ClickAt(pt orb.Point) (render.Selection, error) {
	return p.engine.ClickAt(pt)
}

// Navigate applies a map navigation and announces the new view.
func (p *Portal) Navigate(fn func(*render.Engine) render.MapView) render.MapView {
	v := fn(p.engine)
	p.bus.Publish(Event{Resource: ResourceMap, Action: "moved"})
	return v
}

func (p *Portal) revealClicked(ev render.ClickEvent) {
	p.bus.Publish(Event{Resource: ResourceSelection, Action: "clicked", ID: ev.LayerID + "/" + ev.FeatureID})

	v, err := p.View(ev.LayerID)
	if err != nil {
		return
	}
	page, ok := v.Reveal(ev.FeatureID)
	if !ok {
		p.log.Debug("clicked feature hidden by table filters", "layer", ev.LayerID, "feature", ev.FeatureID)
		return
	}
	p.log.Debug("revealed clicked row", "layer", ev.LayerID, "feature", ev.FeatureID, "page", page)
	p.bus.Publish(Event{Resource: ResourceView, Action: "revealed", ID: ev.LayerID})
}
