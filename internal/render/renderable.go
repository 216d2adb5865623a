package render

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/feature"
)

// Renderable is a feature drawn on the surface. The set of implementations
// is closed: *PointFeature, *LineFeature and *PolygonFeature.
type Renderable interface {
	ID() string
	LayerID() string
	Record() feature.Record
	Family() catalog.GeometryType
	Style() catalog.Style

	// ApplyStyle sets a new style, keeping only the properties the geometry
	// family draws.
	ApplyStyle(s catalog.Style)
	// ApplyHighlight layers the family's highlight style over the current one.
	ApplyHighlight(h catalog.Highlight)
	// RestoreStyle puts back a previously saved style exactly.
	RestoreStyle(saved catalog.Style)

	renderable()
}

type shape struct {
	rec     feature.Record
	style   catalog.Style
	surface Surface
}

func (s *shape) ID() string             { return s.rec.ID }
func (s *shape) LayerID() string        { return s.rec.LayerID }
func (s *shape) Record() feature.Record { return s.rec }
func (s *shape) Style() catalog.Style   { return s.style }
func (s *shape) renderable()            {}

func (s *shape) paint(st catalog.Style) {
	s.style = st
	if s.surface != nil {
		s.surface.SetStyle(s.rec.LayerID, s.rec.ID, st)
	}
}

func (s *shape) RestoreStyle(saved catalog.Style) { s.paint(saved) }

// PointFeature is drawn as a circle marker.
type PointFeature struct{ shape }

func (p *PointFeature) Family() catalog.GeometryType { return catalog.Point }

func (p *PointFeature) ApplyStyle(s catalog.Style) { p.paint(pointStyle(s)) }

func (p *PointFeature) ApplyHighlight(h catalog.Highlight) {
	p.paint(pointStyle(p.style.Merge(h.Point)))
}

// LineFeature is drawn as a stroke only.
type LineFeature struct{ shape }

func (l *LineFeature) Family() catalog.GeometryType { return catalog.LineString }

func (l *LineFeature) ApplyStyle(s catalog.Style) { l.paint(lineStyle(s)) }

func (l *LineFeature) ApplyHighlight(h catalog.Highlight) {
	l.paint(lineStyle(l.style.Merge(h.LineString)))
}

// PolygonFeature is drawn as stroke plus fill.
type PolygonFeature struct{ shape }

func (p *PolygonFeature) Family() catalog.GeometryType { return catalog.Polygon }

func (p *PolygonFeature) ApplyStyle(s catalog.Style) { p.paint(polygonStyle(s)) }

func (p *PolygonFeature) ApplyHighlight(h catalog.Highlight) {
	p.paint(polygonStyle(p.style.Merge(h.Polygon)))
}

func pointStyle(s catalog.Style) catalog.Style {
	if s.FillColor == "" {
		s.FillColor = s.Color
	}
	return s
}

func lineStyle(s catalog.Style) catalog.Style {
	s.FillColor, s.FillOpacity, s.Radius = "", 0, 0
	return s
}

func polygonStyle(s catalog.Style) catalog.Style {
	s.Radius = 0
	if s.FillColor == "" {
		s.FillColor = s.Color
	}
	return s
}

// Family returns the geometry family of g, or fallback when g is nil.
func Family(g orb.Geometry, fallback catalog.GeometryType) catalog.GeometryType {
	if g == nil {
		return fallback
	}
	switch g.Dimensions() {
	case 0:
		return catalog.Point
	case 1:
		return catalog.LineString
	default:
		return catalog.Polygon
	}
}

// NewRenderable wraps a record in the variant matching its geometry and
// styles it with ResolveStyle. Style changes are sent to surface, which may
// be nil.
func NewRenderable(layer catalog.Layer, rec feature.Record, surface Surface) Renderable {
	base := shape{rec: rec, surface: surface}
	switch Family(rec.Geometry, layer.GeometryType) {
	case catalog.Point:
		base.style = pointStyle(ResolveStyle(layer, rec))
		return &PointFeature{base}
	case catalog.LineString:
		base.style = lineStyle(ResolveStyle(layer, rec))
		return &LineFeature{base}
	default:
		base.style = polygonStyle(ResolveStyle(layer, rec))
		return &PolygonFeature{base}
	}
}
