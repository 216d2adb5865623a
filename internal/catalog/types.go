// Package catalog is the static registry of map layers: geometry type,
// source, default styling, z priority and group membership.
package catalog

// GeometryType is the geometry family a layer renders.
type GeometryType string

const (
	Point      GeometryType = "Point"
	LineString GeometryType = "LineString"
	Polygon    GeometryType = "Polygon"
)

// Valid reports whether t is one of the supported geometry families.
func (t GeometryType) Valid() bool {
	switch t {
	case Point, LineString, Polygon:
		return true
	}
	return false
}

// Layer describes one toggleable map layer.
type Layer struct {
	ID           string         `json:"id" yaml:"id" doc:"Unique layer identifier" example:"suelos-wfs"`
	Name         string         `json:"name" yaml:"name" doc:"Display name" example:"Suelos"`
	GeometryType GeometryType   `json:"geometryType" yaml:"geometry" enum:"Point,LineString,Polygon" doc:"Geometry type"`
	Group        string         `json:"group,omitempty" yaml:"group" doc:"Owning group id" example:"geology"`
	ZIndex       int            `json:"zIndex" yaml:"zIndex" doc:"Render priority; higher draws above lower"`
	Source       Source         `json:"source" yaml:"source" doc:"Where features are fetched from"`
	Style        Style          `json:"style" yaml:"style" doc:"Default style"`
	Hover        Style          `json:"hover,omitempty" yaml:"hover" doc:"Style overrides applied on hover"`
	Categories   *CategoryStyle `json:"categories,omitempty" yaml:"categories" doc:"Categorical fill for point layers"`
	Popup        []string       `json:"popup,omitempty" yaml:"popup" doc:"Property keys listed first in feature summaries"`
}

// Source locates a layer's feature collection.
type Source struct {
	URL      string `json:"url,omitempty" yaml:"url" doc:"Remote feature service URL"`
	Fallback string `json:"fallback,omitempty" yaml:"fallback" doc:"Bundled fallback file, relative to the sources directory"`
	CRS      string `json:"crs,omitempty" yaml:"crs" doc:"Declared reference system; overrides the document's crs member"`
}

// Style is a set of render properties. Zero fields mean "unset" when
// styles are merged.
type Style struct {
	Color       string  `json:"color,omitempty" yaml:"color" doc:"Stroke color (CSS)" example:"#1d4ed8"`
	FillColor   string  `json:"fillColor,omitempty" yaml:"fillColor" doc:"Fill color (CSS)" example:"#3388ff"`
	Weight      float64 `json:"weight,omitempty" yaml:"weight" doc:"Stroke width"`
	Opacity     float64 `json:"opacity,omitempty" yaml:"opacity" minimum:"0" maximum:"1" doc:"Stroke opacity (0-1)"`
	FillOpacity float64 `json:"fillOpacity,omitempty" yaml:"fillOpacity" minimum:"0" maximum:"1" doc:"Fill opacity (0-1)"`
	Radius      float64 `json:"radius,omitempty" yaml:"radius" doc:"Point radius"`
}

// Merge returns s with every set field of o applied on top.
func (s Style) Merge(o Style) Style {
	if o.Color != "" {
		s.Color = o.Color
	}
	if o.FillColor != "" {
		s.FillColor = o.FillColor
	}
	if o.Weight != 0 {
		s.Weight = o.Weight
	}
	if o.Opacity != 0 {
		s.Opacity = o.Opacity
	}
	if o.FillOpacity != 0 {
		s.FillOpacity = o.FillOpacity
	}
	if o.Radius != 0 {
		s.Radius = o.Radius
	}
	return s
}

// IsZero reports whether no field is set.
func (s Style) IsZero() bool { return s == Style{} }

// CategoryStyle colors point features by a categorical property.
type CategoryStyle struct {
	// Properties are tried in order; the first non-empty one is the category.
	Properties []string          `json:"properties" yaml:"properties" doc:"Candidate category property keys"`
	Missing    string            `json:"missing,omitempty" yaml:"missing" doc:"Category used when no property is present"`
	Colors     map[string]string `json:"colors" yaml:"colors" doc:"Fill color per category"`
	Fallback   string            `json:"fallback" yaml:"fallback" doc:"Fill color for unrecognized categories" example:"#888888"`
}

// Group is an ordered set of layers shown together.
type Group struct {
	ID     string   `json:"id" yaml:"id" doc:"Group identifier" example:"hydrology"`
	Name   string   `json:"name" yaml:"name" doc:"Display name" example:"Hidrología"`
	Color  string   `json:"color,omitempty" yaml:"color" doc:"Accent color (CSS)"`
	Layers []string `json:"layers" yaml:"layers" doc:"Member layer ids in display order"`
}

// Highlight holds the selection style per geometry family.
type Highlight struct {
	Point      Style `json:"point" yaml:"point"`
	LineString Style `json:"lineString" yaml:"lineString"`
	Polygon    Style `json:"polygon" yaml:"polygon"`
}

// For returns the highlight style for a geometry family.
func (h Highlight) For(t GeometryType) Style {
	switch t {
	case Point:
		return h.Point
	case LineString:
		return h.LineString
	default:
		return h.Polygon
	}
}

// View is the map's initial and bounding view configuration.
type View struct {
	Center  [2]float64 `json:"center" yaml:"center" doc:"Home center as [lon, lat]"`
	Zoom    float64    `json:"zoom" yaml:"zoom" doc:"Home zoom"`
	MinZoom float64    `json:"minZoom" yaml:"minZoom" doc:"Minimum zoom"`
	MaxZoom float64    `json:"maxZoom" yaml:"maxZoom" doc:"Maximum zoom"`
}

// Document is the on-disk catalog shape.
type Document struct {
	View      View      `yaml:"view"`
	Highlight Highlight `yaml:"highlight"`
	Groups    []Group   `yaml:"groups"`
	Layers    []Layer   `yaml:"layers"`
}
