package render

import (
	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/feature"
)

// ResolveStyle returns the style a record is drawn with: the layer's base
// style, with point fills taken from the layer's category table. It is the
// only place feature styles are computed.
func ResolveStyle(layer catalog.Layer, rec feature.Record) catalog.Style {
	s := layer.Style
	if layer.Categories != nil && Family(rec.Geometry, layer.GeometryType) == catalog.Point {
		s.FillColor = CategoryColor(*layer.Categories, rec.Properties)
	}
	return s
}

// HoverStyle returns base with the layer's hover overrides applied.
func HoverStyle(layer catalog.Layer, base catalog.Style) catalog.Style {
	return base.Merge(layer.Hover)
}

// Category returns the category of props: the first candidate property
// with a non-empty value, else the configured missing category.
func Category(cs catalog.CategoryStyle, props feature.Properties) string {
	for _, key := range cs.Properties {
		if v, ok := props.Get(key); ok && !v.IsNull() {
			if s := v.Text(); s != "" {
				return s
			}
		}
	}
	return cs.Missing
}

// CategoryColor returns the fill color for the category of props, or the
// fallback color for categories the table does not list.
func CategoryColor(cs catalog.CategoryStyle, props feature.Properties) string {
	if c, ok := cs.Colors[Category(cs, props)]; ok {
		return c
	}
	return cs.Fallback
}
