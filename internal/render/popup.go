package render

import (
	"slices"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/feature"
)

// Field is one line of a feature summary.
type Field struct {
	Key   string        `json:"key"`
	Value feature.Value `json:"value"`
}

// Summary is what a feature popup shows.
type Summary struct {
	LayerID   string  `json:"layerId"`
	LayerName string  `json:"layerName"`
	FeatureID string  `json:"featureId"`
	Title     string  `json:"title"`
	Geometry  string  `json:"geometry,omitempty" doc:"Geometry type of the feature"`
	Fields    []Field `json:"fields"`
}

var titleKeys = []string{"nombre", "name", "Name"}

// Summarize builds the popup summary of a record: the layer's popup keys
// first, then the remaining properties in document order.
func Summarize(layer catalog.Layer, rec feature.Record) Summary {
	s := Summary{
		LayerID:   layer.ID,
		LayerName: layer.Name,
		FeatureID: rec.ID,
		Title:     layer.Name,
	}
	if rec.Geometry != nil {
		s.Geometry = rec.Geometry.GeoJSONType()
	}
	for _, k := range titleKeys {
		if v := rec.Properties.Value(k); v.Text() != "" {
			s.Title = v.Text()
			break
		}
	}

	for _, k := range layer.Popup {
		if v, ok := rec.Properties.Get(k); ok {
			s.Fields = append(s.Fields, Field{Key: k, Value: v})
		}
	}
	for k, v := range rec.Properties.All() {
		if !slices.Contains(layer.Popup, k) {
			s.Fields = append(s.Fields, Field{Key: k, Value: v})
		}
	}
	return s
}

// Summary returns the popup summary of a feature in an active layer.
func (e *Engine) Summary(layerID, featureID string) (Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.lookupLocked(layerID, featureID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(e.layers[layerID].desc, r.Record()), nil
}
