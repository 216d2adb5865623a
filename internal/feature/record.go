package feature

import "github.com/paulmach/orb"

// Record is a normalized feature: stable id, geometry and the remaining
// properties. Records are rebuilt on every load and never mutated in place
// once handed out.
type Record struct {
	ID         string
	LayerID    string
	Geometry   orb.Geometry
	Properties Properties
}

// Aliases returns the record id followed by every identifier field still
// present in the properties (those whose value differs from ID).
func (r Record) Aliases() []string {
	out := []string{r.ID}
	for _, key := range IDKeys {
		v, ok := r.Properties.Get(key)
		if !ok || v.IsNull() {
			continue
		}
		if s := v.Text(); s != "" && s != r.ID {
			out = append(out, s)
		}
	}
	return out
}

// Bound returns the geometry bound, or an empty bound for a nil geometry.
func (r Record) Bound() (orb.Bound, bool) {
	if r.Geometry == nil {
		return orb.Bound{}, false
	}
	return r.Geometry.Bound(), true
}

// Normalize turns raw features into records for layerID. Identifier
// fields whose value equals the resolved id are removed from the
// properties; differing ones are kept.
func Normalize(layerID string, raws []RawFeature) []Record {
	return NormalizeAt(layerID, raws, nil)
}

// NormalizeAt is Normalize with the source positions of raws, so that
// positional ids survive features dropped upstream. A nil positions slice
// numbers the features in slice order.
func NormalizeAt(layerID string, raws []RawFeature, positions []int) []Record {
	out := make([]Record, 0, len(raws))
	for i, raw := range raws {
		pos := i
		if positions != nil {
			pos = positions[i]
		}
		id := ResolveID(raw, pos)
		props := raw.Properties.Clone()
		for _, key := range IDKeys {
			if v, ok := props.Get(key); ok && (v.IsNull() || v.Text() == id) {
				props.Delete(key)
			}
		}
		out = append(out, Record{
			ID:         id,
			LayerID:    layerID,
			Geometry:   raw.Geometry,
			Properties: props,
		})
	}
	return out
}
