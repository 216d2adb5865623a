package feature

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrMalformed is returned when a document is not a usable feature
// collection (not JSON, or no features array).
var ErrMalformed = errors.New("malformed feature collection")

var errGeometry = errors.New("invalid geometry")

// RawFeature is a feature as decoded from a collection document.
type RawFeature struct {
	// DocumentID is the top-level "id" member, if any.
	DocumentID Value
	Geometry   orb.Geometry
	Properties Properties
	// Index is the position of the feature in its source document.
	Index int
}

// Collection is a decoded feature collection document.
type Collection struct {
	// CRS is the declared reference system name, empty if none.
	CRS      string
	Features []RawFeature
	// Dropped counts features skipped for an unreadable geometry.
	Dropped int
}

type collectionDoc struct {
	CRS *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
	Features *[]json.RawMessage `json:"features"`
}

type featureDoc struct {
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties Properties      `json:"properties"`
}

// DecodeCollection parses a feature collection document. Features are
// returned in document order. A feature whose geometry cannot be read is
// skipped and counted in Dropped; any other defect rejects the document.
func DecodeCollection(data []byte) (*Collection, error) {
	var doc collectionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Features == nil {
		return nil, fmt.Errorf("%w: missing features array", ErrMalformed)
	}

	c := &Collection{Features: make([]RawFeature, 0, len(*doc.Features))}
	if doc.CRS != nil {
		c.CRS = doc.CRS.Properties.Name
	}

	for i, raw := range *doc.Features {
		f, err := decodeFeature(raw)
		if errors.Is(err, errGeometry) {
			c.Dropped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: feature %d: %v", ErrMalformed, i, err)
		}
		f.Index = i
		c.Features = append(c.Features, f)
	}
	return c, nil
}

func decodeFeature(raw json.RawMessage) (RawFeature, error) {
	var doc featureDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return RawFeature{}, err
	}

	f := RawFeature{Properties: doc.Properties}
	if len(doc.ID) > 0 {
		if err := f.DocumentID.UnmarshalJSON(doc.ID); err != nil {
			return RawFeature{}, fmt.Errorf("id: %w", err)
		}
	}

	g := bytes.TrimSpace(doc.Geometry)
	if len(g) > 0 && !bytes.Equal(g, []byte("null")) {
		geom, err := geojson.UnmarshalGeometry(g)
		if err != nil {
			return RawFeature{}, fmt.Errorf("%w: %v", errGeometry, err)
		}
		f.Geometry = geom.Geometry()
	}
	return f, nil
}
