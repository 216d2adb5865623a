// Package crs reprojects geometries between the reference systems found in
// upstream feature services and the geographic display reference.
package crs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Display is the reference system every geometry is delivered in.
const Display = "EPSG:4326"

// ErrReprojection classifies every reprojection failure.
var ErrReprojection = errors.New("reprojection failed")

// ReprojectionError reports why a geometry could not be reprojected.
type ReprojectionError struct {
	From   string
	Reason string
}

func (e *ReprojectionError) Error() string {
	return fmt.Sprintf("reproject from %s: %s", e.From, e.Reason)
}

func (e *ReprojectionError) Is(target error) bool { return target == ErrReprojection }

// Code normalizes the many spellings of a reference system name
// ("urn:ogc:def:crs:EPSG::3857", "EPSG:3857", "epsg:3857", CRS84) to
// "EPSG:<code>". Unrecognized names are returned upper-cased.
func Code(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return Display
	}
	u := strings.ToUpper(n)
	if strings.HasSuffix(u, "CRS84") {
		return Display
	}
	if i := strings.LastIndex(u, ":"); i >= 0 && strings.Contains(u, "EPSG") {
		if _, err := strconv.Atoi(u[i+1:]); err == nil {
			return "EPSG:" + u[i+1:]
		}
	}
	if strings.HasPrefix(u, "HTTP://WWW.OPENGIS.NET/DEF/CRS/EPSG/") {
		return "EPSG:" + u[strings.LastIndex(u, "/")+1:]
	}
	return u
}

// Same reports whether two names denote the same reference system.
func Same(a, b string) bool {
	return Code(a) == Code(b)
}

// Transformer converts geometries from one reference system to Display.
type Transformer struct {
	from string
	proj orb.Projection
}

// NewTransformer returns a transformer from the named system to Display.
func NewTransformer(from string) (*Transformer, error) {
	code := Code(from)
	proj, err := projectionFor(code)
	if err != nil {
		return nil, err
	}
	return &Transformer{from: code, proj: proj}, nil
}

// Identity reports whether the transformer leaves coordinates unchanged.
func (t *Transformer) Identity() bool { return t.proj == nil }

// From returns the normalized source reference system.
func (t *Transformer) From() string { return t.from }

// Apply reprojects g and validates the result. The input is not modified.
func (t *Transformer) Apply(g orb.Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	out := g
	if t.proj != nil {
		out = project.Geometry(orb.Clone(g), t.proj)
	}
	if err := validate(out); err != nil {
		return nil, &ReprojectionError{From: t.from, Reason: err.Error()}
	}
	return out, nil
}

func projectionFor(code string) (orb.Projection, error) {
	switch code {
	case "EPSG:4326", "EPSG:4258", "EPSG:4674":
		return nil, nil
	case "EPSG:3857", "EPSG:900913", "EPSG:102100", "EPSG:102113", "EPSG:3785":
		return project.Mercator.ToWGS84, nil
	}
	if zone, north, ok := utmZone(code); ok {
		return utmToWGS84(zone, north), nil
	}
	return nil, &ReprojectionError{From: code, Reason: "unsupported reference system"}
}

func validate(g orb.Geometry) error {
	var bad error
	visit(g, func(p orb.Point) {
		if bad != nil {
			return
		}
		lon, lat := p[0], p[1]
		switch {
		case math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0):
			bad = fmt.Errorf("non-finite coordinate %v", p)
		case lon < -180 || lon > 180 || lat < -90 || lat > 90:
			bad = fmt.Errorf("coordinate %v outside geographic range", p)
		}
	})
	return bad
}

func visit(g orb.Geometry, fn func(orb.Point)) {
	switch g := g.(type) {
	case orb.Point:
		fn(g)
	case orb.MultiPoint:
		for _, p := range g {
			fn(p)
		}
	case orb.LineString:
		for _, p := range g {
			fn(p)
		}
	case orb.Ring:
		for _, p := range g {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			visit(ls, fn)
		}
	case orb.Polygon:
		for _, r := range g {
			visit(r, fn)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			visit(p, fn)
		}
	case orb.Collection:
		for _, c := range g {
			visit(c, fn)
		}
	case orb.Bound:
		fn(g.Min)
		fn(g.Max)
	}
}
