package render

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/feature"
	"github.com/joeblew999/geoportal/internal/source"
)

// RenderedLayer is an active layer on the surface. It is owned by the
// Engine and never shared.
type RenderedLayer struct {
	desc        catalog.Layer
	records     []feature.Record
	features    []Renderable
	byID        map[string]Renderable
	aliases     map[string]string
	tree        *rtreego.Rtree
	bound       orb.Bound
	hasBound    bool
	rank        int
	origin      source.Origin
	unavailable bool
}

type indexed struct {
	r    Renderable
	pos  int
	rect rtreego.Rect
}

func (x *indexed) Bounds() rtreego.Rect { return x.rect }

// minExtent keeps degenerate (point) bounds indexable.
const minExtent = 1e-9

func newRenderedLayer(desc catalog.Layer, records []feature.Record, surface Surface) *RenderedLayer {
	l := &RenderedLayer{
		desc:     desc,
		records:  records,
		features: make([]Renderable, 0, len(records)),
		byID:     make(map[string]Renderable, len(records)),
		aliases:  make(map[string]string),
		tree:     rtreego.NewTree(2, 25, 50),
	}
	for i, rec := range records {
		r := NewRenderable(desc, rec, surface)
		l.features = append(l.features, r)
		if _, dup := l.byID[rec.ID]; !dup {
			l.byID[rec.ID] = r
		}

		if b, ok := rec.Bound(); ok {
			if l.hasBound {
				l.bound = l.bound.Union(b)
			} else {
				l.bound, l.hasBound = b, true
			}
			l.tree.Insert(&indexed{r: r, pos: i, rect: rect(b)})
		}
	}
	for _, rec := range records {
		for _, a := range rec.Aliases()[1:] {
			if _, isID := l.byID[a]; isID {
				continue
			}
			if _, taken := l.aliases[a]; !taken {
				l.aliases[a] = rec.ID
			}
		}
	}
	return l
}

func rect(b orb.Bound) rtreego.Rect {
	lengths := []float64{
		math.Max(b.Max[0]-b.Min[0], minExtent),
		math.Max(b.Max[1]-b.Min[1], minExtent),
	}
	r, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, lengths)
	return r
}

// ID returns the layer id.
func (l *RenderedLayer) ID() string { return l.desc.ID }

// Descriptor returns the catalog entry the layer was built from.
func (l *RenderedLayer) Descriptor() catalog.Layer { return l.desc }

// Len returns the number of features.
func (l *RenderedLayer) Len() int { return len(l.features) }

// Rank is the position in the current stacking order, 0 at the bottom.
func (l *RenderedLayer) Rank() int { return l.rank }

// Records returns the records the layer was built from.
func (l *RenderedLayer) Records() []feature.Record { return l.records }

// Features returns the renderables in document order.
func (l *RenderedLayer) Features() []Renderable { return l.features }

// Bound returns the union of all feature bounds.
func (l *RenderedLayer) Bound() (orb.Bound, bool) { return l.bound, l.hasBound }

// Lookup finds a feature by record id, then by any alias identifier.
func (l *RenderedLayer) Lookup(id string) (Renderable, bool) {
	if r, ok := l.byID[id]; ok {
		return r, true
	}
	if primary, ok := l.aliases[id]; ok {
		return l.byID[primary], true
	}
	return nil, false
}

// FeatureAt returns the feature under p within tolerance (in degrees).
// Polygons hit when they contain p. Among several hits the closest wins,
// then the one declared first.
func (l *RenderedLayer) FeatureAt(p orb.Point, tolerance float64) (Renderable, bool) {
	q, err := rtreego.NewRect(
		rtreego.Point{p[0] - tolerance, p[1] - tolerance},
		[]float64{2*tolerance + minExtent, 2*tolerance + minExtent},
	)
	if err != nil {
		return nil, false
	}

	var (
		best     *indexed
		bestDist = math.Inf(1)
	)
	for _, s := range l.tree.SearchIntersect(q) {
		x := s.(*indexed)
		d, ok := hit(x.r.Record().Geometry, p, tolerance)
		if !ok {
			continue
		}
		if d < bestDist || (d == bestDist && x.pos < best.pos) {
			best, bestDist = x, d
		}
	}
	if best == nil {
		return nil, false
	}
	return best.r, true
}

func hit(g orb.Geometry, p orb.Point, tolerance float64) (float64, bool) {
	switch g := g.(type) {
	case orb.Polygon:
		if planar.PolygonContains(g, p) {
			return 0, true
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(g, p) {
			return 0, true
		}
	}
	d := planar.DistanceFrom(g, p)
	return d, d <= tolerance
}
