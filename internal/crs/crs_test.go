package crs

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	tests := map[string]string{
		"":                              "EPSG:4326",
		"EPSG:4326":                     "EPSG:4326",
		"epsg:3857":                     "EPSG:3857",
		"urn:ogc:def:crs:EPSG::2202":    "EPSG:2202",
		"urn:ogc:def:crs:OGC:1.3:CRS84": "EPSG:4326",
		"http://www.opengis.net/def/crs/EPSG/0/32619": "EPSG:32619",
		"custom": "CUSTOM",
	}
	for in, want := range tests {
		assert.Equal(t, want, Code(in), in)
	}
	assert.True(t, Same("EPSG:4326", "urn:ogc:def:crs:OGC:1.3:CRS84"))
}

func TestMercatorRoundTrip(t *testing.T) {
	want := orb.Point{-68.2833, 10.3316}
	merc := project.WGS84.ToMercator(want)

	tr, err := NewTransformer("EPSG:3857")
	require.NoError(t, err)
	assert.False(t, tr.Identity())

	in := orb.LineString{merc, merc}
	got, err := tr.Apply(in)
	require.NoError(t, err)

	ls := got.(orb.LineString)
	assert.InDelta(t, want[0], ls[0][0], 1e-9)
	assert.InDelta(t, want[1], ls[0][1], 1e-9)
	assert.Equal(t, merc, in[0], "input must not be modified")
}

func TestUTMOrigin(t *testing.T) {
	tr, err := NewTransformer("EPSG:32619")
	require.NoError(t, err)

	got, err := tr.Apply(orb.Point{500000, 0})
	require.NoError(t, err)
	p := got.(orb.Point)
	assert.InDelta(t, -69, p[0], 1e-9)
	assert.InDelta(t, 0, p[1], 1e-9)
}

func TestUTMCanoabo(t *testing.T) {
	// REGVEN / UTM 19N coordinates around Canoabo, Carabobo.
	tr, err := NewTransformer("urn:ogc:def:crs:EPSG::2202")
	require.NoError(t, err)

	got, err := tr.Apply(orb.Point{578000, 1142000})
	require.NoError(t, err)
	p := got.(orb.Point)
	assert.InDelta(t, -68.29, p[0], 0.02)
	assert.InDelta(t, 10.33, p[1], 0.02)
}

func TestIdentityValidates(t *testing.T) {
	tr, err := NewTransformer("EPSG:4326")
	require.NoError(t, err)
	assert.True(t, tr.Identity())

	_, err = tr.Apply(orb.Point{578000, 1142000})
	assert.ErrorIs(t, err, ErrReprojection)

	_, err = tr.Apply(orb.Polygon{{{0, 0}, {math.NaN(), 1}, {0, 0}}})
	assert.ErrorIs(t, err, ErrReprojection)

	g, err := tr.Apply(nil)
	assert.NoError(t, err)
	assert.Nil(t, g)
}

func TestUnsupported(t *testing.T) {
	_, err := NewTransformer("EPSG:27700")
	assert.ErrorIs(t, err, ErrReprojection)

	var re *ReprojectionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "EPSG:27700", re.From)
}
