package feature

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::4326"}},
  "features": [
    {"type": "Feature", "id": "pg_Suelo8_ur.1",
     "geometry": {"type": "Point", "coordinates": [-68.28, 10.33]},
     "properties": {"nombre": "Valle Hondo", "area": 15.2, "gml_id": "pg_Suelo8_ur.1", "fid": 7}},
    {"type": "Feature",
     "geometry": null,
     "properties": {"zeta": true, "alpha": null, "nested": {"a": [1, 2]}}}
  ]
}`

func TestDecodeCollection(t *testing.T) {
	c, err := DecodeCollection([]byte(sampleCollection))
	require.NoError(t, err)
	require.Len(t, c.Features, 2)
	assert.Equal(t, "urn:ogc:def:crs:EPSG::4326", c.CRS)

	first := c.Features[0]
	assert.Equal(t, orb.Point{-68.28, 10.33}, first.Geometry)
	assert.Equal(t, []string{"nombre", "area", "gml_id", "fid"}, first.Properties.Keys())
	assert.Equal(t, "pg_Suelo8_ur.1", first.DocumentID.Text())

	second := c.Features[1]
	assert.Nil(t, second.Geometry)
	assert.Equal(t, []string{"zeta", "alpha", "nested"}, second.Properties.Keys())
	assert.True(t, second.Properties.Value("alpha").IsNull())
	assert.Equal(t, `{"a":[1,2]}`, second.Properties.Value("nested").Text())
}

func TestDecodeCollectionMalformed(t *testing.T) {
	for name, doc := range map[string]string{
		"not json":      `<html>`,
		"missing array": `{"type": "FeatureCollection"}`,
		"null features": `{"features": null}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCollection([]byte(doc))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	c, err := DecodeCollection([]byte(`{"features": []}`))
	require.NoError(t, err)
	assert.Empty(t, c.Features)
}

func TestDecodeCollectionSkipsBadGeometry(t *testing.T) {
	c, err := DecodeCollection([]byte(`{"features": [
	  {"geometry": {"type": "Nope"}, "properties": {"n": 1}},
	  {"geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"n": 2}},
	  {"geometry": null, "properties": {"n": 3}}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Dropped)
	require.Len(t, c.Features, 2)
	assert.Equal(t, 1, c.Features[0].Index)
	assert.Equal(t, 2, c.Features[1].Index)

	recs := NormalizeAt("capa", c.Features, []int{c.Features[0].Index, c.Features[1].Index})
	assert.Equal(t, "feature_1", recs[0].ID)
	assert.Equal(t, "feature_2", recs[1].ID)
	assert.Equal(t, "feature_0", Normalize("capa", c.Features)[0].ID)
}

func TestResolveIDPriority(t *testing.T) {
	tests := []struct {
		name  string
		props Properties
		docID Value
		want  string
	}{
		{"id wins", NewProperties("objectid", 1, "fid", "f", "id", "A"), Null(), "A"},
		{"gml_id before fid", NewProperties("fid", "f", "gml_id", "g"), Null(), "g"},
		{"fid before gid", NewProperties("gid", 3, "fid", 9), Null(), "9"},
		{"objectid last", NewProperties("objectid", 42), Null(), "42"},
		{"document id", NewProperties("fid", "f"), String("doc.1"), "doc.1"},
		{"null skipped", NewProperties("id", nil, "gid", 5), Null(), "5"},
		{"empty skipped", NewProperties("id", "", "gid", 5), Null(), "5"},
		{"positional", NewProperties("nombre", "x"), Null(), "feature_3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := RawFeature{Properties: tt.props, DocumentID: tt.docID}
			assert.Equal(t, tt.want, ResolveID(f, 3))
			assert.Equal(t, tt.want, ResolveID(f, 3), "resolution must be idempotent")
		})
	}
}

func TestPositionalIDsFollowInputOrder(t *testing.T) {
	raws := make([]RawFeature, 5)
	for i := range raws {
		raws[i] = RawFeature{Properties: NewProperties("nombre", i)}
	}
	recs := Normalize("suelos", raws)

	seen := map[string]bool{}
	for i, r := range recs {
		assert.Equal(t, PositionalID(i), r.ID)
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func TestNormalizeDropsRedundantIdentifiers(t *testing.T) {
	raws := []RawFeature{{
		Properties: NewProperties("id", "A", "gml_id", "A", "fid", "B", "nombre", "x"),
	}}
	recs := Normalize("rios", raws)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "A", r.ID)
	assert.Equal(t, "rios", r.LayerID)
	assert.Equal(t, []string{"fid", "nombre"}, r.Properties.Keys())
	assert.Equal(t, []string{"A", "B"}, r.Aliases())
	assert.Equal(t, []string{"id", "gml_id", "fid", "nombre"}, raws[0].Properties.Keys(), "input must not be mutated")
}

func TestNormalizeIsIdempotent(t *testing.T) {
	c, err := DecodeCollection([]byte(sampleCollection))
	require.NoError(t, err)
	a := Normalize("l", c.Features)

	c2, err := DecodeCollection([]byte(sampleCollection))
	require.NoError(t, err)
	b := Normalize("l", c2.Features)

	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.True(t, a[i].Properties.Equal(b[i].Properties))
	}
	assert.Equal(t, "pg_Suelo8_ur.1", a[0].ID)
	assert.Equal(t, "feature_1", a[1].ID)
}

func TestAliases(t *testing.T) {
	f := RawFeature{Properties: NewProperties("fid", "x", "gml_id", "y", "gid", "x")}
	assert.Equal(t, []string{"y", "x"}, Aliases(f))
}

func TestPropertiesJSONRoundTripKeepsOrder(t *testing.T) {
	p := NewProperties("b", 1.5, "a", "x", "c", nil, "d", true)
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1.5,"a":"x","c":null,"d":true}`, string(data))
	assert.Equal(t, `{"b":1.5,"a":"x","c":null,"d":true}`, string(data))

	var back Properties
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, p.Equal(back))

	back.Delete("a")
	assert.Equal(t, []string{"b", "c", "d"}, back.Keys())
	assert.True(t, p.Has("a"), "clone semantics: original untouched")
}

func TestValueText(t *testing.T) {
	assert.Equal(t, "", Null().Text())
	assert.Equal(t, "15.2", Number(15.2).Text())
	assert.Equal(t, "3", Number(3).Text())
	assert.Equal(t, "true", Bool(true).Text())
	assert.Equal(t, KindNumber, ValueOf(json.Number("12")).Kind())
	assert.True(t, String("a").Equal(ValueOf("a")))
	assert.False(t, String("1").Equal(Number(1)))
}
