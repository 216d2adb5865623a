package source

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"testing/fstest"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/feature"
)

const suelos = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "pg_Suelo8_ur.1", "geometry": {"type": "Point", "coordinates": [-68.29, 10.33]},
     "properties": {"nombre": "Valle Hondo", "area": "15.2", "h1_text": "FA"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-68.28, 10.34]},
     "properties": {"nombre": "La Mejiena", "area": "23.1"}}
  ]
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog(t *testing.T, url string, src catalog.Source) *catalog.Catalog {
	t.Helper()
	src.URL = url
	c, err := catalog.New(catalog.Document{Layers: []catalog.Layer{
		{ID: "suelos", GeometryType: catalog.Point, Source: src},
	}})
	require.NoError(t, err)
	return c
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchRemote(t *testing.T) {
	srv := serve(t, http.StatusOK, suelos)
	s := New(testCatalog(t, srv.URL, catalog.Source{}), WithLogger(quietLogger()))

	res, err := s.Fetch(context.Background(), "suelos")
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, res.Origin)
	assert.Equal(t, "EPSG:4326", res.CRS)
	require.Len(t, res.Features, 2)

	recs := res.Records()
	assert.Equal(t, "pg_Suelo8_ur.1", recs[0].ID)
	assert.Equal(t, "feature_1", recs[1].ID)
}

func TestFallbackMatchesDirectParse(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, "boom")
	fsys := fstest.MapFS{"suelos.geojson": {Data: []byte(suelos)}}
	s := New(testCatalog(t, srv.URL, catalog.Source{Fallback: "suelos.geojson"}),
		WithFallbackFS(fsys), WithLogger(quietLogger()))

	got, err := s.Load(context.Background(), "suelos")
	require.NoError(t, err)

	coll, err := feature.DecodeCollection([]byte(suelos))
	require.NoError(t, err)
	want := feature.Normalize("suelos", coll.Features)
	assert.Equal(t, want, got)
}

func TestFallbackOnMalformedBody(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      "<html>",
		"missing array": `{"type":"FeatureCollection"}`,
		"features null": `{"features":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, body)
			fsys := fstest.MapFS{"s.geojson": {Data: []byte(suelos)}}
			s := New(testCatalog(t, srv.URL, catalog.Source{Fallback: "s.geojson"}),
				WithFallbackFS(fsys), WithLogger(quietLogger()))

			res, err := s.Fetch(context.Background(), "suelos")
			require.NoError(t, err)
			assert.Equal(t, OriginFallback, res.Origin)
			assert.Len(t, res.Features, 2)
		})
	}
}

func TestUnavailable(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, "")
	s := New(testCatalog(t, srv.URL, catalog.Source{Fallback: "missing.geojson"}),
		WithFallbackFS(fstest.MapFS{}), WithLogger(quietLogger()))

	res, err := s.Fetch(context.Background(), "suelos")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "suelos", ue.LayerID)

	assert.Equal(t, OriginNone, res.Origin)
	assert.NotNil(t, res.Features)
	assert.Empty(t, res.Features)
	assert.Empty(t, res.Records())
}

func TestUnknownLayer(t *testing.T) {
	s := New(testCatalog(t, "", catalog.Source{}), WithLogger(quietLogger()))
	_, err := s.Fetch(context.Background(), "nope")
	assert.ErrorIs(t, err, catalog.ErrLayerNotFound)
}

func TestRefetchKeepsIDs(t *testing.T) {
	srv := serve(t, http.StatusOK, suelos)
	s := New(testCatalog(t, srv.URL, catalog.Source{}), WithLogger(quietLogger()))

	a, err := s.Load(context.Background(), "suelos")
	require.NoError(t, err)
	b, err := s.Load(context.Background(), "suelos")
	require.NoError(t, err)

	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}
}

func TestReprojectsDeclaredCRS(t *testing.T) {
	p := project.WGS84.ToMercator(orb.Point{-68.2833, 10.3316})
	doc := `{"crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::3857"}},
	  "features": [
	    {"geometry": {"type": "Point", "coordinates": [` + ftoa(p[0]) + `, ` + ftoa(p[1]) + `]}, "properties": {"fid": 7}},
	    {"geometry": {"type": "Point", "coordinates": [1e300, 1e300]}, "properties": {"fid": 8}}
	  ]}`
	srv := serve(t, http.StatusOK, doc)
	s := New(testCatalog(t, srv.URL, catalog.Source{}), WithLogger(quietLogger()))

	res, err := s.Fetch(context.Background(), "suelos")
	require.NoError(t, err)
	assert.Equal(t, "EPSG:3857", res.CRS)
	assert.Equal(t, 1, res.Dropped)
	require.Len(t, res.Features, 1)

	got := res.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, -68.2833, got[0], 1e-6)
	assert.InDelta(t, 10.3316, got[1], 1e-6)
	assert.Equal(t, "7", res.Records()[0].ID)
}

func TestLayerCRSOverridesDocument(t *testing.T) {
	doc := `{"crs": {"properties": {"name": "EPSG:4326"}},
	  "features": [{"geometry": {"type": "Point", "coordinates": [500000, 0]}, "properties": {}}]}`
	srv := serve(t, http.StatusOK, doc)
	s := New(testCatalog(t, srv.URL, catalog.Source{CRS: "EPSG:32619"}), WithLogger(quietLogger()))

	res, err := s.Fetch(context.Background(), "suelos")
	require.NoError(t, err)
	require.Len(t, res.Features, 1)
	assert.InDelta(t, -69, res.Features[0].Geometry.(orb.Point)[0], 1e-9)
}

func TestUnsupportedCRSDropsFeatures(t *testing.T) {
	doc := `{"crs": {"properties": {"name": "EPSG:27700"}},
	  "features": [{"geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {}}]}`
	srv := serve(t, http.StatusOK, doc)
	s := New(testCatalog(t, srv.URL, catalog.Source{}), WithLogger(quietLogger()))

	res, err := s.Fetch(context.Background(), "suelos")
	require.NoError(t, err)
	assert.Empty(t, res.Features)
	assert.Equal(t, 1, res.Dropped)
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func TestPositionalIDsSurviveDrops(t *testing.T) {
	p := project.WGS84.ToMercator(orb.Point{-68.2833, 10.3316})
	pt := `{"type": "Point", "coordinates": [` + ftoa(p[0]) + `, ` + ftoa(p[1]) + `]}`
	doc := `{"crs": {"properties": {"name": "EPSG:3857"}},
	  "features": [
	    {"geometry": {"type": "Point", "coordinates": [1e300, 1e300]}, "properties": {}},
	    {"geometry": {"type": "Nope"}, "properties": {}},
	    {"geometry": ` + pt + `, "properties": {"nombre": "Valle Hondo"}}
	  ]}`
	srv := serve(t, http.StatusOK, doc)
	s := New(testCatalog(t, srv.URL, catalog.Source{}), WithLogger(quietLogger()))

	res, err := s.Fetch(context.Background(), "suelos")
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, res.Origin)
	assert.Equal(t, 2, res.Dropped)
	recs := res.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "feature_2", recs[0].ID)
}

func TestCancelledFetch(t *testing.T) {
	srv := serve(t, http.StatusOK, suelos)
	fsys := fstest.MapFS{"suelos.geojson": {Data: []byte(suelos)}}
	s := New(testCatalog(t, srv.URL, catalog.Source{Fallback: "suelos.geojson"}),
		WithFallbackFS(fsys), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Fetch(ctx, "suelos")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDataUnavailable)
	assert.Empty(t, res.Features)
}
