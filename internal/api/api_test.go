package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/feature"
	"github.com/joeblew999/geoportal/internal/humastar"
	"github.com/joeblew999/geoportal/internal/render"
	"github.com/joeblew999/geoportal/internal/render/memsurface"
	"github.com/joeblew999/geoportal/internal/service"
	"github.com/joeblew999/geoportal/internal/source"
	"github.com/joeblew999/geoportal/internal/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubLoader struct{}

func (stubLoader) Fetch(_ context.Context, id string) (source.Result, error) {
	if id != "suelos-wfs" {
		return source.Result{LayerID: id, Origin: source.OriginNone, Features: []feature.RawFeature{}},
			&source.UnavailableError{LayerID: id}
	}
	raws := make([]feature.RawFeature, 15)
	for i := range raws {
		raws[i] = feature.RawFeature{
			Geometry: orb.Point{-68.3 + float64(i)*0.01, 10.33},
			Properties: feature.NewProperties(
				"gml_id", fmt.Sprintf("suelos.%d", i+1),
				"nombre", fmt.Sprintf("suelo %d", i+1),
				"area", float64(100-i),
			),
		}
	}
	return source.Result{LayerID: id, Origin: source.OriginRemote, Features: raws}, nil
}

func newTestAPI(t *testing.T) (humatest.TestAPI, *service.Portal) {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	e := render.NewEngine(c, stubLoader{}, memsurface.New(800, 600), render.WithLogger(quiet))
	p := service.NewPortal(c, e, service.WithLogger(quiet), service.WithViewOptions(table.WithPageSize(10)))

	config := huma.DefaultConfig("geoportal API", Version)
	linker := humastar.NewLinker("/api/v1/info", "events")
	config.Transformers = append(config.Transformers, linker.Transformer())
	_, api := humatest.New(t, config)
	RegisterRoutes(api, &Services{Portal: p, DataDir: t.TempDir()})
	linker.Build(api)
	return api, p
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[HealthBody](t, resp.Body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, Version, body.Version)

	resp = api.Get("/api/v1/info")
	require.Equal(t, http.StatusOK, resp.Code)
	info := decode[InfoBody](t, resp.Body)
	assert.False(t, info.DB)
	assert.Equal(t, 4, info.Layers)
	assert.NotContains(t, info.Features, "duckdb")
}

func TestLayerActivation(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/layers/suelos-wfs")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[LayerBody](t, resp.Body).Active)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/layers/suelos-wfs/activate>; rel="activate"; method="POST"; title="Show layer"`)

	resp = api.Post("/api/v1/layers/suelos-wfs/activate")
	require.Equal(t, http.StatusOK, resp.Code)
	act := decode[ActivationBody](t, resp.Body)
	assert.Equal(t, 15, act.Count)

	resp = api.Get("/api/v1/layers")
	require.Equal(t, http.StatusOK, resp.Code)
	layers := decode[LayersBody](t, resp.Body).Layers
	require.Len(t, layers, 4)
	for _, l := range layers {
		assert.Equal(t, l.ID == "suelos-wfs", l.Active, l.ID)
	}

	resp = api.Post("/api/v1/layers/perimetro-wfs/activate")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[ActivationBody](t, resp.Body).Unavailable)

	assert.Equal(t, http.StatusNotFound, api.Post("/api/v1/layers/nope/activate").Code)

	resp = api.Post("/api/v1/layers/suelos-wfs/deactivate")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Layer deactivated", decode[MessageBody](t, resp.Body).Message)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Get("/api/v1/layers/suelos-wfs/view").Code)
}

func TestGroups(t *testing.T) {
	api, p := newTestAPI(t)

	resp := api.Post("/api/v1/groups/geology/activate")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[GroupActivationBody](t, resp.Body)
	require.Len(t, body.Activations, 1)
	assert.Equal(t, "geology", body.Activations[0].Group)
	assert.True(t, p.Engine().Active("suelos-wfs"))

	assert.Equal(t, http.StatusOK, api.Post("/api/v1/groups/geology/deactivate").Code)
	assert.False(t, p.Engine().Active("suelos-wfs"))
	assert.Equal(t, http.StatusNotFound, api.Post("/api/v1/groups/nope/activate").Code)
}

func TestTableView(t *testing.T) {
	api, _ := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.Post("/api/v1/layers/suelos-wfs/activate").Code)

	resp := api.Get("/api/v1/layers/suelos-wfs/view")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[TablePageBody](t, resp.Body)
	assert.Equal(t, 2, page.Info.Pages)
	assert.Len(t, page.Rows, 10)
	assert.Equal(t, "number", page.Types["area"])

	resp = api.Post("/api/v1/layers/suelos-wfs/view/sort/area")
	require.Equal(t, http.StatusOK, resp.Code)
	page = decode[TablePageBody](t, resp.Body)
	assert.Equal(t, "suelos.15", page.Rows[0]["id"])

	resp = api.Post("/api/v1/layers/suelos-wfs/view/page/next")
	require.Equal(t, http.StatusOK, resp.Code)
	page = decode[TablePageBody](t, resp.Body)
	assert.Equal(t, 2, page.Info.Page)
	assert.Len(t, page.Rows, 5)

	resp = api.Put("/api/v1/layers/suelos-wfs/view", map[string]any{"term": "suelo 1"})
	require.Equal(t, http.StatusOK, resp.Code)
	page = decode[TablePageBody](t, resp.Body)
	// suelo 1, 10..15
	assert.Equal(t, 7, page.Info.Total)
	assert.Equal(t, 1, page.Info.Page)

	assert.Equal(t, http.StatusUnprocessableEntity, api.Put("/api/v1/layers/suelos-wfs/view", map[string]any{"page": 5}).Code)
	assert.Equal(t, http.StatusNotFound, api.Post("/api/v1/layers/suelos-wfs/view/sort/nope").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Post("/api/v1/layers/rios-wfs/view/page/next").Code)
}

func TestRejectedViewUpdateKeepsState(t *testing.T) {
	api, p := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.Post("/api/v1/layers/suelos-wfs/activate").Code)
	events := p.Bus().Subscribe()
	defer p.Bus().Unsubscribe(events)

	resp := api.Put("/api/v1/layers/suelos-wfs/view", map[string]any{
		"term": "suelo 1",
		"sort": map[string]any{"column": "area", "direction": "asc"},
		"page": 99,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Get("/api/v1/layers/suelos-wfs/view")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[TablePageBody](t, resp.Body)
	assert.Equal(t, 15, page.Info.Total)
	assert.Empty(t, page.State.Filter.Term)
	assert.Empty(t, page.State.Sort.Column)
	assert.Equal(t, "suelos.1", page.Rows[0]["id"])

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestRecordsPaging(t *testing.T) {
	api, _ := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.Post("/api/v1/layers/suelos-wfs/activate").Code)

	resp := api.Get("/api/v1/layers/suelos-wfs/records?page=2&size=4")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[RecordsBody](t, resp.Body)
	assert.Equal(t, 4, body.Pages)
	assert.Len(t, body.Rows, 4)
	assert.Equal(t, "suelos.5", body.Rows[0]["id"])

	links := resp.Header().Values("Link")
	assert.Contains(t, links, `</api/v1/layers/suelos-wfs/records?page=3&size=4>; rel="next"`)
	assert.Contains(t, links, `</api/v1/layers/suelos-wfs/records?page=1&size=4>; rel="prev"`)
}

func TestRowSelectionAndExport(t *testing.T) {
	api, _ := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.Post("/api/v1/layers/suelos-wfs/activate").Code)

	resp := api.Post("/api/v1/layers/suelos-wfs/rows/suelos.2/toggle")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"suelos.2"}, decode[TablePageBody](t, resp.Body).Selected)
	assert.Equal(t, http.StatusNotFound, api.Post("/api/v1/layers/suelos-wfs/rows/missing/toggle").Code)

	resp = api.Post("/api/v1/layers/suelos-wfs/export", map[string]any{"format": "csv", "mode": "selected"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "1", resp.Header().Get("X-Export-Count"))
	assert.True(t, strings.HasPrefix(resp.Header().Get("Content-Disposition"), `attachment; filename="Suelos_seleccionados_`))
	assert.Contains(t, resp.Body.String(), "suelos.2")

	require.Equal(t, http.StatusOK, api.Post("/api/v1/layers/suelos-wfs/rows/clear").Code)
	resp = api.Post("/api/v1/layers/suelos-wfs/export", map[string]any{"format": "json", "mode": "selected"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Get("/api/v1/layers/suelos-wfs/columns/nombre/values")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]string](t, resp.Body), 15)
}

func TestSelection(t *testing.T) {
	api, p := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.Post("/api/v1/layers/suelos-wfs/activate").Code)

	resp := api.Put("/api/v1/selection", map[string]any{"layerId": "suelos-wfs", "featureId": "suelos.12"})
	require.Equal(t, http.StatusOK, resp.Code)
	sel := decode[SelectionBody](t, resp.Body)
	assert.False(t, sel.Empty)
	require.NotNil(t, sel.Summary)
	assert.Equal(t, "suelos.12", sel.Summary.FeatureID)

	resp = api.Put("/api/v1/selection", map[string]any{"layerId": "suelos-wfs", "featureId": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "suelos.12", p.Engine().Selection().FeatureID)

	resp = api.Post("/api/v1/map/click", map[string]any{"layerId": "suelos-wfs", "featureId": "suelos.13"})
	require.Equal(t, http.StatusOK, resp.Code)
	v, err := p.View("suelos-wfs")
	require.NoError(t, err)
	assert.Equal(t, 2, v.State().Page)

	resp = api.Delete("/api/v1/selection")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[SelectionBody](t, resp.Body).Empty)

	assert.Equal(t, http.StatusUnprocessableEntity, api.Post("/api/v1/map/click", map[string]any{}).Code)
}

func TestMapNavigation(t *testing.T) {
	api, p := newTestAPI(t)
	home := p.Engine().View()

	resp := api.Post("/api/v1/map/zoom-in")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, home.Zoom+1, decode[MapViewBody](t, resp.Body).Zoom)

	resp = api.Post("/api/v1/map/recenter", map[string]any{"center": []float64{-68.0, 10.0}, "zoom": 9})
	require.Equal(t, http.StatusOK, resp.Code)
	view := decode[MapViewBody](t, resp.Body)
	assert.Equal(t, [2]float64{-68.0, 10.0}, view.Center)
	assert.Equal(t, 9.0, view.Zoom)

	resp = api.Post("/api/v1/map/home")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, home.Zoom, decode[MapViewBody](t, resp.Body).Zoom)

	assert.Equal(t, http.StatusNotFound, api.Post("/api/v1/map/fit", map[string]any{"layerId": "suelos-wfs"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Post("/api/v1/map/fit", map[string]any{}).Code)
}

func TestDatabaseUnavailable(t *testing.T) {
	api, _ := newTestAPI(t)
	assert.Equal(t, http.StatusServiceUnavailable, api.Get("/api/v1/tables").Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.Post("/api/v1/query", map[string]any{"query": "SELECT 1"}).Code)
}

func TestSourcesWithoutService(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/v1/sources")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[[]service.SourceFile](t, resp.Body))
}

func TestStatusError(t *testing.T) {
	assert.Nil(t, statusError(nil))
	for err, code := range map[error]int{
		catalog.ErrLayerNotFound:                      http.StatusNotFound,
		fmt.Errorf("x: %w", service.ErrLayerInactive): http.StatusUnprocessableEntity,
		&source.UnavailableError{LayerID: "a"}:        http.StatusServiceUnavailable,
		table.ErrExport:                               http.StatusUnprocessableEntity,
		assert.AnError:                                http.StatusInternalServerError,
	} {
		var se interface{ GetStatus() int }
		require.ErrorAs(t, statusError(err), &se)
		assert.Equal(t, code, se.GetStatus(), err.Error())
	}
}

func TestEventSignals(t *testing.T) {
	api, p := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.Post("/api/v1/layers/suelos-wfs/activate").Code)
	h := NewAPIHandler(&Services{Portal: p})

	all := h.signals(service.Event{})
	assert.Contains(t, all, "layers")
	assert.Contains(t, all, "selection")
	assert.Contains(t, all, "view")
	assert.NotContains(t, all, "table")

	view := h.signals(service.Event{Resource: service.ResourceView, Action: "sort", ID: "suelos-wfs"})
	require.Contains(t, view, "table")
	assert.Equal(t, "suelos-wfs", view["table"].(TablePageBody).LayerID)

	mapped := h.signals(service.Event{Resource: service.ResourceMap, Action: "moved"})
	assert.Equal(t, []string{"view"}, keys(mapped))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// newStreamHandler serves the routes on the net/http adapter, which the
// Datastar streams unwrap.
func newStreamHandler(t *testing.T) (http.Handler, *service.Portal) {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	e := render.NewEngine(c, stubLoader{}, memsurface.New(800, 600), render.WithLogger(quiet))
	p := service.NewPortal(c, e, service.WithLogger(quiet), service.WithViewOptions(table.WithPageSize(10)))

	mux := http.NewServeMux()
	RegisterRoutes(humago.New(mux, huma.DefaultConfig("geoportal API", Version)), &Services{Portal: p, DataDir: t.TempDir()})
	return mux, p
}

func postSignals(h http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestViewSignals(t *testing.T) {
	h, p := newStreamHandler(t)
	_, err := p.Activate(context.Background(), "suelos-wfs")
	require.NoError(t, err)
	const path = "/api/v1/layers/suelos-wfs/view/signals"

	rec := postSignals(h, path, `{"term":"suelo 1","sortColumn":"area","sortDirection":"desc","pageSize":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "datastar-patch-signals")
	assert.Contains(t, rec.Body.String(), "Table updated")

	v, err := p.View("suelos-wfs")
	require.NoError(t, err)
	st := v.State()
	assert.Equal(t, "suelo 1", st.Filter.Term)
	assert.Equal(t, table.SortState{Column: "area", Direction: table.Descending}, st.Sort)
	assert.Equal(t, 5, st.PageSize)
	assert.Equal(t, 7, v.Page().Info.Total)

	rec = postSignals(h, path, `{"term":"","page":99}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "out of range")
	assert.Equal(t, st, v.State())

	assert.Equal(t, http.StatusBadRequest, postSignals(h, path, `{`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, postSignals(h, "/api/v1/layers/rios-wfs/view/signals", `{}`).Code)
}
