package humastar

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageLinks(t *testing.T) {
	assert.Equal(t, []string{
		`</r?page=1&size=10>; rel="first"`,
		`</r?page=1&size=10>; rel="prev"`,
		`</r?page=3&size=10>; rel="next"`,
		`</r?page=3&size=10>; rel="last"`,
	}, PageLinks{Page: 2, Pages: 3, Size: 10}.PaginationLinks("/r"))

	assert.Equal(t, []string{
		`</r?page=1&size=10>; rel="first"`,
		`</r?page=1&size=10>; rel="last"`,
	}, PageLinks{Page: 1, Pages: 0, Size: 10}.PaginationLinks("/r"))
}

func TestActionLinkHeader(t *testing.T) {
	acts := ActionsFor("rios-wfs", ActionDef{Rel: "deactivate", Pattern: "/api/v1/layers/%s/deactivate", Method: "POST", Title: "Hide layer"})
	require.Len(t, acts, 1)
	assert.Equal(t, `</api/v1/layers/rios-wfs/deactivate>; rel="deactivate"; method="POST"; title="Hide layer"`, acts[0].LinkHeader())
}

func TestSignals(t *testing.T) {
	in := SignalsInput{RawBody: []byte(`{"term":"rio","page":2,"exact":true}`)}
	s, err := in.Parse()
	require.NoError(t, err)
	assert.Equal(t, "rio", s.String("term"))
	assert.Equal(t, 2, s.Int("page"))
	assert.True(t, s.Bool("exact"))
	assert.False(t, s.Has("missing"))

	_, err = (&SignalsInput{RawBody: []byte("{")}).Parse()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.GetStatus())
}

type pagedBody struct {
	PageLinks `json:"-"`
	Items     []string `json:"items"`
}

func TestLinker(t *testing.T) {
	_, api := humatest.New(t)
	huma.Get(api, "/health", func(ctx context.Context, _ *EmptyInput) (*struct{ Body struct{} }, error) {
		return &struct{ Body struct{} }{}, nil
	}, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/layers", func(ctx context.Context, _ *EmptyInput) (*struct{ Body pagedBody }, error) {
		return &struct{ Body pagedBody }{Body: pagedBody{PageLinks: PageLinks{Page: 1, Pages: 2, Size: 5}}}, nil
	}, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body struct{} }, error) {
		return &struct{ Body struct{} }{}, nil
	}, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/events", func(ctx context.Context, _ *EmptyInput) (*struct{ Body struct{} }, error) {
		return &struct{ Body struct{} }{}, nil
	}, huma.OperationTags("events"))

	l := NewLinker("/health", "events")
	l.Build(api)
	assert.Contains(t, l.Root(), `</api/v1/layers>; rel="layers"`)
	assert.NotContains(t, l.Root(), `</api/v1/events>; rel="events"`)
	assert.Contains(t, l.Links("/api/v1/layers/{id}"), `</api/v1/layers>; rel="collection"`)
	assert.Contains(t, l.Links("/api/v1/layers"), `</api/v1/layers/{id}>; rel="item"`)
	assert.Empty(t, l.Links("/api/v1/events"))
}
