package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	l, err := c.Describe("suelos-wfs")
	require.NoError(t, err)
	assert.Equal(t, Point, l.GeometryType)
	assert.Equal(t, "suelos.geojson", l.Source.Fallback)
	require.NotNil(t, l.Categories)
	assert.Equal(t, "#2d1e1b", l.Categories.Colors["Si"])

	assert.Equal(t, 18.0, c.View().MaxZoom)
	assert.Equal(t, [2]float64{-68.2833, 10.3316}, c.View().Center)
}

func TestDescribeUnknown(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.Describe("nope")
	assert.ErrorIs(t, err, ErrLayerNotFound)
	assert.False(t, c.Has("nope"))
	assert.Equal(t, "nope", c.DisplayName("nope"))
	assert.Equal(t, -1, c.Position("nope"))
}

func TestGroupsAreOrderedAndStable(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	var ids []string
	for _, g := range c.Groups() {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"boundaries", "hydrology", "geology"}, ids)
	assert.Equal(t, c.Groups(), c.Groups())
	assert.Equal(t, []string{"rios-wfs", "embalse-wfs"}, c.Groups()[1].Layers)
}

func TestDescribeReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	l, _ := c.Describe("suelos-wfs")
	l.Categories.Colors["Si"] = "#000000"
	l.Popup[0] = "changed"

	again, _ := c.Describe("suelos-wfs")
	assert.Equal(t, "#2d1e1b", again.Categories.Colors["Si"])
	assert.Equal(t, "h1_text", again.Popup[0])
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]string{
		"duplicate layer": `
layers:
  - {id: a, geometry: Point}
  - {id: a, geometry: Point}`,
		"bad geometry": `
layers:
  - {id: a, geometry: Circle}`,
		"unknown member": `
groups:
  - {id: g, layers: [missing]}
layers:
  - {id: a, geometry: Point}`,
		"bad color": `
layers:
  - id: a
    geometry: Polygon
    style: {color: "not-a-color"}`,
		"bad opacity": `
layers:
  - id: a
    geometry: Polygon
    style: {opacity: 2}`,
		"unknown field": `
layers:
  - {id: a, geometry: Point, colour: red}`,
		"zoom range": `
view: {minZoom: 10, maxZoom: 5}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestNameDefaultsToID(t *testing.T) {
	c, err := Load(strings.NewReader(`
layers:
  - {id: vias, geometry: LineString}`))
	require.NoError(t, err)
	assert.Equal(t, "vias", c.DisplayName("vias"))
}

func TestStyleMerge(t *testing.T) {
	base := Style{Color: "#111111", Weight: 2, Opacity: 1, FillOpacity: 0.1}
	got := base.Merge(Style{Weight: 4, FillOpacity: 0.2})
	assert.Equal(t, Style{Color: "#111111", Weight: 4, Opacity: 1, FillOpacity: 0.2}, got)
	assert.True(t, Style{}.IsZero())
}
