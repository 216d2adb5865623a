package render

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geoportal/internal/catalog"
)

// Surface is the map canvas the engine draws on. Every call is a
// synchronous command; implementations must not call back into the engine.
type Surface interface {
	AddLayer(layerID string, features []Renderable)
	RemoveLayer(layerID string)
	SetStyle(layerID, featureID string, s catalog.Style)
	BringToFront(layerID string)
	BringToBack(layerID string)
	FitBounds(b orb.Bound, maxZoom float64)
	SetView(center orb.Point, zoom float64)
	View() (center orb.Point, zoom float64)
}

// MapView is the current center and zoom of the surface.
type MapView struct {
	Center orb.Point `json:"center" doc:"Center as [lon, lat]"`
	Zoom   float64   `json:"zoom" doc:"Zoom level"`
	Scale  string    `json:"scale" doc:"Approximate map scale" example:"1:136495"`
}

// Scale approximates the map scale denominator at zoom.
func Scale(zoom float64) string {
	return fmt.Sprintf("1:%d", int64(math.Round(559082264.028/math.Pow(2, zoom))))
}
