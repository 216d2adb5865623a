package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/geoportal/internal/render"
)

// FieldBody is one line of a feature summary.
type FieldBody struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SummaryBody is the popup content of a feature.
type SummaryBody struct {
	LayerID   string      `json:"layerId"`
	LayerName string      `json:"layerName"`
	FeatureID string      `json:"featureId"`
	Title     string      `json:"title"`
	Geometry  string      `json:"geometry,omitempty"`
	Fields    []FieldBody `json:"fields"`
}

// SelectionBody is the current selection, with the feature summary when
// something is selected.
type SelectionBody struct {
	render.Selection
	Empty   bool         `json:"empty"`
	Summary *SummaryBody `json:"summary,omitempty"`
	View    MapViewBody  `json:"view"`
}

type MapViewBody struct {
	Center [2]float64 `json:"center" doc:"Center as [lon, lat]"`
	Zoom   float64    `json:"zoom"`
	Scale  string     `json:"scale" example:"1:136495"`
}

type SelectRequest struct {
	LayerID   string      `json:"layerId" doc:"Layer of the feature" example:"suelos-wfs"`
	FeatureID string      `json:"featureId" doc:"Record id or any alias identifier"`
	Center    *[2]float64 `json:"center,omitempty" doc:"Center on this [lon, lat] instead of the feature extent"`
	Zoom      *float64    `json:"zoom,omitempty" doc:"Zoom used with center"`
	Recenter  *bool       `json:"recenter,omitempty" doc:"Move the map to the feature (default true)"`
}

type ClickRequest struct {
	LayerID   string      `json:"layerId,omitempty" doc:"Clicked feature's layer; omit to hit-test point"`
	FeatureID string      `json:"featureId,omitempty"`
	Point     *[2]float64 `json:"point,omitempty" doc:"Clicked [lon, lat]"`
}

type RecenterRequest struct {
	Center [2]float64 `json:"center" doc:"[lon, lat]"`
	Zoom   *float64   `json:"zoom,omitempty"`
}

type FitRequest struct {
	LayerID string      `json:"layerId,omitempty" doc:"Fit the extent of this active layer"`
	BBox    *[4]float64 `json:"bbox,omitempty" doc:"Fit [minLon, minLat, maxLon, maxLat]"`
}

// RegisterMap registers selection and navigation routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	tags := huma.OperationTags("map")
	huma.Get(api, "/api/v1/selection", h.GetSelection, tags)
	huma.Put(api, "/api/v1/selection", h.PutSelection, tags)
	huma.Delete(api, "/api/v1/selection", h.DeleteSelection, tags)
	huma.Post(api, "/api/v1/map/click", h.Click, tags)
	huma.Get(api, "/api/v1/map/view", h.GetMapView, tags)
	huma.Post(api, "/api/v1/map/zoom-in", h.ZoomIn, tags)
	huma.Post(api, "/api/v1/map/zoom-out", h.ZoomOut, tags)
	huma.Post(api, "/api/v1/map/home", h.Home, tags)
	huma.Post(api, "/api/v1/map/recenter", h.Recenter, tags)
	huma.Post(api, "/api/v1/map/fit", h.Fit, tags)
}

func mapViewBody(v render.MapView) MapViewBody {
	return MapViewBody{Center: [2]float64{v.Center[0], v.Center[1]}, Zoom: v.Zoom, Scale: v.Scale}
}

func (h *APIHandler) selectionBody(sel render.Selection) SelectionBody {
	e := h.svc.Portal.Engine()
	body := SelectionBody{Selection: sel, Empty: sel.Empty(), View: mapViewBody(e.View())}
	if sel.Empty() {
		return body
	}
	s, err := e.Summary(sel.LayerID, sel.FeatureID)
	if err != nil {
		// deselected meanwhile
		return body
	}
	sb := SummaryBody{
		LayerID:   s.LayerID,
		LayerName: s.LayerName,
		FeatureID: s.FeatureID,
		Title:     s.Title,
		Geometry:  s.Geometry,
		Fields:    make([]FieldBody, len(s.Fields)),
	}
	for i, f := range s.Fields {
		sb.Fields[i] = FieldBody{Key: f.Key, Value: jsonValue(f.Value)}
	}
	body.Summary = &sb
	return body
}

func (h *APIHandler) GetSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	return &struct{ Body SelectionBody }{Body: h.selectionBody(h.svc.Portal.Engine().Selection())}, nil
}

func (h *APIHandler) PutSelection(ctx context.Context, input *struct{ Body SelectRequest }) (*struct{ Body SelectionBody }, error) {
	req := input.Body
	var opts []render.SelectOption
	if req.Center != nil {
		opts = append(opts, render.WithCenter(orb.Point(*req.Center)))
	}
	if req.Zoom != nil {
		opts = append(opts, render.WithZoom(*req.Zoom))
	}
	if req.Recenter != nil && !*req.Recenter {
		opts = append(opts, render.WithoutRecenter())
	}
	sel, err := h.svc.Portal.SelectRow(req.LayerID, req.FeatureID, opts...)
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body SelectionBody }{Body: h.selectionBody(sel)}, nil
}

func (h *APIHandler) DeleteSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	h.svc.Portal.ClearSelection()
	return &struct{ Body SelectionBody }{Body: h.selectionBody(render.Selection{})}, nil
}

func (h *APIHandler) Click(ctx context.Context, input *struct{ Body ClickRequest }) (*struct{ Body SelectionBody }, error) {
	req := input.Body
	var (
		sel render.Selection
		err error
	)
	switch {
	case req.LayerID != "":
		sel, err = h.svc.Portal.Click(req.LayerID, req.FeatureID)
	case req.Point != nil:
		sel, err = h.svc.Portal.ClickAt(orb.Point(*req.Point))
	default:
		return nil, huma.Error422UnprocessableEntity("either layerId or point is required")
	}
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body SelectionBody }{Body: h.selectionBody(sel)}, nil
}

func (h *APIHandler) GetMapView(ctx context.Context, input *struct{}) (*struct{ Body MapViewBody }, error) {
	return &struct{ Body MapViewBody }{Body: mapViewBody(h.svc.Portal.Engine().View())}, nil
}

func (h *APIHandler) navigate(fn func(*render.Engine) render.MapView) (*struct{ Body MapViewBody }, error) {
	return &struct{ Body MapViewBody }{Body: mapViewBody(h.svc.Portal.Navigate(fn))}, nil
}

func (h *APIHandler) ZoomIn(ctx context.Context, input *struct{}) (*struct{ Body MapViewBody }, error) {
	return h.navigate((*render.Engine).ZoomIn)
}

func (h *APIHandler) ZoomOut(ctx context.Context, input *struct{}) (*struct{ Body MapViewBody }, error) {
	return h.navigate((*render.Engine).ZoomOut)
}

func (h *APIHandler) Home(ctx context.Context, input *struct{}) (*struct{ Body MapViewBody }, error) {
	return h.navigate((*render.Engine).ResetHome)
}

func (h *APIHandler) Recenter(ctx context.Context, input *struct{ Body RecenterRequest }) (*struct{ Body MapViewBody }, error) {
	req := input.Body
	return h.navigate(func(e *render.Engine) render.MapView {
		if req.Zoom != nil {
			return e.Recenter(orb.Point(req.Center), *req.Zoom)
		}
		return e.Recenter(orb.Point(req.Center))
	})
}

func (h *APIHandler) Fit(ctx context.Context, input *struct{ Body FitRequest }) (*struct{ Body MapViewBody }, error) {
	req := input.Body
	var b orb.Bound
	switch {
	case req.BBox != nil:
		bb := *req.BBox
		b = orb.Bound{Min: orb.Point{bb[0], bb[1]}, Max: orb.Point{bb[2], bb[3]}}
	case req.LayerID != "":
		if !h.svc.Portal.Engine().Active(req.LayerID) {
			return nil, huma.Error404NotFound("layer is not active")
		}
		var ok bool
		if b, ok = h.svc.Portal.Engine().Bound(req.LayerID); !ok {
			return nil, huma.Error422UnprocessableEntity("layer has no features to fit")
		}
	default:
		return nil, huma.Error422UnprocessableEntity("either layerId or bbox is required")
	}
	return h.navigate(func(e *render.Engine) render.MapView { return e.FitBounds(b) })
}
