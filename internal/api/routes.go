// Package api defines the Huma API routes and handlers.
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/db"
	"github.com/joeblew999/geoportal/internal/render"
	"github.com/joeblew999/geoportal/internal/service"
	"github.com/joeblew999/geoportal/internal/table"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Portal  *service.Portal
	Sources *service.SourceService
	Mirror  *db.Mirror // nil when DuckDB is unavailable
	DataDir string
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"suelos-wfs"`
}

type GroupIDInput struct {
	ID string `path:"id" doc:"Group ID" example:"hydrology"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

type InfoBody struct {
	Name     string         `json:"name" doc:"Service name"`
	Version  string         `json:"version" doc:"Service version"`
	DataDir  string         `json:"data_dir" doc:"Data directory path"`
	DB       bool           `json:"db" doc:"Whether the DuckDB mirror is available"`
	Layers   int            `json:"layers" doc:"Layers in the catalog"`
	Active   int            `json:"active" doc:"Layers on the map"`
	Formats  []table.Format `json:"formats" doc:"Export formats"`
	Home     catalog.View   `json:"home" doc:"Home view"`
	Features []string       `json:"features" doc:"Available features"`
}

// LayerBody is a catalog layer with its map state.
type LayerBody struct {
	catalog.Layer
	Active      bool   `json:"active" doc:"Whether the layer is on the map"`
	Rank        int    `json:"rank" doc:"Stacking position when active, 0 at the bottom"`
	Count       int    `json:"count" doc:"Features on the map"`
	Origin      string `json:"origin,omitempty" doc:"Where the features came from" enum:"remote,fallback,none"`
	Unavailable bool   `json:"unavailable" doc:"The layer is active but no data could be loaded"`
}

type LayersBody struct {
	Layers []LayerBody `json:"layers"`
}

type ActivationBody struct {
	render.Activation
	Group string `json:"group,omitempty"`
}

type GroupActivationBody struct {
	Group       string           `json:"group"`
	Activations []ActivationBody `json:"activations"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every API route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

// RegisterLayers registers catalog and layer activation routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/groups", h.GetGroups, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/groups/{id}/activate", h.ActivateGroup, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/groups/{id}/deactivate", h.DeactivateGroup, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{id}/activate", h.ActivateLayer, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{id}/deactivate", h.DeactivateLayer, huma.OperationTags("layers"))
}

// RegisterSources registers fallback file listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	c := h.svc.Portal.Catalog()
	features := []string{"wfs", "fallback", "attribute-table", "export"}
	if h.svc.Mirror != nil {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "geoportal",
		Version:  Version,
		DataDir:  h.svc.DataDir,
		DB:       h.svc.Mirror != nil,
		Layers:   len(c.Layers()),
		Active:   len(h.svc.Portal.Engine().Layers()),
		Formats:  table.Formats,
		Home:     c.View(),
		Features: features,
	}}, nil
}

func (h *APIHandler) GetGroups(ctx context.Context, input *struct{}) (*struct{ Body []catalog.Group }, error) {
	return &struct{ Body []catalog.Group }{Body: h.svc.Portal.Catalog().Groups()}, nil
}

func (h *APIHandler) layerBody(l catalog.Layer, active map[string]render.LayerInfo) LayerBody {
	b := LayerBody{Layer: l}
	if info, ok := active[l.ID]; ok {
		b.Active = true
		b.Rank = info.Rank
		b.Count = info.Count
		b.Origin = string(info.Origin)
		b.Unavailable = info.Unavailable
	}
	return b
}

func (h *APIHandler) activeLayers() map[string]render.LayerInfo {
	out := make(map[string]render.LayerInfo)
	for _, info := range h.svc.Portal.Engine().Layers() {
		out[info.ID] = info
	}
	return out
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body LayersBody }, error) {
	active := h.activeLayers()
	var body LayersBody
	body.Layers = []LayerBody{}
	for _, l := range h.svc.Portal.Catalog().Layers() {
		body.Layers = append(body.Layers, h.layerBody(l, active))
	}
	return &struct{ Body LayersBody }{Body: body}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*struct{ Body LayerBody }, error) {
	l, err := h.svc.Portal.Catalog().Describe(input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body LayerBody }{Body: h.layerBody(l, h.activeLayers())}, nil
}

func (h *APIHandler) ActivateLayer(ctx context.Context, input *IDInput) (*struct{ Body ActivationBody }, error) {
	act, err := h.svc.Portal.Activate(ctx, input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body ActivationBody }{Body: ActivationBody{Activation: act}}, nil
}

func (h *APIHandler) DeactivateLayer(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if !h.svc.Portal.Catalog().Has(input.ID) {
		return nil, huma.Error404NotFound("layer not found")
	}
	msg := "Layer deactivated"
	if !h.svc.Portal.Deactivate(ctx, input.ID) {
		msg = "Layer was not active"
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: msg}}, nil
}

func (h *APIHandler) ActivateGroup(ctx context.Context, input *GroupIDInput) (*struct{ Body GroupActivationBody }, error) {
	acts, err := h.svc.Portal.ActivateGroup(ctx, input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	body := GroupActivationBody{Group: input.ID, Activations: []ActivationBody{}}
	for _, a := range acts {
		body.Activations = append(body.Activations, ActivationBody{Activation: a, Group: input.ID})
	}
	return &struct{ Body GroupActivationBody }{Body: body}, nil
}

func (h *APIHandler) DeactivateGroup(ctx context.Context, input *GroupIDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Portal.DeactivateGroup(ctx, input.ID); err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Group deactivated"}}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Sources == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Sources.List()
	if err != nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}
