package api

import "github.com/joeblew999/geoportal/internal/humastar"

// Layer actions, advertised as Link headers depending on layer state.
var (
	activateAction   = humastar.ActionDef{Rel: "activate", Pattern: "/api/v1/layers/%s/activate", Method: "POST", Title: "Show layer"}
	deactivateAction = humastar.ActionDef{Rel: "deactivate", Pattern: "/api/v1/layers/%s/deactivate", Method: "POST", Title: "Hide layer"}
	recordsAction    = humastar.ActionDef{Rel: "records", Pattern: "/api/v1/layers/%s/records", Method: "GET", Title: "Attribute table"}
	viewAction       = humastar.ActionDef{Rel: "view", Pattern: "/api/v1/layers/%s/view", Method: "GET", Title: "Table state"}
	exportAction     = humastar.ActionDef{Rel: "export", Pattern: "/api/v1/layers/%s/export", Method: "POST", Title: "Export records"}
	sortAction       = humastar.ActionDef{Rel: "sort", Pattern: "/api/v1/layers/%s/view/sort/{column}", Method: "POST", Title: "Sort by column"}
	pageAction       = humastar.ActionDef{Rel: "page", Pattern: "/api/v1/layers/%s/view/page/{nav}", Method: "POST", Title: "Change page"}
)

// Actions implements humastar.Actor.
func (b LayerBody) Actions() []humastar.Action {
	if !b.Active {
		return humastar.ActionsFor(b.ID, activateAction)
	}
	return humastar.ActionsFor(b.ID, deactivateAction, recordsAction, viewAction, exportAction)
}

// Actions implements humastar.Actor.
func (b ActivationBody) Actions() []humastar.Action {
	if b.Discarded {
		return nil
	}
	return humastar.ActionsFor(b.LayerID, deactivateAction, recordsAction, viewAction)
}

// Actions implements humastar.Actor.
func (b TablePageBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.LayerID, sortAction, pageAction, exportAction)
}
