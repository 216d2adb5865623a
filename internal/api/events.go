package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoportal/internal/humastar"
	"github.com/joeblew999/geoportal/internal/service"
)

// RegisterEvents registers the Datastar event stream.
func (h *APIHandler) RegisterEvents(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events, huma.OperationTags("events"))
}

// Events streams portal changes as Datastar signal patches plus a
// "portal-changed" browser event.
func (h *APIHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	bus := h.svc.Portal.Bus()
	return humastar.Stream(func(sse humastar.SSE) {
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		if err := sse.Signals(h.signals(service.Event{})); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := sse.Signals(h.signals(ev)); err != nil {
					return
				}
				if err := sse.Event("portal-changed", ev); err != nil {
					return
				}
			}
		}
	}), nil
}

// signals returns the client state touched by ev. The zero event selects
// everything.
func (h *APIHandler) signals(ev service.Event) map[string]any {
	all := ev.Resource == ""
	out := map[string]any{}
	if all || ev.Resource == service.ResourceLayers {
		out["layers"] = h.svc.Portal.Engine().Layers()
	}
	if all || ev.Resource == service.ResourceSelection || ev.Resource == service.ResourceLayers {
		out["selection"] = h.selectionBody(h.svc.Portal.Engine().Selection())
	}
	if all || ev.Resource == service.ResourceMap || ev.Resource == service.ResourceSelection {
		out["view"] = mapViewBody(h.svc.Portal.Engine().View())
	}
	if ev.Resource == service.ResourceView && ev.ID != "" {
		if v, err := h.svc.Portal.View(ev.ID); err == nil {
			out["table"] = pageBody(v, v.Page())
		}
	}
	return out
}
