package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoportal/internal/humastar"
	"github.com/joeblew999/geoportal/internal/table"
)

// ViewSignalsInput carries the Datastar signals of a table widget:
// term, caseSensitive, exactMatch, sortColumn, sortDirection, pageSize
// and page. Absent signals are left alone.
type ViewSignalsInput struct {
	IDInput
	humastar.SignalsInput
}

// RegisterSignals registers the Datastar endpoints that take signals.
func (h *APIHandler) RegisterSignals(api huma.API) {
	huma.Post(api, "/api/v1/layers/{id}/view/signals", h.ViewSignals, huma.OperationTags("events"))
}

// applySignals folds Datastar signals into a table state.
func applySignals(st table.State, s humastar.Signals) table.State {
	st.Page = 0
	if s.Has("term") {
		st.Filter.Term = s.String("term")
	}
	if s.Has("caseSensitive") {
		st.Filter.CaseSensitive = s.Bool("caseSensitive")
	}
	if s.Has("exactMatch") {
		st.Filter.ExactMatch = s.Bool("exactMatch")
	}
	if s.Has("sortColumn") {
		st.Sort = table.SortState{
			Column:    s.String("sortColumn"),
			Direction: table.Direction(s.String("sortDirection")),
		}
	}
	if s.Has("pageSize") {
		st.PageSize = s.Int("pageSize")
	}
	if s.Has("page") {
		st.Page = s.Int("page")
	}
	return st
}

// ViewSignals applies a table widget's signals and answers with the new
// page as a "table" signal patch. A rejected state is reported through
// the "error" signal and leaves the table as it was.
func (h *APIHandler) ViewSignals(ctx context.Context, input *ViewSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Parse()
	if err != nil {
		return nil, err
	}
	v, err := h.svc.Portal.View(input.ID)
	if err != nil {
		return nil, statusError(err)
	}

	return humastar.Stream(func(sse humastar.SSE) {
		page, err := h.svc.Portal.UpdateView(input.ID, "state", func(v *table.View) error {
			return v.Apply(applySignals(v.State(), signals))
		})
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(map[string]any{"table": pageBody(v, page), "error": ""})
		sse.Success("Table updated")
	}), nil
}
