package api

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoportal/internal/feature"
	"github.com/joeblew999/geoportal/internal/humastar"
	"github.com/joeblew999/geoportal/internal/table"
)

// TablePageBody is the current page of a layer's attribute table.
type TablePageBody struct {
	LayerID  string            `json:"layerId"`
	Columns  []table.Column    `json:"columns"`
	Types    map[string]string `json:"types" doc:"Sort type per column: number, date or string"`
	Rows     []map[string]any  `json:"rows" doc:"Rows of the current page, keyed by column"`
	Info     table.PageInfo    `json:"info"`
	State    table.State       `json:"state"`
	Selected []string          `json:"selected" doc:"Selected row ids"`
}

// RecordsBody is a stateless page over the filtered and sorted rows.
type RecordsBody struct {
	LayerID string           `json:"layerId"`
	Columns []table.Column   `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Page    int              `json:"page"`
	Pages   int              `json:"pages"`
	Size    int              `json:"size"`
	Total   int              `json:"total"`
}

// PaginationLinks implements humastar.Pager.
func (b RecordsBody) PaginationLinks(basePath string) []string {
	return humastar.PageLinks{Page: b.Page, Pages: b.Pages, Size: b.Size}.PaginationLinks(basePath)
}

type RecordsInput struct {
	IDInput
	Page int `query:"page" default:"1" minimum:"1" doc:"Page, 1-indexed"`
	Size int `query:"size" minimum:"0" maximum:"1000" doc:"Rows per page; 0 uses the table's page size"`
}

// ViewUpdate changes the table state. Absent fields are left alone.
type ViewUpdate struct {
	Term          *string           `json:"term,omitempty" doc:"Global search term"`
	Columns       map[string]string `json:"columns,omitempty" doc:"Column filters; a blank value removes one"`
	CaseSensitive *bool             `json:"caseSensitive,omitempty"`
	ExactMatch    *bool             `json:"exactMatch,omitempty"`
	ClearFilters  bool              `json:"clearFilters,omitempty" doc:"Remove the term and every column filter first"`
	Sort          *table.SortState  `json:"sort,omitempty" doc:"Sort state; an empty column clears sorting"`
	PageSize      *int              `json:"pageSize,omitempty" minimum:"1" maximum:"1000"`
	Page          *int              `json:"page,omitempty" minimum:"1"`
}

type ColumnInput struct {
	IDInput
	Column string `path:"column" doc:"Column key" example:"nombre"`
}

type NavInput struct {
	IDInput
	Nav table.Nav `path:"nav" enum:"first,previous,next,last" doc:"Navigation command"`
}

type RowInput struct {
	IDInput
	RowID string `path:"rowId" doc:"Row (feature) id" example:"pg_Suelo8_ur.1"`
}

type ExportRequest struct {
	Format       table.Format `json:"format" enum:"csv,tsv,json,geojson,xlsx" doc:"Export format"`
	Mode         table.Mode   `json:"mode,omitempty" enum:"visible,all,selected" default:"visible" doc:"Rows to export"`
	Filename     string       `json:"filename,omitempty" doc:"Base file name without extension"`
	Include      []string     `json:"include,omitempty" doc:"Only these columns"`
	Exclude      []string     `json:"exclude,omitempty" doc:"Drop these columns"`
	RoundNumbers bool         `json:"roundNumbers,omitempty" doc:"Round decimals to two places"`
}

type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Count              int    `header:"X-Export-Count"`
	Body               []byte
}

// RegisterTable registers the attribute table routes.
func (h *APIHandler) RegisterTable(api huma.API) {
	tags := huma.OperationTags("table")
	huma.Get(api, "/api/v1/layers/{id}/records", h.GetRecords, tags)
	huma.Get(api, "/api/v1/layers/{id}/view", h.GetView, tags)
	huma.Put(api, "/api/v1/layers/{id}/view", h.PutView, tags)
	huma.Post(api, "/api/v1/layers/{id}/view/sort/{column}", h.SortView, tags)
	huma.Post(api, "/api/v1/layers/{id}/view/page/{nav}", h.NavigateView, tags)
	huma.Get(api, "/api/v1/layers/{id}/columns/{column}/values", h.GetColumnValues, tags)
	huma.Post(api, "/api/v1/layers/{id}/rows/{rowId}/toggle", h.ToggleRow, tags)
	huma.Post(api, "/api/v1/layers/{id}/rows/toggle-all", h.ToggleAllRows, tags)
	huma.Post(api, "/api/v1/layers/{id}/rows/clear", h.ClearRows, tags)
	huma.Post(api, "/api/v1/layers/{id}/export", h.Export, tags)
}

func jsonValue(v feature.Value) any {
	if n, ok := v.Num(); ok && (math.IsNaN(n) || math.IsInf(n, 0)) {
		return nil
	}
	return v.Interface()
}

func rowMaps(rows []table.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := make(map[string]any, r.Cells.Len())
		for k, v := range r.Cells.All() {
			m[k] = jsonValue(v)
		}
		out[i] = m
	}
	return out
}

func pageBody(v *table.View, p table.Page) TablePageBody {
	rows := v.Rows()
	types := make(map[string]string, len(p.Columns))
	for _, c := range p.Columns {
		types[c.Key] = table.ColumnType(rows, c.Key)
	}
	return TablePageBody{
		LayerID:  p.LayerID,
		Columns:  p.Columns,
		Types:    types,
		Rows:     rowMaps(p.Rows),
		Info:     p.Info,
		State:    p.State,
		Selected: p.Selected,
	}
}

func (h *APIHandler) update(layerID, action string, fn func(*table.View) error) (*struct{ Body TablePageBody }, error) {
	v, err := h.svc.Portal.View(layerID)
	if err != nil {
		return nil, statusError(err)
	}
	p, err := h.svc.Portal.UpdateView(layerID, action, fn)
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body TablePageBody }{Body: pageBody(v, p)}, nil
}

func (h *APIHandler) GetRecords(ctx context.Context, input *RecordsInput) (*struct{ Body RecordsBody }, error) {
	v, err := h.svc.Portal.View(input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	size := input.Size
	if size == 0 {
		size = v.State().PageSize
	}
	visible := v.Visible()
	return &struct{ Body RecordsBody }{Body: RecordsBody{
		LayerID: input.ID,
		Columns: v.Columns(),
		Rows:    rowMaps(table.Paginate(visible, input.Page, size)),
		Page:    input.Page,
		Pages:   (len(visible) + size - 1) / size,
		Size:    size,
		Total:   len(visible),
	}}, nil
}

func (h *APIHandler) GetView(ctx context.Context, input *IDInput) (*struct{ Body TablePageBody }, error) {
	v, err := h.svc.Portal.View(input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body TablePageBody }{Body: pageBody(v, v.Page())}, nil
}

func (h *APIHandler) PutView(ctx context.Context, input *struct {
	IDInput
	Body ViewUpdate
}) (*struct{ Body TablePageBody }, error) {
	u := input.Body
	return h.update(input.ID, "state", func(v *table.View) error {
		st := v.State()
		st.Page = 0
		if u.ClearFilters {
			st.Filter.Term, st.Filter.Columns = "", nil
		}
		if u.Term != nil {
			st.Filter.Term = *u.Term
		}
		for k, val := range u.Columns {
			st.Filter = st.Filter.WithColumn(k, val)
		}
		if u.CaseSensitive != nil {
			st.Filter.CaseSensitive = *u.CaseSensitive
		}
		if u.ExactMatch != nil {
			st.Filter.ExactMatch = *u.ExactMatch
		}
		if u.Sort != nil {
			st.Sort = *u.Sort
		}
		if u.PageSize != nil {
			st.PageSize = *u.PageSize
		}
		if u.Page != nil {
			st.Page = *u.Page
		}
		if err := v.Apply(st); err != nil {
			return huma.Error422UnprocessableEntity(err.Error())
		}
		return nil
	})
}

func hasColumn(v *table.View, key string) bool {
	return slices.ContainsFunc(v.Columns(), func(c table.Column) bool { return c.Key == key })
}

func (h *APIHandler) SortView(ctx context.Context, input *ColumnInput) (*struct{ Body TablePageBody }, error) {
	return h.update(input.ID, "sort", func(v *table.View) error {
		if !hasColumn(v, input.Column) {
			return huma.Error404NotFound(fmt.Sprintf("column %q not found", input.Column))
		}
		v.SortBy(input.Column)
		return nil
	})
}

func (h *APIHandler) NavigateView(ctx context.Context, input *NavInput) (*struct{ Body TablePageBody }, error) {
	return h.update(input.ID, "page", func(v *table.View) error {
		v.Navigate(input.Nav)
		return nil
	})
}

func (h *APIHandler) GetColumnValues(ctx context.Context, input *ColumnInput) (*struct{ Body []string }, error) {
	v, err := h.svc.Portal.View(input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	if !hasColumn(v, input.Column) {
		return nil, huma.Error404NotFound(fmt.Sprintf("column %q not found", input.Column))
	}
	return &struct{ Body []string }{Body: table.UniqueValues(v.Rows(), input.Column)}, nil
}

func (h *APIHandler) ToggleRow(ctx context.Context, input *RowInput) (*struct{ Body TablePageBody }, error) {
	return h.update(input.ID, "rows", func(v *table.View) error {
		if _, ok := v.ToggleRow(input.RowID); !ok {
			return huma.Error404NotFound(fmt.Sprintf("row %q not found", input.RowID))
		}
		return nil
	})
}

func (h *APIHandler) ToggleAllRows(ctx context.Context, input *IDInput) (*struct{ Body TablePageBody }, error) {
	return h.update(input.ID, "rows", func(v *table.View) error {
		v.ToggleAll()
		return nil
	})
}

func (h *APIHandler) ClearRows(ctx context.Context, input *IDInput) (*struct{ Body TablePageBody }, error) {
	return h.update(input.ID, "rows", func(v *table.View) error {
		v.ClearSelection()
		return nil
	})
}

func (h *APIHandler) Export(ctx context.Context, input *struct {
	IDInput
	Body ExportRequest
}) (*ExportOutput, error) {
	v, err := h.svc.Portal.View(input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	req := input.Body
	mode := req.Mode
	if mode == "" {
		mode = table.Visible
	}
	res := v.Export(mode, table.Options{
		Format:       req.Format,
		Filename:     req.Filename,
		Include:      req.Include,
		Exclude:      req.Exclude,
		RoundNumbers: req.RoundNumbers,
	})
	if !res.OK {
		return nil, statusError(res.Err)
	}
	return &ExportOutput{
		ContentType:        res.MIME,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", res.Filename),
		Count:              res.Count,
		Body:               res.Content,
	}, nil
}
