package table

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/joeblew999/geoportal/internal/feature"
)

// ErrViewState is returned by Apply for a state the view cannot take.
var ErrViewState = errors.New("invalid view state")

// State is the table's view state.
type State struct {
	Filter   Filter    `json:"filter"`
	Sort     SortState `json:"sort"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

// Page is one rendered page of a View.
type Page struct {
	LayerID  string   `json:"layerId"`
	Columns  []Column `json:"columns"`
	Rows     []Row    `json:"-"`
	Info     PageInfo `json:"info"`
	State    State    `json:"state"`
	Selected []string `json:"selected" doc:"Selected row ids"`
}

// View is the attribute table of one layer. It never modifies the rows it
// is given. Safe for concurrent use.
type View struct {
	layerID string
	name    string
	sorter  *Sorter
	now     func() time.Time

	mu       sync.Mutex
	rows     []Row
	cols     []Column
	filter   Filter
	sort     SortState
	pager    Pager
	selected map[string]bool
	visible  []Row
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithPageSize sets the initial page size.
func WithPageSize(n int) ViewOption {
	return func(v *View) { v.pager = NewPager(n) }
}

// WithLocale sets the collation locale used for sorting.
func WithLocale(tag language.Tag) ViewOption {
	return func(v *View) { v.sorter = NewSorter(tag) }
}

// WithClock sets the clock used for export timestamps and filenames.
func WithClock(now func() time.Time) ViewOption {
	return func(v *View) { v.now = now }
}

// NewView builds the table of a layer's records.
func NewView(layerID, name string, recs []feature.Record, opts ...ViewOption) *View {
	v := &View{
		layerID:  layerID,
		name:     name,
		sorter:   NewSorter(language.Spanish),
		now:      time.Now,
		pager:    NewPager(DefaultPageSize),
		selected: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.setRecordsLocked(recs)
	return v
}

// LayerID returns the layer the view belongs to.
func (v *View) LayerID() string { return v.layerID }

// SetRecords replaces the rows after a reload. Filter, sort and selection
// carry over; the page clamps if the result shrank.
func (v *View) SetRecords(recs []feature.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setRecordsLocked(recs)
}

func (v *View) setRecordsLocked(recs []feature.Record) {
	v.rows = FromRecords(recs)
	v.cols = Columns(v.rows)
	if len(v.cols) == 0 {
		v.cols = []Column{{Key: IDColumn, Label: IDColumn}}
	}
	present := make(map[string]bool, len(v.rows))
	for _, r := range v.rows {
		present[r.ID] = true
	}
	for id := range v.selected {
		if !present[id] {
			delete(v.selected, id)
		}
	}
	v.refreshLocked()
}

func (v *View) refreshLocked() {
	v.visible = v.sorter.Sort(Search(v.rows, v.cols, v.filter), v.sort)
	v.pager.SetTotal(len(v.visible))
}

// Columns returns the table columns.
func (v *View) Columns() []Column {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.cols)
}

// State returns the current view state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *View) stateLocked() State {
	info := v.pager.Info()
	return State{Filter: v.filter, Sort: v.sort, Page: info.Page, PageSize: info.Size}
}

// SetFilter replaces the search state.
func (v *View) SetFilter(f Filter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = f
	v.refreshLocked()
}

// SetSearch sets the global search term.
func (v *View) SetSearch(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Term = term
	v.refreshLocked()
}

// SetColumnFilter filters one column; a blank value removes the filter.
func (v *View) SetColumnFilter(key, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = v.filter.WithColumn(key, value)
	v.refreshLocked()
}

// ClearFilters removes the search term and every column filter.
func (v *View) ClearFilters() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Term = ""
	v.filter.Columns = nil
	v.refreshLocked()
}

// SortBy activates a column: a new column sorts ascending, the active one
// flips direction.
func (v *View) SortBy(column string) SortState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sort = v.sort.Toggle(column)
	v.refreshLocked()
	return v.sort
}

// SetSort sets the sort state directly. An empty column clears sorting.
func (v *View) SetSort(s SortState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sort = s.normalize()
	v.refreshLocked()
}

func (s SortState) normalize() SortState {
	if s.Column == "" {
		return SortState{}
	}
	if s.Direction != Descending {
		s.Direction = Ascending
	}
	return s
}

// Apply replaces filter, sort and page size in one step, then moves to
// st.Page. A zero page keeps the current page, or page 1 when the size
// changed. The view is left untouched if the size is not positive or the
// page does not exist under the new filter.
func (v *View) Apply(st State) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	sort := st.Sort.normalize()
	visible := v.sorter.Sort(Search(v.rows, v.cols, st.Filter), sort)
	pager := v.pager
	if st.PageSize != pager.Info().Size {
		if err := pager.SetSize(st.PageSize); err != nil {
			return fmt.Errorf("%w: %v", ErrViewState, err)
		}
	}
	pager.SetTotal(len(visible))
	if st.Page != 0 && !pager.GoTo(st.Page) {
		return fmt.Errorf("%w: page %d out of range 1..%d", ErrViewState, st.Page, max(pager.Pages(), 1))
	}

	v.filter, v.sort, v.visible, v.pager = st.Filter, sort, visible, pager
	return nil
}

// SetPageSize changes the page size and returns to page 1.
func (v *View) SetPageSize(n int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pager.SetSize(n)
}

// GoTo moves to page n; out-of-range pages are rejected.
func (v *View) GoTo(n int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pager.GoTo(n)
}

// Navigate applies a first/previous/next/last command.
func (v *View) Navigate(nav Nav) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pager.Navigate(nav)
}

// Visible returns the filtered and sorted rows.
func (v *View) Visible() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.visible)
}

// Rows returns every row in record order.
func (v *View) Rows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.rows)
}

// Page returns the current page.
func (v *View) Page() Page {
	v.mu.Lock()
	defer v.mu.Unlock()

	info := v.pager.Info()
	return Page{
		LayerID:  v.layerID,
		Columns:  slices.Clone(v.cols),
		Rows:     slices.Clone(v.visible[info.Start:info.End]),
		Info:     info,
		State:    v.stateLocked(),
		Selected: v.selectedIDsLocked(),
	}
}

// Reveal moves to the page holding row id. It fails when the row is
// filtered out or unknown.
func (v *View) Reveal(id string) (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := slices.IndexFunc(v.visible, func(r Row) bool { return r.ID == id })
	if i < 0 {
		return 0, false
	}
	page := i/v.pager.Info().Size + 1
	v.pager.GoTo(page)
	return page, true
}

// ToggleRow flips the selection of a row and reports the new state.
func (v *View) ToggleRow(id string) (selected bool, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !slices.ContainsFunc(v.rows, func(r Row) bool { return r.ID == id }) {
		return false, false
	}
	if v.selected[id] {
		delete(v.selected, id)
		return false, true
	}
	v.selected[id] = true
	return true, true
}

// ToggleAll selects every row, or clears the selection when all rows are
// already selected.
func (v *View) ToggleAll() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.selected) == len(v.rows) {
		clear(v.selected)
		return
	}
	for _, r := range v.rows {
		v.selected[r.ID] = true
	}
}

// ClearSelection deselects every row.
func (v *View) ClearSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.selected)
}

// Selected returns the selected rows in record order.
func (v *View) Selected() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectedLocked()
}

func (v *View) selectedLocked() []Row {
	var out []Row
	for _, r := range v.rows {
		if v.selected[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func (v *View) selectedIDsLocked() []string {
	out := []string{}
	for _, r := range v.selectedLocked() {
		out = append(out, r.ID)
	}
	return out
}

// Export serializes the rows of mode. Name, filename and clock default to
// the view's.
func (v *View) Export(mode Mode, opts Options) Result {
	v.mu.Lock()
	var rows []Row
	switch mode {
	case All:
		rows = slices.Clone(v.rows)
	case Selected:
		rows = v.selectedLocked()
	default:
		rows = slices.Clone(v.visible)
	}
	if opts.Columns == nil {
		opts.Columns = slices.Clone(v.cols)
	}
	v.mu.Unlock()

	if opts.Name == "" {
		opts.Name = v.name
	}
	if opts.Now == nil {
		opts.Now = v.now
	}
	if label, ok := modeLabels[mode]; ok {
		if opts.Filename == "" {
			opts.Filename = SuggestFilename(opts.Name+"_"+strings.ToLower(label), opts.Now())
		}
		if opts.SheetName == "" {
			opts.SheetName = opts.Name + " - " + label
		}
	}
	return Export(rows, opts)
}

// modeLabels name the whole-layer and selection exports in file and sheet
// names.
var modeLabels = map[Mode]string{
	All:      "Completo",
	Selected: "Seleccionados",
}
