// Package table is the attribute table pipeline over a layer's records:
// search and filter, sort, paginate and export. Every stage is a pure
// function over rows; View composes them with the table's state.
package table

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/geoportal/internal/feature"
)

// IDColumn is the key of the identifier column every table starts with.
const IDColumn = "id"

// Row is the tabular projection of a record.
type Row struct {
	ID       string
	Cells    feature.Properties
	Geometry orb.Geometry
}

// Value returns the cell under key, or null.
func (r Row) Value(key string) feature.Value {
	return r.Cells.Value(key)
}

// Column is a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// FromRecords projects records into rows: the id column first, then the
// properties in document order.
func FromRecords(recs []feature.Record) []Row {
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		cells := feature.NewProperties(IDColumn, rec.ID)
		for k, v := range rec.Properties.All() {
			if k == IDColumn {
				continue
			}
			cells.Set(k, v)
		}
		rows = append(rows, Row{ID: rec.ID, Cells: cells, Geometry: rec.Geometry})
	}
	return rows
}

// Columns returns the union of cell keys in first-seen order.
func Columns(rows []Row) []Column {
	var cols []Column
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, k := range r.Cells.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, Column{Key: k, Label: k})
			}
		}
	}
	return cols
}
