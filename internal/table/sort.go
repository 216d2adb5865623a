package table

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/joeblew999/geoportal/internal/feature"
)

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortState is the active sort column and direction. An empty column
// means unsorted.
type SortState struct {
	Column    string    `json:"column,omitempty"`
	Direction Direction `json:"direction,omitempty" enum:"asc,desc"`
}

// Toggle returns the state after activating column: the same column flips
// direction, a new column starts ascending.
func (s SortState) Toggle(column string) SortState {
	if s.Column == column && s.Direction == Ascending {
		return SortState{Column: column, Direction: Descending}
	}
	return SortState{Column: column, Direction: Ascending}
}

// Sorter orders rows with locale-aware collation.
type Sorter struct {
	tag language.Tag
}

// NewSorter returns a sorter collating strings for tag.
func NewSorter(tag language.Tag) *Sorter {
	return &Sorter{tag: tag}
}

func (s *Sorter) collator() *collate.Collator {
	return collate.New(s.tag, collate.Loose, collate.Numeric)
}

// Sort returns a stably sorted copy of rows. Nulls go last in both
// directions. Otherwise values compare numerically when both are numbers,
// by timestamp when both look like dates, and by collation otherwise.
func (s *Sorter) Sort(rows []Row, st SortState) []Row {
	out := slices.Clone(rows)
	if st.Column == "" || len(out) < 2 {
		return out
	}
	c := s.collator()
	slices.SortStableFunc(out, func(a, b Row) int {
		av, bv := a.Value(st.Column), b.Value(st.Column)
		switch {
		case av.IsNull() && bv.IsNull():
			return 0
		case av.IsNull():
			return 1
		case bv.IsNull():
			return -1
		}
		r := compareValues(c, av, bv)
		if st.Direction == Descending {
			r = -r
		}
		return r
	})
	return out
}

// Compare orders two non-null values the way Sort does for ascending.
func (s *Sorter) Compare(a, b feature.Value) int {
	return compareValues(s.collator(), a, b)
}

func compareValues(c *collate.Collator, a, b feature.Value) int {
	if an, ok := number(a); ok {
		if bn, ok := number(b); ok {
			return cmp.Compare(an, bn)
		}
	}
	if at, ok := date(a); ok {
		if bt, ok := date(b); ok {
			return at.Compare(bt)
		}
	}
	return c.CompareString(fold(a.Text()), fold(b.Text()))
}

func number(v feature.Value) (float64, bool) {
	switch v.Kind() {
	case feature.KindNumber:
		n, _ := v.Num()
		return n, !math.IsNaN(n)
	case feature.KindBool:
		if b, _ := v.Boolean(); b {
			return 1, true
		}
		return 0, true
	case feature.KindString:
		s := strings.TrimSpace(v.Text())
		if s == "" {
			return 0, false
		}
		// ParseFloat also reads hex floats and inf/nan spellings
		if strings.ContainsAny(s, "xX") {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func date(v feature.Value) (time.Time, bool) {
	s, ok := v.Str()
	if !ok || !datePrefix.MatchString(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ColumnType guesses how a column sorts from its first ten non-empty
// values: "number", "date" or "string".
func ColumnType(rows []Row, key string) string {
	var sample []feature.Value
	for _, r := range rows[:min(len(rows), 10)] {
		if v := r.Value(key); !v.IsNull() && v.Text() != "" {
			sample = append(sample, v)
		}
	}
	if len(sample) == 0 {
		return "string"
	}
	if !slices.ContainsFunc(sample, func(v feature.Value) bool { _, ok := number(v); return !ok }) {
		return "number"
	}
	if !slices.ContainsFunc(sample, func(v feature.Value) bool { _, ok := date(v); return !ok }) {
		return "date"
	}
	return "string"
}
