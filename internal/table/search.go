package table

import (
	"maps"
	"slices"
	"strings"
	"unicode"
)

// Filter is the search state: a global term matched against every column,
// AND-combined with per-column filters.
type Filter struct {
	Term          string            `json:"term,omitempty"`
	Columns       map[string]string `json:"columns,omitempty"`
	CaseSensitive bool              `json:"caseSensitive,omitempty"`
	ExactMatch    bool              `json:"exactMatch,omitempty"`
}

// Active reports whether the filter can exclude anything.
func (f Filter) Active() bool {
	if f.Term != "" {
		return true
	}
	for _, v := range f.Columns {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// WithColumn returns a copy of f filtering key by value. A blank value
// removes the column filter.
func (f Filter) WithColumn(key, value string) Filter {
	cols := maps.Clone(f.Columns)
	if cols == nil {
		cols = make(map[string]string)
	}
	if v := strings.TrimSpace(value); v != "" {
		cols[key] = v
	} else {
		delete(cols, key)
	}
	f.Columns = cols
	return f
}

func (f Filter) matches(cell, want string) bool {
	if !f.CaseSensitive {
		cell, want = fold(cell), fold(want)
	}
	if f.ExactMatch {
		return cell == want
	}
	return strings.Contains(cell, want)
}

// Match reports whether r passes f. The global term must match at least
// one of cols; every column filter must match its own column.
func (f Filter) Match(r Row, cols []Column) bool {
	if f.Term != "" {
		if !slices.ContainsFunc(cols, func(c Column) bool {
			return f.matches(r.Value(c.Key).Text(), f.Term)
		}) {
			return false
		}
	}
	for key, want := range f.Columns {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		if !f.matches(r.Value(key).Text(), want) {
			return false
		}
	}
	return true
}

// Search returns the rows passing f, in input order. An inactive filter
// returns rows unchanged.
func Search(rows []Row, cols []Column, f Filter) []Row {
	if !f.Active() {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Match(r, cols) {
			out = append(out, r)
		}
	}
	return out
}

// UniqueValues returns the distinct non-empty texts of a column, sorted.
func UniqueValues(rows []Row, key string) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		if s := r.Value(key).Text(); s != "" {
			seen[s] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Segment is a piece of highlighted cell text.
type Segment struct {
	Text        string `json:"text"`
	Highlighted bool   `json:"highlighted"`
}

// Highlight splits text into segments marking each match of term, using
// the same case and exact-match rules as f.
func (f Filter) Highlight(text, term string) []Segment {
	if term == "" || text == "" {
		return []Segment{{Text: text}}
	}
	if f.ExactMatch {
		return []Segment{{Text: text, Highlighted: f.matches(text, term)}}
	}

	src := []rune(text)
	hay, needle := src, []rune(term)
	if !f.CaseSensitive {
		hay, needle = []rune(fold(text)), []rune(fold(term))
	}

	var out []Segment
	last := 0
	for i := 0; i+len(needle) <= len(hay); {
		if !slices.Equal(hay[i:i+len(needle)], needle) {
			i++
			continue
		}
		if i > last {
			out = append(out, Segment{Text: string(src[last:i])})
		}
		out = append(out, Segment{Text: string(src[i : i+len(needle)]), Highlighted: true})
		i += len(needle)
		last = i
	}
	if last < len(src) {
		out = append(out, Segment{Text: string(src[last:])})
	}
	return out
}

// fold lower-cases rune by rune so folded text keeps its rune count.
func fold(s string) string {
	return strings.Map(unicode.ToLower, s)
}
