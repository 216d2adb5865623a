package table

import "fmt"

// DefaultPageSize is the page size of a new pager.
const DefaultPageSize = 10

// Nav is a boundary navigation command.
type Nav string

const (
	First    Nav = "first"
	Previous Nav = "previous"
	Next     Nav = "next"
	Last     Nav = "last"
)

// PageInfo describes the current page.
type PageInfo struct {
	Page    int  `json:"page" doc:"Current page, 1-indexed"`
	Pages   int  `json:"pages" doc:"Total pages"`
	Size    int  `json:"size" doc:"Rows per page"`
	Total   int  `json:"total" doc:"Rows after filtering"`
	Start   int  `json:"start" doc:"Index of the first row on the page"`
	End     int  `json:"end" doc:"Index after the last row on the page"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// Pager tracks a 1-indexed current page over a row count.
type Pager struct {
	page  int
	size  int
	total int
}

// NewPager returns a pager on page 1. A non-positive size selects
// DefaultPageSize.
func NewPager(size int) Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return Pager{page: 1, size: size}
}

// Pages returns ceil(total/size).
func (p *Pager) Pages() int {
	return (p.total + p.size - 1) / p.size
}

// SetTotal updates the row count, clamping the current page down to the
// new last page, never below 1.
func (p *Pager) SetTotal(n int) {
	p.total = n
	if pages := p.Pages(); p.page > pages {
		p.page = max(pages, 1)
	}
}

// SetSize changes the page size and goes back to page 1.
func (p *Pager) SetSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("page size must be positive, got %d", n)
	}
	p.size = n
	p.page = 1
	return nil
}

// GoTo moves to page n. Pages outside 1..Pages are rejected and leave the
// pager unchanged.
func (p *Pager) GoTo(n int) bool {
	if n < 1 || n > p.Pages() {
		return false
	}
	p.page = n
	return true
}

// Navigate applies a boundary command. Moving past a boundary is a no-op
// reported as false.
func (p *Pager) Navigate(nav Nav) bool {
	switch nav {
	case First:
		return p.GoTo(1)
	case Previous:
		return p.GoTo(p.page - 1)
	case Next:
		return p.GoTo(p.page + 1)
	case Last:
		return p.GoTo(max(p.Pages(), 1))
	}
	return false
}

// Info returns the current page description.
func (p *Pager) Info() PageInfo {
	start := min((p.page-1)*p.size, p.total)
	end := min(start+p.size, p.total)
	return PageInfo{
		Page:    p.page,
		Pages:   p.Pages(),
		Size:    p.size,
		Total:   p.total,
		Start:   start,
		End:     end,
		HasNext: p.page < p.Pages(),
		HasPrev: p.page > 1,
	}
}

// Paginate returns the rows of page (1-indexed) at size. Pages out of
// range are empty.
func Paginate(rows []Row, page, size int) []Row {
	if page < 1 || size <= 0 {
		return nil
	}
	start := (page - 1) * size
	if start >= len(rows) {
		return nil
	}
	return rows[start:min(start+size, len(rows))]
}
