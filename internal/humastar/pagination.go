// pagination.go: HATEOAS pagination via RFC 8288 Link headers.
//
// Response bodies implement the Pager interface to emit first/prev/next/last
// Link headers. The Linker transformer reads these and sets the headers.
package humastar

import "fmt"

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageLinks describes a 1-indexed page of a paged collection.
type PageLinks struct {
	Page  int
	Pages int
	Size  int
}

// PaginationLinks returns RFC 8288 Link header values for pagination rels.
// An empty collection only links to its first page.
func (p PageLinks) PaginationLinks(basePath string) []string {
	link := func(page int, rel string) string {
		return fmt.Sprintf(`<%s?page=%d&size=%d>; rel="%s"`, basePath, page, p.Size, rel)
	}

	links := []string{link(1, "first")}
	if p.Page > 1 {
		links = append(links, link(min(p.Page-1, max(p.Pages, 1)), "prev"))
	}
	if p.Page < p.Pages {
		links = append(links, link(p.Page+1, "next"))
	}
	links = append(links, link(max(p.Pages, 1), "last"))
	return links
}
