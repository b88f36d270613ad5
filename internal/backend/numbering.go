package backend

import (
	"strings"
	"time"
	"opacbridge/internal/opac"
)

// NumberResults sets Position and Page of every result on a 1-based page,
// positions continue across pages: page 2 of size 20 starts at 21.
func NumberResults(results []opac.SearchResult, page, pageSize int) []opac.SearchResult {
	out := make([]opac.SearchResult, len(results))
	offset := (page - 1) * pageSize
	for i, r := range results {
		r.Position = offset + i + 1
		r.Page = page
		out[i] = r
	}
	return out
}

// PageOf returns the page a 1-based position falls on and its 0-based index
// within that page.
func PageOf(position, pageSize int) (page, index int) {
	if position < 1 || pageSize < 1 {
		return 0, -1
	}
	return (position-1)/pageSize + 1, (position - 1) % pageSize
}

// SearchCursor remembers the last search of an adapter instance so that
// SearchPage and position based Detail calls can be checked.
type SearchCursor struct {
	Active   bool
	Query    []opac.SearchQuery
	Page     int
	PageSize int
	Total    int
	// IDs holds the ids of the results seen so far, indexed by position-1.
	IDs []string
	// Handle is whatever the site needs to address the result list again,
	// e.g. an identifier taken from the first hit's link.
	Handle string
}

// Begin starts a new search and invalidates every previous position.
func (c *SearchCursor) Begin(query []opac.SearchQuery, pageSize int) {
	*c = SearchCursor{
		Active:   true,
		Query:    query,
		PageSize: pageSize,
		Total:    -1,
	}
}

// CheckPage reports an error unless a search is active and page is valid.
func (c *SearchCursor) CheckPage(page int) error {
	if !c.Active {
		return opac.NewOpacError(opac.ReasonNoSearch, "there is no search to page through")
	}
	if page < 1 {
		return opac.NewOpacError(opac.ReasonInvalidPosition, "pages start at 1")
	}
	return nil
}

// Record stores a fetched page.
func (c *SearchCursor) Record(res opac.SearchRequestResult) {
	c.Page = res.Page
	if res.Total >= 0 {
		c.Total = res.Total
	}
	for _, r := range res.Results {
		if r.Position < 1 {
			continue
		}
		for len(c.IDs) < r.Position {
			c.IDs = append(c.IDs, "")
		}
		c.IDs[r.Position-1] = r.ID
	}
}

// Resolve returns the id at position, ok is false when the position was
// never seen. The returned id may be empty if the site exposes none.
func (c *SearchCursor) Resolve(position int) (string, error) {
	if !c.Active {
		return "", opac.NewOpacError(opac.ReasonNoSearch, "positions refer to the last search, there is none")
	}
	if position < 1 || position > len(c.IDs) {
		return "", opac.NewOpacError(opac.ReasonInvalidPosition, "no result at this position")
	}
	return c.IDs[position-1], nil
}

var dateLayouts = []string{
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
}

// ParseDate tries the date formats OPACs commonly print, the zero time is
// returned when none match.
func ParseDate(text string, loc *time.Location) time.Time {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		text = text[:i]
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, text, loc)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}
