package httputil

import (
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps Offset within a 32-bit signed integer.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Page is a 1-based page request parsed from ?page= and ?limit=.
type Page struct {
	Page  int
	Limit int
}

// ParsePage reads page and limit from the query string. Missing or invalid
// values fall back to page 1 and DefaultPageSize. Page is capped at MaxPage
// and limit at MaxPageSize.
func ParsePage(r *http.Request) Page {
	p := Page{Page: 1, Limit: DefaultPageSize}

	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		p.Page = min(v, MaxPage)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		p.Limit = min(v, MaxPageSize)
	}

	return p
}

// Offset is the number of rows to skip for this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages is the number of pages needed for total rows.
func (p Page) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}
