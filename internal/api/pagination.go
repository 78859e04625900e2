package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	defaultPage    = 1
	defaultPerPage = 50
	maxPerPage     = 200
)

// PaginationParams holds parsed pagination query parameters.
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination reads page and per_page from the query string. Missing
// values take the defaults (page 1, 50 per page) and per_page above 200 is
// capped. Values that are not positive integers are reported as field
// errors keyed by parameter name, ready for RespondValidationError.
func ParsePagination(r *http.Request) (PaginationParams, map[string]string) {
	p := PaginationParams{
		Page:    defaultPage,
		PerPage: defaultPerPage,
	}
	var errs map[string]string
	reject := func(field string) {
		if errs == nil {
			errs = map[string]string{}
		}
		errs[field] = "must be a positive integer"
	}

	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		} else {
			reject("page")
		}
	}
	if v := q.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.PerPage = min(n, maxPerPage)
		} else {
			reject("per_page")
		}
	}

	return p, errs
}

// Offset returns the database offset for the current page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TotalPages calculates the total number of pages for a given total count.
func (p PaginationParams) TotalPages(total int64) int {
	if p.PerPage <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// String renders the page window for log lines
func (p PaginationParams) String() string {
	return fmt.Sprintf("page %d (%d per page)", p.Page, p.PerPage)
}
