package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
		wantErrs    []string
	}{
		{"defaults", "", 1, 50, nil},
		{"custom", "page=3&per_page=25", 3, 25, nil},
		{"per_page capped", "per_page=500", 1, 200, nil},
		{"zero page", "page=0", 1, 50, []string{"page"}},
		{"non-numeric page", "page=abc", 1, 50, []string{"page"}},
		{"negative per_page", "per_page=-5", 1, 50, []string{"per_page"}},
		{"both invalid", "page=-1&per_page=x", 1, 50, []string{"page", "per_page"}},
		{"valid page survives invalid per_page", "page=4&per_page=0", 4, 50, []string{"per_page"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/anomalies?"+tt.query, nil)
			p, errs := ParsePagination(r)

			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("ParsePagination() = %+v, want page %d per_page %d", p, tt.wantPage, tt.wantPerPage)
			}
			if len(errs) != len(tt.wantErrs) {
				t.Fatalf("errors = %v, want fields %v", errs, tt.wantErrs)
			}
			for _, field := range tt.wantErrs {
				if _, ok := errs[field]; !ok {
					t.Errorf("expected error for %s, got %v", field, errs)
				}
			}
		})
	}
}

func TestPaginationParams_Offset(t *testing.T) {
	tests := []struct {
		page, perPage, want int
	}{
		{1, 50, 0},
		{2, 50, 50},
		{3, 25, 50},
		{10, 100, 900},
	}

	for _, tt := range tests {
		p := PaginationParams{Page: tt.page, PerPage: tt.perPage}
		if got := p.Offset(); got != tt.want {
			t.Errorf("%s: Offset() = %d, want %d", p, got, tt.want)
		}
	}
}

func TestPaginationParams_TotalPages(t *testing.T) {
	tests := []struct {
		perPage int
		total   int64
		want    int
	}{
		{10, 100, 10},
		{10, 101, 11},
		{50, 30, 1},
		{50, 0, 0},
		{50, 1, 1},
		{0, 100, 0},
	}

	for _, tt := range tests {
		p := PaginationParams{Page: 1, PerPage: tt.perPage}
		if got := p.TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) with %d per page = %d, want %d", tt.total, tt.perPage, got, tt.want)
		}
	}
}

func TestPaginationParams_String(t *testing.T) {
	p := PaginationParams{Page: 2, PerPage: 25}
	if got := p.String(); got != "page 2 (25 per page)" {
		t.Errorf("String() = %q", got)
	}
}
