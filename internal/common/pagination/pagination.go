// Package pagination slices list responses into pages.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params is a requested page. Page is 1-based.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// Response wraps one page of results.
type Response[T any] struct {
	Page         int `json:"page"`
	PerPage      int `json:"perPage"`
	TotalPages   int `json:"totalPages"`
	TotalResults int `json:"totalResults"`
	Results      []T `json:"results"`
}

// ParseParams reads page and perPage from the query string, clamping bad
// values to the defaults.
func ParseParams(r *http.Request) Params {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(q.Get("perPage"))
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	return Params{Page: page, PerPage: perPage}
}

// Offset is the index of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Paginate returns the requested page of items. A page past the end is
// empty, never nil.
func Paginate[T any](items []T, p Params) Response[T] {
	start := p.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + p.PerPage
	if end > len(items) {
		end = len(items)
	}

	results := make([]T, end-start)
	copy(results, items[start:end])

	return Response[T]{
		Page:         p.Page,
		PerPage:      p.PerPage,
		TotalPages:   totalPages(len(items), p.PerPage),
		TotalResults: len(items),
		Results:      results,
	}
}

func totalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		return 1
	}
	return pages
}
