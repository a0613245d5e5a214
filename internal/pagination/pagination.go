// Package pagination validates page-change intents against known bounds.
package pagination

// Meta describes the pagination state reported by the backend.
type Meta struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	TotalItems int `json:"totalItems"`
}

// ChangePage returns requested when it lies within [1, totalPages] and
// current otherwise. Out-of-range requests are a silent no-op, never an
// error.
func ChangePage(current, requested, totalPages int) int {
	if requested < 1 || requested > totalPages {
		return current
	}
	return requested
}

// Normalize clamps backend-reported values into a consistent Meta: page >= 1,
// the remaining counters >= 0, and page <= totalPages whenever totalPages is
// known.
func Normalize(page, pageSize, totalPages, totalItems int) Meta {
	if page < 1 {
		page = 1
	}
	if pageSize < 0 {
		pageSize = 0
	}
	if totalPages < 0 {
		totalPages = 0
	}
	if totalItems < 0 {
		totalItems = 0
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}
	return Meta{Page: page, PageSize: pageSize, TotalPages: totalPages, TotalItems: totalItems}
}
