package models

// Pagination mirrors the page block returned by every list endpoint.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

// ClampPage applies the default paging rules: page starts at 1, limit defaults to 10
// and may not exceed 100.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := int(total / int64(limit))
	if total%int64(limit) != 0 {
		pages++
	}
	return Pagination{Page: page, Limit: limit, TotalCount: total, TotalPages: pages}
}

// PagedResult pairs a page of rows with its pagination block.
type PagedResult[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}
