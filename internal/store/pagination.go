package store

// Page size bounds applied by NewPaginationParams
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams selects one page of a listing
type PaginationParams struct {
	Page     int    // 1-indexed
	PageSize int
	Search   string // free-text filter, ignored by listings without one
}

// PaginationResult describes where a page sits in the full listing
type PaginationResult struct {
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	HasPrev     bool  `json:"has_prev"`
	HasNext     bool  `json:"has_next"`
	PrevPage    int   `json:"prev_page"`
	NextPage    int   `json:"next_page"`
}

// NewPaginationParams clamps page to at least 1 and pageSize into [1, MaxPageSize].
func NewPaginationParams(page, pageSize int, search string) PaginationParams {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return PaginationParams{Page: page, PageSize: pageSize, Search: search}
}

func (p PaginationParams) offset() int {
	return (p.Page - 1) * p.PageSize
}

// CalculatePagination derives page metadata from a total row count. A page
// past the end is pulled back to the last page.
func CalculatePagination(total int64, currentPage, pageSize int) PaginationResult {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	if currentPage < 1 {
		currentPage = 1
	}
	if totalPages > 0 && currentPage > totalPages {
		currentPage = totalPages
	}

	return PaginationResult{
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: currentPage,
		PageSize:    pageSize,
		HasPrev:     currentPage > 1,
		HasNext:     currentPage < totalPages,
		PrevPage:    max(currentPage-1, 1),
		NextPage:    min(currentPage+1, totalPages),
	}
}
