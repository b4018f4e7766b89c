package models

// PageResult holds pagination metadata for list responses
type PageResult struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResult creates pagination metadata
func NewPageResult(page, pageSize int, totalCount int64) PageResult {
	totalPages := int(totalCount) / pageSize
	if int(totalCount)%pageSize > 0 {
		totalPages++
	}
	return PageResult{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}
}

// ClampPage validates pagination parameters and applies defaults
func ClampPage(page, pageSize *int) {
	if *page < 1 {
		*page = 1
	}
	if *pageSize < 1 {
		*pageSize = 20
	}
	if *pageSize > 100 {
		*pageSize = 100
	}
}

// PageOffset calculates the SQL offset for pagination
func PageOffset(page, pageSize int) int {
	return (page - 1) * pageSize
}
