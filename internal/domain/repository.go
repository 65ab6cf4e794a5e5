// Package domain provides types shared by the domain packages.
package domain

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// OrderBy specifies sorting (e.g., "starts", "-created_at")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-starts",
	}
}

// Normalize clamps pagination to sane bounds.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
