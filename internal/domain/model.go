package domain

import "time"

// BaseModel carries the key and timestamps of persisted rows. It has no
// DeletedAt, so pruned build records are removed rather than soft deleted.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageRequest is a parsed list query. Page is 1-based, Sort is "column:dir"
// and Filter maps query keys to values; which keys apply is up to the
// repository.
type PageRequest struct {
	Page     int
	PageSize int
	Sort     string
	Filter   map[string]string
}

// ListResult is one page of a listing. Items is never nil.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}
