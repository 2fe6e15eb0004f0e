package pkg

import (
	"math"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/sitekit/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultSort     = "id:desc"

	likeSuffix = "__like"
)

// pageQuery holds the query parameters that shape a listing rather than
// filter it.
type pageQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Sort     string `form:"sort"`
}

// ParsePageRequest reads page, page_size and sort from the query string and
// treats every other non-empty parameter as a filter. Out of range or
// malformed values fall back to the defaults; columns are checked later by
// ListFields.
func ParsePageRequest(c *gin.Context) domain.PageRequest {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		q = pageQuery{}
	}

	req := domain.PageRequest{
		Page:     max(q.Page, 1),
		PageSize: q.PageSize,
		Sort:     strings.TrimSpace(q.Sort),
		Filter:   make(map[string]string),
	}
	switch {
	case req.PageSize < 1:
		req.PageSize = DefaultPageSize
	case req.PageSize > MaxPageSize:
		req.PageSize = MaxPageSize
	}
	if req.Sort == "" {
		req.Sort = DefaultSort
	}

	for key, values := range c.Request.URL.Query() {
		switch key {
		case "page", "page_size", "sort":
			continue
		}
		if len(values) > 0 && values[0] != "" {
			req.Filter[key] = values[0]
		}
	}
	return req
}

// ListFields declares the columns a listing may be sorted and filtered by.
// Anything else in a PageRequest is ignored, so query parameters never reach
// SQL as identifiers unless they are listed here.
type ListFields struct {
	Sort []string
	// Filter columns match exactly.
	Filter []string
	// Search columns also accept a "<column>__like" substring filter.
	Search []string
}

// Where returns a scope applying the allowed filters of req.
func (f ListFields) Where(req domain.PageRequest) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for key, value := range req.Filter {
			if col, ok := strings.CutSuffix(key, likeSuffix); ok {
				if slices.Contains(f.Search, col) {
					db = db.Where(clause.Like{Column: clause.Column{Name: col}, Value: "%" + value + "%"})
				}
				continue
			}
			if slices.Contains(f.Filter, key) || slices.Contains(f.Search, key) {
				db = db.Where(clause.Eq{Column: clause.Column{Name: key}, Value: value})
			}
		}
		return db
	}
}

// Order returns a scope applying req.Sort ("column:asc" or "column:desc")
// when the column is allowed.
func (f ListFields) Order(req domain.PageRequest) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		col, dir, ok := strings.Cut(req.Sort, ":")
		if !ok || !slices.Contains(f.Sort, strings.TrimSpace(col)) {
			return db
		}
		var desc bool
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "asc":
		case "desc":
			desc = true
		default:
			return db
		}
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: strings.TrimSpace(col)}, Desc: desc})
	}
}

// Paginate returns a scope selecting the requested page.
func Paginate(req domain.PageRequest) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((req.Page - 1) * req.PageSize).Limit(req.PageSize)
	}
}

// NewListResult wraps one page of items. Items is never nil so it encodes as [].
func NewListResult[T any](items []T, total int64, req domain.PageRequest) *domain.ListResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.PageSize > 0 {
		pages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	}
	return &domain.ListResult[T]{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: pages,
	}
}
