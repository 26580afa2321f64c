package service

import (
	"math"

	"xingqu-shop/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps the row offset within a Postgres integer
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Pagination describes one window of a listing
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// normalizePage clamps page to [1, MaxPage] and limit to [1, MaxPageSize],
// defaulting limit to DefaultPageSize
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func pageWindow(page, limit int) repository.Page {
	return repository.Page{Limit: limit, Offset: (page - 1) * limit}
}

func newPagination(page, limit, total int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}
