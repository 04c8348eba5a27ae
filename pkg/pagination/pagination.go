// Package pagination provides page requests and results for list endpoints.
package pagination

import (
	"net/url"
	"strconv"
	"time"

	"github.com/JaimeStill/agent-chat/pkg/query"
)

// PageRequest is an offset page request with optional search and sort.
type PageRequest struct {
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Search   *string           `json:"search,omitempty"`
	Sort     []query.SortField `json:"sort,omitempty"`
}

// Normalize clamps page and page size to the configured bounds.
func (r *PageRequest) Normalize(cfg Config) {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	if r.PageSize > cfg.MaxPageSize {
		r.PageSize = cfg.MaxPageSize
	}
}

// Offset returns the number of records to skip.
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery parses page, page_size, search, and sort query parameters.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	page, _ := strconv.Atoi(values.Get("page"))
	pageSize, _ := strconv.Atoi(values.Get("page_size"))

	var search *string
	if s := values.Get("search"); s != "" {
		search = &s
	}

	req := PageRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   search,
		Sort:     query.ParseSortFields(values.Get("sort")),
	}
	req.Normalize(cfg)
	return req
}

// PageResult holds one page of data with its metadata.
type PageResult[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPageResult builds a PageResult and computes total pages.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	totalPages := 1
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	if totalPages < 1 {
		totalPages = 1
	}
	if data == nil {
		data = []T{}
	}

	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// CursorRequest is a keyset request for records strictly older than Before.
// A nil Before requests the newest records.
type CursorRequest struct {
	Before *time.Time `json:"before,omitempty"`
	Limit  int        `json:"limit"`
}

// Normalize clamps Limit to the configured bounds.
func (r *CursorRequest) Normalize(cfg Config) {
	if r.Limit < 1 {
		r.Limit = cfg.DefaultPageSize
	}
	if r.Limit > cfg.MaxPageSize {
		r.Limit = cfg.MaxPageSize
	}
}

// CursorRequestFromQuery parses before (RFC 3339) and limit query parameters.
func CursorRequestFromQuery(values url.Values, cfg Config) CursorRequest {
	limit, _ := strconv.Atoi(values.Get("limit"))

	var before *time.Time
	if v := values.Get("before"); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			before = &t
		}
	}

	req := CursorRequest{Before: before, Limit: limit}
	req.Normalize(cfg)
	return req
}
