package pagination_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/JaimeStill/agent-chat/pkg/pagination"
)

var testConfig = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func TestPageRequest_Normalize(t *testing.T) {
	tests := []struct {
		name         string
		request      pagination.PageRequest
		wantPage     int
		wantPageSize int
	}{
		{"valid values unchanged", pagination.PageRequest{Page: 2, PageSize: 25}, 2, 25},
		{"zero page becomes 1", pagination.PageRequest{Page: 0, PageSize: 25}, 1, 25},
		{"zero page size gets default", pagination.PageRequest{Page: 1}, 1, 20},
		{"page size capped", pagination.PageRequest{Page: 1, PageSize: 500}, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.request.Normalize(testConfig)
			if tt.request.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", tt.request.Page, tt.wantPage)
			}
			if tt.request.PageSize != tt.wantPageSize {
				t.Errorf("PageSize = %d, want %d", tt.request.PageSize, tt.wantPageSize)
			}
		})
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	values := url.Values{}
	values.Set("page", "3")
	values.Set("page_size", "10")
	values.Set("search", "concrete")
	values.Set("sort", "-created_at")

	req := pagination.PageRequestFromQuery(values, testConfig)

	if req.Page != 3 || req.PageSize != 10 {
		t.Errorf("page = %d size = %d, want 3 and 10", req.Page, req.PageSize)
	}
	if req.Offset() != 20 {
		t.Errorf("Offset() = %d, want 20", req.Offset())
	}
	if req.Search == nil || *req.Search != "concrete" {
		t.Errorf("Search = %v, want concrete", req.Search)
	}
	if len(req.Sort) != 1 || req.Sort[0].Field != "created_at" || !req.Sort[0].Descending {
		t.Errorf("Sort = %+v", req.Sort)
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name           string
		total          int
		pageSize       int
		wantTotalPages int
	}{
		{"exact division", 100, 20, 5},
		{"with remainder", 101, 20, 6},
		{"empty", 0, 20, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := pagination.NewPageResult[string](nil, tt.total, 1, tt.pageSize)
			if result.TotalPages != tt.wantTotalPages {
				t.Errorf("TotalPages = %d, want %d", result.TotalPages, tt.wantTotalPages)
			}
			if result.Data == nil {
				t.Error("Data = nil, want empty slice")
			}
		})
	}
}

func TestCursorRequestFromQuery(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		values     url.Values
		wantBefore *time.Time
		wantLimit  int
	}{
		{"defaults", url.Values{}, nil, 20},
		{"before and limit", url.Values{"before": {ts.Format(time.RFC3339Nano)}, "limit": {"5"}}, &ts, 5},
		{"invalid before ignored", url.Values{"before": {"yesterday"}}, nil, 20},
		{"limit capped", url.Values{"limit": {"1000"}}, nil, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := pagination.CursorRequestFromQuery(tt.values, testConfig)
			if req.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", req.Limit, tt.wantLimit)
			}
			switch {
			case tt.wantBefore == nil && req.Before != nil:
				t.Errorf("Before = %v, want nil", req.Before)
			case tt.wantBefore != nil && (req.Before == nil || !req.Before.Equal(*tt.wantBefore)):
				t.Errorf("Before = %v, want %v", req.Before, tt.wantBefore)
			}
		})
	}
}

func TestConfig_Finalize(t *testing.T) {
	t.Setenv("TEST_PAGE_SIZE", "30")

	cfg := pagination.Config{}
	if err := cfg.Finalize(&pagination.Env{DefaultPageSize: "TEST_PAGE_SIZE"}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if cfg.DefaultPageSize != 30 {
		t.Errorf("DefaultPageSize = %d, want 30", cfg.DefaultPageSize)
	}
	if cfg.MaxPageSize != 200 {
		t.Errorf("MaxPageSize = %d, want 200", cfg.MaxPageSize)
	}

	bad := pagination.Config{DefaultPageSize: 50, MaxPageSize: 10}
	if err := bad.Finalize(nil); err == nil {
		t.Error("Finalize() should reject default above max")
	}
}
