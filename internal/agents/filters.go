package agents

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/agent-chat/pkg/query"
)

// Filters contains optional filtering criteria for agent queries.
type Filters struct {
	Name    *string
	Enabled *bool
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if n := values.Get("name"); n != "" {
		f.Name = &n
	}
	if e, err := strconv.ParseBool(values.Get("enabled")); err == nil {
		f.Enabled = &e
	}
	return f
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	b.WhereContains("Name", f.Name)
	if f.Enabled != nil {
		b.WhereEquals("Enabled", *f.Enabled)
	}
	return b
}

// Match reports whether a satisfies the filters. Used by in-memory backends.
func (f Filters) Match(a Agent) bool {
	if f.Name != nil && !containsFold(a.Name, *f.Name) {
		return false
	}
	if f.Enabled != nil && a.Enabled != *f.Enabled {
		return false
	}
	return true
}
