package conversations

import (
	"net/url"
	"strings"

	"github.com/JaimeStill/agent-chat/pkg/query"
)

type Filters struct {
	Title *string
}

func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if t := values.Get("title"); t != "" {
		f.Title = &t
	}
	return f
}

func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.WhereContains("Title", f.Title)
}

func (f Filters) Match(c Conversation) bool {
	if f.Title == nil {
		return true
	}
	return strings.Contains(strings.ToLower(c.Title), strings.ToLower(*f.Title))
}
