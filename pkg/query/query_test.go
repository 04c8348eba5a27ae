package query_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/agent-chat/pkg/query"
)

func messageProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "messages", "m").
		Project("id", "ID").
		Project("conversation_id", "ConversationID").
		Project("created_at", "CreatedAt")
}

func TestProjectionMap(t *testing.T) {
	pm := messageProjection()

	if pm.Table() != "public.messages m" {
		t.Errorf("Table() = %q", pm.Table())
	}
	if pm.Columns() != "m.id, m.conversation_id, m.created_at" {
		t.Errorf("Columns() = %q", pm.Columns())
	}
	if got := pm.Column("CreatedAt"); got != "m.created_at" {
		t.Errorf("Column(CreatedAt) = %q", got)
	}
	if got := pm.Column("Unknown"); got != "Unknown" {
		t.Errorf("Column(Unknown) = %q, want input", got)
	}

	list := pm.ColumnList()
	list[0] = "mutated"
	if pm.ColumnList()[0] != "m.id" {
		t.Error("ColumnList() exposes internal slice")
	}
}

func TestBuilder_Placeholders(t *testing.T) {
	search := "steel"
	b := query.NewBuilder(messageProjection(), "CreatedAt").
		WhereEquals("ConversationID", "c1").
		WhereBefore("CreatedAt", "2024-01-01").
		WhereSearch(&search, "ID", "ConversationID").
		WhereIn("ID", []any{"a", "b"})

	sql, args := b.BuildCount()

	want := "SELECT COUNT(*) FROM public.messages m WHERE m.conversation_id = $1 AND m.created_at < $2 AND (m.id ILIKE $3 OR m.conversation_id ILIKE $4) AND m.id IN ($5, $6)"
	if sql != want {
		t.Errorf("BuildCount()\n got %q\nwant %q", sql, want)
	}
	if len(args) != 6 {
		t.Fatalf("len(args) = %d, want 6", len(args))
	}
	if args[2] != "%steel%" {
		t.Errorf("args[2] = %v, want %%steel%%", args[2])
	}
}

func TestBuilder_IgnoresEmptyConditions(t *testing.T) {
	empty := ""
	b := query.NewBuilder(messageProjection(), "CreatedAt").
		WhereEquals("ID", nil).
		WhereBefore("CreatedAt", nil).
		WhereContains("ID", &empty).
		WhereContains("ID", nil).
		WhereIn("ID", nil).
		WhereSearch(nil, "ID")

	sql, args := b.BuildCount()
	if strings.Contains(sql, "WHERE") {
		t.Errorf("BuildCount() = %q, want no WHERE", sql)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want empty", args)
	}
}

func TestBuilder_Ordering(t *testing.T) {
	tests := []struct {
		name  string
		build func(*query.Builder) *query.Builder
		want  string
	}{
		{
			name:  "default",
			build: func(b *query.Builder) *query.Builder { return b },
			want:  "ORDER BY m.created_at ASC",
		},
		{
			name:  "default descending",
			build: func(b *query.Builder) *query.Builder { return b.OrderBy("", true) },
			want:  "ORDER BY m.created_at DESC",
		},
		{
			name: "multiple fields",
			build: func(b *query.Builder) *query.Builder {
				return b.OrderByFields(query.ParseSortFields("-CreatedAt,ID"))
			},
			want: "ORDER BY m.created_at DESC, m.id ASC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.build(query.NewBuilder(messageProjection(), "CreatedAt"))
			sql, _ := b.BuildLimit(50)
			if !strings.Contains(sql, tt.want) {
				t.Errorf("BuildLimit() = %q, missing %q", sql, tt.want)
			}
			if !strings.HasSuffix(sql, "LIMIT 50") {
				t.Errorf("BuildLimit() = %q, want LIMIT 50 suffix", sql)
			}
		})
	}
}

func TestBuilder_BuildPage(t *testing.T) {
	tests := []struct {
		page, size int
		want       string
	}{
		{1, 20, "LIMIT 20 OFFSET 0"},
		{3, 10, "LIMIT 10 OFFSET 20"},
		{0, 10, "LIMIT 10 OFFSET 0"},
	}

	for _, tt := range tests {
		sql, _ := query.NewBuilder(messageProjection(), "ID").BuildPage(tt.page, tt.size)
		if !strings.HasSuffix(sql, tt.want) {
			t.Errorf("BuildPage(%d, %d) = %q, want suffix %q", tt.page, tt.size, sql, tt.want)
		}
	}
}

func TestBuilder_BuildSingle(t *testing.T) {
	sql, args := query.NewBuilder(messageProjection(), "ID").BuildSingle("ID", "01H")

	want := "SELECT m.id, m.conversation_id, m.created_at FROM public.messages m WHERE m.id = $1"
	if sql != want {
		t.Errorf("BuildSingle() = %q, want %q", sql, want)
	}
	if len(args) != 1 || args[0] != "01H" {
		t.Errorf("args = %v", args)
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		in   string
		want []query.SortField
	}{
		{"", nil},
		{"name", []query.SortField{{Field: "name"}}},
		{"-created_at, name", []query.SortField{{Field: "created_at", Descending: true}, {Field: "name"}}},
		{",-,", []query.SortField{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := query.ParseSortFields(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuilder_Build(t *testing.T) {
	sql, args := query.NewBuilder(messageProjection(), "CreatedAt").
		WhereEquals("ID", "01H").
		Build()

	if strings.Contains(sql, "LIMIT") {
		t.Errorf("Build() = %q, want no LIMIT", sql)
	}
	if !strings.HasSuffix(sql, "ORDER BY m.created_at ASC") {
		t.Errorf("Build() = %q, want default ordering", sql)
	}
	if len(args) != 1 {
		t.Errorf("Build() args = %v", args)
	}
}
