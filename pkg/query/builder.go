// Package query builds parameterized PostgreSQL SELECT statements from a ProjectionMap.
package query

import (
	"fmt"
	"strings"
)

const placeholder = "$%d"

type condition struct {
	clause string
	args   []any
}

// Builder accumulates WHERE and ORDER BY terms and renders numbered placeholders.
type Builder struct {
	projection  *ProjectionMap
	conditions  []condition
	sort        []SortField
	defaultSort SortField
}

// NewBuilder creates a Builder over projection ordered by defaultSort when no sort is given.
func NewBuilder(projection *ProjectionMap, defaultSort string) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: SortField{Field: defaultSort},
	}
}

// BuildCount returns a COUNT(*) query with the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.buildWhere()
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.Table(), where), args
}

// Build returns an unbounded SELECT with the current conditions and sort.
func (b *Builder) Build() (string, []any) {
	where, args := b.buildWhere()
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s",
		b.projection.Columns(),
		b.projection.Table(),
		where,
		b.buildOrderBy(),
	)
	return sql, args
}

// BuildPage returns an offset-paginated SELECT.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	where, args := b.buildWhere()
	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}

	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		b.projection.Columns(),
		b.projection.Table(),
		where,
		b.buildOrderBy(),
		pageSize,
		offset,
	)
	return sql, args
}

// BuildLimit returns a SELECT bounded by limit, for keyset pagination.
func (b *Builder) BuildLimit(limit int) (string, []any) {
	where, args := b.buildWhere()
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s LIMIT %d",
		b.projection.Columns(),
		b.projection.Table(),
		where,
		b.buildOrderBy(),
		limit,
	)
	return sql, args
}

// BuildSingle returns a SELECT for one record by its identifying field.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.Table(),
		b.projection.Column(idField),
	)
	return sql, []any{id}
}

// OrderBy replaces the sort with a single field.
func (b *Builder) OrderBy(field string, descending bool) *Builder {
	if field == "" {
		b.defaultSort.Descending = descending
		b.sort = nil
		return b
	}
	b.sort = []SortField{{Field: field, Descending: descending}}
	return b
}

// OrderByFields replaces the sort with fields. An empty slice keeps the default sort.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	if len(fields) > 0 {
		b.sort = fields
	}
	return b
}

// WhereContains adds a case-insensitive ILIKE condition. Nil or empty values are ignored.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.add(fmt.Sprintf("%s ILIKE %s", b.projection.Column(field), placeholder), "%"+*value+"%")
}

// WhereEquals adds an equality condition. Nil values are ignored.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if value == nil {
		return b
	}
	return b.add(fmt.Sprintf("%s = %s", b.projection.Column(field), placeholder), value)
}

// WhereBefore adds a strict less-than condition. Nil values are ignored.
func (b *Builder) WhereBefore(field string, value any) *Builder {
	if value == nil {
		return b
	}
	return b.add(fmt.Sprintf("%s < %s", b.projection.Column(field), placeholder), value)
}

// WhereIn adds an IN condition for multiple values. Empty slices are ignored.
func (b *Builder) WhereIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}
	marks := make([]string, len(values))
	for i := range values {
		marks[i] = placeholder
	}
	clause := fmt.Sprintf("%s IN (%s)", b.projection.Column(field), strings.Join(marks, ", "))
	return b.add(clause, values...)
}

// WhereSearch adds an OR of ILIKE conditions across fields. Nil or empty search is ignored.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	clauses := make([]string, len(fields))
	args := make([]any, len(fields))
	pattern := "%" + *search + "%"
	for i, field := range fields {
		clauses[i] = fmt.Sprintf("%s ILIKE %s", b.projection.Column(field), placeholder)
		args[i] = pattern
	}

	return b.add("("+strings.Join(clauses, " OR ")+")", args...)
}

func (b *Builder) add(clause string, args ...any) *Builder {
	b.conditions = append(b.conditions, condition{clause: clause, args: args})
	return b
}

func (b *Builder) buildOrderBy() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = []SortField{b.defaultSort}
	}

	terms := make([]string, len(fields))
	for i, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		terms[i] = b.projection.Column(f.Field) + " " + dir
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (b *Builder) buildWhere() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(b.conditions))
	args := make([]any, 0)
	idx := 1

	for _, cond := range b.conditions {
		clause := cond.clause
		for _, arg := range cond.args {
			clause = strings.Replace(clause, placeholder, fmt.Sprintf("$%d", idx), 1)
			args = append(args, arg)
			idx++
		}
		clauses = append(clauses, clause)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}
