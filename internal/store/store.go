// Package store is the table-oriented read/write surface every repository goes
// through. A Query names a table, column filters, a sort order and a page; writes
// are whole or partial rows keyed by primary or natural key.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Op is a column comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
	OpIs  Op = "is"
)

// Filter restricts rows on one column.
type Filter struct {
	Column string
	Op     Op
	Value  interface{}
}

// Eq is shorthand for an equality filter.
func Eq(column string, value interface{}) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// In matches any of values.
func In(column string, values []string) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// Gte matches column >= value.
func Gte(column string, value interface{}) Filter {
	return Filter{Column: column, Op: OpGte, Value: value}
}

// Lte matches column <= value.
func Lte(column string, value interface{}) Filter {
	return Filter{Column: column, Op: OpLte, Value: value}
}

// IsNull matches NULL columns.
func IsNull(column string) Filter {
	return Filter{Column: column, Op: OpIs, Value: nil}
}

// Sort orders rows by one column.
type Sort struct {
	Column string
	Desc   bool
}

// Query describes a filtered, sorted, paged read.
type Query struct {
	Table   string
	Filters []Filter
	Sort    []Sort
	Limit   int
	Offset  int
}

// Where returns a copy of q with extra filters appended.
func (q Query) Where(filters ...Filter) Query {
	next := q
	next.Filters = append(append([]Filter{}, q.Filters...), filters...)
	return next
}

// HasFilter reports whether q filters column with an equality on value.
func (q Query) HasFilter(column string, value interface{}) bool {
	for _, f := range q.Filters {
		if f.Column == column && f.Op == OpEq && fmt.Sprint(f.Value) == fmt.Sprint(value) {
			return true
		}
	}
	return false
}

// Key renders a canonical string identifying the query; equal queries share a key.
// Keys always start with "<table>:" so callers can invalidate per table.
func (q Query) Key() string {
	filters := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		filters = append(filters, fmt.Sprintf("%s.%s.%v", f.Column, f.Op, f.Value))
	}
	sort.Strings(filters)
	sorts := make([]string, 0, len(q.Sort))
	for _, s := range q.Sort {
		dir := "asc"
		if s.Desc {
			dir = "desc"
		}
		sorts = append(sorts, s.Column+"."+dir)
	}
	return fmt.Sprintf("%s:%s|%s|%d|%d", q.Table, strings.Join(filters, "&"), strings.Join(sorts, ","), q.Limit, q.Offset)
}

// Row is a column→value payload for writes.
type Row map[string]interface{}

// Store is implemented by the Postgres and PostgREST drivers and their decorators.
//
// Get and Update return sql.ErrNoRows when nothing matches. Write failures caused by
// constraints are returned as typed application errors (conflict / validation).
type Store interface {
	Select(ctx context.Context, q Query, dest interface{}) error
	Count(ctx context.Context, q Query) (int, error)
	Get(ctx context.Context, q Query, dest interface{}) error
	Insert(ctx context.Context, table string, row Row, dest interface{}) error
	Upsert(ctx context.Context, table string, conflict []string, row Row, dest interface{}) error
	InsertIgnore(ctx context.Context, table string, conflict []string, rows []Row) (int, error)
	Update(ctx context.Context, table string, filters []Filter, patch Row, dest interface{}) error
	Ping(ctx context.Context) error
}
