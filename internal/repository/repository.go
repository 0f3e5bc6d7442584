// Package repository maps entities onto store tables. Repositories never
// scope by tenant themselves; callers pass the owner filter explicitly.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

func page(q store.Query, p, size int) store.Query {
	p, size = models.NormalizePage(p, size)
	q.Limit = size
	q.Offset = (p - 1) * size
	return q
}

func listWithTotal[T any](ctx context.Context, s store.Store, q store.Query, what string) ([]T, int, error) {
	rows := make([]T, 0)
	if err := s.Select(ctx, q, &rows); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", what, err)
	}
	total, err := s.Count(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", what, err)
	}
	return rows, total, nil
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func stamp(created *time.Time, updated *time.Time) time.Time {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
	return now
}

func byID(table, id string) store.Query {
	return store.Query{Table: table, Filters: []store.Filter{store.Eq("id", id)}}
}
