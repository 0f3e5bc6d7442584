package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

// EventRepository stores events.
type EventRepository struct {
	store store.Store
}

func NewEventRepository(s store.Store) *EventRepository {
	return &EventRepository{store: s}
}

// List returns events ordered by event time, latest first.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	q := store.Query{Table: store.TableEvents, Sort: []store.Sort{{Column: "event_datetime", Desc: true}}}
	if filter.From != nil {
		q = q.Where(store.Gte("event_datetime", *filter.From))
	}
	if filter.To != nil {
		q = q.Where(store.Lte("event_datetime", *filter.To))
	}
	return listWithTotal[models.Event](ctx, r.store, page(q, filter.Page, filter.PageSize), "events")
}

// Upcoming returns up to limit events at or after from, soonest first.
func (r *EventRepository) Upcoming(ctx context.Context, from time.Time, limit int) ([]models.Event, error) {
	events := make([]models.Event, 0, limit)
	q := store.Query{
		Table:   store.TableEvents,
		Filters: []store.Filter{store.Gte("event_datetime", from)},
		Sort:    []store.Sort{{Column: "event_datetime"}},
		Limit:   limit,
	}
	if err := r.store.Select(ctx, q, &events); err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

// ListByIDs loads the events referenced by notifications.
func (r *EventRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	events := make([]models.Event, 0, len(ids))
	if len(ids) == 0 {
		return events, nil
	}
	q := store.Query{Table: store.TableEvents, Filters: []store.Filter{store.In("id", ids)}}
	if err := r.store.Select(ctx, q, &events); err != nil {
		return nil, fmt.Errorf("list events by id: %w", err)
	}
	return events, nil
}

func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := r.store.Get(ctx, byID(store.TableEvents, id), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *EventRepository) Create(ctx context.Context, e *models.Event) error {
	e.ID = newID(e.ID)
	stamp(&e.CreatedAt, &e.UpdatedAt)
	row := store.Row{
		"id":             e.ID,
		"title":          e.Title,
		"description":    e.Description,
		"event_datetime": e.EventDatetime,
		"location":       e.Location,
		"created_by_id":  e.CreatedByID,
		"created_at":     e.CreatedAt,
		"updated_at":     e.UpdatedAt,
	}
	if err := r.store.Insert(ctx, store.TableEvents, row, e); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}
