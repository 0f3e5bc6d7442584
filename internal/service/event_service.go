package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	Upcoming(ctx context.Context, from time.Time, limit int) ([]models.Event, error)
	Create(ctx context.Context, e *models.Event) error
}

type eventNotifier interface {
	EventCreated(ctx context.Context, eventID string)
}

// EventService schedules events. Every event is visible to every parent.
type EventService struct {
	repo      eventRepository
	notifier  eventNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

func NewEventService(repo eventRepository, notifier eventNotifier, validate *validator.Validate, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &EventService{repo: repo, notifier: notifier, validator: validate, logger: logger}
}

func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to is before from")
	}
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list events")
	}
	return events, pagination(filter.Page, filter.PageSize, total), nil
}

// Upcoming returns the next few events from now.
func (s *EventService) Upcoming(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 5
	}
	events, err := s.repo.Upcoming(ctx, time.Now().UTC().Truncate(time.Minute), limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list upcoming events")
	}
	return events, nil
}

// Create stores an event and notifies every active parent.
func (s *EventService) Create(ctx context.Context, req models.CreateEventRequest, actorID string) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid event payload")
	}
	event := &models.Event{
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		EventDatetime: req.EventDatetime.UTC(),
		Location:      req.Location,
		CreatedByID:   actorID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Internal(err, "failed to create event")
	}
	if s.notifier != nil {
		s.notifier.EventCreated(ctx, event.ID)
	}
	return event, nil
}
