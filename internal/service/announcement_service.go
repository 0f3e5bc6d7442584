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

type announcementRepository interface {
	List(ctx context.Context, publishedBefore time.Time, p, size int) ([]models.Announcement, int, error)
	Create(ctx context.Context, a *models.Announcement) error
}

type announcementNotifier interface {
	AnnouncementPublished(ctx context.Context, announcementID string)
}

// AnnouncementService publishes announcements to all parents.
type AnnouncementService struct {
	repo      announcementRepository
	notifier  announcementNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func NewAnnouncementService(repo announcementRepository, notifier announcementNotifier, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &AnnouncementService{repo: repo, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// List returns every announcement, including back-dated ones, for admins.
func (s *AnnouncementService) List(ctx context.Context, page, size int) ([]models.Announcement, *models.Pagination, error) {
	return s.list(ctx, time.Time{}, page, size)
}

// ListPublished returns announcements visible to parents now. The cutoff is
// truncated to the minute so repeated reads share a cache entry.
func (s *AnnouncementService) ListPublished(ctx context.Context, page, size int) ([]models.Announcement, *models.Pagination, error) {
	return s.list(ctx, s.now().UTC().Truncate(time.Minute).Add(time.Minute), page, size)
}

func (s *AnnouncementService) list(ctx context.Context, before time.Time, page, size int) ([]models.Announcement, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, before, page, size)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list announcements")
	}
	return rows, pagination(page, size, total), nil
}

// Create publishes an announcement and notifies every active parent.
func (s *AnnouncementService) Create(ctx context.Context, req models.CreateAnnouncementRequest, actorID string) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid announcement payload")
	}
	a := &models.Announcement{
		Title:       strings.TrimSpace(req.Title),
		Content:     req.Content,
		Priority:    req.Priority,
		CreatedByID: actorID,
	}
	if a.Priority == "" {
		a.Priority = models.AnnouncementPriorityNormal
	}
	if req.PublishedAt != nil {
		if req.PublishedAt.After(s.now().Add(time.Minute)) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "scheduled announcements are not supported")
		}
		a.PublishedAt = req.PublishedAt.UTC()
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, appErrors.Internal(err, "failed to create announcement")
	}
	if s.notifier != nil {
		s.notifier.AnnouncementPublished(ctx, a.ID)
	}
	return a, nil
}
