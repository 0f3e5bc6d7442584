package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
	"github.com/noah-isme/creche-api/pkg/jobs"
)

// Notification job types.
const (
	JobEventFanOut        = "notify.event"
	JobAnnouncementFanOut = "notify.announcement"
	JobAbsence            = "notify.absence"
)

type notificationRepository interface {
	ListEvent(ctx context.Context, filter models.NotificationFilter) ([]models.EventNotification, int, error)
	ListAnnouncement(ctx context.Context, filter models.NotificationFilter) ([]models.AnnouncementNotification, int, error)
	ListAbsence(ctx context.Context, filter models.NotificationFilter) ([]models.AbsenceNotification, int, error)
	MarkRead(ctx context.Context, kind models.NotificationKind, id, parentID string) error
	CountUnread(ctx context.Context, parentID string) (int, error)
	FanOutEvent(ctx context.Context, eventID string, parentIDs []string) (int, error)
	FanOutAnnouncement(ctx context.Context, announcementID string, parentIDs []string) (int, error)
	CreateAbsence(ctx context.Context, n *models.AbsenceNotification) (int, error)
}

type parentDirectory interface {
	ListActiveParentIDs(ctx context.Context) ([]string, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationService writes notification rows for parents and serves them back.
// Delivery beyond the rows themselves is out of scope.
type NotificationService struct {
	repo    notificationRepository
	parents parentDirectory
	queue   jobQueue
	jobs    *jobs.Mux
	metrics *MetricsService
	logger  *zap.Logger
}

func NewNotificationService(repo notificationRepository, parents parentDirectory, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, parents: parents, metrics: metrics, logger: logger, jobs: jobs.NewMux()}
	s.jobs.Handle(s.fanOut, JobEventFanOut, JobAnnouncementFanOut)
	s.jobs.Handle(s.absence, JobAbsence)
	return s
}

// UseQueue routes fan-out through q. Without a queue, fan-out runs inline.
func (s *NotificationService) UseQueue(q jobQueue) {
	s.queue = q
}

// EventCreated schedules delivery of an event to every active parent.
func (s *NotificationService) EventCreated(ctx context.Context, eventID string) {
	s.dispatch(ctx, jobs.Job{ID: eventID, Type: JobEventFanOut, Payload: eventID})
}

// AnnouncementPublished schedules delivery of an announcement to every active parent.
func (s *NotificationService) AnnouncementPublished(ctx context.Context, announcementID string) {
	s.dispatch(ctx, jobs.Job{ID: announcementID, Type: JobAnnouncementFanOut, Payload: announcementID})
}

// ChildAbsent schedules an absence notice for the child's parent.
func (s *NotificationService) ChildAbsent(ctx context.Context, child models.Child, date models.Date, reason string) {
	n := models.AbsenceNotification{ChildID: child.ID, ParentID: child.ParentID, Date: date, Reason: reason}
	s.dispatch(ctx, jobs.Job{ID: child.ID + ":" + date.String(), Type: JobAbsence, Payload: n})
}

func (s *NotificationService) dispatch(ctx context.Context, job jobs.Job) {
	if s.queue != nil {
		err := s.queue.Enqueue(job)
		if err == nil {
			return
		}
		s.logger.Warn("notification queue rejected job, delivering inline", zap.String("type", job.Type), zap.Error(err))
	}
	if err := s.Handle(ctx, job); err != nil {
		s.logger.Warn("notification delivery failed", zap.String("type", job.Type), zap.String("job_id", job.ID), zap.Error(err))
	}
}

// Handle executes one notification job. It is the queue's worker handler.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	return s.jobs.Dispatch(ctx, job)
}

func (s *NotificationService) fanOut(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok || id == "" {
		return fmt.Errorf("job %s: missing id payload", job.Type)
	}
	parents, err := s.parents.ListActiveParentIDs(ctx)
	if err != nil {
		return fmt.Errorf("list parents: %w", err)
	}
	if len(parents) == 0 {
		return nil
	}

	kind, write := models.NotificationEvent, s.repo.FanOutEvent
	if job.Type == JobAnnouncementFanOut {
		kind, write = models.NotificationAnnouncement, s.repo.FanOutAnnouncement
	}
	created, err := write(ctx, id, parents)
	if err != nil {
		return err
	}
	s.metrics.RecordNotifications(string(kind), created)
	s.logger.Info("notifications fanned out", zap.String("kind", string(kind)), zap.String("source_id", id), zap.Int("created", created), zap.Int("parents", len(parents)))
	return nil
}

func (s *NotificationService) absence(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.AbsenceNotification)
	if !ok {
		return fmt.Errorf("job %s: unexpected payload %T", job.Type, job.Payload)
	}
	created, err := s.repo.CreateAbsence(ctx, &n)
	if err != nil {
		return err
	}
	s.metrics.RecordNotifications(string(models.NotificationAbsence), created)
	return nil
}

func (s *NotificationService) ListEvents(ctx context.Context, filter models.NotificationFilter) ([]models.EventNotification, *models.Pagination, error) {
	if err := requireParent(filter.ParentID); err != nil {
		return nil, nil, err
	}
	rows, total, err := s.repo.ListEvent(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list event notifications")
	}
	return ownedBy(rows, filter.ParentID, s.logger, "event_notification"), pagination(filter.Page, filter.PageSize, total), nil
}

func (s *NotificationService) ListAnnouncements(ctx context.Context, filter models.NotificationFilter) ([]models.AnnouncementNotification, *models.Pagination, error) {
	if err := requireParent(filter.ParentID); err != nil {
		return nil, nil, err
	}
	rows, total, err := s.repo.ListAnnouncement(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list announcement notifications")
	}
	return ownedBy(rows, filter.ParentID, s.logger, "announcement_notification"), pagination(filter.Page, filter.PageSize, total), nil
}

func (s *NotificationService) ListAbsences(ctx context.Context, filter models.NotificationFilter) ([]models.AbsenceNotification, *models.Pagination, error) {
	if err := requireParent(filter.ParentID); err != nil {
		return nil, nil, err
	}
	rows, total, err := s.repo.ListAbsence(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list absence notifications")
	}
	return ownedBy(rows, filter.ParentID, s.logger, "absence_notification"), pagination(filter.Page, filter.PageSize, total), nil
}

// MarkRead flags a notification owned by parentID as read.
func (s *NotificationService) MarkRead(ctx context.Context, kind models.NotificationKind, id, parentID string) error {
	if err := requireParent(parentID); err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, kind, id, parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Internal(err, "failed to mark notification read")
	}
	return nil
}

// CountUnread totals unread notifications of every kind.
func (s *NotificationService) CountUnread(ctx context.Context, parentID string) (int, error) {
	if err := requireParent(parentID); err != nil {
		return 0, err
	}
	n, err := s.repo.CountUnread(ctx, parentID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to count notifications")
	}
	return n, nil
}
