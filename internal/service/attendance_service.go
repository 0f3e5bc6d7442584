package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error)
	Upsert(ctx context.Context, a *models.Attendance) error
}

type absenceNotifier interface {
	ChildAbsent(ctx context.Context, child models.Child, date models.Date, reason string)
}

// AttendanceService records and lists daily attendance.
type AttendanceService struct {
	repo      attendanceRepository
	children  childDirectory
	notifier  absenceNotifier
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

func NewAttendanceService(repo attendanceRepository, children childDirectory, notifier absenceNotifier, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &AttendanceService{repo: repo, children: children, notifier: notifier, audit: audit, validator: validate, logger: logger}
}

// Mark writes attendance for (child, date). A second mark for the same day
// replaces the first.
func (s *AttendanceService) Mark(ctx context.Context, req models.MarkAttendanceRequest, actorID string) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	if req.Date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	if req.CheckInTime != nil && req.CheckOutTime != nil && req.CheckOutTime.Before(*req.CheckInTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "check_out_time is before check_in_time")
	}

	child, err := s.children.FindByID(ctx, req.ChildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Internal(err, "failed to load child")
	}

	record := &models.Attendance{
		ChildID:      child.ID,
		Date:         models.NewDate(req.Date.Time),
		IsPresent:    *req.IsPresent,
		CheckInTime:  req.CheckInTime,
		CheckOutTime: req.CheckOutTime,
		Notes:        req.Notes,
		MarkedBy:     actorID,
	}
	if !record.IsPresent {
		record.CheckInTime, record.CheckOutTime = nil, nil
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Internal(err, "failed to record attendance")
	}

	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionAttendanceMark, "attendance", record.ID,
		map[string]interface{}{"child_id": record.ChildID, "date": record.Date.String(), "is_present": record.IsPresent})
	if !record.IsPresent && s.notifier != nil {
		s.notifier.ChildAbsent(ctx, *child, record.Date, req.Reason)
	}
	return record, nil
}

// List returns attendance for admins.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list attendance")
	}
	return rows, pagination(filter.Page, filter.PageSize, total), nil
}

// ListForParent returns attendance of the parent's children, optionally one child.
func (s *AttendanceService) ListForParent(ctx context.Context, parentID string, filter models.AttendanceFilter) ([]models.Attendance, *models.Pagination, error) {
	var allowed []string
	if filter.ChildID != "" {
		if _, err := ownedChild(ctx, s.children, parentID, filter.ChildID); err != nil {
			return nil, nil, err
		}
		allowed = []string{filter.ChildID}
	} else {
		children, err := parentChildren(ctx, s.children, parentID, s.logger)
		if err != nil {
			return nil, nil, err
		}
		allowed = childIDs(children)
	}
	if len(allowed) == 0 {
		return []models.Attendance{}, pagination(filter.Page, filter.PageSize, 0), nil
	}

	filter.ChildID = ""
	filter.ChildIDs = allowed
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list attendance")
	}
	return keepChildren(rows, allowed, func(a models.Attendance) string { return a.ChildID }), pagination(filter.Page, filter.PageSize, total), nil
}

// keepChildren drops rows whose child is outside allowed.
func keepChildren[T any](rows []T, allowed []string, childOf func(T) string) []T {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	kept := rows[:0:0]
	for _, r := range rows {
		if _, ok := set[childOf(r)]; ok {
			kept = append(kept, r)
		}
	}
	return kept
}
