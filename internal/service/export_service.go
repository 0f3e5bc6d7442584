package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
	"github.com/noah-isme/creche-api/pkg/export"
)

const exportMaxRows = 20000

type exportAttendance interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error)
}

type exportPayments interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
}

type exportChildren interface {
	List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Child, error)
}

// ExportService renders admin datasets for download.
type ExportService struct {
	attendance exportAttendance
	payments   exportPayments
	children   exportChildren
	logger     *zap.Logger
	now        func() time.Time
}

func NewExportService(attendance exportAttendance, payments exportPayments, children exportChildren, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{attendance: attendance, payments: payments, children: children, logger: logger, now: time.Now}
}

// Export builds req.Dataset and renders it in req.Format.
func (s *ExportService) Export(ctx context.Context, req models.ExportRequest) (*models.ExportFile, error) {
	renderer, err := export.ForFormat(string(req.Format))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.From != nil && req.To != nil && req.To.Before(req.From.Time) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	var data export.Dataset
	switch req.Dataset {
	case models.ExportAttendance:
		data, err = s.attendanceDataset(ctx, req)
	case models.ExportPayments:
		data, err = s.paymentDataset(ctx, req)
	case models.ExportChildren:
		data, err = s.childDataset(ctx)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown dataset %q", req.Dataset))
	}
	if err != nil {
		return nil, err
	}

	content, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	s.logger.Info("export rendered", zap.String("dataset", string(req.Dataset)), zap.String("format", renderer.Extension()), zap.Int("rows", len(data.Rows)))
	return &models.ExportFile{
		Filename:    fmt.Sprintf("%s-%s.%s", req.Dataset, s.now().UTC().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

func (s *ExportService) attendanceDataset(ctx context.Context, req models.ExportRequest) (export.Dataset, error) {
	rows, err := collectPages(func(page int) ([]models.Attendance, int, error) {
		return s.attendance.List(ctx, models.AttendanceFilter{From: req.From, To: req.To, Page: page, PageSize: models.MaxPageSize})
	})
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to load attendance")
	}
	names, err := s.childNames(ctx, rows)
	if err != nil {
		return export.Dataset{}, err
	}

	data := export.Dataset{Title: "Attendance" + window(req), Headers: []string{"Date", "Child", "Present", "Check in", "Check out", "Notes"}}
	for _, a := range rows {
		data.AddRow(a.Date.String(), names[a.ChildID], yesNo(a.IsPresent), clock(a.CheckInTime), clock(a.CheckOutTime), a.Notes)
	}
	return data, nil
}

func (s *ExportService) paymentDataset(ctx context.Context, req models.ExportRequest) (export.Dataset, error) {
	rows, err := collectPages(func(page int) ([]models.Payment, int, error) {
		return s.payments.List(ctx, models.PaymentFilter{Page: page, PageSize: models.MaxPageSize})
	})
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to load payments")
	}

	data := export.Dataset{Title: "Payments" + window(req), Headers: []string{"Payment", "Parent", "Description", "Amount", "Currency", "Status", "Due", "Paid"}}
	for _, p := range rows {
		if !inWindow(p.DueDate, req) {
			continue
		}
		due := ""
		if p.DueDate != nil {
			due = p.DueDate.String()
		}
		paid := ""
		if p.PaymentDate != nil {
			paid = p.PaymentDate.UTC().Format("2006-01-02")
		}
		data.AddRow(p.ID, p.ParentID, p.Description, strconv.FormatFloat(p.Amount, 'f', 2, 64), p.Currency, string(p.Status), due, paid)
	}
	return data, nil
}

func (s *ExportService) childDataset(ctx context.Context) (export.Dataset, error) {
	rows, err := collectPages(func(page int) ([]models.Child, int, error) {
		return s.children.List(ctx, models.ChildFilter{Page: page, PageSize: models.MaxPageSize})
	})
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to load children")
	}
	data := export.Dataset{Title: "Children", Headers: []string{"Child", "Date of birth", "Parent", "Allergies", "Emergency contact", "Active"}}
	for _, c := range rows {
		contact := strings.TrimSpace(c.EmergencyContactName + " " + c.EmergencyContactPhone)
		data.AddRow(c.FullName(), c.DOB.String(), c.ParentID, c.Allergies, contact, yesNo(c.IsActive))
	}
	return data, nil
}

func (s *ExportService) childNames(ctx context.Context, rows []models.Attendance) (map[string]string, error) {
	seen := map[string]struct{}{}
	ids := make([]string, 0)
	for _, a := range rows {
		if _, ok := seen[a.ChildID]; !ok {
			seen[a.ChildID] = struct{}{}
			ids = append(ids, a.ChildID)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	children, err := s.children.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load children")
	}
	for _, c := range children {
		names[c.ID] = c.FullName()
	}
	return names, nil
}

// collectPages reads pages until total is reached or exportMaxRows is hit.
func collectPages[T any](fetch func(page int) ([]T, int, error)) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		rows, total, err := fetch(page)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if len(rows) == 0 || len(out) >= total || len(out) >= exportMaxRows {
			return out, nil
		}
	}
}

func inWindow(d *models.Date, req models.ExportRequest) bool {
	if req.From == nil && req.To == nil {
		return true
	}
	if d == nil {
		return false
	}
	if req.From != nil && d.Before(req.From.Time) {
		return false
	}
	if req.To != nil && d.After(req.To.Time) {
		return false
	}
	return true
}

func window(req models.ExportRequest) string {
	switch {
	case req.From != nil && req.To != nil:
		return fmt.Sprintf(" %s to %s", req.From, req.To)
	case req.From != nil:
		return fmt.Sprintf(" from %s", req.From)
	case req.To != nil:
		return fmt.Sprintf(" until %s", req.To)
	}
	return ""
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("15:04")
}
