package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

// attendanceKey is the natural key of an attendance row.
var attendanceKey = []string{"child_id", "date"}

// AttendanceRepository stores daily attendance.
type AttendanceRepository struct {
	store store.Store
}

func NewAttendanceRepository(s store.Store) *AttendanceRepository {
	return &AttendanceRepository{store: s}
}

// List returns attendance rows, most recent day first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error) {
	q := store.Query{Table: store.TableAttendance, Sort: []store.Sort{{Column: "date", Desc: true}, {Column: "child_id"}}}
	if filter.ChildID != "" {
		q = q.Where(store.Eq("child_id", filter.ChildID))
	}
	if filter.ChildIDs != nil {
		q = q.Where(store.In("child_id", filter.ChildIDs))
	}
	if filter.Date != nil {
		q = q.Where(store.Eq("date", *filter.Date))
	}
	if filter.From != nil {
		q = q.Where(store.Gte("date", *filter.From))
	}
	if filter.To != nil {
		q = q.Where(store.Lte("date", *filter.To))
	}
	return listWithTotal[models.Attendance](ctx, r.store, page(q, filter.Page, filter.PageSize), "attendance")
}

// Upsert writes the row for (child_id, date); a later write replaces an earlier one.
func (r *AttendanceRepository) Upsert(ctx context.Context, a *models.Attendance) error {
	a.ID = newID(a.ID)
	stamp(&a.CreatedAt, &a.UpdatedAt)
	row := store.Row{
		"id":             a.ID,
		"child_id":       a.ChildID,
		"date":           a.Date,
		"is_present":     a.IsPresent,
		"check_in_time":  a.CheckInTime,
		"check_out_time": a.CheckOutTime,
		"notes":          a.Notes,
		"marked_by":      a.MarkedBy,
		"created_at":     a.CreatedAt,
		"updated_at":     a.UpdatedAt,
	}
	if err := r.store.Upsert(ctx, store.TableAttendance, attendanceKey, row, a); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// CountForDate returns present and absent counts for a day.
func (r *AttendanceRepository) CountForDate(ctx context.Context, date models.Date) (present, absent int, err error) {
	base := store.Query{Table: store.TableAttendance, Filters: []store.Filter{store.Eq("date", date)}}
	if present, err = r.store.Count(ctx, base.Where(store.Eq("is_present", true))); err != nil {
		return 0, 0, fmt.Errorf("count present: %w", err)
	}
	if absent, err = r.store.Count(ctx, base.Where(store.Eq("is_present", false))); err != nil {
		return 0, 0, fmt.Errorf("count absent: %w", err)
	}
	return present, absent, nil
}
