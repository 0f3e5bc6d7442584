package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

// StaffRepository stores staff records.
type StaffRepository struct {
	store store.Store
}

func NewStaffRepository(s store.Store) *StaffRepository {
	return &StaffRepository{store: s}
}

// List returns staff ordered by name.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error) {
	q := store.Query{Table: store.TableStaff, Sort: []store.Sort{{Column: "full_name"}}}
	if filter.Role != nil {
		q = q.Where(store.Eq("role", string(*filter.Role)))
	}
	if filter.Active != nil {
		q = q.Where(store.Eq("is_active", *filter.Active))
	}
	return listWithTotal[models.Staff](ctx, r.store, page(q, filter.Page, filter.PageSize), "staff")
}

func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	var staff models.Staff
	if err := r.store.Get(ctx, byID(store.TableStaff, id), &staff); err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	staff.ID = newID(staff.ID)
	stamp(&staff.CreatedAt, &staff.UpdatedAt)
	row := store.Row{
		"id":             staff.ID,
		"full_name":      staff.FullName,
		"email":          staff.Email,
		"phone":          staff.Phone,
		"role":           string(staff.Role),
		"qualifications": staff.Qualifications,
		"is_active":      staff.IsActive,
		"hired_at":       staff.HiredAt,
		"created_at":     staff.CreatedAt,
		"updated_at":     staff.UpdatedAt,
	}
	if err := r.store.Insert(ctx, store.TableStaff, row, staff); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// CountActive returns the number of active staff members.
func (r *StaffRepository) CountActive(ctx context.Context) (int, error) {
	return r.store.Count(ctx, store.Query{Table: store.TableStaff, Filters: []store.Filter{store.Eq("is_active", true)}})
}
