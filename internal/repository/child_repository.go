package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

// ChildRepository stores children.
type ChildRepository struct {
	store store.Store
}

func NewChildRepository(s store.Store) *ChildRepository {
	return &ChildRepository{store: s}
}

// List returns children matching filter, newest first.
func (r *ChildRepository) List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error) {
	q := store.Query{Table: store.TableChildren, Sort: []store.Sort{{Column: "created_at", Desc: true}}}
	if filter.ParentID != "" {
		q = q.Where(store.Eq("parent_id", filter.ParentID))
	}
	if filter.TeacherID != "" {
		q = q.Where(store.Eq("assigned_teacher_id", filter.TeacherID))
	}
	if filter.Active != nil {
		q = q.Where(store.Eq("is_active", *filter.Active))
	}
	return listWithTotal[models.Child](ctx, r.store, page(q, filter.Page, filter.PageSize), "children")
}

// ListByParent returns every child of parentID without paging.
func (r *ChildRepository) ListByParent(ctx context.Context, parentID string) ([]models.Child, error) {
	var children []models.Child
	q := store.Query{
		Table:   store.TableChildren,
		Filters: []store.Filter{store.Eq("parent_id", parentID)},
		Sort:    []store.Sort{{Column: "first_name"}},
	}
	if err := r.store.Select(ctx, q, &children); err != nil {
		return nil, fmt.Errorf("list children by parent: %w", err)
	}
	return children, nil
}

// ListByIDs loads the children with the given ids.
func (r *ChildRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Child, error) {
	children := make([]models.Child, 0, len(ids))
	if len(ids) == 0 {
		return children, nil
	}
	q := store.Query{Table: store.TableChildren, Filters: []store.Filter{store.In("id", ids)}}
	if err := r.store.Select(ctx, q, &children); err != nil {
		return nil, fmt.Errorf("list children by id: %w", err)
	}
	return children, nil
}

// ListActive returns all active children.
func (r *ChildRepository) ListActive(ctx context.Context) ([]models.Child, error) {
	var children []models.Child
	q := store.Query{Table: store.TableChildren, Filters: []store.Filter{store.Eq("is_active", true)}, Sort: []store.Sort{{Column: "last_name"}}}
	if err := r.store.Select(ctx, q, &children); err != nil {
		return nil, fmt.Errorf("list active children: %w", err)
	}
	return children, nil
}

func (r *ChildRepository) FindByID(ctx context.Context, id string) (*models.Child, error) {
	var child models.Child
	if err := r.store.Get(ctx, byID(store.TableChildren, id), &child); err != nil {
		return nil, err
	}
	return &child, nil
}

func childRow(c *models.Child) store.Row {
	return store.Row{
		"first_name":              c.FirstName,
		"last_name":               c.LastName,
		"dob":                     c.DOB,
		"gender":                  c.Gender,
		"allergies":               c.Allergies,
		"medical_notes":           c.MedicalNotes,
		"emergency_contact_name":  c.EmergencyContactName,
		"emergency_contact_phone": c.EmergencyContactPhone,
		"parent_id":               c.ParentID,
		"assigned_teacher_id":     c.AssignedTeacherID,
		"is_active":               c.IsActive,
		"updated_at":              c.UpdatedAt,
	}
}

func (r *ChildRepository) Create(ctx context.Context, child *models.Child) error {
	child.ID = newID(child.ID)
	stamp(&child.CreatedAt, &child.UpdatedAt)
	row := childRow(child)
	row["id"] = child.ID
	row["created_at"] = child.CreatedAt
	if err := r.store.Insert(ctx, store.TableChildren, row, child); err != nil {
		return fmt.Errorf("create child: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of a child and reloads it.
func (r *ChildRepository) Update(ctx context.Context, child *models.Child) error {
	child.UpdatedAt = time.Now().UTC()
	if err := r.store.Update(ctx, store.TableChildren, []store.Filter{store.Eq("id", child.ID)}, childRow(child), child); err != nil {
		return err
	}
	return nil
}

// CountActive returns the number of active children.
func (r *ChildRepository) CountActive(ctx context.Context) (int, error) {
	return r.store.Count(ctx, store.Query{Table: store.TableChildren, Filters: []store.Filter{store.Eq("is_active", true)}})
}
