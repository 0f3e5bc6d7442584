package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

// MediaRepository stores media metadata. File bytes live in file storage.
type MediaRepository struct {
	store store.Store
}

func NewMediaRepository(s store.Store) *MediaRepository {
	return &MediaRepository{store: s}
}

func (r *MediaRepository) List(ctx context.Context, filter models.MediaFilter) ([]models.Media, int, error) {
	q := store.Query{Table: store.TableMedia, Sort: []store.Sort{{Column: "created_at", Desc: true}}}
	if filter.ChildID != "" {
		q = q.Where(store.Eq("child_id", filter.ChildID))
	}
	if filter.ChildIDs != nil {
		q = q.Where(store.In("child_id", filter.ChildIDs))
	}
	if filter.Kind != nil {
		q = q.Where(store.Eq("media_kind", string(*filter.Kind)))
	}
	return listWithTotal[models.Media](ctx, r.store, page(q, filter.Page, filter.PageSize), "media")
}

func (r *MediaRepository) FindByID(ctx context.Context, id string) (*models.Media, error) {
	var m models.Media
	if err := r.store.Get(ctx, byID(store.TableMedia, id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepository) Create(ctx context.Context, m *models.Media) error {
	m.ID = newID(m.ID)
	stamp(&m.CreatedAt, nil)
	row := store.Row{
		"id":              m.ID,
		"child_id":        m.ChildID,
		"uploaded_by_id":  m.UploadedByID,
		"media_kind":      string(m.MediaKind),
		"file_path":       m.FilePath,
		"content_type":    m.ContentType,
		"caption":         m.Caption,
		"consent_granted": m.ConsentGranted,
		"created_at":      m.CreatedAt,
	}
	if err := r.store.Insert(ctx, store.TableMedia, row, m); err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	return nil
}
