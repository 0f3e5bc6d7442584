package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

// AnnouncementRepository stores announcements.
type AnnouncementRepository struct {
	store store.Store
}

func NewAnnouncementRepository(s store.Store) *AnnouncementRepository {
	return &AnnouncementRepository{store: s}
}

// List returns announcements published up to now, newest first. A zero
// publishedBefore returns every announcement.
func (r *AnnouncementRepository) List(ctx context.Context, publishedBefore time.Time, p, size int) ([]models.Announcement, int, error) {
	q := store.Query{Table: store.TableAnnouncements, Sort: []store.Sort{{Column: "published_at", Desc: true}}}
	if !publishedBefore.IsZero() {
		q = q.Where(store.Lte("published_at", publishedBefore))
	}
	return listWithTotal[models.Announcement](ctx, r.store, page(q, p, size), "announcements")
}

func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	a.ID = newID(a.ID)
	now := stamp(&a.CreatedAt, &a.UpdatedAt)
	if a.PublishedAt.IsZero() {
		a.PublishedAt = now
	}
	row := store.Row{
		"id":            a.ID,
		"title":         a.Title,
		"content":       a.Content,
		"priority":      string(a.Priority),
		"created_by_id": a.CreatedByID,
		"published_at":  a.PublishedAt,
		"created_at":    a.CreatedAt,
		"updated_at":    a.UpdatedAt,
	}
	if err := r.store.Insert(ctx, store.TableAnnouncements, row, a); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}
