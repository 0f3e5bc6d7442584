package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

var consentKey = []string{"child_id", "parent_id"}

// ConsentRepository stores media consents, one per (child, parent).
type ConsentRepository struct {
	store store.Store
}

func NewConsentRepository(s store.Store) *ConsentRepository {
	return &ConsentRepository{store: s}
}

// Find returns the consent for a child granted by parentID.
func (r *ConsentRepository) Find(ctx context.Context, childID, parentID string) (*models.MediaConsent, error) {
	var c models.MediaConsent
	q := store.Query{Table: store.TableMediaConsents, Filters: []store.Filter{store.Eq("child_id", childID), store.Eq("parent_id", parentID)}}
	if err := r.store.Get(ctx, q, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns consents, optionally narrowed to a parent or a set of children.
func (r *ConsentRepository) List(ctx context.Context, parentID string, childIDs []string) ([]models.MediaConsent, error) {
	consents := make([]models.MediaConsent, 0)
	q := store.Query{Table: store.TableMediaConsents, Sort: []store.Sort{{Column: "updated_at", Desc: true}}}
	if parentID != "" {
		q = q.Where(store.Eq("parent_id", parentID))
	}
	if childIDs != nil {
		q = q.Where(store.In("child_id", childIDs))
	}
	if err := r.store.Select(ctx, q, &consents); err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	return consents, nil
}

// Upsert writes c keyed by (child_id, parent_id). c must already be normalised.
func (r *ConsentRepository) Upsert(ctx context.Context, c *models.MediaConsent) error {
	c.ID = newID(c.ID)
	stamp(&c.CreatedAt, &c.UpdatedAt)
	usages := []string(c.UsagePermissions)
	if usages == nil {
		usages = []string{}
	}
	row := store.Row{
		"id":                c.ID,
		"child_id":          c.ChildID,
		"parent_id":         c.ParentID,
		"consent_granted":   c.ConsentGranted,
		"consent_type":      string(c.ConsentType),
		"usage_permissions": usages,
		"created_at":        c.CreatedAt,
		"updated_at":        c.UpdatedAt,
	}
	if err := r.store.Upsert(ctx, store.TableMediaConsents, consentKey, row, c); err != nil {
		return fmt.Errorf("upsert consent: %w", err)
	}
	return nil
}
