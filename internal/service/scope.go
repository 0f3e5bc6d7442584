package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

// ownedBy keeps only rows owned by parentID. Store filters already scope these
// queries; this second pass holds even if a remote store ignored the filter.
func ownedBy[T models.Owned](rows []T, parentID string, logger *zap.Logger, what string) []T {
	kept := rows[:0:0]
	for _, r := range rows {
		if r.OwnerID() == parentID {
			kept = append(kept, r)
		}
	}
	if dropped := len(rows) - len(kept); dropped > 0 && logger != nil {
		logger.Warn("dropped rows outside tenant scope", zap.String("entity", what), zap.String("parent_id", parentID), zap.Int("dropped", dropped))
	}
	return kept
}

func requireParent(parentID string) error {
	if parentID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "parent scope missing")
	}
	return nil
}

func pagination(page, size, total int) *models.Pagination {
	page, size = models.NormalizePage(page, size)
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

type childDirectory interface {
	ListByParent(ctx context.Context, parentID string) ([]models.Child, error)
	FindByID(ctx context.Context, id string) (*models.Child, error)
}

// parentChildren returns the children of parentID, re-checked for ownership.
func parentChildren(ctx context.Context, dir childDirectory, parentID string, logger *zap.Logger) ([]models.Child, error) {
	if err := requireParent(parentID); err != nil {
		return nil, err
	}
	children, err := dir.ListByParent(ctx, parentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list children")
	}
	return ownedBy(children, parentID, logger, "child"), nil
}

// ownedChild loads childID and hides it unless parentID owns it.
func ownedChild(ctx context.Context, dir childDirectory, parentID, childID string) (*models.Child, error) {
	if err := requireParent(parentID); err != nil {
		return nil, err
	}
	child, err := dir.FindByID(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Internal(err, "failed to load child")
	}
	if child.ParentID != parentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
	}
	return child, nil
}

func childIDs(children []models.Child) []string {
	ids := make([]string, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	return ids
}
