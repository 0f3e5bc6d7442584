package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

// UserRepository provides store access for accounts, refresh sessions and the audit trail.
type UserRepository struct {
	store store.Store
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{store: s}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	q := store.Query{Table: store.TableUsers, Filters: []store.Filter{store.Eq("email", email)}}
	if err := r.store.Get(ctx, q, &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.store.Get(ctx, byID(store.TableUsers, id), &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	patch := store.Row{"last_login": ts, "updated_at": ts}
	if err := r.store.Update(ctx, store.TableUsers, []store.Filter{store.Eq("id", id)}, patch, nil); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	patch := store.Row{"password_hash": passwordHash, "updated_at": updatedAt}
	if err := r.store.Update(ctx, store.TableUsers, []store.Filter{store.Eq("id", id)}, patch, nil); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetActive toggles is_active and returns the updated user.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	var user models.User
	patch := store.Row{"is_active": active, "updated_at": time.Now().UTC()}
	if err := r.store.Update(ctx, store.TableUsers, []store.Filter{store.Eq("id", id)}, patch, &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("set user active: %w", err)
	}
	return &user, nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	q := store.Query{Table: store.TableUsers, Sort: []store.Sort{{Column: "created_at", Desc: true}}}
	if filter.Role != nil {
		q = q.Where(store.Eq("role", string(*filter.Role)))
	}
	if filter.Active != nil {
		q = q.Where(store.Eq("is_active", *filter.Active))
	}
	return listWithTotal[models.User](ctx, r.store, page(q, filter.Page, filter.PageSize), "users")
}

// ListActiveParentIDs returns the ids of every active parent account.
func (r *UserRepository) ListActiveParentIDs(ctx context.Context) ([]string, error) {
	var users []models.User
	q := store.Query{Table: store.TableUsers, Filters: []store.Filter{
		store.Eq("role", string(models.RoleParent)),
		store.Eq("is_active", true),
	}}
	if err := r.store.Select(ctx, q, &users); err != nil {
		return nil, fmt.Errorf("list parent ids: %w", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// Create inserts a new user and returns the stored record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = newID(user.ID)
	stamp(&user.CreatedAt, &user.UpdatedAt)
	row := store.Row{
		"id":                      user.ID,
		"email":                   user.Email,
		"password_hash":           user.PasswordHash,
		"full_name":               user.FullName,
		"role":                    string(user.Role),
		"phone":                   user.Phone,
		"address":                 user.Address,
		"emergency_contact_name":  user.EmergencyContactName,
		"emergency_contact_phone": user.EmergencyContactPhone,
		"is_active":               user.IsActive,
		"created_at":              user.CreatedAt,
		"updated_at":              user.UpdatedAt,
	}
	if err := r.store.Insert(ctx, store.TableUsers, row, nil); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	token.ID = newID(token.ID)
	stamp(&token.CreatedAt, nil)
	row := store.Row{
		"id":         token.ID,
		"user_id":    token.UserID,
		"token":      token.Token,
		"expires_at": token.ExpiresAt,
		"created_at": token.CreatedAt,
		"revoked":    token.Revoked,
		"ip_address": token.IPAddress,
		"user_agent": token.UserAgent,
	}
	if err := r.store.Insert(ctx, store.TableRefreshTokens, row, nil); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	q := store.Query{Table: store.TableRefreshTokens, Filters: []store.Filter{store.Eq("token", token)}}
	if err := r.store.Get(ctx, q, &rt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	patch := store.Row{"revoked": true, "revoked_at": revokedAt}
	if err := r.store.Update(ctx, store.TableRefreshTokens, []store.Filter{store.Eq("id", id)}, patch, nil); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all live refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	filters := []store.Filter{store.Eq("user_id", userID), store.Eq("revoked", false)}
	patch := store.Row{"revoked": true, "revoked_at": time.Now().UTC()}
	err := r.store.Update(ctx, store.TableRefreshTokens, filters, patch, nil)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	log.ID = newID(log.ID)
	stamp(&log.CreatedAt, nil)
	row := store.Row{
		"id":          log.ID,
		"user_id":     log.UserID,
		"action":      log.Action,
		"resource":    log.Resource,
		"resource_id": log.ResourceID,
		"ip_address":  log.IPAddress,
		"user_agent":  log.UserAgent,
		"created_at":  log.CreatedAt,
	}
	if len(log.NewValues) > 0 {
		row["new_values"] = log.NewValues
	}
	if err := r.store.Insert(ctx, store.TableAuditLogs, row, nil); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
