package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id string, active bool) (*models.User, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles account management for admins.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users without credentials.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.UserProfile, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	out := make([]models.UserProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single profile.
func (s *UserService) Get(ctx context.Context, id string) (*models.UserProfile, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	profile := user.Profile()
	return &profile, nil
}

// Create provisions an admin or parent account.
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest, actorID string) (*models.UserProfile, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Role = models.UserRole(strings.ToLower(strings.TrimSpace(string(req.Role))))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid user payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Email:                 req.Email,
		PasswordHash:          string(hash),
		FullName:              strings.TrimSpace(req.FullName),
		Role:                  req.Role,
		Phone:                 req.Phone,
		Address:               req.Address,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		IsActive:              true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "failed to create user")
	}

	recordAudit(ctx, s.repo, s.logger, actorID, models.AuditActionUserCreate, "user", user.ID, map[string]interface{}{"email": user.Email, "role": user.Role})
	profile := user.Profile()
	return &profile, nil
}

// SetActive enables or disables an account. Disabling also ends its sessions.
func (s *UserService) SetActive(ctx context.Context, id string, req models.SetActiveRequest, actorID string) (*models.UserProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid active payload")
	}
	if id == actorID && !*req.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot deactivate your own account")
	}

	user, err := s.repo.SetActive(ctx, id, *req.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to update user")
	}
	if !user.IsActive {
		if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke sessions of deactivated user", zap.String("user_id", id), zap.Error(err))
		}
	}

	recordAudit(ctx, s.repo, s.logger, actorID, models.AuditActionUserActive, "user", id, map[string]interface{}{"is_active": user.IsActive})
	profile := user.Profile()
	return &profile, nil
}
