package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
	"github.com/noah-isme/creche-api/pkg/navigation"
)

type childRepository interface {
	childDirectory
	List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error)
	Create(ctx context.Context, child *models.Child) error
	Update(ctx context.Context, child *models.Child) error
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type staffLookup interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
}

// ChildService manages enrolment records and the parent's view of them.
type ChildService struct {
	repo      childRepository
	users     userLookup
	staff     staffLookup
	validator *validator.Validate
	logger    *zap.Logger
}

func NewChildService(repo childRepository, users userLookup, staff staffLookup, validate *validator.Validate, logger *zap.Logger) *ChildService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &ChildService{repo: repo, users: users, staff: staff, validator: validate, logger: logger}
}

// List returns children for admins.
func (s *ChildService) List(ctx context.Context, filter models.ChildFilter) ([]models.Child, *models.Pagination, error) {
	children, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list children")
	}
	return children, pagination(filter.Page, filter.PageSize, total), nil
}

// ListForParent returns only the children whose parent_id is parentID.
func (s *ChildService) ListForParent(ctx context.Context, parentID string) ([]models.Child, error) {
	return parentChildren(ctx, s.repo, parentID, s.logger)
}

func (s *ChildService) Create(ctx context.Context, req models.ChildRequest) (*models.Child, error) {
	child := &models.Child{IsActive: true}
	if err := s.apply(ctx, child, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, child); err != nil {
		return nil, appErrors.Internal(err, "failed to create child")
	}
	return child, nil
}

// Update replaces a child's editable fields.
func (s *ChildService) Update(ctx context.Context, id string, req models.ChildRequest) (*models.Child, error) {
	child, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Internal(err, "failed to load child")
	}
	if err := s.apply(ctx, child, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, child); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Internal(err, "failed to update child")
	}
	return child, nil
}

func (s *ChildService) apply(ctx context.Context, child *models.Child, req models.ChildRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid child payload")
	}
	if req.DOB.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "dob is required")
	}
	if err := s.checkParent(ctx, req.ParentID); err != nil {
		return err
	}
	if req.AssignedTeacherID != nil && *req.AssignedTeacherID != "" {
		if _, err := s.staff.FindByID(ctx, *req.AssignedTeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "assigned teacher does not exist")
			}
			return appErrors.Internal(err, "failed to load teacher")
		}
	} else {
		req.AssignedTeacherID = nil
	}

	child.FirstName = strings.TrimSpace(req.FirstName)
	child.LastName = strings.TrimSpace(req.LastName)
	child.DOB = req.DOB
	child.Gender = req.Gender
	child.Allergies = req.Allergies
	child.MedicalNotes = req.MedicalNotes
	child.EmergencyContactName = req.EmergencyContactName
	child.EmergencyContactPhone = req.EmergencyContactPhone
	child.ParentID = req.ParentID
	child.AssignedTeacherID = req.AssignedTeacherID
	if req.IsActive != nil {
		child.IsActive = *req.IsActive
	}
	return nil
}

func (s *ChildService) checkParent(ctx context.Context, parentID string) error {
	parent, err := s.users.FindByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "parent account does not exist")
		}
		return appErrors.Internal(err, "failed to load parent")
	}
	if parent.Role.Navigation() != navigation.RoleParent {
		return appErrors.Clone(appErrors.ErrValidation, "parent_id must reference a parent account")
	}
	return nil
}
