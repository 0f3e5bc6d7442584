package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type staffRepository interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error)
	Create(ctx context.Context, staff *models.Staff) error
}

// StaffService manages staff records. Staff never log in.
type StaffService struct {
	repo      staffRepository
	validator *validator.Validate
	logger    *zap.Logger
}

func NewStaffService(repo staffRepository, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &StaffService{repo: repo, validator: validate, logger: logger}
}

func (s *StaffService) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error) {
	staff, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list staff")
	}
	return staff, pagination(filter.Page, filter.PageSize, total), nil
}

func (s *StaffService) Create(ctx context.Context, req models.CreateStaffRequest) (*models.Staff, error) {
	req.Role = models.StaffRole(strings.ToLower(strings.TrimSpace(string(req.Role))))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid staff payload")
	}
	staff := &models.Staff{
		FullName:       strings.TrimSpace(req.FullName),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:          req.Phone,
		Role:           req.Role,
		Qualifications: req.Qualifications,
		IsActive:       true,
		HiredAt:        req.HiredAt,
	}
	if err := s.repo.Create(ctx, staff); err != nil {
		return nil, appErrors.Internal(err, "failed to create staff")
	}
	return staff, nil
}
