package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/repository"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
	"github.com/noah-isme/creche-api/pkg/navigation"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByIntent(ctx context.Context, intentID string) (*models.Payment, error)
	Create(ctx context.Context, p *models.Payment) error
	UpdateStatus(ctx context.Context, id string, upd repository.PaymentUpdate) (*models.Payment, error)
	ListReceipts(ctx context.Context, paymentID string) ([]models.StripeReceipt, error)
	ListHistory(ctx context.Context, paymentID string) ([]models.StripePaymentHistory, error)
	UpsertReceipt(ctx context.Context, rc *models.StripeReceipt) error
	AppendHistory(ctx context.Context, h *models.StripePaymentHistory) (bool, error)
}

// PaymentService bills parents and exposes the mirrored processor records.
// Status is whatever was last stored; it is never derived from due_date.
type PaymentService struct {
	repo            paymentRepository
	users           userLookup
	children        childDirectory
	audit           auditWriter
	validator       *validator.Validate
	logger          *zap.Logger
	defaultCurrency string
}

func NewPaymentService(repo paymentRepository, users userLookup, children childDirectory, audit auditWriter, defaultCurrency string, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if defaultCurrency == "" {
		defaultCurrency = "EUR"
	}
	return &PaymentService{
		repo:            repo,
		users:           users,
		children:        children,
		audit:           audit,
		validator:       validate,
		logger:          logger,
		defaultCurrency: strings.ToUpper(defaultCurrency),
	}
}

// List returns payments for admins.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list payments")
	}
	return rows, pagination(filter.Page, filter.PageSize, total), nil
}

// ListForParent returns the payments billed to parentID.
func (s *PaymentService) ListForParent(ctx context.Context, parentID string, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	if err := requireParent(parentID); err != nil {
		return nil, nil, err
	}
	filter.ParentID = parentID
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list payments")
	}
	return ownedBy(rows, parentID, s.logger, "payment"), pagination(filter.Page, filter.PageSize, total), nil
}

// Create bills a parent. New payments start pending.
func (s *PaymentService) Create(ctx context.Context, req models.CreatePaymentRequest, actorID string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	if req.Amount < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must not be negative")
	}

	parent, err := s.users.FindByID(ctx, req.ParentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent account does not exist")
		}
		return nil, appErrors.Internal(err, "failed to load parent")
	}
	if parent.Role.Navigation() != navigation.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payments can only be billed to parent accounts")
	}
	if req.ChildID != nil && *req.ChildID != "" {
		if _, err := ownedChild(ctx, s.children, parent.ID, *req.ChildID); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "child does not belong to parent")
		}
	} else {
		req.ChildID = nil
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	payment := &models.Payment{
		ParentID:    parent.ID,
		ChildID:     req.ChildID,
		Amount:      models.RoundAmount(req.Amount),
		Currency:    currency,
		Description: strings.TrimSpace(req.Description),
		Status:      models.PaymentStatusPending,
		DueDate:     req.DueDate,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Internal(err, "failed to create payment")
	}
	return payment, nil
}

// SetStatus force-sets a payment's status. Any status may follow any other.
func (s *PaymentService) SetStatus(ctx context.Context, id string, req models.UpdatePaymentStatusRequest, actorID string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	upd := repository.PaymentUpdate{Status: req.Status}
	if req.Status == models.PaymentStatusPaid {
		now := time.Now().UTC()
		upd.PaymentDate = &now
	}
	payment, err := s.repo.UpdateStatus(ctx, id, upd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Internal(err, "failed to update payment")
	}
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionPaymentStatus, "payment", id, map[string]interface{}{"status": req.Status})
	return payment, nil
}

// Receipts returns the processor receipts of one of parentID's payments.
func (s *PaymentService) Receipts(ctx context.Context, parentID, paymentID string) ([]models.StripeReceipt, error) {
	if err := requireParent(parentID); err != nil {
		return nil, err
	}
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Internal(err, "failed to load payment")
	}
	if payment.ParentID != parentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	receipts, err := s.repo.ListReceipts(ctx, paymentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list receipts")
	}
	return ownedBy(receipts, parentID, s.logger, "receipt"), nil
}

// History returns the processor event log of a payment for admins.
func (s *PaymentService) History(ctx context.Context, paymentID string) ([]models.StripePaymentHistory, error) {
	if _, err := s.repo.FindByID(ctx, paymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Internal(err, "failed to load payment")
	}
	history, err := s.repo.ListHistory(ctx, paymentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list payment history")
	}
	return history, nil
}
