package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type consentRepository interface {
	Find(ctx context.Context, childID, parentID string) (*models.MediaConsent, error)
	List(ctx context.Context, parentID string, childIDs []string) ([]models.MediaConsent, error)
	Upsert(ctx context.Context, c *models.MediaConsent) error
}

// ConsentService records each parent's media decision per child and answers
// whether a given media operation is allowed.
type ConsentService struct {
	repo      consentRepository
	children  childDirectory
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

func NewConsentService(repo consentRepository, children childDirectory, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *ConsentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &ConsentService{repo: repo, children: children, audit: audit, validator: validate, logger: logger}
}

// List returns every consent row for admins.
func (s *ConsentService) List(ctx context.Context) ([]models.MediaConsent, error) {
	rows, err := s.repo.List(ctx, "", nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list consents")
	}
	return rows, nil
}

// ListForParent returns parentID's consents for their own children.
func (s *ConsentService) ListForParent(ctx context.Context, parentID string) ([]models.MediaConsent, error) {
	children, err := parentChildren(ctx, s.children, parentID, s.logger)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return []models.MediaConsent{}, nil
	}
	rows, err := s.repo.List(ctx, parentID, childIDs(children))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list consents")
	}
	return ownedBy(rows, parentID, s.logger, "consent"), nil
}

// Upsert grants, narrows or revokes consent for one of parentID's children.
// Revocation takes effect on the next media read or upload.
func (s *ConsentService) Upsert(ctx context.Context, parentID string, req models.ConsentRequest) (*models.MediaConsent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid consent payload")
	}
	if req.ConsentGranted && req.ConsentType == models.ConsentNone {
		return nil, appErrors.Clone(appErrors.ErrValidation, "consent_type none cannot be granted")
	}
	child, err := ownedChild(ctx, s.children, parentID, req.ChildID)
	if err != nil {
		return nil, err
	}

	usages := make(pq.StringArray, 0, len(req.UsagePermissions))
	for _, u := range req.UsagePermissions {
		usages = append(usages, string(u))
	}
	consent := &models.MediaConsent{
		ChildID:          child.ID,
		ParentID:         parentID,
		ConsentGranted:   req.ConsentGranted,
		ConsentType:      req.ConsentType,
		UsagePermissions: usages,
	}
	consent.Normalize()
	if err := s.repo.Upsert(ctx, consent); err != nil {
		return nil, appErrors.Internal(err, "failed to save consent")
	}

	recordAudit(ctx, s.audit, s.logger, parentID, models.AuditActionConsentUpdate, "media_consent", consent.ID, map[string]interface{}{
		"child_id":          consent.ChildID,
		"consent_granted":   consent.ConsentGranted,
		"consent_type":      consent.ConsentType,
		"usage_permissions": consent.UsagePermissions,
	})
	return consent, nil
}

// Permits reports whether media of kind for child may be stored or shown for
// usage. Only the consent of the child's own parent counts.
func (s *ConsentService) Permits(ctx context.Context, child models.Child, kind models.MediaKind, usage models.Usage) (bool, error) {
	consent, err := s.repo.Find(ctx, child.ID, child.ParentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Internal(err, "failed to load consent")
	}
	return consent.Permits(kind, usage), nil
}

// ForChildren returns the consent of each child's own parent, keyed by child id.
func (s *ConsentService) ForChildren(ctx context.Context, children []models.Child) (map[string]models.MediaConsent, error) {
	out := make(map[string]models.MediaConsent, len(children))
	if len(children) == 0 {
		return out, nil
	}
	parentOf := make(map[string]string, len(children))
	for _, c := range children {
		parentOf[c.ID] = c.ParentID
	}
	rows, err := s.repo.List(ctx, "", childIDs(children))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load consents")
	}
	for _, c := range rows {
		if parentOf[c.ChildID] == c.ParentID {
			out[c.ChildID] = c
		}
	}
	return out, nil
}
