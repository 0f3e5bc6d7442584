package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

// NewValidator returns a validator that knows the crèche enum tags.
func NewValidator() *validator.Validate {
	v := validator.New()
	enum := func(tag string, allowed ...string) {
		set := make(map[string]struct{}, len(allowed))
		for _, a := range allowed {
			set[a] = struct{}{}
		}
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			_, ok := set[fl.Field().String()]
			return ok
		})
	}
	enum("user_role", string(models.RoleAdmin), string(models.RoleParent))
	enum("staff_role", string(models.StaffRoleTeacher), string(models.StaffRoleAssistant), string(models.StaffRoleCoordinator), string(models.StaffRoleOther))
	enum("consent_type", string(models.ConsentPhotos), string(models.ConsentVideos), string(models.ConsentBoth), string(models.ConsentNone))
	enum("usage", string(models.UsageInternal), string(models.UsageWebsite), string(models.UsageSocialMedia), string(models.UsagePromotional))
	enum("media_kind", string(models.MediaPhoto), string(models.MediaVideo))
	enum("payment_status", string(models.PaymentStatusPending), string(models.PaymentStatusPaid), string(models.PaymentStatusOverdue))
	return v
}

// validationError turns validator output into a VALIDATION_ERROR naming the bad fields.
func validationError(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	parts := make([]string, 0, len(fieldErrs))
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := strings.ToLower(fe.Field())
		parts = append(parts, fmt.Sprintf("%s:%s", name, fe.Tag()))
		fields[name] = fe.Tag()
	}
	wrapped := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
		fmt.Sprintf("%s (%s)", message, strings.Join(parts, ", ")))
	wrapped.Fields = fields
	return wrapped
}
