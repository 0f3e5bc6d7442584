package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/response"
)

type consentService interface {
	List(ctx context.Context) ([]models.MediaConsent, error)
	ListForParent(ctx context.Context, parentID string) ([]models.MediaConsent, error)
	Upsert(ctx context.Context, parentID string, req models.ConsentRequest) (*models.MediaConsent, error)
}

// ConsentHandler serves media consent records.
type ConsentHandler struct {
	service consentService
}

func NewConsentHandler(svc consentService) *ConsentHandler {
	return &ConsentHandler{service: svc}
}

// List godoc
// @Summary All media consents
// @Tags Consents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/consents [get]
func (h *ConsentHandler) List(c *gin.Context) {
	rows, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, nil)
}

// Mine godoc
// @Summary Consents for the caller's children
// @Tags Parent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /parent/consents [get]
func (h *ConsentHandler) Mine(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	rows, err := h.service.ListForParent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, nil)
}

// Upsert godoc
// @Summary Grant or revoke media consent
// @Description Revocation takes effect immediately for listings, uploads and downloads.
// @Tags Parent
// @Accept json
// @Produce json
// @Param payload body models.ConsentRequest true "Consent payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /parent/consents [put]
func (h *ConsentHandler) Upsert(c *gin.Context) {
	asActor(c, http.StatusOK, func(ctx context.Context, req models.ConsentRequest, parentID string) (*models.MediaConsent, error) {
		return h.service.Upsert(ctx, parentID, req)
	})
}
