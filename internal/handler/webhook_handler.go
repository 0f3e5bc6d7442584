package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
	"github.com/noah-isme/creche-api/pkg/response"
)

// SignatureHeader carries the processor's "t=<unix>,v1=<hex>" signature.
const SignatureHeader = "Processor-Signature"

const maxWebhookBody = 1 << 20

type webhookService interface {
	Handle(ctx context.Context, payload []byte, header string) (*models.Payment, error)
}

// WebhookHandler receives payment processor callbacks.
type WebhookHandler struct {
	service webhookService
}

func NewWebhookHandler(svc webhookService) *WebhookHandler {
	return &WebhookHandler{service: svc}
}

// Payments godoc
// @Summary Payment processor webhook
// @Description Verifies the signature over the raw body, then mirrors the receipt and updates the payment.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Processor-Signature header string true "t=<unix>,v1=<hex>"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /webhooks/payments [post]
func (h *WebhookHandler) Payments(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable body"))
		return
	}
	if len(payload) > maxWebhookBody {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusRequestEntityTooLarge, "webhook body too large"))
		return
	}

	payment, err := h.service.Handle(c.Request.Context(), payload, c.GetHeader(SignatureHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"received": true, "payment_id": payment.ID, "status": payment.Status}, nil)
}
