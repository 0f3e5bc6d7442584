package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/response"
)

type paymentService interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error)
	ListForParent(ctx context.Context, parentID string, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error)
	Create(ctx context.Context, req models.CreatePaymentRequest, actorID string) (*models.Payment, error)
	SetStatus(ctx context.Context, id string, req models.UpdatePaymentStatusRequest, actorID string) (*models.Payment, error)
	Receipts(ctx context.Context, parentID, paymentID string) ([]models.StripeReceipt, error)
	History(ctx context.Context, paymentID string) ([]models.StripePaymentHistory, error)
}

// PaymentHandler serves fees, receipts and processor history.
type PaymentHandler struct {
	service paymentService
}

func NewPaymentHandler(svc paymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

func paymentFilter(c *gin.Context) models.PaymentFilter {
	filter := models.PaymentFilter{
		ParentID: camelOrSnake(c, "parentId", "parent_id"),
		ChildID:  camelOrSnake(c, "childId", "child_id"),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := models.PaymentStatus(strings.ToLower(status))
		filter.Status = &s
	}
	filter.Page, filter.PageSize = pageParams(c)
	return filter
}

// List godoc
// @Summary List payments
// @Description Status is reported as stored; a pending payment past its due date stays pending.
// @Tags Payments
// @Produce json
// @Param parentId query string false "Parent filter"
// @Param childId query string false "Child filter"
// @Param status query string false "pending, paid or overdue"
// @Success 200 {object} response.Envelope
// @Router /admin/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	rows, pagination, err := h.service.List(c.Request.Context(), paymentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Mine godoc
// @Summary The caller's payments
// @Tags Parent
// @Produce json
// @Param status query string false "pending, paid or overdue"
// @Success 200 {object} response.Envelope
// @Router /parent/payments [get]
func (h *PaymentHandler) Mine(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	rows, pagination, err := h.service.ListForParent(c.Request.Context(), claims.UserID, paymentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Create godoc
// @Summary Bill a parent
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body models.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /admin/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	asActor(c, http.StatusCreated, h.service.Create)
}

// SetStatus godoc
// @Summary Force-set payment status
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body models.UpdatePaymentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /admin/payments/{id}/status [patch]
func (h *PaymentHandler) SetStatus(c *gin.Context) {
	id := c.Param("id")
	asActor(c, http.StatusOK, func(ctx context.Context, req models.UpdatePaymentStatusRequest, actorID string) (*models.Payment, error) {
		return h.service.SetStatus(ctx, id, req, actorID)
	})
}

// History godoc
// @Summary Processor events for a payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /admin/payments/{id}/history [get]
func (h *PaymentHandler) History(c *gin.Context) {
	rows, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, nil)
}

// Receipts godoc
// @Summary Receipts of one of the caller's payments
// @Tags Parent
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /parent/payments/{id}/receipts [get]
func (h *PaymentHandler) Receipts(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	rows, err := h.service.Receipts(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, nil)
}
