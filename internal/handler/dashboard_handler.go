package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/middleware"
	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context) (*models.DashboardSummary, bool, error)
	Parent(ctx context.Context, parentID string) (*models.ParentDashboard, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Admin godoc
// @Summary Admin dashboard summary
// @Description Today's attendance, headcounts, outstanding fees and upcoming events. Cached briefly; meta.cache_hit says whether this response came from cache.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	summary, cacheHit, err := h.service.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.Meta(c))
}

// Parent godoc
// @Summary Parent dashboard
// @Tags Parent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /parent/dashboard [get]
func (h *DashboardHandler) Parent(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	summary, err := h.service.Parent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, middleware.Meta(c))
}
