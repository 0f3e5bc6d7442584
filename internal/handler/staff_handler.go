package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/response"
)

type staffService interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error)
	Create(ctx context.Context, req models.CreateStaffRequest) (*models.Staff, error)
}

// StaffHandler serves the staff directory.
type StaffHandler struct {
	service staffService
}

func NewStaffHandler(svc staffService) *StaffHandler {
	return &StaffHandler{service: svc}
}

// List godoc
// @Summary List staff
// @Tags Staff
// @Produce json
// @Param role query string false "teacher, assistant, coordinator or other"
// @Param active query bool false "Active filter"
// @Success 200 {object} response.Envelope
// @Router /admin/staff [get]
func (h *StaffHandler) List(c *gin.Context) {
	var filter models.StaffFilter
	filter.Page, filter.PageSize = pageParams(c)
	if role := strings.TrimSpace(c.Query("role")); role != "" {
		r := models.StaffRole(strings.ToLower(role))
		filter.Role = &r
	}
	filter.Active = boolQuery(c, "active")

	rows, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Create godoc
// @Summary Add staff member
// @Tags Staff
// @Accept json
// @Produce json
// @Param payload body models.CreateStaffRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Router /admin/staff [post]
func (h *StaffHandler) Create(c *gin.Context) {
	var req models.CreateStaffRequest
	if !bindJSON(c, &req) {
		return
	}
	row, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, row)
}
