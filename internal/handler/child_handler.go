package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/response"
)

type childService interface {
	List(ctx context.Context, filter models.ChildFilter) ([]models.Child, *models.Pagination, error)
	ListForParent(ctx context.Context, parentID string) ([]models.Child, error)
	Create(ctx context.Context, req models.ChildRequest) (*models.Child, error)
	Update(ctx context.Context, id string, req models.ChildRequest) (*models.Child, error)
}

// ChildHandler serves child records to admins and to the owning parent.
type ChildHandler struct {
	service childService
}

func NewChildHandler(svc childService) *ChildHandler {
	return &ChildHandler{service: svc}
}

// List godoc
// @Summary List children
// @Tags Children
// @Produce json
// @Param parentId query string false "Parent filter"
// @Param teacherId query string false "Assigned teacher filter"
// @Param active query bool false "Active filter"
// @Success 200 {object} response.Envelope
// @Router /admin/children [get]
func (h *ChildHandler) List(c *gin.Context) {
	filter := models.ChildFilter{
		ParentID:  camelOrSnake(c, "parentId", "parent_id"),
		TeacherID: camelOrSnake(c, "teacherId", "teacher_id"),
		Active:    boolQuery(c, "active"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	rows, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Mine godoc
// @Summary List the caller's children
// @Tags Parent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /parent/children [get]
func (h *ChildHandler) Mine(c *gin.Context) {
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

// Create godoc
// @Summary Enrol a child
// @Tags Children
// @Accept json
// @Produce json
// @Param payload body models.ChildRequest true "Child payload"
// @Success 201 {object} response.Envelope
// @Router /admin/children [post]
func (h *ChildHandler) Create(c *gin.Context) {
	var req models.ChildRequest
	if !bindJSON(c, &req) {
		return
	}
	child, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, child)
}

// Update godoc
// @Summary Replace a child record
// @Tags Children
// @Accept json
// @Produce json
// @Param id path string true "Child ID"
// @Param payload body models.ChildRequest true "Child payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/children/{id} [put]
func (h *ChildHandler) Update(c *gin.Context) {
	var req models.ChildRequest
	if !bindJSON(c, &req) {
		return
	}
	child, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, child, nil)
}
