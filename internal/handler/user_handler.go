package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.UserProfile, *models.Pagination, error)
	Create(ctx context.Context, req models.CreateUserRequest, actorID string) (*models.UserProfile, error)
	SetActive(ctx context.Context, id string, req models.SetActiveRequest, actorID string) (*models.UserProfile, error)
}

// UserHandler serves admin account management.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "admin or parent"
// @Param active query bool false "Active filter"
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter
	filter.Page, filter.PageSize = pageParams(c)
	if role := strings.TrimSpace(c.Query("role")); role != "" {
		r := models.UserRole(strings.ToLower(role))
		filter.Role = &r
	}
	filter.Active = boolQuery(c, "active")

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, users, pagination)
}

// Create godoc
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.CreateUserRequest true "Create user payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	asActor(c, http.StatusCreated, h.service.Create)
}

// SetActive godoc
// @Summary Activate or deactivate a user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.SetActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/active [patch]
func (h *UserHandler) SetActive(c *gin.Context) {
	id := c.Param("id")
	asActor(c, http.StatusOK, func(ctx context.Context, req models.SetActiveRequest, actorID string) (*models.UserProfile, error) {
		return h.service.SetActive(ctx, id, req, actorID)
	})
}
