package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, req models.MarkAttendanceRequest, actorID string) (*models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, *models.Pagination, error)
	ListForParent(ctx context.Context, parentID string, filter models.AttendanceFilter) ([]models.Attendance, *models.Pagination, error)
}

// AttendanceHandler serves daily attendance.
type AttendanceHandler struct {
	service attendanceService
}

func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

func attendanceFilter(c *gin.Context) (models.AttendanceFilter, bool) {
	filter := models.AttendanceFilter{ChildID: camelOrSnake(c, "childId", "child_id")}
	filter.Page, filter.PageSize = pageParams(c)
	var ok bool
	if filter.Date, ok = dateQuery(c, "date"); !ok {
		return filter, false
	}
	if filter.From, ok = dateQuery(c, "from"); !ok {
		return filter, false
	}
	if filter.To, ok = dateQuery(c, "to"); !ok {
		return filter, false
	}
	return filter, true
}

// List godoc
// @Summary List attendance
// @Tags Attendance
// @Produce json
// @Param date query string false "YYYY-MM-DD"
// @Param childId query string false "Child filter"
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {object} response.Envelope
// @Router /admin/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter, ok := attendanceFilter(c)
	if !ok {
		return
	}
	rows, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Mine godoc
// @Summary Attendance of the caller's children
// @Tags Parent
// @Produce json
// @Param childId query string false "One of the caller's children"
// @Success 200 {object} response.Envelope
// @Router /parent/attendance [get]
func (h *AttendanceHandler) Mine(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	filter, ok := attendanceFilter(c)
	if !ok {
		return
	}
	rows, pagination, err := h.service.ListForParent(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Mark godoc
// @Summary Mark attendance
// @Description Upserts on (child, date); the latest write wins. Marking absent notifies the parent.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /admin/attendance [put]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	asActor(c, http.StatusOK, h.service.Mark)
}
