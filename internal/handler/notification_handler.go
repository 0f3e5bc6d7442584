package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/response"
)

type notificationService interface {
	ListEvents(ctx context.Context, filter models.NotificationFilter) ([]models.EventNotification, *models.Pagination, error)
	ListAnnouncements(ctx context.Context, filter models.NotificationFilter) ([]models.AnnouncementNotification, *models.Pagination, error)
	ListAbsences(ctx context.Context, filter models.NotificationFilter) ([]models.AbsenceNotification, *models.Pagination, error)
	MarkRead(ctx context.Context, kind models.NotificationKind, id, parentID string) error
}

// NotificationHandler serves a parent's notification inboxes.
type NotificationHandler struct {
	service notificationService
}

func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

func (h *NotificationHandler) filter(c *gin.Context) (models.NotificationFilter, bool) {
	claims, ok := currentUser(c)
	if !ok {
		return models.NotificationFilter{}, false
	}
	f := models.NotificationFilter{ParentID: claims.UserID}
	if unread := boolQuery(c, "unread"); unread != nil {
		f.UnreadOnly = *unread
	}
	f.Page, f.PageSize = pageParams(c)
	return f, true
}

// Events godoc
// @Summary Event notifications
// @Tags Parent
// @Produce json
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /parent/notifications/events [get]
func (h *NotificationHandler) Events(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	rows, pagination, err := h.service.ListEvents(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Announcements godoc
// @Summary Announcement notifications
// @Tags Parent
// @Produce json
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /parent/notifications/announcements [get]
func (h *NotificationHandler) Announcements(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	rows, pagination, err := h.service.ListAnnouncements(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Absences godoc
// @Summary Absence notifications
// @Tags Parent
// @Produce json
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /parent/notifications/absences [get]
func (h *NotificationHandler) Absences(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	rows, pagination, err := h.service.ListAbsences(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// MarkRead returns a handler marking one notification of kind as read.
//
// @Summary Mark a notification read
// @Tags Parent
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /parent/notifications/events/{id}/read [patch]
// @Router /parent/notifications/announcements/{id}/read [patch]
// @Router /parent/notifications/absences/{id}/read [patch]
func (h *NotificationHandler) MarkRead(kind models.NotificationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		if err := h.service.MarkRead(c.Request.Context(), kind, c.Param("id"), claims.UserID); err != nil {
			response.Error(c, err)
			return
		}
		response.NoContent(c)
	}
}
