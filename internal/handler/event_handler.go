package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
	"github.com/noah-isme/creche-api/pkg/response"
)

type eventService interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error)
	Create(ctx context.Context, req models.CreateEventRequest, actorID string) (*models.Event, error)
}

type announcementService interface {
	List(ctx context.Context, page, size int) ([]models.Announcement, *models.Pagination, error)
	ListPublished(ctx context.Context, page, size int) ([]models.Announcement, *models.Pagination, error)
	Create(ctx context.Context, req models.CreateAnnouncementRequest, actorID string) (*models.Announcement, error)
}

// EventHandler serves events and announcements, which every parent sees.
type EventHandler struct {
	events        eventService
	announcements announcementService
}

func NewEventHandler(events eventService, announcements announcementService) *EventHandler {
	return &EventHandler{events: events, announcements: announcements}
}

// timeQuery accepts RFC 3339 timestamps or plain dates, which mean midnight UTC.
func timeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if d, err := models.ParseDate(raw); err == nil {
		t := d.Time
		return &t, true
	}
	response.Error(c, appErrors.Clone(appErrors.ErrValidation, key+" must be RFC 3339 or YYYY-MM-DD"))
	return nil, false
}

// ListEvents godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {object} response.Envelope
// @Router /admin/events [get]
// @Router /parent/events [get]
func (h *EventHandler) ListEvents(c *gin.Context) {
	var filter models.EventFilter
	var ok bool
	if filter.From, ok = timeQuery(c, "from"); !ok {
		return
	}
	if filter.To, ok = timeQuery(c, "to"); !ok {
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	rows, pagination, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// CreateEvent godoc
// @Summary Schedule an event
// @Description Every active parent receives an event notification.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body models.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /admin/events [post]
func (h *EventHandler) CreateEvent(c *gin.Context) {
	asActor(c, http.StatusCreated, h.events.Create)
}

// ListAnnouncements godoc
// @Summary List announcements
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/announcements [get]
func (h *EventHandler) ListAnnouncements(c *gin.Context) {
	page, size := pageParams(c)
	rows, pagination, err := h.announcements.List(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// PublishedAnnouncements godoc
// @Summary List published announcements
// @Tags Parent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /parent/announcements [get]
func (h *EventHandler) PublishedAnnouncements(c *gin.Context) {
	page, size := pageParams(c)
	rows, pagination, err := h.announcements.ListPublished(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// CreateAnnouncement godoc
// @Summary Publish an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body models.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Router /admin/announcements [post]
func (h *EventHandler) CreateAnnouncement(c *gin.Context) {
	asActor(c, http.StatusCreated, h.announcements.Create)
}
