package handler

import (
	"context"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/service"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
	"github.com/noah-isme/creche-api/pkg/response"
)

type mediaService interface {
	Upload(ctx context.Context, req models.UploadMediaRequest, file service.MediaUpload, actorID string) (*models.MediaItem, error)
	List(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, *models.Pagination, error)
	ListForParent(ctx context.Context, parentID string, filter models.MediaFilter) ([]models.MediaItem, *models.Pagination, error)
	Open(ctx context.Context, token string) (*models.Media, *os.File, error)
}

// MediaHandler serves consent-gated photo and video sharing.
type MediaHandler struct {
	service mediaService
}

func NewMediaHandler(svc mediaService) *MediaHandler {
	return &MediaHandler{service: svc}
}

func mediaFilter(c *gin.Context) models.MediaFilter {
	filter := models.MediaFilter{
		ChildID: camelOrSnake(c, "childId", "child_id"),
		Usage:   models.Usage(strings.ToLower(strings.TrimSpace(c.Query("usage")))),
	}
	if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
		k := models.MediaKind(strings.ToLower(kind))
		filter.Kind = &k
	}
	filter.Page, filter.PageSize = pageParams(c)
	return filter
}

// List godoc
// @Summary List media
// @Description Only media whose consent is still in force is returned.
// @Tags Media
// @Produce json
// @Param childId query string false "Child filter"
// @Param kind query string false "photo or video"
// @Param usage query string false "Required usage permission"
// @Success 200 {object} response.Envelope
// @Router /admin/media [get]
func (h *MediaHandler) List(c *gin.Context) {
	rows, pagination, err := h.service.List(c.Request.Context(), mediaFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Mine godoc
// @Summary Media of the caller's children
// @Tags Parent
// @Produce json
// @Param childId query string false "One of the caller's children"
// @Success 200 {object} response.Envelope
// @Router /parent/media [get]
func (h *MediaHandler) Mine(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	rows, pagination, err := h.service.ListForParent(c.Request.Context(), claims.UserID, mediaFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, pagination)
}

// Upload godoc
// @Summary Upload a photo or video
// @Description Refused with CONSENT_REQUIRED unless the child's parent consented to this media kind.
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Param child_id formData string true "Child ID"
// @Param media_kind formData string true "photo or video"
// @Param caption formData string false "Caption"
// @Param file formData file true "Media file"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/media [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UploadMediaRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload form"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	body, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read upload"))
		return
	}
	defer body.Close() //nolint:errcheck

	item, err := h.service.Upload(c.Request.Context(), req, service.MediaUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        body,
	}, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// File godoc
// @Summary Download media through a signed link
// @Tags Media
// @Param token query string true "Signed token from a media listing"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /media/file [get]
func (h *MediaHandler) File(c *gin.Context) {
	media, f, err := h.service.Open(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to stat media"))
		return
	}
	c.Header("Content-Type", media.ContentType)
	c.Header("Cache-Control", "private, max-age=60")
	http.ServeContent(c.Writer, c.Request, path.Base(media.FilePath), info.ModTime(), f)
}
