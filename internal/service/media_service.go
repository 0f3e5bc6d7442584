package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type mediaRepository interface {
	List(ctx context.Context, filter models.MediaFilter) ([]models.Media, int, error)
	FindByID(ctx context.Context, id string) (*models.Media, error)
	Create(ctx context.Context, m *models.Media) error
}

type mediaChildren interface {
	childDirectory
	ListByIDs(ctx context.Context, ids []string) ([]models.Child, error)
}

type mediaConsents interface {
	Permits(ctx context.Context, child models.Child, kind models.MediaKind, usage models.Usage) (bool, error)
	ForChildren(ctx context.Context, children []models.Child) (map[string]models.MediaConsent, error)
}

type mediaStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type urlSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// MediaConfig bounds uploads and names the download route.
type MediaConfig struct {
	MaxFileSize      int64
	AllowedMIMETypes []string
	DownloadPath     string
}

// MediaUpload is one file received from a multipart form.
type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaService stores photos and videos of children. Nothing is stored or
// shown without the consent of the child's parent.
type MediaService struct {
	repo      mediaRepository
	children  mediaChildren
	consents  mediaConsents
	storage   mediaStorage
	signer    urlSigner
	audit     auditWriter
	metrics   *MetricsService
	config    MediaConfig
	validator *validator.Validate
	logger    *zap.Logger
}

func NewMediaService(repo mediaRepository, children mediaChildren, consents mediaConsents, storage mediaStorage, signer urlSigner, audit auditWriter, metrics *MetricsService, config MediaConfig, validate *validator.Validate, logger *zap.Logger) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = 50 << 20
	}
	if config.DownloadPath == "" {
		config.DownloadPath = "/api/v1/media/file"
	}
	return &MediaService{
		repo:      repo,
		children:  children,
		consents:  consents,
		storage:   storage,
		signer:    signer,
		audit:     audit,
		metrics:   metrics,
		config:    config,
		validator: validate,
		logger:    logger,
	}
}

// Upload stores a file for a child whose parent has consented to its kind.
func (s *MediaService) Upload(ctx context.Context, req models.UploadMediaRequest, file MediaUpload, actorID string) (*models.MediaItem, error) {
	req.Kind = models.MediaKind(strings.ToLower(strings.TrimSpace(string(req.Kind))))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid media payload")
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(file.ContentType, ";")[0]))
	if err := s.checkFile(req.Kind, contentType, file.Size); err != nil {
		return nil, err
	}

	child, err := s.children.FindByID(ctx, req.ChildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Internal(err, "failed to load child")
	}
	ok, err := s.consents.Permits(ctx, *child, req.Kind, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.RecordConsentDenial()
		return nil, appErrors.Clone(appErrors.ErrConsentRequired, fmt.Sprintf("parent has not consented to %s media", req.Kind))
	}

	rel := path.Join("media", child.ID, uuid.NewString()+strings.ToLower(path.Ext(file.Filename)))
	counter := &countingReader{r: io.LimitReader(file.Body, s.config.MaxFileSize+1)}
	if _, err := s.storage.SaveStream(rel, counter); err != nil {
		return nil, appErrors.Internal(err, "failed to store media")
	}
	if counter.n > s.config.MaxFileSize {
		s.discard(rel)
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum size")
	}

	media := &models.Media{
		ChildID:        child.ID,
		UploadedByID:   actorID,
		MediaKind:      req.Kind,
		FilePath:       rel,
		ContentType:    contentType,
		Caption:        req.Caption,
		ConsentGranted: true,
	}
	if err := s.repo.Create(ctx, media); err != nil {
		s.discard(rel)
		return nil, appErrors.Internal(err, "failed to record media")
	}
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionMediaUpload, "media", media.ID,
		map[string]interface{}{"child_id": child.ID, "media_kind": media.MediaKind, "bytes": counter.n})
	return s.item(*media)
}

// List returns media for admins, hiding anything the parent no longer consents
// to. Consent is checked per page, so the total drops only the rows hidden
// from this page; hidden rows on other pages are still counted.
func (s *MediaService) List(ctx context.Context, filter models.MediaFilter) ([]models.MediaItem, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list media")
	}
	ids := make([]string, 0, len(rows))
	seen := map[string]struct{}{}
	for _, m := range rows {
		if _, ok := seen[m.ChildID]; !ok {
			seen[m.ChildID] = struct{}{}
			ids = append(ids, m.ChildID)
		}
	}
	children, err := s.children.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load children")
	}
	items, err := s.visible(ctx, rows, children, filter.Usage)
	if err != nil {
		return nil, nil, err
	}
	return items, pagination(filter.Page, filter.PageSize, visibleTotal(total, len(rows), len(items))), nil
}

// ListForParent returns media of parentID's children that consent still allows.
// The total follows the same per-page rule as List.
func (s *MediaService) ListForParent(ctx context.Context, parentID string, filter models.MediaFilter) ([]models.MediaItem, *models.Pagination, error) {
	var children []models.Child
	if filter.ChildID != "" {
		child, err := ownedChild(ctx, s.children, parentID, filter.ChildID)
		if err != nil {
			return nil, nil, err
		}
		children = []models.Child{*child}
	} else {
		owned, err := parentChildren(ctx, s.children, parentID, s.logger)
		if err != nil {
			return nil, nil, err
		}
		children = owned
	}
	if len(children) == 0 {
		return []models.MediaItem{}, pagination(filter.Page, filter.PageSize, 0), nil
	}

	filter.ChildID = ""
	filter.ChildIDs = childIDs(children)
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list media")
	}
	fetched := len(rows)
	rows = keepChildren(rows, filter.ChildIDs, func(m models.Media) string { return m.ChildID })
	items, err := s.visible(ctx, rows, children, filter.Usage)
	if err != nil {
		return nil, nil, err
	}
	return items, pagination(filter.Page, filter.PageSize, visibleTotal(total, fetched, len(items))), nil
}

// visibleTotal removes the rows of one page that were filtered out after the query.
func visibleTotal(total, fetched, kept int) int {
	total -= fetched - kept
	if total < kept {
		return kept
	}
	return total
}

// Open resolves a signed download token to the stored file.
func (s *MediaService) Open(ctx context.Context, token string) (*models.Media, *os.File, error) {
	id, rel, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired media link")
	}
	media, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load media")
	}
	if media.FilePath != rel {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid media link")
	}
	child, err := s.children.FindByID(ctx, media.ChildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load child")
	}
	ok, err := s.consents.Permits(ctx, *child, media.MediaKind, "")
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		s.metrics.RecordConsentDenial()
		return nil, nil, appErrors.Clone(appErrors.ErrConsentRequired, "media consent has been withdrawn")
	}
	f, err := s.storage.Open(rel)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "media file missing")
	}
	return media, f, nil
}

func (s *MediaService) visible(ctx context.Context, rows []models.Media, children []models.Child, usage models.Usage) ([]models.MediaItem, error) {
	consents, err := s.consents.ForChildren(ctx, children)
	if err != nil {
		return nil, err
	}
	items := make([]models.MediaItem, 0, len(rows))
	for _, m := range rows {
		consent, ok := consents[m.ChildID]
		if !ok || !consent.Permits(m.MediaKind, usage) {
			continue
		}
		item, err := s.item(m)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (s *MediaService) item(m models.Media) (*models.MediaItem, error) {
	token, expires, err := s.signer.Generate(m.ID, m.FilePath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign media url")
	}
	return &models.MediaItem{Media: m, URL: s.config.DownloadPath + "?token=" + token, ExpiresAt: expires}, nil
}

func (s *MediaService) checkFile(kind models.MediaKind, contentType string, size int64) error {
	if size > s.config.MaxFileSize {
		return appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum size")
	}
	prefix := "image/"
	if kind == models.MediaVideo {
		prefix = "video/"
	}
	if !strings.HasPrefix(contentType, prefix) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %q does not match %s", contentType, kind))
	}
	if len(s.config.AllowedMIMETypes) == 0 {
		return nil
	}
	for _, allowed := range s.config.AllowedMIMETypes {
		if strings.EqualFold(strings.TrimSpace(allowed), contentType) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %q is not allowed", contentType))
}

func (s *MediaService) discard(rel string) {
	if err := s.storage.Delete(rel); err != nil {
		s.logger.Warn("failed to remove rejected media file", zap.String("path", rel), zap.Error(err))
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
