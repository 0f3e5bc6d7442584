package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/service"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrSessionExpired
}

var testTokens = stubTokens{
	"admin":  {UserID: "admin-1", Role: models.RoleAdmin, Email: "a@creche.test"},
	"parent": {UserID: "parent-1", Role: models.RoleParent},
	"other":  {UserID: "x-1", Role: "teacher"},
}

type fakeAuth struct{ logoutToken string }

func (f *fakeAuth) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{TokenPair: models.TokenPair{AccessToken: "admin"}, Destination: "admin_dashboard"}, nil
}

func (f *fakeAuth) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{TokenPair: models.TokenPair{AccessToken: "admin"}}, nil
}

func (f *fakeAuth) Logout(_ context.Context, token, _ string, _ models.ClientInfo) error {
	f.logoutToken = token
	return nil
}

func (f *fakeAuth) ChangePassword(context.Context, string, models.ChangePasswordRequest) error {
	return nil
}

type fakeUsers struct{ created []models.CreateUserRequest }

func (f *fakeUsers) List(context.Context, models.UserFilter) ([]models.UserProfile, *models.Pagination, error) {
	return nil, &models.Pagination{Page: 1, PageSize: 50}, nil
}

func (f *fakeUsers) Create(_ context.Context, req models.CreateUserRequest, _ string) (*models.UserProfile, error) {
	f.created = append(f.created, req)
	return &models.UserProfile{ID: "u-new", Email: req.Email}, nil
}

func (f *fakeUsers) SetActive(_ context.Context, id string, req models.SetActiveRequest, _ string) (*models.UserProfile, error) {
	return &models.UserProfile{ID: id, IsActive: *req.Active}, nil
}

type fakeStaff struct{}

func (fakeStaff) List(context.Context, models.StaffFilter) ([]models.Staff, *models.Pagination, error) {
	return nil, nil, nil
}

func (fakeStaff) Create(_ context.Context, req models.CreateStaffRequest) (*models.Staff, error) {
	return &models.Staff{ID: "s1", FullName: req.FullName}, nil
}

type fakeChildren struct {
	parentID string
	filter   models.ChildFilter
}

func (f *fakeChildren) List(_ context.Context, filter models.ChildFilter) ([]models.Child, *models.Pagination, error) {
	f.filter = filter
	return []models.Child{{ID: "c1"}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

func (f *fakeChildren) ListForParent(_ context.Context, parentID string) ([]models.Child, error) {
	f.parentID = parentID
	return []models.Child{{ID: "c1", ParentID: parentID}}, nil
}

func (f *fakeChildren) Create(_ context.Context, req models.ChildRequest) (*models.Child, error) {
	return &models.Child{ID: "c-new", FirstName: req.FirstName, ParentID: req.ParentID}, nil
}

func (f *fakeChildren) Update(_ context.Context, id string, req models.ChildRequest) (*models.Child, error) {
	return &models.Child{ID: id, FirstName: req.FirstName}, nil
}

type fakeAttendance struct {
	actor    string
	marked   models.MarkAttendanceRequest
	filter   models.AttendanceFilter
	parentID string
}

func (f *fakeAttendance) Mark(_ context.Context, req models.MarkAttendanceRequest, actorID string) (*models.Attendance, error) {
	f.marked, f.actor = req, actorID
	return &models.Attendance{ID: "a1", ChildID: req.ChildID, Date: req.Date, IsPresent: *req.IsPresent}, nil
}

func (f *fakeAttendance) List(_ context.Context, filter models.AttendanceFilter) ([]models.Attendance, *models.Pagination, error) {
	f.filter = filter
	return nil, &models.Pagination{Page: 1, PageSize: 50}, nil
}

func (f *fakeAttendance) ListForParent(_ context.Context, parentID string, filter models.AttendanceFilter) ([]models.Attendance, *models.Pagination, error) {
	f.parentID, f.filter = parentID, filter
	return nil, nil, nil
}

type fakeEvents struct{ filter models.EventFilter }

func (f *fakeEvents) List(_ context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error) {
	f.filter = filter
	return nil, nil, nil
}

func (f *fakeEvents) Create(_ context.Context, req models.CreateEventRequest, actorID string) (*models.Event, error) {
	return &models.Event{ID: "e1", Title: req.Title, CreatedByID: actorID}, nil
}

type fakeAnnouncements struct{ published bool }

func (f *fakeAnnouncements) List(context.Context, int, int) ([]models.Announcement, *models.Pagination, error) {
	return nil, nil, nil
}

func (f *fakeAnnouncements) ListPublished(context.Context, int, int) ([]models.Announcement, *models.Pagination, error) {
	f.published = true
	return nil, nil, nil
}

func (f *fakeAnnouncements) Create(_ context.Context, req models.CreateAnnouncementRequest, _ string) (*models.Announcement, error) {
	return &models.Announcement{ID: "an1", Title: req.Title}, nil
}

type fakePayments struct {
	filter   models.PaymentFilter
	parentID string
	status   models.PaymentStatus
}

func (f *fakePayments) List(_ context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	f.filter = filter
	return nil, nil, nil
}

func (f *fakePayments) ListForParent(_ context.Context, parentID string, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	f.parentID, f.filter = parentID, filter
	return []models.Payment{{ID: "p1", ParentID: parentID, Status: models.PaymentStatusPending}}, nil, nil
}

func (f *fakePayments) Create(_ context.Context, req models.CreatePaymentRequest, _ string) (*models.Payment, error) {
	return &models.Payment{ID: "p-new", ParentID: req.ParentID, Status: models.PaymentStatusPending}, nil
}

func (f *fakePayments) SetStatus(_ context.Context, id string, req models.UpdatePaymentStatusRequest, _ string) (*models.Payment, error) {
	f.status = req.Status
	return &models.Payment{ID: id, Status: req.Status}, nil
}

func (f *fakePayments) Receipts(_ context.Context, parentID, paymentID string) ([]models.StripeReceipt, error) {
	if parentID != "parent-1" {
		return nil, appErrors.ErrNotFound
	}
	return []models.StripeReceipt{{ID: "rc1", PaymentID: paymentID, ParentID: parentID}}, nil
}

func (f *fakePayments) History(_ context.Context, paymentID string) ([]models.StripePaymentHistory, error) {
	return []models.StripePaymentHistory{{ID: "evt_1", PaymentID: paymentID}}, nil
}

type fakeWebhooks struct {
	payload []byte
	header  string
}

func (f *fakeWebhooks) Handle(_ context.Context, payload []byte, header string) (*models.Payment, error) {
	f.payload, f.header = payload, header
	if header == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return &models.Payment{ID: "pay-1", Status: models.PaymentStatusPaid}, nil
}

type readCall struct {
	kind     models.NotificationKind
	id       string
	parentID string
}

type fakeNotifications struct {
	filter models.NotificationFilter
	reads  []readCall
}

func (f *fakeNotifications) ListEvents(_ context.Context, filter models.NotificationFilter) ([]models.EventNotification, *models.Pagination, error) {
	f.filter = filter
	return nil, nil, nil
}

func (f *fakeNotifications) ListAnnouncements(_ context.Context, filter models.NotificationFilter) ([]models.AnnouncementNotification, *models.Pagination, error) {
	f.filter = filter
	return nil, nil, nil
}

func (f *fakeNotifications) ListAbsences(_ context.Context, filter models.NotificationFilter) ([]models.AbsenceNotification, *models.Pagination, error) {
	f.filter = filter
	return nil, nil, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, kind models.NotificationKind, id, parentID string) error {
	f.reads = append(f.reads, readCall{kind, id, parentID})
	return nil
}

type fakeConsents struct{ req models.ConsentRequest }

func (f *fakeConsents) List(context.Context) ([]models.MediaConsent, error) { return nil, nil }

func (f *fakeConsents) ListForParent(context.Context, string) ([]models.MediaConsent, error) {
	return nil, nil
}

func (f *fakeConsents) Upsert(_ context.Context, parentID string, req models.ConsentRequest) (*models.MediaConsent, error) {
	f.req = req
	if req.ConsentType == models.ConsentNone && req.ConsentGranted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "consent type none cannot be granted")
	}
	return &models.MediaConsent{ID: "mc1", ChildID: req.ChildID, ParentID: parentID, ConsentType: req.ConsentType}, nil
}

type fakeMedia struct {
	req  models.UploadMediaRequest
	body []byte
	file string
}

func (f *fakeMedia) Upload(_ context.Context, req models.UploadMediaRequest, file service.MediaUpload, _ string) (*models.MediaItem, error) {
	f.req = req
	f.body, _ = io.ReadAll(file.Body)
	if req.ChildID == "no-consent" {
		return nil, appErrors.ErrConsentRequired
	}
	return &models.MediaItem{Media: models.Media{ID: "m1", ChildID: req.ChildID, ContentType: file.ContentType}}, nil
}

func (f *fakeMedia) List(context.Context, models.MediaFilter) ([]models.MediaItem, *models.Pagination, error) {
	return nil, nil, nil
}

func (f *fakeMedia) ListForParent(context.Context, string, models.MediaFilter) ([]models.MediaItem, *models.Pagination, error) {
	return nil, nil, nil
}

func (f *fakeMedia) Open(_ context.Context, token string) (*models.Media, *os.File, error) {
	if token != "good" {
		return nil, nil, appErrors.ErrForbidden
	}
	fh, err := os.Open(f.file)
	if err != nil {
		return nil, nil, err
	}
	return &models.Media{ID: "m1", FilePath: "media/c1/pic.jpg", ContentType: "image/jpeg"}, fh, nil
}

type fakeDashboard struct{ hit bool }

func (f *fakeDashboard) Admin(context.Context) (*models.DashboardSummary, bool, error) {
	return &models.DashboardSummary{ActiveChildren: 3}, f.hit, nil
}

func (f *fakeDashboard) Parent(_ context.Context, parentID string) (*models.ParentDashboard, error) {
	return &models.ParentDashboard{Children: []models.Child{{ID: "c1", ParentID: parentID}}}, nil
}

type fakeExports struct{ req models.ExportRequest }

func (f *fakeExports) Export(_ context.Context, req models.ExportRequest) (*models.ExportFile, error) {
	f.req = req
	if req.Format == "doc" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &models.ExportFile{Filename: "attendance-20240301-120000.csv", ContentType: "text/csv", Content: []byte("a,b\n")}, nil
}

type recordingAudit struct{ actions []string }

func (r *recordingAudit) CreateAuditLog(_ context.Context, l *models.AuditLog) error {
	r.actions = append(r.actions, l.Action)
	return nil
}

type harness struct {
	router        *gin.Engine
	auth          *fakeAuth
	users         *fakeUsers
	children      *fakeChildren
	attendance    *fakeAttendance
	events        *fakeEvents
	announcements *fakeAnnouncements
	payments      *fakePayments
	webhooks      *fakeWebhooks
	notifications *fakeNotifications
	consents      *fakeConsents
	media         *fakeMedia
	dashboard     *fakeDashboard
	exports       *fakeExports
	audit         *recordingAudit
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{
		auth:          &fakeAuth{},
		users:         &fakeUsers{},
		children:      &fakeChildren{},
		attendance:    &fakeAttendance{},
		events:        &fakeEvents{},
		announcements: &fakeAnnouncements{},
		payments:      &fakePayments{},
		webhooks:      &fakeWebhooks{},
		notifications: &fakeNotifications{},
		consents:      &fakeConsents{},
		media:         &fakeMedia{},
		dashboard:     &fakeDashboard{},
		exports:       &fakeExports{},
		audit:         &recordingAudit{},
	}
	handlers := Handlers{
		Auth:          NewAuthHandler(h.auth),
		Users:         NewUserHandler(h.users),
		Staff:         NewStaffHandler(fakeStaff{}),
		Children:      NewChildHandler(h.children),
		Attendance:    NewAttendanceHandler(h.attendance),
		Events:        NewEventHandler(h.events, h.announcements),
		Payments:      NewPaymentHandler(h.payments),
		Webhooks:      NewWebhookHandler(h.webhooks),
		Notifications: NewNotificationHandler(h.notifications),
		Consents:      NewConsentHandler(h.consents),
		Media:         NewMediaHandler(h.media),
		Dashboard:     NewDashboardHandler(h.dashboard),
		Exports:       NewExportHandler(h.exports),
		Metrics:       NewMetricsHandler(service.NewMetricsService(), nil),
	}
	h.router = gin.New()
	handlers.Register(h.router.Group("/api/v1"), testTokens, h.audit, nil)
	return h
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, _ := json.Marshal(b)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	env := decode(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}
