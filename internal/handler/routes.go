package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/creche-api/internal/middleware"
	"github.com/noah-isme/creche-api/internal/models"
)

// AuditActionExport is recorded for every successful dataset download.
const AuditActionExport = "EXPORT_DOWNLOAD"

// Handlers groups every HTTP handler served under the API prefix.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Staff         *StaffHandler
	Children      *ChildHandler
	Attendance    *AttendanceHandler
	Events        *EventHandler
	Payments      *PaymentHandler
	Webhooks      *WebhookHandler
	Notifications *NotificationHandler
	Consents      *ConsentHandler
	Media         *MediaHandler
	Dashboard     *DashboardHandler
	Exports       *ExportHandler
	Metrics       *MetricsHandler
}

// Register mounts public, parent and admin routes on api. Parent routes are
// always scoped to the caller's own user id; admin routes require the admin role.
func (h Handlers) Register(api *gin.RouterGroup, tokens middleware.TokenValidator, audit middleware.AuditWriter, logger *zap.Logger) {
	api.Use(middleware.WithResponseMeta())

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/session/route", middleware.OptionalJWT(tokens), h.Auth.Route)
	api.POST("/webhooks/payments", h.Webhooks.Payments)
	api.GET("/media/file", h.Media.File)

	authed := api.Group("")
	authed.Use(middleware.JWT(tokens))
	authed.POST("/auth/logout", h.Auth.Logout)
	authed.POST("/auth/change-password", h.Auth.ChangePassword)
	authed.GET("/me", h.Auth.Me)

	parent := authed.Group("/parent")
	parent.Use(middleware.RequireRoles(models.RoleParent))
	parent.GET("/dashboard", h.Dashboard.Parent)
	parent.GET("/children", h.Children.Mine)
	parent.GET("/attendance", h.Attendance.Mine)
	parent.GET("/events", h.Events.ListEvents)
	parent.GET("/announcements", h.Events.PublishedAnnouncements)
	parent.GET("/payments", h.Payments.Mine)
	parent.GET("/payments/:id/receipts", h.Payments.Receipts)
	parent.GET("/media", h.Media.Mine)
	parent.GET("/consents", h.Consents.Mine)
	parent.PUT("/consents", h.Consents.Upsert)

	notifications := parent.Group("/notifications")
	notifications.GET("/events", h.Notifications.Events)
	notifications.PATCH("/events/:id/read", h.Notifications.MarkRead(models.NotificationEvent))
	notifications.GET("/announcements", h.Notifications.Announcements)
	notifications.PATCH("/announcements/:id/read", h.Notifications.MarkRead(models.NotificationAnnouncement))
	notifications.GET("/absences", h.Notifications.Absences)
	notifications.PATCH("/absences/:id/read", h.Notifications.MarkRead(models.NotificationAbsence))

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/dashboard", h.Dashboard.Admin)
	admin.GET("/users", h.Users.List)
	admin.POST("/users", h.Users.Create)
	admin.PATCH("/users/:id/active", h.Users.SetActive)
	admin.GET("/staff", h.Staff.List)
	admin.POST("/staff", h.Staff.Create)
	admin.GET("/children", h.Children.List)
	admin.POST("/children", h.Children.Create)
	admin.PUT("/children/:id", h.Children.Update)
	admin.GET("/attendance", h.Attendance.List)
	admin.PUT("/attendance", h.Attendance.Mark)
	admin.GET("/events", h.Events.ListEvents)
	admin.POST("/events", h.Events.CreateEvent)
	admin.GET("/announcements", h.Events.ListAnnouncements)
	admin.POST("/announcements", h.Events.CreateAnnouncement)
	admin.GET("/payments", h.Payments.List)
	admin.POST("/payments", h.Payments.Create)
	admin.PATCH("/payments/:id/status", h.Payments.SetStatus)
	admin.GET("/payments/:id/history", h.Payments.History)
	admin.GET("/media", h.Media.List)
	admin.POST("/media", h.Media.Upload)
	admin.GET("/consents", h.Consents.List)
	admin.GET("/exports/:dataset", middleware.Audit(audit, logger, AuditActionExport, "exports"), h.Exports.Export)
	admin.GET("/system/metrics", h.Metrics.Snapshot)
}
