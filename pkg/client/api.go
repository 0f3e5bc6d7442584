package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/noah-isme/creche-api/internal/models"
)

// List fetches one page of rows from path. It is a function rather than a
// method because methods cannot take type parameters.
func List[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, *models.Pagination, error) {
	var rows []T
	page, err := c.do(ctx, http.MethodGet, path, query, nil, &rows)
	if err != nil {
		return nil, nil, err
	}
	return rows, page, nil
}

// Fetcher adapts List into a Loader fetch function.
func Fetcher[T any](c *Client, path string, query url.Values) FetchFunc[T] {
	return func(ctx context.Context) ([]T, error) {
		rows, _, err := List[T](ctx, c, path, query)
		return rows, err
	}
}

// NewListLoader builds a Loader over path that signs the client out when the
// session cannot be renewed.
func NewListLoader[T any](c *Client, path string, query url.Values) *Loader[T] {
	return NewLoader(Fetcher[T](c, path, query), WithSessionExpired[T](func() {
		_ = c.sessions.replace(nil)
	}))
}

// Me returns the signed-in user as the server sees it.
func (c *Client) Me(ctx context.Context) (*models.UserInfo, error) {
	var out models.UserInfo
	if _, err := c.do(ctx, http.MethodGet, "/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParentDashboard loads the parent landing screen.
func (c *Client) ParentDashboard(ctx context.Context) (*models.ParentDashboard, error) {
	var out models.ParentDashboard
	if _, err := c.do(ctx, http.MethodGet, "/parent/dashboard", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminDashboard loads the admin landing screen.
func (c *Client) AdminDashboard(ctx context.Context) (*models.DashboardSummary, error) {
	var out models.DashboardSummary
	if _, err := c.do(ctx, http.MethodGet, "/admin/dashboard", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkAttendance upserts one attendance row and returns the stored row.
func (c *Client) MarkAttendance(ctx context.Context, req models.MarkAttendanceRequest) (*models.Attendance, error) {
	var out models.Attendance
	if _, err := c.do(ctx, http.MethodPut, "/admin/attendance", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPaymentStatus force-sets a payment status.
func (c *Client) SetPaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus) (*models.Payment, error) {
	var out models.Payment
	path := "/admin/payments/" + url.PathEscape(paymentID) + "/status"
	if _, err := c.do(ctx, http.MethodPatch, path, nil, models.UpdatePaymentStatusRequest{Status: status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertConsent records the parent's media consent for one child.
func (c *Client) UpsertConsent(ctx context.Context, req models.ConsentRequest) (*models.MediaConsent, error) {
	var out models.MediaConsent
	if _, err := c.do(ctx, http.MethodPut, "/parent/consents", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkNotificationRead marks one of the parent's notifications read.
func (c *Client) MarkNotificationRead(ctx context.Context, kind models.NotificationKind, id string) error {
	path := "/parent/notifications/" + string(kind) + "s/" + url.PathEscape(id) + "/read"
	_, err := c.do(ctx, http.MethodPatch, path, nil, nil, nil)
	return err
}
