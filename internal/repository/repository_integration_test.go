//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
	"github.com/noah-isme/creche-api/pkg/database"
)

// startPostgres runs a throwaway Postgres with the embedded migrations applied.
func startPostgres(t *testing.T) store.Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("creche"),
		postgres.WithUsername("creche"),
		postgres.WithPassword("creche"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		_ = pg.Terminate(stopCtx)
	})

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sqlx.Open("postgres", uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	deadline := time.Now().Add(20 * time.Second)
	for db.PingContext(ctx) != nil && time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
	}
	require.NoError(t, database.Migrate(ctx, db))
	return store.WithSingleflight(store.NewPostgresStore(db))
}

func TestPostgresRoundTrip(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	users := NewUserRepository(st)
	children := NewChildRepository(st)
	attendance := NewAttendanceRepository(st)
	events := NewEventRepository(st)
	notifications := NewNotificationRepository(st)
	payments := NewPaymentRepository(st)

	admin := &models.User{Email: "admin@creche.example", PasswordHash: "x", FullName: "Admin", Role: models.RoleAdmin, IsActive: true}
	parent := &models.User{Email: "ana@creche.example", PasswordHash: "x", FullName: "Ana", Role: models.RoleParent, IsActive: true}
	require.NoError(t, users.Create(ctx, admin))
	require.NoError(t, users.Create(ctx, parent))

	parents, err := users.ListActiveParentIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{parent.ID}, parents)

	dob, _ := models.ParseDate("2021-04-02")
	child := &models.Child{FirstName: "Lea", LastName: "Ng", DOB: dob, ParentID: parent.ID, IsActive: true}
	require.NoError(t, children.Create(ctx, child))

	mine, err := children.ListByParent(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "2021-04-02", mine[0].DOB.String())

	t.Run("attendance upsert keeps one row per child and day", func(t *testing.T) {
		day, _ := models.ParseDate("2024-03-01")
		require.NoError(t, attendance.Upsert(ctx, &models.Attendance{ChildID: child.ID, Date: day, IsPresent: true, MarkedBy: admin.ID}))
		require.NoError(t, attendance.Upsert(ctx, &models.Attendance{ChildID: child.ID, Date: day, IsPresent: false, MarkedBy: admin.ID}))

		rows, total, err := attendance.List(ctx, models.AttendanceFilter{ChildID: child.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, rows, 1)
		assert.False(t, rows[0].IsPresent)

		present, absent, err := attendance.CountForDate(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, 0, present)
		assert.Equal(t, 1, absent)
	})

	t.Run("event fan-out is idempotent and read state is per parent", func(t *testing.T) {
		evt := &models.Event{Title: "Summer fair", EventDatetime: time.Now().Add(48 * time.Hour).UTC(), CreatedByID: admin.ID}
		require.NoError(t, events.Create(ctx, evt))

		n, err := notifications.FanOutEvent(ctx, evt.ID, []string{parent.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = notifications.FanOutEvent(ctx, evt.ID, []string{parent.ID})
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		unread, err := notifications.CountUnread(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, unread)

		rows, _, err := notifications.ListEvent(ctx, models.NotificationFilter{ParentID: parent.ID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Error(t, notifications.MarkRead(ctx, models.NotificationEvent, rows[0].ID, admin.ID))
		require.NoError(t, notifications.MarkRead(ctx, models.NotificationEvent, rows[0].ID, parent.ID))

		unread, err = notifications.CountUnread(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, unread)
	})

	t.Run("payment history ignores replays", func(t *testing.T) {
		p := &models.Payment{ParentID: parent.ID, Amount: 120.5, Currency: "EUR", Description: "March fees", Status: models.PaymentStatusPending}
		require.NoError(t, payments.Create(ctx, p))

		h := &models.StripePaymentHistory{ID: "evt_1", PaymentID: p.ID, ParentID: parent.ID, EventType: models.WebhookPaymentSucceeded, Amount: 120.5, Status: "succeeded", OccurredAt: time.Now().UTC()}
		inserted, err := payments.AppendHistory(ctx, h)
		require.NoError(t, err)
		assert.True(t, inserted)
		inserted, err = payments.AppendHistory(ctx, h)
		require.NoError(t, err)
		assert.False(t, inserted)

		pending, overdue, amount, err := payments.SumOutstanding(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, pending)
		assert.Equal(t, 0, overdue)
		assert.InDelta(t, 120.5, amount, 0.001)
	})
}
