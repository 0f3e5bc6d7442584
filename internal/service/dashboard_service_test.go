package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type fakeCounter struct {
	n     int
	calls int
	err   error
}

func (f *fakeCounter) CountActive(context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

type fakeAttendanceCounter struct{ present, absent int }

func (f fakeAttendanceCounter) CountForDate(context.Context, models.Date) (int, int, error) {
	return f.present, f.absent, nil
}

type fakeOutstanding struct {
	pending, overdue int
	amount           float64
}

func (f fakeOutstanding) SumOutstanding(context.Context) (int, int, float64, error) {
	return f.pending, f.overdue, f.amount, nil
}

type fakeUpcoming struct {
	events []models.Event
	limit  int
}

func (f *fakeUpcoming) Upcoming(_ context.Context, limit int) ([]models.Event, error) {
	f.limit = limit
	return f.events, nil
}

type fakeParentDir struct{ ids []string }

func (f fakeParentDir) ListActiveParentIDs(context.Context) ([]string, error) { return f.ids, nil }

type fakeParentPayments struct {
	filter models.PaymentFilter
	total  int
}

func (f *fakeParentPayments) ListForParent(_ context.Context, parentID string, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	filter.ParentID = parentID
	f.filter = filter
	return nil, &models.Pagination{TotalCount: f.total}, nil
}

type fakeUnread struct{ n int }

func (f fakeUnread) CountUnread(context.Context, string) (int, error) { return f.n, nil }

type memoryCache struct {
	entries map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{entries: map[string][]byte{}} }

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(context.Context, string) error {
	m.entries = map[string][]byte{}
	return nil
}

func newDashboard(children *fakeCounter, cache *CacheService, events *fakeUpcoming) *DashboardService {
	svc := NewDashboardService(DashboardServiceParams{
		Children:   children,
		Staff:      &fakeCounter{n: 4},
		Parents:    fakeParentDir{ids: []string{"p1", "p2", "p3"}},
		Attendance: fakeAttendanceCounter{present: 6, absent: 1},
		Payments:   fakeOutstanding{pending: 2, overdue: 1, amount: 310.5},
		Events:     events,
		Cache:      cache,
	})
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestDashboardAdminSummary(t *testing.T) {
	events := &fakeUpcoming{events: []models.Event{{ID: "e1", Title: "Picnic"}}}
	svc := newDashboard(&fakeCounter{n: 10}, nil, events)

	summary, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "2026-03-02", summary.Date.String())
	assert.Equal(t, 10, summary.ActiveChildren)
	assert.Equal(t, 3, summary.ActiveParents)
	assert.Equal(t, 4, summary.ActiveStaff)
	assert.Equal(t, 6, summary.PresentToday)
	assert.Equal(t, 1, summary.AbsentToday)
	assert.Equal(t, 3, summary.UnmarkedToday)
	assert.Equal(t, 2, summary.PendingPayments)
	assert.Equal(t, 1, summary.OverduePayments)
	assert.InDelta(t, 310.5, summary.OutstandingAmount, 0.001)
	assert.Len(t, summary.UpcomingEvents, 1)
	assert.Equal(t, 5, events.limit)
}

func TestDashboardAdminUnmarkedNeverNegative(t *testing.T) {
	svc := newDashboard(&fakeCounter{n: 5}, nil, &fakeUpcoming{})
	summary, _, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.UnmarkedToday)
}

func TestDashboardAdminUsesCache(t *testing.T) {
	children := &fakeCounter{n: 10}
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	svc := newDashboard(children, cache, &fakeUpcoming{})

	_, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)

	summary, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 10, summary.ActiveChildren)
	assert.Equal(t, 1, children.calls)
}

func TestDashboardAdminPropagatesErrors(t *testing.T) {
	svc := newDashboard(&fakeCounter{err: errors.New("boom")}, nil, &fakeUpcoming{})
	_, _, err := svc.Admin(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestDashboardParentIsScoped(t *testing.T) {
	dir := &fakeChildDir{children: []models.Child{
		{ID: "c1", ParentID: "p1", FirstName: "Ada"},
		{ID: "c2", ParentID: "p2", FirstName: "Bo"},
	}}
	payments := &fakeParentPayments{total: 2}
	svc := NewDashboardService(DashboardServiceParams{
		ChildDir:      dir,
		ParentPayment: payments,
		Events:        &fakeUpcoming{},
		Notifications: fakeUnread{n: 3},
	})

	dash, err := svc.Parent(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, dash.Children, 1)
	assert.Equal(t, "c1", dash.Children[0].ID)
	assert.Equal(t, 3, dash.UnreadNotifications)
	assert.Equal(t, 2, dash.PendingPayments)
	require.NotNil(t, payments.filter.Status)
	assert.Equal(t, models.PaymentStatusPending, *payments.filter.Status)
	assert.Equal(t, "p1", payments.filter.ParentID)
}

func TestDashboardParentRequiresIdentity(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{ChildDir: &fakeChildDir{}})
	_, err := svc.Parent(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
