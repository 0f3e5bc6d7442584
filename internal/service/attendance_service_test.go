package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

// mockAttendanceRepo keys rows by (child, date) like the unique constraint.
type mockAttendanceRepo struct {
	rows    map[string]models.Attendance
	filters []models.AttendanceFilter
	extra   []models.Attendance
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{rows: map[string]models.Attendance{}}
}

func (m *mockAttendanceRepo) List(_ context.Context, f models.AttendanceFilter) ([]models.Attendance, int, error) {
	m.filters = append(m.filters, f)
	out := append([]models.Attendance(nil), m.extra...)
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockAttendanceRepo) Upsert(_ context.Context, a *models.Attendance) error {
	key := a.ChildID + "/" + a.Date.String()
	if existing, ok := m.rows[key]; ok {
		a.ID = existing.ID
	} else {
		a.ID = "att-" + key
	}
	m.rows[key] = *a
	return nil
}

type recordingAbsence struct {
	calls []string
}

func (r *recordingAbsence) ChildAbsent(_ context.Context, child models.Child, date models.Date, reason string) {
	r.calls = append(r.calls, child.ID+"@"+date.String()+":"+reason)
}

func attendanceFixture() (*AttendanceService, *mockAttendanceRepo, *recordingAbsence, *recordingAudit) {
	repo := newMockAttendanceRepo()
	notifier := &recordingAbsence{}
	audit := &recordingAudit{}
	dir := &fakeChildDir{children: []models.Child{
		{ID: "c1", ParentID: "p1"},
		{ID: "c2", ParentID: "p2"},
	}}
	return NewAttendanceService(repo, dir, notifier, audit, nil, nil), repo, notifier, audit
}

func TestAttendanceMarkSecondWriteWins(t *testing.T) {
	svc, repo, notifier, audit := attendanceFixture()
	date := mustDate(t, "2024-03-01")
	in := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := svc.Mark(context.Background(), models.MarkAttendanceRequest{ChildID: "c1", Date: date, IsPresent: boolPtr(true), CheckInTime: &in}, "admin-1")
	require.NoError(t, err)
	second, err := svc.Mark(context.Background(), models.MarkAttendanceRequest{ChildID: "c1", Date: date, IsPresent: boolPtr(false), CheckInTime: &in, Reason: "fever"}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.Len(t, repo.rows, 1)
	stored := repo.rows["c1/2024-03-01"]
	assert.False(t, stored.IsPresent)
	assert.Nil(t, stored.CheckInTime)
	assert.Equal(t, []string{"c1@2024-03-01:fever"}, notifier.calls)
	assert.Equal(t, []string{models.AuditActionAttendanceMark, models.AuditActionAttendanceMark}, audit.actions())
}

func TestAttendanceMarkValidation(t *testing.T) {
	svc, _, _, _ := attendanceFixture()
	date := mustDate(t, "2024-03-01")
	in := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	out := in.Add(-time.Hour)

	_, err := svc.Mark(context.Background(), models.MarkAttendanceRequest{ChildID: "c1", Date: date}, "a")
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "is_present required")

	_, err = svc.Mark(context.Background(), models.MarkAttendanceRequest{ChildID: "c1", IsPresent: boolPtr(true)}, "a")
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "date required")

	_, err = svc.Mark(context.Background(), models.MarkAttendanceRequest{ChildID: "c1", Date: date, IsPresent: boolPtr(true), CheckInTime: &in, CheckOutTime: &out}, "a")
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "check out before check in")

	_, err = svc.Mark(context.Background(), models.MarkAttendanceRequest{ChildID: "ghost", Date: date, IsPresent: boolPtr(true)}, "a")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAttendanceListForParentScopesToOwnChildren(t *testing.T) {
	svc, repo, _, _ := attendanceFixture()
	d := mustDate(t, "2024-03-01")
	repo.extra = []models.Attendance{{ChildID: "c1", Date: d}, {ChildID: "c2", Date: d}}

	rows, _, err := svc.ListForParent(context.Background(), "p1", models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].ChildID)
	assert.Equal(t, []string{"c1"}, repo.filters[0].ChildIDs)

	_, _, err = svc.ListForParent(context.Background(), "p1", models.AttendanceFilter{ChildID: "c2"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAttendanceListForParentWithoutChildren(t *testing.T) {
	svc, repo, _, _ := attendanceFixture()
	rows, page, err := svc.ListForParent(context.Background(), "p-none", models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, page.TotalCount)
	assert.Empty(t, repo.filters)
}
