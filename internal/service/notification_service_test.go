package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
	"github.com/noah-isme/creche-api/pkg/jobs"
)

type mockNotificationRepo struct {
	eventFanOut        map[string][]string
	announcementFanOut map[string][]string
	absences           []models.AbsenceNotification
	events             []models.EventNotification
	read               map[string]bool
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		eventFanOut:        map[string][]string{},
		announcementFanOut: map[string][]string{},
		read:               map[string]bool{},
	}
}

func (m *mockNotificationRepo) ListEvent(_ context.Context, f models.NotificationFilter) ([]models.EventNotification, int, error) {
	return m.events, len(m.events), nil
}

func (m *mockNotificationRepo) ListAnnouncement(context.Context, models.NotificationFilter) ([]models.AnnouncementNotification, int, error) {
	return nil, 0, nil
}

func (m *mockNotificationRepo) ListAbsence(context.Context, models.NotificationFilter) ([]models.AbsenceNotification, int, error) {
	return m.absences, len(m.absences), nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, kind models.NotificationKind, id, parentID string) error {
	for _, n := range m.events {
		if kind == models.NotificationEvent && n.ID == id && n.ParentID == parentID {
			m.read[id] = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, parentID string) (int, error) {
	n := 0
	for _, e := range m.events {
		if e.ParentID == parentID && !m.read[e.ID] {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) FanOutEvent(_ context.Context, eventID string, parentIDs []string) (int, error) {
	m.eventFanOut[eventID] = parentIDs
	return len(parentIDs), nil
}

func (m *mockNotificationRepo) FanOutAnnouncement(_ context.Context, id string, parentIDs []string) (int, error) {
	m.announcementFanOut[id] = parentIDs
	return len(parentIDs), nil
}

func (m *mockNotificationRepo) CreateAbsence(_ context.Context, n *models.AbsenceNotification) (int, error) {
	m.absences = append(m.absences, *n)
	return 1, nil
}

type stubQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *stubQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestNotificationFanOutInline(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := NewNotificationService(repo, fakeParentDir{ids: []string{"p1", "p2"}}, nil, nil)

	svc.EventCreated(context.Background(), "evt-1")
	svc.AnnouncementPublished(context.Background(), "ann-1")
	svc.ChildAbsent(context.Background(), models.Child{ID: "c1", ParentID: "p1"}, mustDate(t, "2024-03-01"), "sick")

	assert.Equal(t, []string{"p1", "p2"}, repo.eventFanOut["evt-1"])
	assert.Equal(t, []string{"p1", "p2"}, repo.announcementFanOut["ann-1"])
	require.Len(t, repo.absences, 1)
	assert.Equal(t, "p1", repo.absences[0].ParentID)
	assert.Equal(t, "sick", repo.absences[0].Reason)
}

func TestNotificationUsesQueueAndFallsBack(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := NewNotificationService(repo, fakeParentDir{ids: []string{"p1"}}, nil, nil)
	queue := &stubQueue{}
	svc.UseQueue(queue)

	svc.EventCreated(context.Background(), "evt-1")
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobEventFanOut, queue.jobs[0].Type)
	assert.Empty(t, repo.eventFanOut)

	require.NoError(t, svc.Handle(context.Background(), queue.jobs[0]))
	assert.Equal(t, []string{"p1"}, repo.eventFanOut["evt-1"])

	queue.err = jobs.ErrQueueFull
	svc.EventCreated(context.Background(), "evt-2")
	assert.Equal(t, []string{"p1"}, repo.eventFanOut["evt-2"])
}

func TestNotificationHandleRejectsBadJobs(t *testing.T) {
	svc := NewNotificationService(newMockNotificationRepo(), fakeParentDir{}, nil, nil)
	assert.Error(t, svc.Handle(context.Background(), jobs.Job{Type: "notify.unknown"}))
	assert.Error(t, svc.Handle(context.Background(), jobs.Job{Type: JobAbsence, Payload: "nope"}))
	assert.Error(t, svc.Handle(context.Background(), jobs.Job{Type: JobEventFanOut}))
}

func TestNotificationReadsAreScoped(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.events = []models.EventNotification{{ID: "n1", ParentID: "p1"}, {ID: "n2", ParentID: "p2"}}
	svc := NewNotificationService(repo, fakeParentDir{}, nil, nil)

	rows, _, err := svc.ListEvents(context.Background(), models.NotificationFilter{ParentID: "p1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "n1", rows[0].ID)

	_, _, err = svc.ListEvents(context.Background(), models.NotificationFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	require.NoError(t, svc.MarkRead(context.Background(), models.NotificationEvent, "n1", "p1"))
	err = svc.MarkRead(context.Background(), models.NotificationEvent, "n2", "p1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	unread, err := svc.CountUnread(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}
