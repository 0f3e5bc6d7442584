package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creche-api/pkg/jobs"
)

type fixedStats jobs.Stats

func (f fixedStats) Stats() jobs.Stats { return jobs.Stats(f) }

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/parent/children", http.StatusOK, 20*time.Millisecond)
	m.RecordNotifications("event", 3)
	m.RecordNotifications("event", 0)
	m.TrackQueue("notifications", fixedStats{Processed: 7, Failed: 1})

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(3), snap.NotificationsCreated)
	require.Contains(t, snap.Queues, "notifications")
	assert.Equal(t, uint64(7), snap.Queues["notifications"].Processed)
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetricsService()
	m.TrackQueue("notifications", fixedStats{Dropped: 2})
	m.RecordConsentDenial()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `creche_queue_jobs_total{outcome="dropped",queue="notifications"} 2`), body)
	assert.Contains(t, body, "creche_media_consent_denials_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordNotifications("event", 1)
	m.TrackQueue("q", fixedStats{})
	assert.Zero(t, m.Snapshot().RequestsTotal)
}
