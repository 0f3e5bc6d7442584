package service

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/jobs"
)

const metricsNamespace = "creche"

// QueueStatter reports running totals for a worker queue.
type QueueStatter interface {
	Stats() jobs.Stats
}

// totals backs the admin snapshot; Prometheus keeps its own series.
type totals struct {
	cacheHits, cacheMisses atomic.Uint64
	requests, requestNanos atomic.Uint64
	storeCalls, storeNanos atomic.Uint64
	notifications, denials atomic.Uint64
}

func (t *totals) hitRatio() float64 {
	hits, misses := t.cacheHits.Load(), t.cacheMisses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func avgMillis(nanos, n uint64) float64 {
	if n == 0 {
		return 0
	}
	return float64(nanos) / float64(n) / float64(time.Millisecond)
}

// MetricsService owns the Prometheus registry behind /metrics and the totals
// shown on the admin metrics endpoint. Every method is a no-op on nil.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler
	totals   totals

	requestSeconds *prometheus.HistogramVec
	requests       *prometheus.CounterVec
	cacheSeconds   prometheus.Observer
	cacheWrites    prometheus.Observer
	cacheLookups   *prometheus.CounterVec
	storeSeconds   *prometheus.HistogramVec
	notifications  *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	consentDenials prometheus.Counter

	queuesMu sync.RWMutex
	queues   map[string]QueueStatter
}

func NewMetricsService() *MetricsService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	m := &MetricsService{
		registry: reg,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		queues:   map[string]QueueStatter{},
	}

	m.requestSeconds = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "Latency of API requests by route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	m.requests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "requests_total",
		Help: "API requests by route template and status.",
	}, []string{"method", "route", "status"})

	m.cacheSeconds = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "read_seconds",
		Help:    "Latency of cache reads.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})
	m.cacheWrites = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "write_seconds",
		Help:    "Latency of cache writes.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})
	m.cacheLookups = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "lookups_total",
		Help: "Cache reads by result.",
	}, []string{"result"})
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "hit_ratio",
		Help: "Share of cache reads served from cache since start.",
	}, m.totals.hitRatio)

	m.storeSeconds = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "store", Name: "call_duration_seconds",
		Help:    "Table store calls by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "table"})

	m.notifications = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "notifications_created_total",
		Help: "Notification rows written per kind.",
	}, []string{"kind"})
	m.webhookEvents = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "payment_webhook_events_total",
		Help: "Payment processor webhooks by type and outcome.",
	}, []string{"type", "outcome"})
	m.consentDenials = f.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "media_consent_denials_total",
		Help: "Media uploads or reads refused for missing consent.",
	})
	return m
}

// TrackQueue exports q's totals as creche_queue_jobs_total{queue,outcome} and
// adds them to the snapshot.
func (m *MetricsService) TrackQueue(name string, q QueueStatter) {
	if m == nil || q == nil {
		return
	}
	m.queuesMu.Lock()
	m.queues[name] = q
	m.queuesMu.Unlock()

	f := promauto.With(m.registry)
	outcome := func(label string, pick func(jobs.Stats) uint64) {
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "queue_jobs_total",
			Help:        "Background jobs by queue and outcome.",
			ConstLabels: prometheus.Labels{"queue": name, "outcome": label},
		}, func() float64 { return float64(pick(q.Stats())) })
	}
	outcome("processed", func(s jobs.Stats) uint64 { return s.Processed })
	outcome("failed", func(s jobs.Stats) uint64 { return s.Failed })
	outcome("dropped", func(s jobs.Stats) uint64 { return s.Dropped })
}

// Handler serves the Prometheus exposition.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestSeconds.WithLabelValues(method, route, code).Observe(d.Seconds())
	m.requests.WithLabelValues(method, route, code).Inc()
	m.totals.requests.Add(1)
	m.totals.requestNanos.Add(uint64(d.Nanoseconds()))
}

// RecordCacheOperation counts one cache read.
func (m *MetricsService) RecordCacheOperation(hit bool, d time.Duration) {
	if m == nil {
		return
	}
	m.cacheSeconds.Observe(d.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.totals.cacheHits.Add(1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	m.totals.cacheMisses.Add(1)
}

func (m *MetricsService) ObserveCacheWrite(d time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(d.Seconds())
}

// ObserveDBQuery records a store call labelled "<op>:<table>".
func (m *MetricsService) ObserveDBQuery(label string, d time.Duration) {
	if m == nil {
		return
	}
	op, table, found := strings.Cut(label, ":")
	if !found {
		table = "unknown"
	}
	m.storeSeconds.WithLabelValues(op, table).Observe(d.Seconds())
	m.totals.storeCalls.Add(1)
	m.totals.storeNanos.Add(uint64(d.Nanoseconds()))
}

// RecordNotifications counts n notification rows of kind.
func (m *MetricsService) RecordNotifications(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notifications.WithLabelValues(kind).Add(float64(n))
	m.totals.notifications.Add(uint64(n))
}

func (m *MetricsService) RecordWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *MetricsService) RecordConsentDenial() {
	if m == nil {
		return
	}
	m.consentDenials.Inc()
	m.totals.denials.Add(1)
}

// Snapshot returns the running totals for the admin metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	t := &m.totals
	out := models.SystemMetrics{
		CacheHits:                t.cacheHits.Load(),
		CacheMisses:              t.cacheMisses.Load(),
		CacheHitRatio:            t.hitRatio(),
		RequestsTotal:            t.requests.Load(),
		AverageRequestDurationMs: avgMillis(t.requestNanos.Load(), t.requests.Load()),
		StoreCallCount:           t.storeCalls.Load(),
		AverageStoreCallMs:       avgMillis(t.storeNanos.Load(), t.storeCalls.Load()),
		NotificationsCreated:     t.notifications.Load(),
		ConsentDenials:           t.denials.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}

	m.queuesMu.RLock()
	defer m.queuesMu.RUnlock()
	if len(m.queues) > 0 {
		out.Queues = make(map[string]models.QueueStats, len(m.queues))
		for name, q := range m.queues {
			st := q.Stats()
			out.Queues[name] = models.QueueStats{Processed: st.Processed, Failed: st.Failed, Dropped: st.Dropped}
		}
	}
	return out
}
