package models

import "time"

// DashboardSummary aggregates the admin landing screen.
type DashboardSummary struct {
	Date              Date      `json:"date"`
	ActiveChildren    int       `json:"active_children"`
	ActiveParents     int       `json:"active_parents"`
	ActiveStaff       int       `json:"active_staff"`
	PresentToday      int       `json:"present_today"`
	AbsentToday       int       `json:"absent_today"`
	UnmarkedToday     int       `json:"unmarked_today"`
	PendingPayments   int       `json:"pending_payments"`
	OverduePayments   int       `json:"overdue_payments"`
	OutstandingAmount float64   `json:"outstanding_amount"`
	UpcomingEvents    []Event   `json:"upcoming_events"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// ParentDashboard aggregates the parent landing screen.
type ParentDashboard struct {
	Children            []Child `json:"children"`
	UnreadNotifications int     `json:"unread_notifications"`
	PendingPayments     int     `json:"pending_payments"`
	UpcomingEvents      []Event `json:"upcoming_events"`
}

// SystemMetrics is a point-in-time view of the process counters.
type SystemMetrics struct {
	CacheHitRatio            float64               `json:"cache_hit_ratio"`
	CacheHits                uint64                `json:"cache_hits"`
	CacheMisses              uint64                `json:"cache_misses"`
	RequestsTotal            uint64                `json:"requests_total"`
	AverageRequestDurationMs float64               `json:"average_request_duration_ms"`
	StoreCallCount           uint64                `json:"store_call_count"`
	AverageStoreCallMs       float64               `json:"average_store_call_ms"`
	NotificationsCreated     uint64                `json:"notifications_created"`
	ConsentDenials           uint64                `json:"consent_denials"`
	Goroutines               int                   `json:"goroutines"`
	Queues                   map[string]QueueStats `json:"queues,omitempty"`
	GeneratedAt              time.Time             `json:"generated_at"`
}

// QueueStats are the running totals of one background queue.
type QueueStats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}
