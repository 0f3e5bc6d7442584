package models

import "time"

// NotificationKind names the three per-parent notification tables.
type NotificationKind string

const (
	NotificationEvent        NotificationKind = "event"
	NotificationAnnouncement NotificationKind = "announcement"
	NotificationAbsence      NotificationKind = "absence"
)

// EventNotification is one event delivered to one parent.
type EventNotification struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	ParentID  string    `db:"parent_id" json:"parent_id"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (n EventNotification) OwnerID() string { return n.ParentID }

// AnnouncementNotification is one announcement delivered to one parent.
type AnnouncementNotification struct {
	ID             string    `db:"id" json:"id"`
	AnnouncementID string    `db:"announcement_id" json:"announcement_id"`
	ParentID       string    `db:"parent_id" json:"parent_id"`
	IsRead         bool      `db:"is_read" json:"is_read"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func (n AnnouncementNotification) OwnerID() string { return n.ParentID }

// AbsenceNotification tells a parent their child was marked absent.
type AbsenceNotification struct {
	ID        string    `db:"id" json:"id"`
	ChildID   string    `db:"child_id" json:"child_id"`
	ParentID  string    `db:"parent_id" json:"parent_id"`
	Date      Date      `db:"date" json:"date"`
	Reason    string    `db:"reason" json:"reason"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (n AbsenceNotification) OwnerID() string { return n.ParentID }

// NotificationFilter narrows a parent's notification listing.
type NotificationFilter struct {
	ParentID   string
	UnreadOnly bool
	Page       int
	PageSize   int
}
