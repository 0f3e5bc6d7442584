package models

import "time"

// AnnouncementPriority orders announcements for display.
type AnnouncementPriority string

const (
	AnnouncementPriorityLow    AnnouncementPriority = "low"
	AnnouncementPriorityNormal AnnouncementPriority = "normal"
	AnnouncementPriorityHigh   AnnouncementPriority = "high"
)

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID          string               `db:"id" json:"id"`
	Title       string               `db:"title" json:"title"`
	Content     string               `db:"content" json:"content"`
	Priority    AnnouncementPriority `db:"priority" json:"priority"`
	CreatedByID string               `db:"created_by_id" json:"created_by_id"`
	PublishedAt time.Time            `db:"published_at" json:"published_at"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updated_at"`
}

// CreateAnnouncementRequest is the payload for publishing an announcement.
type CreateAnnouncementRequest struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Content     string               `json:"content" validate:"required"`
	Priority    AnnouncementPriority `json:"priority" validate:"omitempty,oneof=low normal high"`
	PublishedAt *time.Time           `json:"published_at"`
}
