package models

import "time"

// Event is a scheduled crèche event visible to all parents.
type Event struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	EventDatetime time.Time `db:"event_datetime" json:"event_datetime"`
	Location      string    `db:"location" json:"location"`
	CreatedByID   string    `db:"created_by_id" json:"created_by_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// CreateEventRequest is the payload for scheduling an event.
type CreateEventRequest struct {
	Title         string    `json:"title" validate:"required,max=200"`
	Description   string    `json:"description"`
	EventDatetime time.Time `json:"event_datetime" validate:"required"`
	Location      string    `json:"location"`
}
