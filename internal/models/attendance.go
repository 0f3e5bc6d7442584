package models

import "time"

// Attendance is one child's presence on one day. (child_id, date) is unique.
type Attendance struct {
	ID           string     `db:"id" json:"id"`
	ChildID      string     `db:"child_id" json:"child_id"`
	Date         Date       `db:"date" json:"date"`
	IsPresent    bool       `db:"is_present" json:"is_present"`
	CheckInTime  *time.Time `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckOutTime *time.Time `db:"check_out_time" json:"check_out_time,omitempty"`
	Notes        string     `db:"notes" json:"notes"`
	MarkedBy     string     `db:"marked_by" json:"marked_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	ChildID  string
	ChildIDs []string
	Date     *Date
	From     *Date
	To       *Date
	Page     int
	PageSize int
}

// MarkAttendanceRequest records presence for a child on a day.
type MarkAttendanceRequest struct {
	ChildID      string     `json:"child_id" validate:"required"`
	Date         Date       `json:"date" validate:"required"`
	IsPresent    *bool      `json:"is_present" validate:"required"`
	CheckInTime  *time.Time `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
	Notes        string     `json:"notes"`
	Reason       string     `json:"reason"`
}
