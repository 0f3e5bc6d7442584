package models

import "time"

// StaffRole is the job function of a staff member.
type StaffRole string

const (
	StaffRoleTeacher     StaffRole = "teacher"
	StaffRoleAssistant   StaffRole = "assistant"
	StaffRoleCoordinator StaffRole = "coordinator"
	StaffRoleOther       StaffRole = "other"
)

// Staff is an employee record. Staff are not login accounts.
type Staff struct {
	ID             string    `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone"`
	Role           StaffRole `db:"role" json:"role"`
	Qualifications string    `db:"qualifications" json:"qualifications"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	HiredAt        *Date     `db:"hired_at" json:"hired_at,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StaffFilter narrows staff listings.
type StaffFilter struct {
	Role     *StaffRole
	Active   *bool
	Page     int
	PageSize int
}

// CreateStaffRequest is the payload for adding a staff member.
type CreateStaffRequest struct {
	FullName       string    `json:"full_name" validate:"required"`
	Email          string    `json:"email" validate:"omitempty,email"`
	Phone          string    `json:"phone"`
	Role           StaffRole `json:"role" validate:"required,staff_role"`
	Qualifications string    `json:"qualifications"`
	HiredAt        *Date     `json:"hired_at"`
}
