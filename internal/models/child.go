package models

import "time"

// Child is an enrolled child. Every child has exactly one parent account.
type Child struct {
	ID                    string    `db:"id" json:"id"`
	FirstName             string    `db:"first_name" json:"first_name"`
	LastName              string    `db:"last_name" json:"last_name"`
	DOB                   Date      `db:"dob" json:"dob"`
	Gender                string    `db:"gender" json:"gender"`
	Allergies             string    `db:"allergies" json:"allergies"`
	MedicalNotes          string    `db:"medical_notes" json:"medical_notes"`
	EmergencyContactName  string    `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string    `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	ParentID              string    `db:"parent_id" json:"parent_id"`
	AssignedTeacherID     *string   `db:"assigned_teacher_id" json:"assigned_teacher_id,omitempty"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

func (c Child) OwnerID() string { return c.ParentID }

// FullName joins first and last name.
func (c Child) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ChildFilter narrows child listings.
type ChildFilter struct {
	ParentID  string
	TeacherID string
	Active    *bool
	Page      int
	PageSize  int
}

// ChildRequest is used for both creating and replacing a child record.
type ChildRequest struct {
	FirstName             string  `json:"first_name" validate:"required"`
	LastName              string  `json:"last_name" validate:"required"`
	DOB                   Date    `json:"dob" validate:"required"`
	Gender                string  `json:"gender"`
	Allergies             string  `json:"allergies"`
	MedicalNotes          string  `json:"medical_notes"`
	EmergencyContactName  string  `json:"emergency_contact_name"`
	EmergencyContactPhone string  `json:"emergency_contact_phone"`
	ParentID              string  `json:"parent_id" validate:"required"`
	AssignedTeacherID     *string `json:"assigned_teacher_id"`
	IsActive              *bool   `json:"is_active"`
}
