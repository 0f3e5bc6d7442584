package models

import (
	"time"

	"github.com/noah-isme/creche-api/pkg/navigation"
)

// UserRole is the stored role string of an account.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleParent UserRole = "parent"
)

// Navigation parses the stored role into the closed routing variant.
func (r UserRole) Navigation() navigation.Role {
	return navigation.ParseRole(string(r))
}

// User represents an application user stored in the users table.
type User struct {
	ID                    string     `db:"id" json:"id"`
	Email                 string     `db:"email" json:"email"`
	PasswordHash          string     `db:"password_hash" json:"password_hash,omitempty"`
	FullName              string     `db:"full_name" json:"full_name"`
	Role                  UserRole   `db:"role" json:"role"`
	Phone                 string     `db:"phone" json:"phone"`
	Address               string     `db:"address" json:"address"`
	EmergencyContactName  string     `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string     `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	IsActive              bool       `db:"is_active" json:"is_active"`
	LastLogin             *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// UserProfile is the outward view of a user; it never carries the password hash.
type UserProfile struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FullName              string     `json:"full_name"`
	Role                  UserRole   `json:"role"`
	Phone                 string     `json:"phone"`
	Address               string     `json:"address"`
	EmergencyContactName  string     `json:"emergency_contact_name"`
	EmergencyContactPhone string     `json:"emergency_contact_phone"`
	IsActive              bool       `json:"is_active"`
	LastLogin             *time.Time `json:"last_login,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Profile strips credentials from u.
func (u User) Profile() UserProfile {
	return UserProfile{
		ID:                    u.ID,
		Email:                 u.Email,
		FullName:              u.FullName,
		Role:                  u.Role,
		Phone:                 u.Phone,
		Address:               u.Address,
		EmergencyContactName:  u.EmergencyContactName,
		EmergencyContactPhone: u.EmergencyContactPhone,
		IsActive:              u.IsActive,
		LastLogin:             u.LastLogin,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Active   *bool
	Page     int
	PageSize int
}

// CreateUserRequest is the admin payload for provisioning an account.
type CreateUserRequest struct {
	Email                 string   `json:"email" validate:"required,email"`
	Password              string   `json:"password" validate:"required,min=8"`
	FullName              string   `json:"full_name" validate:"required"`
	Role                  UserRole `json:"role" validate:"required,user_role"`
	Phone                 string   `json:"phone"`
	Address               string   `json:"address"`
	EmergencyContactName  string   `json:"emergency_contact_name"`
	EmergencyContactPhone string   `json:"emergency_contact_phone"`
}

// SetActiveRequest toggles is_active on users, staff or children.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}
