package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClientInfo identifies the device behind a session request. It is filled
// from the connection, never from the body.
type ClientInfo struct {
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginRequest carries the credentials of an admin or parent account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ClientInfo
}

// RefreshTokenRequest presents a refresh token, either to rotate it or to end
// its session.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	ClientInfo
}

// TokenPair is what every successful sign-in or rotation hands back.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ExpiresAt is the instant the access token stops being accepted.
func (p TokenPair) ExpiresAt() time.Time {
	return p.IssuedAt.Add(time.Duration(p.ExpiresIn) * time.Second)
}

// LoginResponse adds the signed-in account and its landing dashboard.
type LoginResponse struct {
	TokenPair
	User        UserInfo `json:"user"`
	Destination string   `json:"destination"`
}

// RefreshTokenResponse is the rotated pair.
type RefreshTokenResponse struct {
	TokenPair
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// UserInfo is the public view of an account.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims is the access token payload. The role is re-checked against the
// stored account on every request.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// RouteResponse tells a client where a session should land.
type RouteResponse struct {
	SessionPresent bool   `json:"session_present"`
	Role           string `json:"role,omitempty"`
	Destination    string `json:"destination"`
}

// RefreshToken is a stored refresh session. Token holds the SHA-256 digest of
// the value given to the client; revoked rows stay for the audit trail.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}
