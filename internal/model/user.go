package model

import (
	"database/sql"
	"time"
)

// Roles stored in users.role.  Tour mutations are restricted to admin and
// lead-guide; review creation to plain users.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// ValidRole reports whether s is one of the enumerated roles.
func ValidRole(s string) bool {
	switch s {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

// User mirrors the 'users' table.  The password hash and the refresh/reset
// slots are never serialized to clients.  RefreshTokenHash holds the sha256
// of the single active refresh token; overwriting it invalidates the
// previous session.
type User struct {
	ID                uint64       `json:"id"`
	Name              string       `json:"name"`
	Email             string       `json:"email"`
	PasswordHash      string       `json:"-"`
	Role              string       `json:"role"`
	Photo             string       `json:"photo,omitempty"`
	Active            bool         `json:"-"`
	PasswordChangedAt sql.NullTime `json:"-"`
	RefreshTokenHash  string       `json:"-"`
	RefreshExpiresAt  sql.NullTime `json:"-"`
	ResetTokenHash    string       `json:"-"`
	ResetExpiresAt    sql.NullTime `json:"-"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"-"`
}

// ChangedPasswordAfter reports whether the password was changed strictly
// after the given token issue time.  JWT iat has second granularity, so a
// token minted in the same second as the change is still honored.
func (u User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if !u.PasswordChangedAt.Valid {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Time.Unix()
}
