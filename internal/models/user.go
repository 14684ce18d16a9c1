package models

import "time"

type User struct {
	ID              string
	Email           string
	PasswordHash    []byte
	GoogleID        *string
	FirstName       string
	LastName        string
	AvatarURL       *string
	IsEmailVerified bool
	IsSuspended     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time

	// Roles is populated only by the *WithRoles repository lookups.
	Roles []Role
}

// HasPassword reports whether the account can log in with a password
// (false for OAuth-only accounts).
func (u User) HasPassword() bool {
	return len(u.PasswordHash) > 0
}

type Role struct {
	ID          string
	Name        string
	Description string
	IsSystem    bool
	Permissions []Permission
}

// Permission is an atomic capability in resource:action form, e.g. "events:create".
type Permission struct {
	ID          string
	Name        string
	Description string
}

// RefreshToken is one active session: a hash of the raw refresh secret plus
// the device metadata captured at issuance. The raw value is never persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash []byte
	UserAgent string
	IPAddress string
	CreatedAt time.Time
	ExpiresAt time.Time
}
