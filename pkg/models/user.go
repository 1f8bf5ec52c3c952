// Package models contains domain types for encounter-engine.
package models

import "time"

// User represents a record in the user directory. Users are identified
// by username; the username is immutable after creation.
type User struct {
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserPatch carries the mutable user fields for a directory update.
// Nil fields are left unchanged.
type UserPatch struct {
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

// Role constants carried in JWT claims.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Actor is the authenticated caller identity, extracted from JWT claims
// by the auth middleware and passed explicitly into the service layer.
type Actor struct {
	Username string
	Admin    bool
}

// CanActFor reports whether the actor may operate on resources owned by
// the given username.
func (a Actor) CanActFor(username string) bool {
	return a.Admin || a.Username == username
}
