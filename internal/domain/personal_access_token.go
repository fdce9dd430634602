package domain

import "time"

// PersonalAccessToken is an API token provisioned out of band. Only the
// sha256 of the plain token is stored; a nil ExpiresAt means it never expires.
type PersonalAccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}
