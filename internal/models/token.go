package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivationToken is an opaque one-time credential proving control of the
// registered email. At most one live token exists per user.
type ActivationToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PasswordResetToken is an opaque one-time credential; requesting a new one
// replaces any previous token of the same user.
type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RefreshToken is a server-side record of an issued refresh JWT. The signed
// value alone is not enough to be honored: the row must still exist.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair issued on login
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
