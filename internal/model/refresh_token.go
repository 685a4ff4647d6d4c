package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenRepository persists refresh token records.
//
// Rotate is the only write path for new records: in one unit of work it revokes
// the user's active record and inserts next. When expected is not nil the
// active record must have that ID, otherwise ErrNotFound is returned and
// nothing changes. Implementations return ErrConflict when a concurrent
// rotation for the same user won.
type RefreshTokenRepository interface {
	Rotate(ctx context.Context, userID uuid.UUID, expected *uuid.UUID, next RefreshToken) error
	GetByHash(ctx context.Context, hash string) (RefreshToken, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (RefreshToken, error)
	DeleteByHash(ctx context.Context, hash string) error
	DeleteInactiveBefore(ctx context.Context, threshold time.Time) (int64, error)
}

// RefreshToken is a persisted refresh token. Only the hash of the secret is stored.
type RefreshToken struct {
	ID        uuid.UUID
	TokenHash string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
	Revoked   bool
}

// Active reports whether the record can still be exchanged at now.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
