package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

// RefreshTokenRepository keeps refresh tokens in process memory. A single mutex
// serializes rotations, so at most one record per user is ever active.
type RefreshTokenRepository struct {
	mu     sync.Mutex
	byHash map[string]model.RefreshToken
	active map[uuid.UUID]string
}

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{
		byHash: make(map[string]model.RefreshToken),
		active: make(map[uuid.UUID]string),
	}
}

func (r *RefreshTokenRepository) Rotate(ctx context.Context, userID uuid.UUID, expected *uuid.UUID, next model.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return model.ErrTransient
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, hasActive := r.activeFor(userID)
	if expected != nil && (!hasActive || current.ID != *expected) {
		return model.ErrNotFound
	}
	if _, ok := r.byHash[next.TokenHash]; ok {
		return model.ErrConflict
	}

	if hasActive {
		revokedAt := next.CreatedAt
		current.Revoked = true
		current.RevokedAt = &revokedAt
		r.byHash[current.TokenHash] = current
	}

	next.UserID = userID
	next.Revoked = false
	next.RevokedAt = nil
	r.byHash[next.TokenHash] = next
	r.active[userID] = next.TokenHash

	return nil
}

func (r *RefreshTokenRepository) GetByHash(_ context.Context, hash string) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.byHash[hash]
	if !ok {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return rt, nil
}

func (r *RefreshTokenRepository) GetActiveByUser(_ context.Context, userID uuid.UUID) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.activeFor(userID)
	if !ok {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return rt, nil
}

func (r *RefreshTokenRepository) DeleteByHash(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(hash)
	return nil
}

func (r *RefreshTokenRepository) DeleteInactiveBefore(_ context.Context, threshold time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, rt := range r.byHash {
		revokedLongAgo := rt.Revoked && rt.RevokedAt != nil && rt.RevokedAt.Before(threshold)
		if revokedLongAgo || rt.ExpiresAt.Before(threshold) {
			r.remove(hash)
			n++
		}
	}
	return n, nil
}

// activeFor must be called with mu held.
func (r *RefreshTokenRepository) activeFor(userID uuid.UUID) (model.RefreshToken, bool) {
	hash, ok := r.active[userID]
	if !ok {
		return model.RefreshToken{}, false
	}
	rt, ok := r.byHash[hash]
	if !ok || rt.Revoked {
		return model.RefreshToken{}, false
	}
	return rt, true
}

// remove must be called with mu held.
func (r *RefreshTokenRepository) remove(hash string) {
	rt, ok := r.byHash[hash]
	if !ok {
		return
	}
	delete(r.byHash, hash)
	if r.active[rt.UserID] == hash {
		delete(r.active, rt.UserID)
	}
}
