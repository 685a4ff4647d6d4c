package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

const (
	refreshSecretBytes = 32
	rotateAttempts     = 2
)

// RefreshTokens issues, validates and retires opaque refresh tokens. Only the
// SHA-256 of a secret is persisted; the raw value leaves the service once.
type RefreshTokens struct {
	store   model.RefreshTokenRepository
	ttl     time.Duration
	timeout time.Duration
	logger  *logger.Logger

	now    func() time.Time
	random io.Reader
}

func NewRefreshTokens(store model.RefreshTokenRepository, ttl, timeout time.Duration, logger *logger.Logger) *RefreshTokens {
	return &RefreshTokens{
		store:   store,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		random:  rand.Reader,
	}
}

// Create revokes the user's active token, if any, and issues a new one.
func (s *RefreshTokens) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.rotate(ctx, userID, nil)
}

// Replace issues a successor for previous. It fails with ErrInvalidRefreshToken
// when previous is no longer the user's active token, so two callers racing
// with the same secret cannot both succeed.
func (s *RefreshTokens) Replace(ctx context.Context, previous model.RefreshToken) (string, error) {
	raw, err := s.rotate(ctx, previous.UserID, &previous.ID)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Info("Refresh tokens: token was rotated concurrently",
			"token_id", previous.ID,
			"user_id", previous.UserID)
		return "", model.ErrInvalidRefreshToken
	}
	return raw, err
}

// Validate resolves a raw secret to its record. Every failure is reported as
// ErrInvalidRefreshToken; the reason is only logged.
func (s *RefreshTokens) Validate(ctx context.Context, raw string) (model.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rt, err := s.store.GetByHash(ctx, Hash(raw))
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("Refresh tokens: unknown token presented")
		return model.RefreshToken{}, model.ErrInvalidRefreshToken
	}
	if err != nil {
		s.logger.Error("Refresh tokens: failed to look up token",
			"error", err.Error())
		return model.RefreshToken{}, model.ErrInvalidRefreshToken
	}

	if rt.Revoked {
		s.logger.Info("Refresh tokens: revoked token presented",
			"token_id", rt.ID,
			"user_id", rt.UserID)
		return model.RefreshToken{}, model.ErrInvalidRefreshToken
	}
	if !rt.Active(s.now()) {
		s.logger.Info("Refresh tokens: expired token presented",
			"token_id", rt.ID,
			"user_id", rt.UserID,
			"expires_at", rt.ExpiresAt)
		return model.RefreshToken{}, model.ErrInvalidRefreshToken
	}

	return rt, nil
}

// Delete removes the record for raw. Unknown tokens are ignored.
func (s *RefreshTokens) Delete(ctx context.Context, raw string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.DeleteByHash(ctx, Hash(raw)); err != nil {
		s.logger.Error("Refresh tokens: failed to delete token",
			"error", err.Error())
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// Cleanup removes records that were revoked or expired more than retention ago.
func (s *RefreshTokens) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := s.now().Add(-retention)

	n, err := s.store.DeleteInactiveBefore(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale refresh tokens: %w", err)
	}
	return n, nil
}

func (s *RefreshTokens) rotate(ctx context.Context, userID uuid.UUID, expected *uuid.UUID) (string, error) {
	// The rotation must finish even if the caller goes away.
	base := context.WithoutCancel(ctx)

	for attempt := 1; attempt <= rotateAttempts; attempt++ {
		raw, err := s.newSecret()
		if err != nil {
			return "", err
		}

		now := s.now()
		next := model.RefreshToken{
			ID:        uuid.New(),
			TokenHash: Hash(raw),
			UserID:    userID,
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
		}

		rctx, cancel := context.WithTimeout(base, s.timeout)
		err = s.store.Rotate(rctx, userID, expected, next)
		cancel()

		switch {
		case err == nil:
			s.logger.Debug("Refresh tokens: token issued",
				"token_id", next.ID,
				"user_id", userID)
			return raw, nil
		case errors.Is(err, model.ErrConflict):
			s.logger.Warn("Refresh tokens: concurrent rotation detected",
				"user_id", userID,
				"attempt", attempt)
			continue
		case errors.Is(err, model.ErrNotFound):
			return "", err
		default:
			s.logger.Error("Refresh tokens: failed to rotate token",
				"user_id", userID,
				"error", err.Error())
			return "", fmt.Errorf("failed to rotate refresh token: %w", err)
		}
	}

	return "", fmt.Errorf("failed to rotate refresh token after %d attempts: %w", rotateAttempts, model.ErrTransient)
}

func (s *RefreshTokens) newSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash returns the hex SHA-256 digest under which a raw refresh token is stored.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
