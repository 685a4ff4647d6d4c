package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

type RefreshTokenRepository struct {
	db *Connection
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const refreshTokenColumns = `id, token_hash, user_id, expires_at, created_at, revoked_at, revoked`

// Rotate locks the user's active token, revokes it and inserts next in one
// transaction. The partial unique index on (user_id) WHERE NOT revoked turns a
// lost race between two first-time rotations into ErrConflict.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, userID uuid.UUID, expected *uuid.UUID, next model.RefreshToken) error {
	const (
		lockQuery = `
        SELECT id FROM refresh_tokens
        WHERE user_id = $1 AND NOT revoked
        FOR UPDATE
    `
		revokeQuery = `
        UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
        WHERE user_id = $1 AND NOT revoked
    `
		insertQuery = `
        INSERT INTO refresh_tokens (id, token_hash, user_id, expires_at, created_at, revoked_at, revoked)
        VALUES ($1, $2, $3, $4, $5, NULL, FALSE)
    `
	)

	err := r.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		active, err := lockedIDs(ctx, tx, lockQuery, userID)
		if err != nil {
			return fmt.Errorf("failed to lock active refresh token: %w", err)
		}

		if expected != nil && !containsID(active, *expected) {
			return model.ErrNotFound
		}

		if len(active) > 0 {
			if _, err := tx.ExecContext(ctx, revokeQuery, userID, next.CreatedAt); err != nil {
				return fmt.Errorf("failed to revoke active refresh token: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, insertQuery,
			next.ID, next.TokenHash, userID, next.ExpiresAt, next.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to create refresh token: %w", err)
		}

		return nil
	})

	return translate(err)
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to get refresh token by hash: %w", translate(err))
	}
	return rt, nil
}

func (r *RefreshTokenRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (model.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE user_id = $1 AND NOT revoked`

	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to get active refresh token: %w", translate(err))
	}
	return rt, nil
}

func (r *RefreshTokenRepository) DeleteByHash(ctx context.Context, hash string) error {
	const query = `DELETE FROM refresh_tokens WHERE token_hash = $1`

	if _, err := r.db.ExecContext(ctx, query, hash); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", translate(err))
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteInactiveBefore(ctx context.Context, threshold time.Time) (int64, error) {
	const query = `
        DELETE FROM refresh_tokens
        WHERE (revoked AND revoked_at < $1) OR expires_at < $1
    `

	res, err := r.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale refresh tokens: %w", translate(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted refresh tokens: %w", err)
	}
	return n, nil
}

func lockedIDs(ctx context.Context, tx *sql.Tx, query string, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func scanRefreshToken(row *sql.Row) (model.RefreshToken, error) {
	var rt model.RefreshToken
	err := row.Scan(
		&rt.ID, &rt.TokenHash, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt, &rt.RevokedAt, &rt.Revoked,
	)
	return rt, err
}
