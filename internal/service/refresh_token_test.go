package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/mocks"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/repository/memory"
	"github.com/dtroode/identity-server/internal/testutil"
)

const testRefreshTTL = 7 * 24 * time.Hour

func newRefreshTokens(store model.RefreshTokenRepository) *RefreshTokens {
	return NewRefreshTokens(store, testRefreshTTL, time.Second, testutil.MakeNoopLogger())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRefreshTokens_Create(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRefreshTokenRepository()
	s := newRefreshTokens(store)
	userID := uuid.New()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	raw, err := s.Create(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, raw, 43)

	rt, err := store.GetByHash(ctx, Hash(raw))
	require.NoError(t, err)
	assert.NotEqual(t, raw, rt.TokenHash)
	assert.Len(t, rt.TokenHash, 64)
	assert.Equal(t, userID, rt.UserID)
	assert.Equal(t, now.Add(testRefreshTTL), rt.ExpiresAt)
	assert.False(t, rt.Revoked)
}

func TestRefreshTokens_CreateRevokesPrevious(t *testing.T) {
	ctx := context.Background()
	s := newRefreshTokens(memory.NewRefreshTokenRepository())
	userID := uuid.New()

	first, err := s.Create(ctx, userID)
	require.NoError(t, err)
	second, err := s.Create(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = s.Validate(ctx, first)
	require.ErrorIs(t, err, model.ErrInvalidRefreshToken)

	rt, err := s.Validate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, userID, rt.UserID)
}

func TestRefreshTokens_ConcurrentCreateKeepsOneActive(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRefreshTokenRepository()
	s := newRefreshTokens(store)
	userID := uuid.New()

	const workers = 16
	raws := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := s.Create(ctx, userID)
			assert.NoError(t, err)
			raws[i] = raw
		}()
	}
	wg.Wait()

	valid := 0
	for _, raw := range raws {
		if _, err := s.Validate(ctx, raw); err == nil {
			valid++
		}
	}
	assert.Equal(t, 1, valid)
}

func TestRefreshTokens_ReplaceIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := newRefreshTokens(memory.NewRefreshTokenRepository())

	raw, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)

	record, err := s.Validate(ctx, raw)
	require.NoError(t, err)

	next, err := s.Replace(ctx, record)
	require.NoError(t, err)

	_, err = s.Validate(ctx, raw)
	require.ErrorIs(t, err, model.ErrInvalidRefreshToken)

	_, err = s.Replace(ctx, record)
	require.ErrorIs(t, err, model.ErrInvalidRefreshToken)

	_, err = s.Validate(ctx, next)
	require.NoError(t, err)
}

func TestRefreshTokens_ConcurrentReplaceOneWins(t *testing.T) {
	ctx := context.Background()
	s := newRefreshTokens(memory.NewRefreshTokenRepository())

	raw, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)

	// both callers pass validation before either rotates
	first, err := s.Validate(ctx, raw)
	require.NoError(t, err)
	second, err := s.Validate(ctx, raw)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, record := range []model.RefreshToken{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Replace(ctx, record)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, model.ErrInvalidRefreshToken)
	}
	assert.Equal(t, 1, succeeded)
}

func TestRefreshTokens_ValidateCollapsesFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRefreshTokenRepository()
	s := newRefreshTokens(store)
	now := time.Now()
	s.now = func() time.Time { return now }

	revoked, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)
	rec, err := s.Validate(ctx, revoked)
	require.NoError(t, err)
	_, err = s.Replace(ctx, rec)
	require.NoError(t, err)

	expired, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(testRefreshTTL) }
	_, err = s.Validate(ctx, expired)
	require.ErrorIs(t, err, model.ErrInvalidRefreshToken)

	s.now = func() time.Time { return now }
	tests := []struct {
		name string
		raw  string
	}{
		{name: "never issued", raw: "never-issued"},
		{name: "revoked", raw: revoked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Validate(ctx, tt.raw)
			require.ErrorIs(t, err, model.ErrInvalidRefreshToken)
			assert.Equal(t, model.ErrInvalidRefreshToken.Error(), err.Error())
		})
	}
}

func TestRefreshTokens_ValidateStoreFailure(t *testing.T) {
	store := &mocks.RefreshTokenRepository{}
	store.On("GetByHash", mock.Anything, Hash("raw")).Return(model.RefreshToken{}, model.ErrTransient)

	_, err := newRefreshTokens(store).Validate(context.Background(), "raw")
	require.ErrorIs(t, err, model.ErrInvalidRefreshToken)
	assert.NotErrorIs(t, err, model.ErrTransient)
	store.AssertExpectations(t)
}

func TestRefreshTokens_RetriesConflictOnce(t *testing.T) {
	userID := uuid.New()

	t.Run("second attempt succeeds", func(t *testing.T) {
		store := &mocks.RefreshTokenRepository{}
		store.On("Rotate", mock.Anything, userID, (*uuid.UUID)(nil), mock.Anything).Return(model.ErrConflict).Once()
		store.On("Rotate", mock.Anything, userID, (*uuid.UUID)(nil), mock.Anything).Return(nil).Once()

		raw, err := newRefreshTokens(store).Create(context.Background(), userID)
		require.NoError(t, err)
		assert.NotEmpty(t, raw)
		store.AssertExpectations(t)
	})

	t.Run("repeated conflict is transient", func(t *testing.T) {
		store := &mocks.RefreshTokenRepository{}
		store.On("Rotate", mock.Anything, userID, (*uuid.UUID)(nil), mock.Anything).Return(model.ErrConflict).Twice()

		_, err := newRefreshTokens(store).Create(context.Background(), userID)
		require.ErrorIs(t, err, model.ErrTransient)
		store.AssertExpectations(t)
	})
}

func TestRefreshTokens_RotationOutlivesCaller(t *testing.T) {
	store := memory.NewRefreshTokenRepository()
	s := newRefreshTokens(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)

	_, err = s.Validate(context.Background(), raw)
	require.NoError(t, err)
}

func TestRefreshTokens_RandomFailure(t *testing.T) {
	s := newRefreshTokens(memory.NewRefreshTokenRepository())
	s.random = failingReader{}

	_, err := s.Create(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate refresh token")
}

func TestRefreshTokens_Delete(t *testing.T) {
	ctx := context.Background()
	s := newRefreshTokens(memory.NewRefreshTokenRepository())

	raw, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, raw))
	require.NoError(t, s.Delete(ctx, raw))

	_, err = s.Validate(ctx, raw)
	require.ErrorIs(t, err, model.ErrInvalidRefreshToken)
}

func TestRefreshTokens_CleanupKeepsRetentionWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRefreshTokenRepository()
	s := NewRefreshTokens(store, time.Hour, time.Second, testutil.MakeNoopLogger())
	retention := 30 * 24 * time.Hour

	start := time.Now()
	s.now = func() time.Time { return start }
	stale, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)

	s.now = func() time.Time { return start.Add(retention) }
	recent, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)

	s.now = func() time.Time { return start.Add(retention + 2*time.Hour) }
	n, err := s.Cleanup(ctx, retention)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.GetByHash(ctx, Hash(stale))
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = store.GetByHash(ctx, Hash(recent))
	require.NoError(t, err)
}

func TestRefreshTokens_NeverLogsSecret(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	s := NewRefreshTokens(memory.NewRefreshTokenRepository(), time.Hour, time.Second, logger.NewWithWriter(&buf, -4))

	raw, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)
	rec, err := s.Validate(ctx, raw)
	require.NoError(t, err)
	_, err = s.Replace(ctx, rec)
	require.NoError(t, err)
	_, err = s.Validate(ctx, raw)
	require.Error(t, err)

	assert.NotEmpty(t, buf.String())
	assert.NotContains(t, buf.String(), raw)
	assert.NotContains(t, buf.String(), Hash(raw))
}
