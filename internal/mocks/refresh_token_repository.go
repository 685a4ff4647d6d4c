package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

// RefreshTokenRepository mocks model.RefreshTokenRepository.
type RefreshTokenRepository struct {
	mock.Mock
}

// NewRefreshTokenRepository returns a mock whose expectations are asserted at cleanup.
func NewRefreshTokenRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *RefreshTokenRepository {
	m := &RefreshTokenRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *RefreshTokenRepository) Rotate(ctx context.Context, userID uuid.UUID, expected *uuid.UUID, next model.RefreshToken) error {
	args := m.Called(ctx, userID, expected, next)
	return args.Error(0)
}

func (m *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(model.RefreshToken), args.Error(1)
}

func (m *RefreshTokenRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (model.RefreshToken, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.RefreshToken), args.Error(1)
}

func (m *RefreshTokenRepository) DeleteByHash(ctx context.Context, hash string) error {
	args := m.Called(ctx, hash)
	return args.Error(0)
}

func (m *RefreshTokenRepository) DeleteInactiveBefore(ctx context.Context, threshold time.Time) (int64, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).(int64), args.Error(1)
}
