package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/identity-server/internal/model"
)

var _ model.TokenCodec = (*TokenCodec)(nil)

// TokenCodec mocks model.TokenCodec.
type TokenCodec struct {
	mock.Mock
}

// NewTokenCodec returns a mock whose expectations are asserted at cleanup.
func NewTokenCodec(t interface {
	mock.TestingT
	Cleanup(func())
}) *TokenCodec {
	m := &TokenCodec{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *TokenCodec) Generate(subject string, claims map[string]any, ttl time.Duration) (string, error) {
	args := m.Called(subject, claims, ttl)
	return args.String(0), args.Error(1)
}

func (m *TokenCodec) Validate(token, expectedSubject string) (bool, error) {
	args := m.Called(token, expectedSubject)
	return args.Bool(0), args.Error(1)
}

func (m *TokenCodec) ExtractSubject(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}
