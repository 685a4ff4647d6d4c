package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

// CredentialVerifier checks an identifier/secret pair and returns the matching user.
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, secret string) (model.User, error)
}

var _ CredentialVerifier = (*PasswordVerifier)(nil)

// PasswordVerifier compares secrets against bcrypt hashes held by the user store.
type PasswordVerifier struct {
	users  model.UserStore
	logger *logger.Logger
}

func NewPasswordVerifier(users model.UserStore, logger *logger.Logger) *PasswordVerifier {
	return &PasswordVerifier{users: users, logger: logger}
}

// dummyHash is compared against when the identifier is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("identity-server-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

func (v *PasswordVerifier) Verify(ctx context.Context, identifier, secret string) (model.User, error) {
	user, err := v.users.GetByEmail(ctx, identifier)
	if errors.Is(err, model.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(secret))
		v.logger.Info("Credential verifier: unknown identifier")
		return model.User{}, model.ErrAuthenticationFailed
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(secret)); err != nil {
		v.logger.Info("Credential verifier: password mismatch",
			"user_id", user.ID)
		return model.User{}, model.ErrAuthenticationFailed
	}

	return user, nil
}
