package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/validation"
)

// Auth turns credentials into token pairs and rotates them on refresh.
type Auth struct {
	users       model.UserStore
	credentials CredentialVerifier
	codec       model.TokenCodec
	refresh     *RefreshTokens
	throttle    Throttle
	accessTTL   time.Duration
	timeout     time.Duration
	logger      *logger.Logger
}

func NewAuth(
	users model.UserStore,
	credentials CredentialVerifier,
	codec model.TokenCodec,
	refresh *RefreshTokens,
	throttle Throttle,
	accessTTL time.Duration,
	timeout time.Duration,
	logger *logger.Logger,
) *Auth {
	if throttle == nil {
		throttle = NoThrottle{}
	}
	return &Auth{
		users:       users,
		credentials: credentials,
		codec:       codec,
		refresh:     refresh,
		throttle:    throttle,
		accessTTL:   accessTTL,
		timeout:     timeout,
		logger:      logger,
	}
}

func (a *Auth) Login(ctx context.Context, identifier, secret string) (model.TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if err := validation.Login(identifier, secret); err != nil {
		a.logger.Debug("Auth service: login rejected",
			"error", err.Error())
		return model.TokenPair{}, model.ErrAuthenticationFailed
	}

	a.logger.Debug("Auth service: starting login")

	if err := a.throttle.Check(ctx, identifier); err != nil {
		a.logger.Info("Auth service: login throttled")
		return model.TokenPair{}, err
	}

	vctx, cancel := context.WithTimeout(ctx, a.timeout)
	user, err := a.credentials.Verify(vctx, identifier, secret)
	cancel()
	if errors.Is(err, model.ErrAuthenticationFailed) {
		a.throttle.Fail(ctx, identifier)
		return model.TokenPair{}, model.ErrAuthenticationFailed
	}
	if err != nil {
		a.logger.Error("Auth service: failed to verify credentials",
			"error", err.Error())
		return model.TokenPair{}, fmt.Errorf("failed to verify credentials: %w", err)
	}
	a.throttle.Reset(ctx, identifier)

	access, err := a.issueAccess(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := a.refresh.Create(ctx, user.ID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	a.logger.Info("Auth service: login completed successfully",
		"user_id", user.ID)

	return a.pair(access, refresh), nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same step that issues its successor.
func (a *Auth) Refresh(ctx context.Context, raw string) (model.TokenPair, error) {
	if err := validation.RefreshToken(raw); err != nil {
		a.logger.Debug("Auth service: refresh rejected",
			"error", err.Error())
		return model.TokenPair{}, model.ErrInvalidRefreshToken
	}

	record, err := a.refresh.Validate(ctx, raw)
	if err != nil {
		return model.TokenPair{}, err
	}

	uctx, cancel := context.WithTimeout(ctx, a.timeout)
	user, err := a.users.GetByID(uctx, record.UserID)
	cancel()
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			a.logger.Warn("Auth service: refresh token owner no longer exists",
				"user_id", record.UserID)
		} else {
			a.logger.Error("Auth service: failed to load refresh token owner",
				"user_id", record.UserID,
				"error", err.Error())
		}
		return model.TokenPair{}, model.ErrInvalidRefreshToken
	}

	access, err := a.issueAccess(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	next, err := a.refresh.Replace(ctx, record)
	if err != nil {
		if errors.Is(err, model.ErrInvalidRefreshToken) {
			return model.TokenPair{}, err
		}
		return model.TokenPair{}, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	a.logger.Info("Auth service: tokens refreshed",
		"user_id", user.ID)

	return a.pair(access, next), nil
}

// Logout forgets the refresh token. Unknown tokens are not an error.
func (a *Auth) Logout(ctx context.Context, raw string) error {
	if err := validation.RefreshToken(raw); err != nil {
		return model.ErrInvalidRefreshToken
	}
	return a.refresh.Delete(ctx, raw)
}

// Profile returns the public view of the authenticated subject.
func (a *Auth) Profile(ctx context.Context, email string) (model.Profile, error) {
	uctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user, err := a.users.GetByEmail(uctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return model.Profile{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user.Profile(), nil
}

func (a *Auth) issueAccess(user model.User) (string, error) {
	claims := map[string]any{
		"roles": user.Roles,
		"uid":   user.ID.String(),
	}

	access, err := a.codec.Generate(user.Email, claims, a.accessTTL)
	if err != nil {
		a.logger.Error("Auth service: failed to generate access token",
			"user_id", user.ID,
			"error", err.Error())
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return access, nil
}

func (a *Auth) pair(access, refresh string) model.TokenPair {
	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    model.TokenType,
		ExpiresIn:    a.accessTTL,
	}
}
