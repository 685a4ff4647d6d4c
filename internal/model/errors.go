package model

import "errors"

var (
	// ErrNotFound is returned by stores when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAuthenticationFailed reports bad login credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInvalidToken reports an access token that is malformed, badly signed or expired.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidRefreshToken reports a refresh token that is unknown, revoked or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrUserAlreadyExists reports a registration for a taken e-mail or phone number.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrValidationFailed reports malformed input.
	ErrValidationFailed = errors.New("validation failed")
	// ErrTooManyAttempts reports a throttled login.
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrConflict is returned by stores when a concurrent write won the race.
	ErrConflict = errors.New("concurrent modification")
	// ErrTransient reports a retryable persistence failure (timeout, repeated conflict).
	ErrTransient = errors.New("temporarily unavailable")
)
