// Package security resolves bearer tokens into an authenticated identity.
package security

import (
	"context"
	"strings"
	"time"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

// State is the outcome of authenticating one request.
type State int

const (
	// NoHeader means no bearer credentials were presented.
	NoHeader State = iota
	// Extracted means a bearer token was found but not yet checked.
	Extracted
	// Valid means the token was accepted and a security context is installed.
	Valid
	// Invalid means a token was presented and rejected.
	Invalid
)

func (s State) String() string {
	switch s {
	case NoHeader:
		return "no_header"
	case Extracted:
		return "extracted"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

const bearerPrefix = "Bearer "

// Authenticator validates bearer tokens. It never fails a request itself;
// authorization checks further down decide what an empty context means.
type Authenticator struct {
	codec    model.TokenCodec
	users    model.UserStore
	contexts model.ContextManager
	timeout  time.Duration
	logger   *logger.Logger
}

func NewAuthenticator(codec model.TokenCodec, users model.UserStore, contexts model.ContextManager, timeout time.Duration, logger *logger.Logger) *Authenticator {
	return &Authenticator{
		codec:    codec,
		users:    users,
		contexts: contexts,
		timeout:  timeout,
		logger:   logger,
	}
}

// Authenticate inspects an Authorization header value and, when it carries a
// valid token, returns ctx with a security context attached. On any other
// outcome ctx is returned unchanged.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (context.Context, State) {
	raw, ok := BearerToken(header)
	if !ok {
		return ctx, NoHeader
	}

	subject, state := a.check(raw)
	if state != Valid {
		return ctx, state
	}

	if _, ok := a.contexts.GetSecurityContext(ctx); ok {
		return ctx, Valid
	}

	uctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user, err := a.users.GetByEmail(uctx, subject)
	if err != nil {
		a.logger.Debug("Authenticator: token subject not resolvable",
			"error", err.Error())
		return ctx, Invalid
	}

	return a.contexts.SetSecurityContext(ctx, model.SecurityContext{
		UserID:  user.ID,
		Subject: user.Email,
		Roles:   user.Roles,
	}), Valid
}

// check moves an Extracted token to Valid or Invalid.
func (a *Authenticator) check(raw string) (string, State) {
	subject, err := a.codec.ExtractSubject(raw)
	if err != nil {
		a.logger.Debug("Authenticator: rejected bearer token",
			"error", err.Error())
		return "", Invalid
	}

	ok, err := a.codec.Validate(raw, subject)
	if err != nil || !ok {
		a.logger.Debug("Authenticator: bearer token failed validation")
		return "", Invalid
	}

	return subject, Valid
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" {
		return "", false
	}
	return raw, true
}
