// Package middleware holds the gin middleware chain of the HTTP front-end.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/identity-server/internal/api/http/handler"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/security"
)

const (
	authenticatedKey = "identity.authenticated"
	// StateKey holds the security.State of the request.
	StateKey = "identity.auth_state"
)

// Authenticator resolves an Authorization header into a security context.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (context.Context, security.State)
}

// Authenticate runs the authenticator at most once per request and never
// rejects. RequireAuth decides what an unauthenticated request gets.
type Authenticate struct {
	authenticator Authenticator
	logger        *logger.Logger
}

func NewAuthenticate(authenticator Authenticator, logger *logger.Logger) *Authenticate {
	return &Authenticate{authenticator: authenticator, logger: logger}
}

func (m *Authenticate) Handle(c *gin.Context) {
	if c.GetBool(authenticatedKey) {
		return
	}
	c.Set(authenticatedKey, true)

	ctx, state := m.authenticator.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
	c.Request = c.Request.WithContext(ctx)
	c.Set(StateKey, state)

	if state == security.Invalid {
		m.logger.Debug("HTTP request carries an invalid bearer token",
			"path", c.FullPath())
	}
}

// RequireAuth rejects requests without a security context with 401.
func RequireAuth(contexts model.ContextManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := contexts.GetSecurityContext(c.Request.Context()); !ok {
			handler.WriteError(c, model.ErrInvalidToken)
			return
		}
		c.Next()
	}
}
