package security

import (
	"context"

	"github.com/dtroode/identity-server/internal/model"
)

type securityContextKey struct{}

var _ model.ContextManager = ContextManager{}

// ContextManager stores the authenticated identity in a context.Context.
type ContextManager struct{}

func NewContextManager() ContextManager {
	return ContextManager{}
}

func (ContextManager) SetSecurityContext(ctx context.Context, sc model.SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

func (ContextManager) GetSecurityContext(ctx context.Context) (model.SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(model.SecurityContext)
	return sc, ok
}
