package model

import (
	"context"

	"github.com/google/uuid"
)

// SecurityContext is the authenticated identity attached to a request.
type SecurityContext struct {
	UserID  uuid.UUID
	Subject string
	Roles   []string
}

// HasRole reports whether the context carries role.
func (s SecurityContext) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type ContextManager interface {
	SetSecurityContext(ctx context.Context, sc SecurityContext) context.Context
	GetSecurityContext(ctx context.Context) (SecurityContext, bool)
}
