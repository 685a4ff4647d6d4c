package middleware

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/security"
)

// Authenticator resolves an authorization value into a security context.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (context.Context, security.State)
}

// Authenticate validates bearer tokens and installs the security context.
type Authenticate struct {
	authenticator Authenticator
	logger        *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(authenticator Authenticator, logger *logger.Logger) *Authenticate {
	return &Authenticate{authenticator: authenticator, logger: logger}
}

// AuthFunc reads the authorization metadata and rejects calls that do not
// carry a valid bearer token.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}
	}

	next, state := m.authenticator.Authenticate(ctx, header)
	switch state {
	case security.Valid:
		return next, nil
	case security.NoHeader:
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	default:
		m.logger.Debug("gRPC call carries an invalid bearer token")
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
}

// RequiresAuth selects the methods AuthFunc guards. Login, Refresh, Logout and
// health checks stay public.
func RequiresAuth(protected ...string) func(context.Context, interceptors.CallMeta) bool {
	set := make(map[string]struct{}, len(protected))
	for _, m := range protected {
		set[m] = struct{}{}
	}
	return func(_ context.Context, c interceptors.CallMeta) bool {
		_, ok := set[c.FullMethod()]
		return ok
	}
}
