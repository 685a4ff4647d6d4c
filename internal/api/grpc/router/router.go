package router

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dtroode/identity-server/internal/api/grpc/handler"
	"github.com/dtroode/identity-server/internal/api/grpc/identity"
	"github.com/dtroode/identity-server/internal/api/grpc/middleware"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

// Router manages gRPC service registration and interceptor configuration.
type Router struct {
	authService    handler.AuthService
	authenticator  middleware.Authenticator
	contextManager model.ContextManager
	health         *health.Server
	logger         *logger.Logger
}

// New creates new gRPC Router instance.
func New(
	authService handler.AuthService,
	authenticator middleware.Authenticator,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:    authService,
		authenticator:  authenticator,
		contextManager: contextManager,
		health:         health.NewServer(),
		logger:         logger,
	}
}

// Health exposes the grpc.health.v1 server so callers can flip serving status.
func (r *Router) Health() *health.Server {
	return r.health
}

// Register builds the gRPC server with logging, recovery and authentication
// interceptors. Only identity.v1.Auth/Me requires a bearer token.
func (r *Router) Register(opts ...grpc.ServerOption) *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.authenticator, r.logger)
	protected := selector.MatchFunc(middleware.RequiresAuth(identity.MeFullMethod))
	recoveryOpt := recovery.WithRecoveryHandlerContext(func(_ context.Context, p any) error {
		r.logger.Error("gRPC handler panicked",
			"panic", fmt.Sprint(p))
		return status.Error(codes.Internal, "internal server error")
	})

	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			logging.HandleGRPC,
			recovery.UnaryServerInterceptor(recoveryOpt),
			selector.UnaryServerInterceptor(auth.UnaryServerInterceptor(authenticate.AuthFunc), protected),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpt),
			selector.StreamServerInterceptor(auth.StreamServerInterceptor(authenticate.AuthFunc), protected),
		),
	)

	s := grpc.NewServer(opts...)
	identity.RegisterAuthServer(s, handler.NewAuth(r.authService, r.contextManager, r.logger))
	healthpb.RegisterHealthServer(s, r.health)
	r.health.SetServingStatus(identity.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}
