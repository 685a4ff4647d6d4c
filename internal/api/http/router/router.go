// Package router assembles the gin engine.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/dtroode/identity-server/internal/api/http/handler"
	"github.com/dtroode/identity-server/internal/api/http/middleware"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

// Router wires handlers and middleware into a gin engine.
type Router struct {
	auth          handler.AuthService
	users         handler.UserService
	authenticator middleware.Authenticator
	contexts      model.ContextManager
	health        *handler.Health
	logger        *logger.Logger
}

func New(
	auth handler.AuthService,
	users handler.UserService,
	authenticator middleware.Authenticator,
	contexts model.ContextManager,
	health *handler.Health,
	logger *logger.Logger,
) *Router {
	return &Router{
		auth:          auth,
		users:         users,
		authenticator: authenticator,
		contexts:      contexts,
		health:        health,
		logger:        logger,
	}
}

// Register builds the engine. Credential routes are served under /api/users
// and at the root.
func (r *Router) Register() *gin.Engine {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.authenticator, r.logger)
	requireAuth := middleware.RequireAuth(r.contexts)
	authHandler := handler.NewAuth(r.auth, r.users, r.contexts, r.logger)

	e := gin.New()
	e.Use(middleware.Recovery(r.logger), logging.Handle, authenticate.Handle)

	for _, prefix := range []string{"/api/users", ""} {
		g := e.Group(prefix)
		g.POST("/register", authHandler.Register)
		g.POST("/login", authHandler.Login)
		g.POST("/refresh", authHandler.Refresh)
		g.POST("/logout", authHandler.Logout)
		g.GET("/me", authenticate.Handle, requireAuth, authHandler.Me)
	}

	e.GET("/healthz", r.health.Check)

	e.NoRoute(handler.NotFound)

	return e
}
