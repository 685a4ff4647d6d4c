// Package handler implements the HTTP endpoints of the identity service.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/validation"
)

// AuthService is the login orchestration the handlers depend on.
type AuthService interface {
	Login(ctx context.Context, identifier, secret string) (model.TokenPair, error)
	Refresh(ctx context.Context, raw string) (model.TokenPair, error)
	Logout(ctx context.Context, raw string) error
	Profile(ctx context.Context, email string) (model.Profile, error)
}

// UserService registers accounts.
type UserService interface {
	Register(ctx context.Context, r model.Registration) (model.Profile, error)
}

// Auth serves the credential endpoints.
type Auth struct {
	auth     AuthService
	users    UserService
	contexts model.ContextManager
	logger   *logger.Logger
}

func NewAuth(auth AuthService, users UserService, contexts model.ContextManager, logger *logger.Logger) *Auth {
	return &Auth{
		auth:     auth,
		users:    users,
		contexts: contexts,
		logger:   logger,
	}
}

// LoginRequest accepts email/password as aliases of identifier/secret.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresInMs  int64  `json:"expiresInMs"`
}

func (h *Auth) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req, model.ErrAuthenticationFailed) {
		return
	}

	identifier, secret := req.Identifier, req.Secret
	if identifier == "" {
		identifier = req.Email
	}
	if secret == "" {
		secret = req.Password
	}

	pair, err := h.auth.Login(c.Request.Context(), identifier, secret)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse(pair))
}

func (h *Auth) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bind(c, &req, model.ErrInvalidRefreshToken) {
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse(pair))
}

func (h *Auth) Logout(c *gin.Context) {
	var req RefreshRequest
	if !bind(c, &req, model.ErrInvalidRefreshToken) {
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		WriteError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Auth) Register(c *gin.Context) {
	var req model.Registration
	if !bind(c, &req, validation.Errors{{Field: "body", Message: "malformed JSON"}}) {
		return
	}

	profile, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, profile)
}

// Me returns the profile of the authenticated caller.
func (h *Auth) Me(c *gin.Context) {
	sc, ok := h.contexts.GetSecurityContext(c.Request.Context())
	if !ok {
		WriteError(c, model.ErrInvalidToken)
		return
	}

	profile, err := h.auth.Profile(c.Request.Context(), sc.Subject)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// bind decodes the JSON body into dst. On failure it writes onError, so the
// credential endpoints answer an unreadable body the same way as a wrong secret.
func bind(c *gin.Context, dst any, onError error) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		WriteError(c, onError)
		return false
	}
	return true
}

func tokenResponse(pair model.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresInMs:  pair.ExpiresIn.Milliseconds(),
	}
}
