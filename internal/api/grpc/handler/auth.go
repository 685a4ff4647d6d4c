package handler

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/identity-server/internal/api/grpc/identity"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

// AuthService defines login, refresh, logout and profile operations.
type AuthService interface {
	Login(ctx context.Context, identifier, secret string) (model.TokenPair, error)
	Refresh(ctx context.Context, raw string) (model.TokenPair, error)
	Logout(ctx context.Context, raw string) error
	Profile(ctx context.Context, email string) (model.Profile, error)
}

var _ identity.AuthServer = (*Auth)(nil)

// Auth handles gRPC endpoints for authentication.
type Auth struct {
	authService    AuthService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, contextManager model.ContextManager, logger *logger.Logger) *Auth {
	return &Auth{
		authService:    authService,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Login accepts {identifier, secret} (or {email, password}) and returns a token pair.
func (h *Auth) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	identifier := field(req, "identifier", "email")
	secret := field(req, "secret", "password")

	pair, err := h.authService.Login(ctx, identifier, secret)
	if err != nil {
		h.logger.Debug("Auth handler: login failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	return pairResponse(pair)
}

// Refresh accepts {refreshToken} and returns a new token pair.
func (h *Auth) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := h.authService.Refresh(ctx, field(req, "refreshToken"))
	if err != nil {
		h.logger.Debug("Auth handler: refresh failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	return pairResponse(pair)
}

// Logout accepts {refreshToken} and forgets it.
func (h *Auth) Logout(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if err := h.authService.Logout(ctx, field(req, "refreshToken")); err != nil {
		h.logger.Debug("Auth handler: logout failed",
			"error", err.Error())
		return nil, handleError(err)
	}
	return &emptypb.Empty{}, nil
}

// Me returns the profile of the authenticated caller.
func (h *Auth) Me(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	sc, ok := h.contextManager.GetSecurityContext(ctx)
	if !ok {
		return nil, handleError(model.ErrInvalidToken)
	}

	profile, err := h.authService.Profile(ctx, sc.Subject)
	if err != nil {
		return nil, handleError(err)
	}

	roles := make([]any, 0, len(profile.Roles))
	for _, r := range profile.Roles {
		roles = append(roles, r)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"id":          profile.ID.String(),
		"name":        profile.Name,
		"email":       profile.Email,
		"phoneNumber": profile.PhoneNumber,
		"roles":       roles,
		"createdAt":   profile.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, handleError(err)
	}
	return resp, nil
}

// field returns the first non-empty string among keys.
func field(req *structpb.Struct, keys ...string) string {
	for _, k := range keys {
		if v := req.GetFields()[k].GetStringValue(); v != "" {
			return v
		}
	}
	return ""
}

func pairResponse(pair model.TokenPair) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"tokenType":    pair.TokenType,
		"expiresInMs":  pair.ExpiresIn.Milliseconds(),
	})
	if err != nil {
		return nil, handleError(err)
	}
	return resp, nil
}
