package middleware

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/security"
	"github.com/dtroode/identity-server/internal/testutil"
)

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, header string) (context.Context, security.State) {
	args := m.Called(ctx, header)
	if next, ok := args.Get(0).(context.Context); ok && next != nil {
		return next, args.Get(1).(security.State)
	}
	return ctx, args.Get(1).(security.State)
}

func TestAuthenticate_AuthFunc(t *testing.T) {
	t.Parallel()

	contexts := security.NewContextManager()
	authed := contexts.SetSecurityContext(context.Background(), model.SecurityContext{UserID: uuid.New(), Subject: "hari@x.com"})

	tests := []struct {
		name         string
		mdAuthHeader string
		state        security.State
		wantGRPCCode codes.Code
		wantErr      bool
	}{
		{
			name:         "missing authorization header",
			mdAuthHeader: "",
			state:        security.NoHeader,
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "invalid token",
			mdAuthHeader: "Bearer invalid",
			state:        security.Invalid,
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "valid token",
			mdAuthHeader: "Bearer token",
			state:        security.Valid,
			wantGRPCCode: codes.OK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := &mockAuthenticator{}
			var ret any
			if tt.state == security.Valid {
				ret = authed
			}
			a.On("Authenticate", mock.Anything, tt.mdAuthHeader).Return(ret, tt.state)

			m := NewAuthenticate(a, testutil.MakeNoopLogger())

			ctx := context.Background()
			if tt.mdAuthHeader != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", tt.mdAuthHeader))
			}

			newCtx, err := m.AuthFunc(ctx)

			if tt.wantErr {
				assert.Error(t, err)
				st, ok := status.FromError(err)
				assert.True(t, ok)
				assert.Equal(t, tt.wantGRPCCode, st.Code())
				assert.Nil(t, newCtx)
			} else {
				assert.NoError(t, err)
				_, ok := contexts.GetSecurityContext(newCtx)
				assert.True(t, ok)
			}
			a.AssertExpectations(t)
		})
	}
}

func TestRequiresAuth(t *testing.T) {
	match := RequiresAuth("/identity.v1.Auth/Me")

	assert.True(t, match(context.Background(), interceptors.NewServerCallMeta("/identity.v1.Auth/Me", nil, nil)))
	assert.False(t, match(context.Background(), interceptors.NewServerCallMeta("/identity.v1.Auth/Login", nil, nil)))
}
