package router

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/identity-server/internal/api/grpc/identity"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/repository/memory"
	"github.com/dtroode/identity-server/internal/security"
	"github.com/dtroode/identity-server/internal/service"
	"github.com/dtroode/identity-server/internal/testutil"
	"github.com/dtroode/identity-server/internal/token"
)

func newTestConn(t *testing.T) *grpc.ClientConn {
	t.Helper()

	log := testutil.MakeNoopLogger()
	codec, err := token.NewJWT("grpc-router-test-secret-0123456789abcdef")
	require.NoError(t, err)

	users := memory.NewUserRepository()
	hash, err := bcrypt.GenerateFromPassword([]byte("testpass"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = users.Create(context.Background(), model.User{
		ID:           uuid.New(),
		Name:         "Hari",
		Email:        "hari@x.com",
		PhoneNumber:  "+911234567890",
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)

	refresh := service.NewRefreshTokens(memory.NewRefreshTokenRepository(), time.Hour, time.Second, log)
	auth := service.NewAuth(users, service.NewPasswordVerifier(users, log), codec, refresh, nil, 15*time.Minute, time.Second, log)
	contexts := security.NewContextManager()
	authenticator := security.NewAuthenticator(codec, users, contexts, time.Second, log)

	s := New(auth, authenticator, contexts, log).Register()

	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestRouter_LoginRefreshMe(t *testing.T) {
	ctx := context.Background()
	client := identity.NewAuthClient(newTestConn(t))

	pair, err := client.Login(ctx, mustStruct(t, map[string]any{"identifier": "hari@x.com", "secret": "testpass"}))
	require.NoError(t, err)
	access := pair.GetFields()["accessToken"].GetStringValue()
	refresh := pair.GetFields()["refreshToken"].GetStringValue()
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.Equal(t, "Bearer", pair.GetFields()["tokenType"].GetStringValue())
	assert.Equal(t, float64((15 * time.Minute).Milliseconds()), pair.GetFields()["expiresInMs"].GetNumberValue())

	authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+access)
	me, err := client.Me(authed, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "hari@x.com", me.GetFields()["email"].GetStringValue())

	next, err := client.Refresh(ctx, mustStruct(t, map[string]any{"refreshToken": refresh}))
	require.NoError(t, err)
	assert.NotEqual(t, refresh, next.GetFields()["refreshToken"].GetStringValue())

	_, err = client.Refresh(ctx, mustStruct(t, map[string]any{"refreshToken": refresh}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.Logout(ctx, mustStruct(t, map[string]any{"refreshToken": next.GetFields()["refreshToken"].GetStringValue()}))
	require.NoError(t, err)
}

func TestRouter_Errors(t *testing.T) {
	ctx := context.Background()
	client := identity.NewAuthClient(newTestConn(t))

	_, err := client.Login(ctx, mustStruct(t, map[string]any{"identifier": "hari@x.com", "secret": "wrong"}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.Login(ctx, mustStruct(t, map[string]any{"identifier": "hari@x.com"}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.Refresh(ctx, mustStruct(t, map[string]any{"refreshToken": ""}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.Logout(ctx, mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.Me(ctx, &emptypb.Empty{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	tampered := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer not.a.token")
	_, err = client.Me(tampered, &emptypb.Empty{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRouter_Health(t *testing.T) {
	resp, err := healthpb.NewHealthClient(newTestConn(t)).Check(context.Background(), &healthpb.HealthCheckRequest{Service: identity.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
