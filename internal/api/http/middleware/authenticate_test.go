package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

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

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthenticate_RunsOncePerRequest(t *testing.T) {
	contexts := security.NewContextManager()
	sc := model.SecurityContext{UserID: uuid.New(), Subject: "hari@x.com"}
	authCtx := contexts.SetSecurityContext(context.Background(), sc)

	authenticator := &mockAuthenticator{}
	authenticator.On("Authenticate", mock.Anything, "Bearer token").Return(authCtx, security.Valid).Once()

	m := NewAuthenticate(authenticator, testutil.MakeNoopLogger())

	e := gin.New()
	e.Use(m.Handle)
	e.GET("/me", m.Handle, RequireAuth(contexts), func(c *gin.Context) {
		got, ok := contexts.GetSecurityContext(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, sc.Subject, got.Subject)
		assert.Equal(t, security.Valid, c.MustGet(StateKey))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	authenticator.AssertExpectations(t)
}

func TestAuthenticate_NeverRejects(t *testing.T) {
	contexts := security.NewContextManager()

	authenticator := &mockAuthenticator{}
	authenticator.On("Authenticate", mock.Anything, "Bearer bad").Return(nil, security.Invalid)

	m := NewAuthenticate(authenticator, testutil.MakeNoopLogger())

	e := gin.New()
	e.Use(m.Handle)
	e.GET("/public", func(c *gin.Context) { c.Status(http.StatusOK) })
	e.GET("/private", RequireAuth(contexts), func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, want := range map[string]int{"/public": http.StatusOK, "/private": http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, path)
	}
}
