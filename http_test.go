package access_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-access"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRouteAuthenticator(t *testing.T, cfg *access.ConfigValues) (*access.RouteAuthenticator, *MockIdentityProvider) {
	t.Helper()

	provider := new(MockIdentityProvider)
	auther := access.NewAuthenticator(provider, cfg)
	resolver := access.NewSessionResolver(
		access.NewSessionCipher(cfg.GetSessionSecret()),
		access.NewTokenService(cfg, nil),
	)
	return access.NewHTTPAuthenticator(auther, resolver, cfg), provider
}

func TestRouteAuthenticator_Login(t *testing.T) {
	t.Run("sets the sealed session cookie and answers the token", func(t *testing.T) {
		auth, provider := newRouteAuthenticator(t, testConfig())
		provider.On("VerifyIdentity", mock.Anything, "admin@example.com", "correct-password").
			Return(adminIdentity(), nil)

		var cookie *router.Cookie
		var response map[string]any

		ctx := new(MockContext)
		ctx.On("Context").Return(context.Background())
		ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
			cookie = args.Get(0).(*router.Cookie)
		})
		ctx.On("JSON", http.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			response = args.Get(1).(map[string]any)
		}).Return(nil)

		err := auth.Login(ctx, MockLoginPayload{
			Identifier: "admin@example.com",
			Password:   "correct-password",
		})
		require.NoError(t, err)

		require.NotNil(t, cookie)
		assert.Equal(t, auth.CookieName(), cookie.Name)
		assert.NotEmpty(t, cookie.Value)
		assert.Equal(t, "/", cookie.Path)
		assert.True(t, cookie.HTTPOnly, "session cookie must never be script readable")
		assert.False(t, cookie.Secure)
		assert.Equal(t, "Lax", cookie.SameSite)
		assert.WithinDuration(t, time.Now().Add(access.SessionCookieDuration), cookie.Expires, 5*time.Second)

		assert.Equal(t, true, response["success"])
		assert.NotEmpty(t, response["token"])

		// the cookie value opens back into the token we answered with
		opened, err := access.NewSessionCipher(testSessionSecret).Open(cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, response["token"], opened.Token)
	})

	t.Run("secure deployments get Secure and SameSite None", func(t *testing.T) {
		cfg := testConfig()
		cfg.SecureCookies = true
		auth, provider := newRouteAuthenticator(t, cfg)
		provider.On("VerifyIdentity", mock.Anything, mock.Anything, mock.Anything).
			Return(adminIdentity(), nil)

		var cookie *router.Cookie
		ctx := new(MockContext)
		ctx.On("Context").Return(context.Background())
		ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
			cookie = args.Get(0).(*router.Cookie)
		})
		ctx.On("JSON", http.StatusOK, mock.Anything).Return(nil)

		require.NoError(t, auth.Login(ctx, MockLoginPayload{Identifier: "a", Password: "b"}))

		require.NotNil(t, cookie)
		assert.True(t, cookie.Secure)
		assert.Equal(t, "None", cookie.SameSite)
	})

	t.Run("failed login answers the error envelope and no cookie", func(t *testing.T) {
		auth, provider := newRouteAuthenticator(t, testConfig())
		provider.On("VerifyIdentity", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, access.ErrMismatchedHashAndPassword)

		var envelope access.ErrorResponse
		ctx := new(MockContext)
		ctx.On("Context").Return(context.Background())
		ctx.On("JSON", http.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
			envelope = args.Get(1).(access.ErrorResponse)
		}).Return(nil)

		err := auth.Login(ctx, MockLoginPayload{Identifier: "a", Password: "nope"})
		require.NoError(t, err)

		assert.Equal(t, access.TextCodeInvalidCreds, envelope.Code)
		ctx.AssertNotCalled(t, "Cookie", mock.Anything)
	})
}

func TestRouteAuthenticator_Logout(t *testing.T) {
	auth, _ := newRouteAuthenticator(t, testConfig())

	var cookie *router.Cookie
	ctx := new(MockContext)
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie = args.Get(0).(*router.Cookie)
	})
	ctx.On("JSON", http.StatusOK, mock.Anything).Return(nil)

	require.NoError(t, auth.Logout(ctx))

	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()), "logout cookie must expire in the past")
}

func TestRouteAuthenticator_Protected(t *testing.T) {
	cfg := testConfig()
	auth, _ := newRouteAuthenticator(t, cfg)
	tokens := access.NewTokenService(cfg, nil)

	adminToken, err := tokens.SignAdmin("user-123", access.RoleAdmin)
	require.NoError(t, err)
	memberToken, err := tokens.SignMember("claimant-uid-9")
	require.NoError(t, err)

	terminal := func(ctx router.Context) error { return ctx.Next() }

	t.Run("admin bearer passes the admin gate", func(t *testing.T) {
		ctx := new(MockContext)
		ctx.On("Cookies", auth.CookieName()).Return("")
		ctx.On("GetString", router.HeaderAuthorization, "").Return("Bearer " + adminToken)
		ctx.On("Locals", "principal", mock.Anything).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything)

		err := auth.Protected(access.RoleAdmin)(terminal)(ctx)
		require.NoError(t, err)
		assert.True(t, ctx.NextCalled)
	})

	t.Run("member bearer is rejected by the admin gate", func(t *testing.T) {
		var envelope access.ErrorResponse
		ctx := new(MockContext)
		ctx.On("Cookies", auth.CookieName()).Return("")
		ctx.On("GetString", router.HeaderAuthorization, "").Return("Bearer " + memberToken)
		ctx.On("JSON", http.StatusForbidden, mock.Anything).Run(func(args mock.Arguments) {
			envelope = args.Get(1).(access.ErrorResponse)
		}).Return(nil)

		err := auth.Protected(access.RoleAdmin)(terminal)(ctx)
		require.NoError(t, err)
		assert.False(t, ctx.NextCalled)
		assert.Equal(t, access.TextCodeForbidden, envelope.Code)
	})

	t.Run("missing credentials are unauthorized", func(t *testing.T) {
		var envelope access.ErrorResponse
		ctx := new(MockContext)
		ctx.On("Cookies", auth.CookieName()).Return("")
		ctx.On("GetString", router.HeaderAuthorization, "").Return("")
		ctx.On("JSON", http.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
			envelope = args.Get(1).(access.ErrorResponse)
		}).Return(nil)

		err := auth.Protected(access.RoleAdmin)(terminal)(ctx)
		require.NoError(t, err)
		assert.Equal(t, access.TextCodeMissingAuth, envelope.Code)
	})

	t.Run("member gate admits member tokens", func(t *testing.T) {
		ctx := new(MockContext)
		ctx.On("Cookies", auth.CookieName()).Return("")
		ctx.On("GetString", router.HeaderAuthorization, "").Return("Bearer " + memberToken)
		ctx.On("Locals", "principal", mock.Anything).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything)

		err := auth.Protected(access.TokenTypeMember)(terminal)(ctx)
		require.NoError(t, err)
		assert.True(t, ctx.NextCalled)
	})
}
