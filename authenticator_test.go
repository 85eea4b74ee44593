package access_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func adminIdentity() testIdentity {
	return testIdentity{
		id:       "user-123",
		username: "admin",
		email:    "admin@example.com",
		role:     access.RoleAdmin,
	}
}

func TestAuther_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a token and a sealed session", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		provider.On("VerifyIdentity", ctx, "admin@example.com", "correct-password").
			Return(adminIdentity(), nil)

		auther := access.NewAuthenticator(provider, testConfig())

		result, err := auther.Login(ctx, "admin@example.com", "correct-password")
		require.NoError(t, err)
		require.NotEmpty(t, result.Token)
		require.NotEmpty(t, result.Sealed)
		assert.Equal(t, "user-123", result.User.ID)
		assert.Equal(t, access.RoleAdmin, result.User.Role)

		// the raw token validates and carries the admin role
		claims, err := auther.TokenService().Validate(result.Token)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID())
		assert.True(t, claims.HasRole(access.RoleAdmin))
		assert.False(t, claims.IsMember())

		// the sealed value opens back into the same session
		opened, err := access.NewSessionCipher(testSessionSecret).Open(result.Sealed)
		require.NoError(t, err)
		assert.Equal(t, result.Token, opened.Token)
		assert.Equal(t, "admin@example.com", opened.User.Email)

		provider.AssertExpectations(t)
	})

	t.Run("bad credentials pass through from the provider", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		provider.On("VerifyIdentity", ctx, "admin@example.com", "wrong-password").
			Return(nil, access.ErrMismatchedHashAndPassword)

		auther := access.NewAuthenticator(provider, testConfig())

		_, err := auther.Login(ctx, "admin@example.com", "wrong-password")
		assert.ErrorIs(t, err, access.ErrMismatchedHashAndPassword)
	})

	t.Run("nil identity without error", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		provider.On("VerifyIdentity", ctx, mock.Anything, mock.Anything).
			Return(nil, nil)

		auther := access.NewAuthenticator(provider, testConfig())

		_, err := auther.Login(ctx, "ghost@example.com", "whatever")
		assert.ErrorIs(t, err, access.ErrIdentityNotFound)
	})

	t.Run("sealing failure surfaces the config error", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		provider.On("VerifyIdentity", ctx, mock.Anything, mock.Anything).
			Return(adminIdentity(), nil)

		cfg := testConfig()
		cfg.SessionSecret = "short"
		auther := access.NewAuthenticator(provider, cfg)

		_, err := auther.Login(ctx, "admin@example.com", "correct-password")
		assert.ErrorIs(t, err, access.ErrSessionSecretTooShort)
	})
}

func TestAuther_MemberToken(t *testing.T) {
	auther := access.NewAuthenticator(new(MockIdentityProvider), testConfig())

	t.Run("issues a member audience token", func(t *testing.T) {
		token, err := auther.MemberToken("claimant-uid-9")
		require.NoError(t, err)

		claims, err := auther.TokenService().Validate(token)
		require.NoError(t, err)
		assert.True(t, claims.IsMember())
		assert.Equal(t, "claimant-uid-9", claims.UserID())
		assert.Empty(t, claims.UserRole)
	})

	t.Run("rejects an empty subject", func(t *testing.T) {
		_, err := auther.MemberToken("")
		assert.ErrorIs(t, err, access.ErrIdentityNotFound)
	})
}
