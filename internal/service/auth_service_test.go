package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alumnihub/api/internal/memstore"
	"alumnihub/api/internal/models"
	"alumnihub/api/internal/security"
	"alumnihub/api/internal/service"
)

func newTestService(t *testing.T) (*service.AuthService, *memstore.Store, *security.TokenIssuer) {
	t.Helper()
	store := memstore.New()
	issuer := security.NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	svc := service.NewAuthService(
		store.Users(),
		store.Roles(),
		store.Tokens(),
		issuer,
		store,
		"guest",
		zerolog.Nop(),
	)
	return svc, store, issuer
}

func seedGuestRole(store *memstore.Store, perms ...string) models.Role {
	role := models.Role{ID: "role-guest", Name: "guest"}
	for _, p := range perms {
		role.Permissions = append(role.Permissions, models.Permission{ID: p, Name: p})
	}
	store.SeedRole(role)
	return role
}

func register(t *testing.T, svc *service.AuthService, email string) {
	t.Helper()
	err := svc.Register(context.Background(), service.RegisterInput{
		Email:     email,
		Password:  "P@ssw0rd1",
		FirstName: "Ann",
		LastName:  "Lee",
	})
	require.NoError(t, err)
}

func login(t *testing.T, svc *service.AuthService, email string) service.AuthResult {
	t.Helper()
	result, err := svc.Login(context.Background(), service.LoginInput{
		Email:     email,
		Password:  "P@ssw0rd1",
		UserAgent: "test-agent",
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	return result
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account with default role and notification", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedGuestRole(store, "events:read")

		register(t, svc, "a@x.com")

		user, err := store.Users().FindByEmailWithRoles(ctx, "a@x.com")
		require.NoError(t, err)
		assert.True(t, user.HasPassword())
		assert.False(t, user.IsEmailVerified)
		require.Len(t, user.Roles, 1)
		assert.Equal(t, "guest", user.Roles[0].Name)
		assert.Equal(t, []string{user.ID}, store.Notifications)
	})

	t.Run("lowercases email", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		register(t, svc, "  Ann@X.Com ")

		_, err := store.Users().FindByEmail(ctx, "ann@x.com")
		assert.NoError(t, err)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		register(t, svc, "a@x.com")

		err := svc.Register(ctx, service.RegisterInput{
			Email: "A@X.com", Password: "P@ssw0rd1", FirstName: "Bea", LastName: "Lim",
		})
		assert.ErrorIs(t, err, service.ErrEmailTaken)
	})

	t.Run("soft-deleted account still reserves its email", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		deleted := time.Now()
		store.PutUser(models.User{ID: "u1", Email: "a@x.com", DeletedAt: &deleted})

		err := svc.Register(ctx, service.RegisterInput{
			Email: "a@x.com", Password: "P@ssw0rd1", FirstName: "Ann", LastName: "Lee",
		})
		assert.ErrorIs(t, err, service.ErrEmailTaken)
	})

	t.Run("missing default role is not fatal", func(t *testing.T) {
		svc, store, _ := newTestService(t)

		register(t, svc, "a@x.com")

		user, err := store.Users().FindByEmailWithRoles(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Empty(t, user.Roles)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues token pair with resolved permissions", func(t *testing.T) {
		svc, store, issuer := newTestService(t)
		seedGuestRole(store, "events:read", "news:read")
		register(t, svc, "a@x.com")

		result := login(t, svc, "a@x.com")
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.Equal(t, "a@x.com", result.User.Email)
		assert.Equal(t, []string{"events:read", "news:read"}, result.User.Permissions)

		// Round-trip: the access token carries the same snapshot.
		claims, err := issuer.ParseAccess(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, claims.Subject)
		assert.Equal(t, result.User.Permissions, claims.Permissions)

		// One stored session, holding a hash rather than the raw token.
		sessions, err := svc.ListSessions(ctx, result.User.ID)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.NotContains(t, string(sessions[0].TokenHash), result.RefreshToken)
		assert.Equal(t, "test-agent", sessions[0].UserAgent)
		assert.Equal(t, "10.0.0.1", sessions[0].IPAddress)
	})

	t.Run("no role grants yields empty permission set", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		register(t, svc, "a@x.com")

		result := login(t, svc, "a@x.com")
		assert.Equal(t, []string{}, result.User.Permissions)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		register(t, svc, "a@x.com")

		_, err := svc.Login(ctx, service.LoginInput{Email: "a@x.com", Password: "wrong-pass"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Login(ctx, service.LoginInput{Email: "nobody@x.com", Password: "P@ssw0rd1"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("oauth-only account cannot password-login", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		googleID := "google-sub-1"
		store.PutUser(models.User{ID: "u1", Email: "a@x.com", GoogleID: &googleID})

		_, err := svc.Login(ctx, service.LoginInput{Email: "a@x.com", Password: "P@ssw0rd1"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("suspended with correct password is forbidden", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		register(t, svc, "a@x.com")
		user, err := store.Users().FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.NoError(t, svc.SetSuspended(ctx, user.ID, true))

		_, err = svc.Login(ctx, service.LoginInput{Email: "a@x.com", Password: "P@ssw0rd1"})
		assert.ErrorIs(t, err, service.ErrUserSuspended)
	})

	t.Run("suspended with wrong password stays unauthorized", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		register(t, svc, "a@x.com")
		user, err := store.Users().FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.NoError(t, svc.SetSuspended(ctx, user.ID, true))

		_, err = svc.Login(ctx, service.LoginInput{Email: "a@x.com", Password: "wrong-pass"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	register(t, svc, "a@x.com")
	first := login(t, svc, "a@x.com")

	second, err := svc.RefreshTokens(ctx, first.User.ID, first.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEmpty(t, second.AccessToken)

	// The consumed record is gone; exactly one session remains.
	assert.Equal(t, 1, store.TokenCount(first.User.ID))

	// Single use: replaying the consumed token is indistinguishable from
	// presenting an invalid one.
	_, err = svc.RefreshTokens(ctx, first.User.ID, first.RefreshToken, "", "")
	assert.ErrorIs(t, err, service.ErrInvalidRefreshToken)

	// The replacement still works.
	_, err = svc.RefreshTokens(ctx, first.User.ID, second.RefreshToken, "", "")
	assert.NoError(t, err)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "a@x.com")
	result := login(t, svc, "a@x.com")

	_, err := svc.RefreshTokens(context.Background(), result.User.ID, "not-a-token", "", "")
	assert.ErrorIs(t, err, service.ErrInvalidRefreshToken)
}

func TestRefreshSuspendedAccount(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	register(t, svc, "a@x.com")
	result := login(t, svc, "a@x.com")

	require.NoError(t, svc.SetSuspended(ctx, result.User.ID, true))

	_, err := svc.RefreshTokens(ctx, result.User.ID, result.RefreshToken, "", "")
	assert.ErrorIs(t, err, service.ErrUserSuspended)
}

func TestLogoutSessionIsolation(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	register(t, svc, "a@x.com")

	sessionA := login(t, svc, "a@x.com")
	sessionB := login(t, svc, "a@x.com")
	userID := sessionA.User.ID
	require.Equal(t, 2, store.TokenCount(userID))

	// Revoking A must leave B untouched.
	require.NoError(t, svc.Logout(ctx, userID, sessionA.RefreshToken))
	assert.Equal(t, 1, store.TokenCount(userID))

	_, err := svc.RefreshTokens(ctx, userID, sessionB.RefreshToken, "", "")
	assert.NoError(t, err)

	// Logout is idempotent: an already-revoked token is a no-op.
	assert.NoError(t, svc.Logout(ctx, userID, sessionA.RefreshToken))
}

func TestLogoutAllIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	register(t, svc, "a@x.com")

	first := login(t, svc, "a@x.com")
	login(t, svc, "a@x.com")
	userID := first.User.ID

	require.NoError(t, svc.LogoutAll(ctx, userID))
	assert.Equal(t, 0, store.TokenCount(userID))

	require.NoError(t, svc.LogoutAll(ctx, userID))
	assert.Equal(t, 0, store.TokenCount(userID))
}

func TestFindOrCreateFromGoogle(t *testing.T) {
	ctx := context.Background()
	avatar := "https://example.com/a.png"
	profile := service.GoogleProfile{
		GoogleID:  "google-sub-1",
		Email:     "a@x.com",
		FirstName: "Ann",
		LastName:  "Lee",
		AvatarURL: &avatar,
	}

	t.Run("creates verified account on first login", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedGuestRole(store, "events:read")

		user, err := svc.FindOrCreateFromGoogle(ctx, profile)
		require.NoError(t, err)
		assert.True(t, user.IsEmailVerified, "google-verified email is trusted")
		assert.False(t, user.HasPassword())
		require.NotNil(t, user.GoogleID)
		assert.Equal(t, "google-sub-1", *user.GoogleID)

		// Repeat resolution returns the same account, no duplicate.
		again, err := svc.FindOrCreateFromGoogle(ctx, profile)
		require.NoError(t, err)
		assert.Equal(t, user.ID, again.ID)
	})

	t.Run("links to existing password account by email", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		register(t, svc, "a@x.com")
		existing, err := store.Users().FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)

		user, err := svc.FindOrCreateFromGoogle(ctx, profile)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, user.ID)

		linked, err := store.Users().FindByGoogleID(ctx, "google-sub-1")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, linked.ID)
		assert.True(t, linked.HasPassword(), "password login keeps working after linking")
	})

	t.Run("suspended account is forbidden", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		user, err := svc.FindOrCreateFromGoogle(ctx, profile)
		require.NoError(t, err)
		require.NoError(t, svc.SetSuspended(ctx, user.ID, true))

		_, err = svc.FindOrCreateFromGoogle(ctx, profile)
		assert.ErrorIs(t, err, service.ErrUserSuspended)
	})
}

func TestLoginWithGoogle(t *testing.T) {
	ctx := context.Background()
	svc, store, issuer := newTestService(t)
	seedGuestRole(store, "events:read")

	user, err := svc.FindOrCreateFromGoogle(ctx, service.GoogleProfile{
		GoogleID: "google-sub-1", Email: "a@x.com", FirstName: "Ann", LastName: "Lee",
	})
	require.NoError(t, err)

	result, err := svc.LoginWithGoogle(ctx, user.ID, "agent", "10.0.0.2")
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, []string{"events:read"}, claims.Permissions)

	_, err = svc.LoginWithGoogle(ctx, "missing-user", "", "")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	register(t, svc, "a@x.com")
	user, err := store.Users().FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, svc.VerifyEmail(ctx, user.ID))

	updated, err := store.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsEmailVerified)

	assert.ErrorIs(t, svc.VerifyEmail(ctx, "missing-user"), service.ErrUserNotFound)
}

func TestRevokeSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	register(t, svc, "a@x.com")
	register(t, svc, "b@x.com")

	owner := login(t, svc, "a@x.com")
	other := login(t, svc, "b@x.com")

	ownerSessions, err := svc.ListSessions(ctx, owner.User.ID)
	require.NoError(t, err)
	require.Len(t, ownerSessions, 1)

	// A session id belonging to someone else is unreachable.
	otherSessions, err := svc.ListSessions(ctx, other.User.ID)
	require.NoError(t, err)
	require.Len(t, otherSessions, 1)
	err = svc.RevokeSession(ctx, owner.User.ID, otherSessions[0].ID)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	require.NoError(t, svc.RevokeSession(ctx, owner.User.ID, ownerSessions[0].ID))

	remaining, err := svc.ListSessions(ctx, owner.User.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
