package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/auth/authtest"
)

func setupService(t *testing.T, opts ...auth.ServiceOption) (*auth.Service, *authtest.MemStore) {
	t.Helper()
	tokens, err := auth.NewTokenService("access-secret", "refresh-secret")
	require.NoError(t, err)

	store := authtest.NewMemStore()
	opts = append([]auth.ServiceOption{auth.WithBcryptCost(4)}, opts...)
	return auth.NewService(store, tokens, opts...), store
}

func TestService_LoginRefreshReplay(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	_, err := store.SeedUser("u-1", "a@x.com", "secret1", auth.RoleStudent)
	require.NoError(t, err)

	session, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	first := session.Tokens.RefreshToken
	require.NotNil(t, store.StoredRefreshToken("u-1"))
	assert.Equal(t, first, *store.StoredRefreshToken("u-1"))

	rotated, err := svc.Refresh(ctx, first)
	require.NoError(t, err)
	assert.NotEqual(t, first, rotated.Tokens.RefreshToken)
	assert.Equal(t, rotated.Tokens.RefreshToken, *store.StoredRefreshToken("u-1"))

	_, err = svc.Refresh(ctx, first)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenMismatch)

	// the rotated token is still good exactly once
	_, err = svc.Refresh(ctx, rotated.Tokens.RefreshToken)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, rotated.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenMismatch)
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	_, err := store.SeedUser("u-1", "a@x.com", "secret1", auth.RoleStudent)
	require.NoError(t, err)

	_, errUnknown := svc.Login(ctx, "nobody@x.com", "secret1")
	_, errWrong := svc.Login(ctx, "a@x.com", "wrong")

	assert.ErrorIs(t, errUnknown, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, auth.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	assert.Nil(t, store.StoredRefreshToken("u-1"), "failed login must not write a token")
}

func TestService_LoginOverwritesPreviousSession(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	_, err := store.SeedUser("u-1", "a@x.com", "secret1", auth.RoleFaculty)
	require.NoError(t, err)

	first, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenMismatch)
}

func TestService_LogoutRevokesRefresh(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	_, err := store.SeedUser("u-1", "a@x.com", "secret1", auth.RoleStudent)
	require.NoError(t, err)

	session, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	p := session.User.Principal()
	require.NoError(t, svc.Logout(ctx, &p))
	assert.Nil(t, store.StoredRefreshToken("u-1"))

	_, err = svc.Refresh(ctx, session.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenMismatch)
}

func TestService_RefreshRejectsAccessToken(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	_, err := store.SeedUser("u-1", "a@x.com", "secret1", auth.RoleStudent)
	require.NoError(t, err)

	session, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, session.Tokens.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)
}

func TestService_ConcurrentRefreshSingleWinner(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	_, err := store.SeedUser("u-1", "a@x.com", "secret1", auth.RoleStudent)
	require.NoError(t, err)

	session, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Refresh(ctx, session.Tokens.RefreshToken); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestService_RefreshCarriesCurrentRole(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	_, err := store.SeedUser("u-1", "a@x.com", "secret1", auth.RoleStudent)
	require.NoError(t, err)

	session, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	updated, err := svc.ChangeRole(ctx, "u-1", auth.RoleFaculty)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleFaculty, updated.Role)

	// role change clears the stored token, forcing a new login
	_, err = svc.Refresh(ctx, session.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenMismatch)

	session, err = svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	p, err := svc.Tokens().Verify(session.Tokens.AccessToken, auth.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleFaculty, p.Role)
}

func TestService_ChangeRoleErrors(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.ChangeRole(context.Background(), "u-1", auth.Role("Root"))
	assert.ErrorIs(t, err, auth.ErrInvalidRole)

	_, err = svc.ChangeRole(context.Background(), "missing", auth.RoleAdmin)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestService_Register(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, auth.RegisterInput{
		Email: "new@x.com", Password: "secret1", FullName: "new user", Role: auth.RoleStudent,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.True(t, user.IsActive)

	_, err = svc.Register(ctx, auth.RegisterInput{
		Email: "new@x.com", Password: "secret1", FullName: "dup user", Role: auth.RoleFaculty,
	})
	assert.ErrorIs(t, err, auth.ErrConflict)

	_, err = svc.Register(ctx, auth.RegisterInput{
		Email: "boss@x.com", Password: "secret1", FullName: "boss", Role: auth.RoleAdmin,
	})
	assert.ErrorIs(t, err, auth.ErrInvalidRole)

	session, err := svc.Login(ctx, "new@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
}

func TestService_InactiveUserCannotLogin(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	hash, err := auth.HashPassword("secret1", 4)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(ctx, &auth.User{
		ID: "u-1", Email: "a@x.com", PasswordHash: hash, Role: auth.RoleStudent, IsActive: false,
	}))

	_, err = svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestService_APIKeyLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := setupService(t,
		auth.WithServiceClock(func() time.Time { return now }),
		auth.WithKeyTTL(time.Hour),
	)
	ctx := context.Background()
	p := &auth.Principal{ID: "u-1", Email: "a@x.com", Role: auth.RoleFaculty}

	plaintext, key, err := svc.IssueAPIKey(ctx, p)
	require.NoError(t, err)
	assert.NotContains(t, key.KeyHash, plaintext)
	assert.Equal(t, now.Add(time.Hour), key.ExpiresAt)

	got, err := svc.ValidateAPIKey(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)

	_, _, err = svc.IssueAPIKey(ctx, p)
	assert.ErrorIs(t, err, auth.ErrConflict, "second key must not replace the first")

	_, err = svc.ValidateAPIKey(ctx, plaintext)
	require.NoError(t, err, "original key still valid after rejected re-issue")

	now = now.Add(time.Hour)
	_, err = svc.ValidateAPIKey(ctx, plaintext)
	assert.ErrorIs(t, err, auth.ErrInvalidAPIKey)

	purged, err := svc.PurgeExpiredAPIKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, _, err = svc.IssueAPIKey(ctx, p)
	assert.NoError(t, err, "a new key can be issued once the old one is gone")
}

func TestService_ValidateAPIKeyRejects(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	gen := auth.NewKeyGenerator()
	unknown, _, err := gen.Generate()
	require.NoError(t, err)

	for _, key := range []string{"", "garbage", unknown} {
		_, err := svc.ValidateAPIKey(ctx, key)
		assert.ErrorIs(t, err, auth.ErrInvalidAPIKey, "key %q", key)
	}
}

func TestService_ValidateAPIKeyThroughCache(t *testing.T) {
	store := authtest.NewMemStore()
	tokens, err := auth.NewTokenService("access-secret", "refresh-secret")
	require.NoError(t, err)
	cache := auth.NewCachedKeyFinder(store, 16, time.Minute)
	svc := auth.NewService(store, tokens, auth.WithKeyLookup(cache))
	ctx := context.Background()

	plaintext, _, err := svc.IssueAPIKey(ctx, &auth.Principal{ID: "u-1", Email: "a@x.com", Role: auth.RoleAdmin})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.ValidateAPIKey(ctx, plaintext)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.KeyLookups)
}
