// Package auth implements the credential core of campusgate: signed access and
// refresh tokens, server-tracked refresh rotation, and hashed API keys.
//
// # Overview
//
// Two HS256 tokens are issued on login. The access token is stateless and
// verified on every protected request. The refresh token is also persisted on
// the user record; a presented refresh token is accepted only if it verifies
// AND equals the stored value, so one refresh token is live per user at a time.
//
// Access and refresh tokens are signed with different secrets. A refresh token
// never verifies as an access token and the other way around.
//
// # Token Service
//
//	tokens, err := auth.NewTokenService(accessSecret, refreshSecret,
//		auth.WithAccessTTL(time.Hour),
//		auth.WithRefreshTTL(7*24*time.Hour),
//	)
//	pair, err := tokens.IssuePair(auth.Principal{ID: id, Email: email, Role: auth.RoleStudent})
//	principal, err := tokens.Verify(pair.AccessToken, auth.TokenAccess)
//
// Verify distinguishes ErrInvalidToken, ErrExpiredToken and ErrMalformedToken.
// The HTTP layer collapses all three into one 401.
//
// # Flows
//
//	svc := auth.NewService(store, tokens)
//	session, err := svc.Login(ctx, email, password)   // overwrites stored refresh token
//	session, err = svc.Refresh(ctx, session.Tokens.RefreshToken) // compare-and-swap rotation
//	err = svc.Logout(ctx, principal)                   // clears stored refresh token
//
// Unknown email and wrong password both return ErrInvalidCredentials.
//
// # API Keys
//
// Keys have the form cg_<64 hex chars>. Only the SHA256 hex digest is stored.
// Each user may hold one key; a second IssueAPIKey fails with ErrConflict.
// Expiry is a hard cutoff checked on every validation.
//
//	plaintext, key, err := svc.IssueAPIKey(ctx, principal) // show plaintext once
//	key, err = svc.ValidateAPIKey(ctx, r.Header.Get("x-api-key"))
//
// CachedKeyFinder can sit between the service and the store to absorb repeated
// lookups of the same key.
package auth
