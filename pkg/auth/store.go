package auth

import (
	"context"
	"time"
)

// CredentialStore is the durable home of users, refresh tokens and API key
// hashes. Every method is a single-row atomic operation. Missing rows are
// reported as ErrNotFound and unique violations as ErrConflict.
type CredentialStore interface {
	CreateUser(ctx context.Context, user *User) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)

	// UpdateRole sets the role and clears the stored refresh token in the
	// same statement.
	UpdateRole(ctx context.Context, id string, role Role) (*User, error)

	// UpdateRefreshToken overwrites the stored refresh token; nil clears it.
	UpdateRefreshToken(ctx context.Context, userID string, token *string) error

	// RotateRefreshToken replaces current with next only if current is still
	// the stored value. It reports whether a row was updated.
	RotateRefreshToken(ctx context.Context, userID, current, next string) (bool, error)

	// CreateAPIKey fails with ErrConflict when the user already has a key.
	CreateAPIKey(ctx context.Context, key *APIKey) error
	APIKeyFinder
	DeleteExpiredAPIKeys(ctx context.Context, before time.Time) (int64, error)
}

// APIKeyFinder looks up a stored key by its hash
type APIKeyFinder interface {
	FindAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error)
}
