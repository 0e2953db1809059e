package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

// CredentialStore implements auth.CredentialStore on PostgreSQL. Every
// operation is a single statement, so row-level atomicity comes from the
// server.
type CredentialStore struct {
	db *sql.DB
}

var _ auth.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates a new credential store
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

const userColumns = `id, email, password_hash, full_name, phone_number, role, is_active, refresh_token, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u       auth.User
		role    string
		phone   sql.NullString
		refresh sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &phone, &role,
		&u.IsActive, &refresh, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	if phone.Valid {
		u.PhoneNumber = &phone.String
	}
	if refresh.Valid {
		u.RefreshToken = &refresh.String
	}
	return &u, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *CredentialStore) CreateUser(ctx context.Context, u *auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, phone_number, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, nullable(u.PhoneNumber), string(u.Role), u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	return nil
}

func (s *CredentialStore) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *CredentialStore) FindUserByID(ctx context.Context, id string) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// ListUsers returns every user, newest first
func (s *CredentialStore) ListUsers(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateRole sets the role and clears the refresh token in one statement
func (s *CredentialStore) UpdateRole(ctx context.Context, id string, role auth.Role) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET role = $2, refresh_token = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, string(role)))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// UpdateRefreshToken overwrites or, with nil, clears the stored token
func (s *CredentialStore) UpdateRefreshToken(ctx context.Context, userID string, token *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1`,
		userID, nullable(token))
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// RotateRefreshToken swaps current for next only while current is stored
func (s *CredentialStore) RotateRefreshToken(ctx context.Context, userID, current, next string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET refresh_token = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token = $2 AND is_active`,
		userID, current, next)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return n == 1, nil
}

// CreateAPIKey relies on the unique index on api_keys.user_id to reject a
// second key for the same user
func (s *CredentialStore) CreateAPIKey(ctx context.Context, key *auth.APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.UserID, key.KeyHash, key.KeyPrefix, key.ExpiresAt, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", mapError(err))
	}
	return nil
}

func (s *CredentialStore) FindAPIKeyByHash(ctx context.Context, keyHash string) (*auth.APIKey, error) {
	var k auth.APIKey
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, key_hash, key_prefix, expires_at, created_at
		FROM api_keys WHERE key_hash = $1`, keyHash,
	).Scan(&k.ID, &k.UserID, &k.KeyHash, &k.KeyPrefix, &k.ExpiresAt, &k.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &k, nil
}

// DeleteExpiredAPIKeys removes keys whose cutoff is at or before before
func (s *CredentialStore) DeleteExpiredAPIKeys(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired api keys: %w", err)
	}
	return res.RowsAffected()
}
