package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service runs the credential flows: registration, login, refresh rotation,
// logout and API key issuance/validation.
type Service struct {
	store      CredentialStore
	tokens     *TokenService
	keys       *KeyGenerator
	keyLookup  APIKeyFinder
	keyTTL     time.Duration
	bcryptCost int
	now        func() time.Time
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithKeyTTL overrides the lifetime of newly issued API keys
func WithKeyTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.keyTTL = ttl
		}
	}
}

// WithKeyLookup routes API key validation through finder (for example a
// cache in front of the store) instead of the store itself.
func WithKeyLookup(finder APIKeyFinder) ServiceOption {
	return func(s *Service) {
		if finder != nil {
			s.keyLookup = finder
		}
	}
}

// WithBcryptCost sets the bcrypt cost used for new password hashes
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithServiceClock sets the time source used for key expiry
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new credential service
func NewService(store CredentialStore, tokens *TokenService, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		tokens:    tokens,
		keys:      NewKeyGenerator(),
		keyLookup: store,
		keyTTL:    DefaultKeyTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens exposes the token service used by the pipeline
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// RegisterInput holds the normalized registration fields
type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	Role        Role
	PhoneNumber *string
}

// Register creates a Student or Faculty account. Admins are never
// self-registered.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if in.Role != RoleStudent && in.Role != RoleFaculty {
		return nil, ErrInvalidRole
	}

	if _, err := s.store.FindUserByEmail(ctx, in.Email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		PhoneNumber:  in.PhoneNumber,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAdmin creates an Admin account. It is only reachable from the
// operator CLI.
func (s *Service) CreateAdmin(ctx context.Context, email, password, fullName string) (*User, error) {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		FullName:     fullName,
		Role:         RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the password, issues a new pair and overwrites the stored
// refresh token, which ends any earlier session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		burnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user.Principal())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{User: user, Tokens: pair}, nil
}

// Refresh exchanges the stored refresh token for a new pair. A token that
// verifies but is no longer the stored value fails with
// ErrRefreshTokenMismatch.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrMissingCredentials
	}

	claimed, err := s.tokens.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindUserByID(ctx, claimed.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrRefreshTokenMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive || user.RefreshToken == nil ||
		subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, ErrRefreshTokenMismatch
	}

	// The new pair carries the current role, not the one in the old token.
	pair, err := s.tokens.IssuePair(user.Principal())
	if err != nil {
		return nil, err
	}

	rotated, err := s.store.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		return nil, ErrRefreshTokenMismatch
	}

	user.RefreshToken = &pair.RefreshToken
	return &Session{User: user, Tokens: pair}, nil
}

// Logout clears the stored refresh token
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	if p == nil {
		return ErrMissingCredentials
	}
	return s.store.UpdateRefreshToken(ctx, p.ID, nil)
}

// Profile returns the stored record for p
func (s *Service) Profile(ctx context.Context, p *Principal) (*User, error) {
	if p == nil {
		return nil, ErrMissingCredentials
	}
	return s.store.FindUserByID(ctx, p.ID)
}

// ListUsers returns every user, newest first
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.ListUsers(ctx)
}

// ChangeRole sets a user's role. The user's refresh token is cleared so the
// next session carries the new role.
func (s *Service) ChangeRole(ctx context.Context, userID string, role Role) (*User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	return s.store.UpdateRole(ctx, userID, role)
}

// IssueAPIKey creates the single API key for p and returns its plaintext.
// The plaintext is not recoverable afterwards.
func (s *Service) IssueAPIKey(ctx context.Context, p *Principal) (string, *APIKey, error) {
	if p == nil {
		return "", nil, ErrMissingCredentials
	}

	plaintext, keyHash, err := s.keys.Generate()
	if err != nil {
		return "", nil, err
	}

	now := s.now().UTC()
	key := &APIKey{
		ID:        uuid.NewString(),
		UserID:    p.ID,
		KeyHash:   keyHash,
		KeyPrefix: s.keys.DisplayPrefix(plaintext),
		ExpiresAt: now.Add(s.keyTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return "", nil, err
	}
	return plaintext, key, nil
}

// ValidateAPIKey hashes plaintext and looks the digest up. Unknown, malformed
// and expired keys all fail with ErrInvalidAPIKey.
func (s *Service) ValidateAPIKey(ctx context.Context, plaintext string) (*APIKey, error) {
	if plaintext == "" || s.keys.ValidateKeyFormat(plaintext) != nil {
		return nil, ErrInvalidAPIKey
	}

	key, err := s.keyLookup.FindAPIKeyByHash(ctx, s.keys.HashKey(plaintext))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidAPIKey
	}
	if err != nil {
		return nil, fmt.Errorf("find api key: %w", err)
	}
	if key.Expired(s.now()) {
		return nil, ErrInvalidAPIKey
	}
	return key, nil
}

// PurgeExpiredAPIKeys deletes keys past their cutoff so their owners can
// issue new ones.
func (s *Service) PurgeExpiredAPIKeys(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredAPIKeys(ctx, s.now().UTC())
}
