// Package authtest provides an in-memory credential store for tests.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

// MemStore is a mutex-guarded auth.CredentialStore. Each method holds the lock
// for its whole body, matching the single-row atomicity of the real store.
type MemStore struct {
	mu      sync.Mutex
	users   map[string]*auth.User
	keys    map[string]*auth.APIKey // by hash
	keyUser map[string]string       // user id -> hash

	// KeyLookups counts FindAPIKeyByHash calls
	KeyLookups int
}

var _ auth.CredentialStore = (*MemStore)(nil)

// NewMemStore creates an empty store
func NewMemStore() *MemStore {
	return &MemStore{
		users:   make(map[string]*auth.User),
		keys:    make(map[string]*auth.APIKey),
		keyUser: make(map[string]string),
	}
}

func copyUser(u *auth.User) *auth.User {
	cp := *u
	if u.RefreshToken != nil {
		tok := *u.RefreshToken
		cp.RefreshToken = &tok
	}
	return &cp
}

func (m *MemStore) CreateUser(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return auth.ErrConflict
		}
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *MemStore) FindUserByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *MemStore) FindUserByID(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return copyUser(u), nil
}

func (m *MemStore) ListUsers(_ context.Context) ([]*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*auth.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) UpdateRole(_ context.Context, id string, role auth.Role) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u.Role = role
	u.RefreshToken = nil
	return copyUser(u), nil
}

func (m *MemStore) UpdateRefreshToken(_ context.Context, userID string, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	if token == nil {
		u.RefreshToken = nil
		return nil
	}
	tok := *token
	u.RefreshToken = &tok
	return nil
}

func (m *MemStore) RotateRefreshToken(_ context.Context, userID, current, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != current {
		return false, nil
	}
	u.RefreshToken = &next
	return true, nil
}

func (m *MemStore) CreateAPIKey(_ context.Context, key *auth.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keyUser[key.UserID]; ok {
		return auth.ErrConflict
	}
	cp := *key
	m.keys[key.KeyHash] = &cp
	m.keyUser[key.UserID] = key.KeyHash
	return nil
}

func (m *MemStore) FindAPIKeyByHash(_ context.Context, keyHash string) (*auth.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.KeyLookups++
	k, ok := m.keys[keyHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *MemStore) DeleteExpiredAPIKeys(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for h, k := range m.keys {
		if !k.ExpiresAt.After(before) {
			delete(m.keys, h)
			delete(m.keyUser, k.UserID)
			n++
		}
	}
	return n, nil
}

// SeedUser stores a user with the given password hashed at the minimum bcrypt
// cost and returns it.
func (m *MemStore) SeedUser(id, email, password string, role auth.Role) (*auth.User, error) {
	hash, err := auth.HashPassword(password, 4)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &auth.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		FullName:     "test user",
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.CreateUser(context.Background(), u); err != nil {
		return nil, err
	}
	return u, nil
}

// StoredRefreshToken returns the persisted refresh token for a user
func (m *MemStore) StoredRefreshToken(userID string) *string {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.RefreshToken == nil {
		return nil
	}
	tok := *u.RefreshToken
	return &tok
}
