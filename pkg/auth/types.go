package auth

import (
	"fmt"
	"time"
)

// Role is the single role a user holds. Roles carry no hierarchy; checks are
// set membership only.
type Role string

const (
	RoleStudent Role = "Student"
	RoleFaculty Role = "Faculty"
	RoleAdmin   Role = "Admin"
)

// AllRoles lists every role in a stable order
var AllRoles = []Role{RoleStudent, RoleFaculty, RoleAdmin}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	}
	return false
}

// ParseRole parses a role name. Matching is exact.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Principal is the verified identity attached to a request
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// User is a stored user record
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	PhoneNumber  *string   `json:"phoneNumber,omitempty"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	RefreshToken *string   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Principal returns the token identity for the user
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

// APIKey is the stored half of a machine credential. The plaintext is never
// persisted.
type APIKey struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	KeyHash   string    `json:"-"`
	KeyPrefix string    `json:"keyPrefix"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the key is past its hard cutoff at now
func (k *APIKey) Expired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}

// TokenPair is a freshly issued access and refresh token
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session is the result of a successful login or refresh
type Session struct {
	User   *User
	Tokens TokenPair
}
