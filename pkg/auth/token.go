package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTTL is the access token lifetime when none is configured
	DefaultAccessTTL = time.Hour
	// DefaultRefreshTTL is the refresh token lifetime when none is configured
	DefaultRefreshTTL = 7 * 24 * time.Hour
	// DefaultIssuer is written to the iss claim
	DefaultIssuer = "campusgate"
)

// TokenKind selects the secret and lifetime used for a token
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Claims is the signed payload of both token kinds
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies access and refresh tokens. Each kind has
// its own HS256 secret so neither can stand in for the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// TokenOption configures a TokenService
type TokenOption func(*TokenService)

// WithAccessTTL overrides the access token lifetime
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithIssuer overrides the iss claim
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithClock sets the time source, mainly for tests
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService creates a token service. Both secrets are required.
func NewTokenService(accessSecret, refreshSecret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(accessSecret) == "" {
		return nil, &ConfigurationError{Field: "access_token_secret", Reason: "not configured"}
	}
	if strings.TrimSpace(refreshSecret) == "" {
		return nil, &ConfigurationError{Field: "refresh_token_secret", Reason: "not configured"}
	}

	s := &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     DefaultAccessTTL,
		refreshTTL:    DefaultRefreshTTL,
		issuer:        DefaultIssuer,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a short-lived token for p
func (s *TokenService) IssueAccessToken(p Principal) (string, time.Time, error) {
	return s.issue(p, TokenAccess)
}

// IssueRefreshToken signs a long-lived token for p
func (s *TokenService) IssueRefreshToken(p Principal) (string, time.Time, error) {
	return s.issue(p, TokenRefresh)
}

// IssuePair signs a fresh access and refresh token for p
func (s *TokenService) IssuePair(p Principal) (TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenService) issue(p Principal, kind TokenKind) (string, time.Time, error) {
	if p.ID == "" || p.Email == "" || !p.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("issue %s token: %w", kind, ErrMalformedToken)
	}

	ttl := s.accessTTL
	if kind == TokenRefresh {
		ttl = s.refreshTTL
	}
	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID: p.ID,
		Email:  p.Email,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			// jti keeps two tokens minted in the same second distinct
			ID: uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretFor(kind))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature against the secret for kind, the expiry and
// the claim set, and returns the embedded principal.
func (s *TokenService) Verify(token string, kind TokenKind) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	secret := s.secretFor(kind)
	if secret == nil {
		return nil, fmt.Errorf("unknown token kind %q: %w", kind, ErrInvalidToken)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return nil, ErrMalformedToken
		default:
			return nil, ErrInvalidToken
		}
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" || claims.Email == "" || !claims.Role.Valid() {
		return nil, ErrMalformedToken
	}

	return &Principal{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

func (s *TokenService) secretFor(kind TokenKind) []byte {
	switch kind {
	case TokenAccess:
		return s.accessSecret
	case TokenRefresh:
		return s.refreshSecret
	}
	return nil
}
