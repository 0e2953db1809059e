package auth

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredentials   = errors.New("access token or refresh token not found")
	ErrInvalidToken         = errors.New("invalid token")
	ErrExpiredToken         = errors.New("token expired")
	ErrMalformedToken       = errors.New("malformed token claims")
	ErrInvalidAPIKey        = errors.New("invalid API key")
	ErrForbidden            = errors.New("access denied")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrRefreshTokenMismatch = errors.New("refresh token mismatch or expired")
	ErrConflict             = errors.New("resource already exists")
	ErrNotFound             = errors.New("not found")
	ErrInvalidRole          = errors.New("invalid role")
	ErrRateLimited          = errors.New("too many requests")
)

// ConfigurationError reports a missing or inconsistent setting. It is only
// raised while the process starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// IsTokenError reports whether err is one of the token verification failures
func IsTokenError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrMalformedToken)
}
