package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/contextkeys"
	"github.com/platinummonkey/campusgate/pkg/httputil"
	"github.com/platinummonkey/campusgate/pkg/rbac"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

const (
	StageAuthenticate = "authenticate"
	StageAPIKey       = "api_key"
	StageAuthorize    = "authorize"
	StageValidate     = "validate"
)

// APIKeyHeader carries the machine key
const APIKeyHeader = "x-api-key"

// TokenVerifier verifies access tokens
type TokenVerifier interface {
	Verify(token string, kind auth.TokenKind) (*auth.Principal, error)
}

// APIKeyValidator resolves a presented API key
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, plaintext string) (*auth.APIKey, error)
}

// Authenticate requires both auth cookies and attaches the principal from the
// access token. The refresh cookie must be present but is not verified here.
func Authenticate(tokens TokenVerifier) Stage {
	return StageFunc(StageAuthenticate, func(r *http.Request) (*http.Request, error) {
		access, refresh := httputil.ReadAuthCookies(r)
		if access == "" || refresh == "" {
			return nil, auth.ErrMissingCredentials
		}

		principal, err := tokens.Verify(access, auth.TokenAccess)
		if err != nil {
			return nil, err
		}
		return r.WithContext(contextkeys.WithPrincipal(r.Context(), principal)), nil
	})
}

// RequireAPIKey validates the x-api-key header
func RequireAPIKey(keys APIKeyValidator) Stage {
	return StageFunc(StageAPIKey, func(r *http.Request) (*http.Request, error) {
		plaintext := r.Header.Get(APIKeyHeader)
		if plaintext == "" {
			return nil, auth.ErrInvalidAPIKey
		}

		key, err := keys.ValidateAPIKey(r.Context(), plaintext)
		if err != nil {
			return nil, err
		}
		return r.WithContext(contextkeys.WithAPIKey(r.Context(), key)), nil
	})
}

// Authorize checks the principal's role against the matrix entry for the
// matched route template. Unknown routes are denied.
func Authorize(matrix *rbac.Matrix) Stage {
	return StageFunc(StageAuthorize, func(r *http.Request) (*http.Request, error) {
		principal, ok := PrincipalFrom(r.Context())
		if !ok {
			return nil, auth.ErrMissingCredentials
		}

		route := mux.CurrentRoute(r)
		if route == nil {
			return nil, auth.ErrForbidden
		}
		template, err := route.GetPathTemplate()
		if err != nil {
			return nil, auth.ErrForbidden
		}

		if !matrix.Allowed(r.Method, template, principal.Role) {
			return nil, fmt.Errorf("%w: %s %s for %s", auth.ErrForbidden, r.Method, template, principal.Role)
		}
		return r, nil
	})
}

// ValidateBody checks the body against schema and replaces it with the
// normalized JSON
func ValidateBody(schema validation.Schema) Stage {
	return StageFunc(StageValidate, func(r *http.Request) (*http.Request, error) {
		var raw []byte
		if r.Body != nil {
			var err error
			raw, err = io.ReadAll(r.Body)
			_ = r.Body.Close()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					return nil, &validation.ValidationError{Fields: []validation.FieldError{
						{Field: "body", Rule: "max", Message: fmt.Sprintf("must not exceed %d bytes", tooLarge.Limit)},
					}}
				}
				return nil, fmt.Errorf("read body: %w", err)
			}
		}

		value, err := schema.Validate(raw)
		if err != nil {
			return nil, err
		}

		normalized, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", schema.Name(), err)
		}

		next := r.Clone(r.Context())
		next.Body = io.NopCloser(bytes.NewReader(normalized))
		next.ContentLength = int64(len(normalized))
		next.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(normalized)), nil
		}
		return next, nil
	})
}

// PrincipalFrom returns the authenticated principal
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
	return p, ok && p != nil
}

// APIKeyFrom returns the validated API key record
func APIKeyFrom(ctx context.Context) (*auth.APIKey, bool) {
	k, ok := ctx.Value(contextkeys.APIKeyKey).(*auth.APIKey)
	return k, ok && k != nil
}
