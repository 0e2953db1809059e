package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/campusgate/pkg/audit"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/httputil"
	"github.com/platinummonkey/campusgate/pkg/middleware"
	"github.com/platinummonkey/campusgate/pkg/observability"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

// userSummary is the public view of a user returned by the auth routes
type userSummary struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     auth.Role `json:"role"`
}

func summarize(u *auth.User) userSummary {
	return userSummary{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// apiKeyResponse carries the plaintext exactly once
type apiKeyResponse struct {
	APIKey    string    `json:"apiKey"`
	KeyPrefix string    `json:"keyPrefix"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// register handles POST /auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req validation.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Role:        auth.Role(req.Role),
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		s.metrics.RecordAuthEvent("register", "failure")
		if errors.Is(err, auth.ErrConflict) {
			err = httputil.Conflict("User already exists")
		}
		s.writeError(w, r, err)
		return
	}

	s.metrics.RecordAuthEvent("register", "success")
	s.record(r, s.event(r, audit.EventTypeAuthRegister, audit.EventStatusSuccess).WithUser(user))
	httputil.WriteCreated(w, "User registered successfully", summarize(user))
}

// login handles POST /auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}

	session, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.RecordAuthEvent("login", "failure")
			s.record(r, s.event(r, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure).
				WithMetadata("email", req.Email))
		}
		s.writeError(w, r, err)
		return
	}

	s.metrics.RecordAuthEvent("login", "success")
	s.record(r, s.event(r, audit.EventTypeAuthLogin, audit.EventStatusSuccess).WithUser(session.User))

	httputil.SetAuthCookies(w, s.cookies, session.Tokens)
	httputil.WriteSuccess(w, "User logged in successfully", summarize(session.User))
}

// refresh handles GET|POST /auth/refresh-token. Only the refresh cookie is
// read; the access cookie may already have expired.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	_, token := httputil.ReadAuthCookies(r)
	if token == "" {
		s.writeError(w, r, auth.ErrMissingCredentials)
		return
	}

	session, err := s.auth.Refresh(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrRefreshTokenMismatch):
		s.metrics.RecordAuthEvent("refresh", "mismatch")
		s.record(r, s.event(r, audit.EventTypeAuthRefreshMismatch, audit.EventStatusDenied))
		s.writeError(w, r, err)
		return
	case err != nil:
		s.metrics.RecordAuthEvent("refresh", "failure")
		s.writeError(w, r, err)
		return
	}

	s.metrics.RecordAuthEvent("refresh", "success")
	s.record(r, s.event(r, audit.EventTypeAuthRefresh, audit.EventStatusSuccess).WithUser(session.User))

	httputil.SetAuthCookies(w, s.cookies, session.Tokens)
	httputil.WriteSuccess(w, "Tokens refreshed successfully", nil)
}

// logout handles POST /auth/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	if err := s.auth.Logout(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.RecordAuthEvent("logout", "success")
	s.record(r, s.event(r, audit.EventTypeAuthLogout, audit.EventStatusSuccess))

	httputil.ClearAuthCookies(w, s.cookies)
	httputil.WriteSuccess(w, "User logged out successfully", struct{}{})
}

// generateKey handles POST /auth/generate-key
func (s *Server) generateKey(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	plaintext, key, err := s.auth.IssueAPIKey(r.Context(), p)
	if err != nil {
		if errors.Is(err, auth.ErrConflict) {
			s.metrics.RecordAuthEvent("api_key", "conflict")
			err = httputil.Conflict("API key already exists")
		}
		s.writeError(w, r, err)
		return
	}

	s.metrics.RecordAuthEvent("api_key", "issued")
	s.record(r, s.event(r, audit.EventTypeAuthKeyIssued, audit.EventStatusSuccess).
		WithResource(key.ID).
		WithMetadata("key_prefix", key.KeyPrefix))
	observability.FromContext(r.Context()).
		WithFields(map[string]interface{}{"user_id": p.ID, "key_prefix": key.KeyPrefix}).
		Info("API key issued")

	httputil.WriteCreated(w, "API key created successfully", apiKeyResponse{
		APIKey:    plaintext,
		KeyPrefix: key.KeyPrefix,
		ExpiresAt: key.ExpiresAt,
	})
}

// profile handles GET /auth/profile
func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	user, err := s.auth.Profile(r.Context(), p)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			err = httputil.NotFound("User not found")
		}
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "User profile retrieved successfully", user)
}

// decode reads the normalized body left by the validation stage
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := httputil.ParseJSON(r, dest); err != nil {
		s.writeError(w, r, httputil.BadRequest("Invalid request body"))
		return false
	}
	return true
}
