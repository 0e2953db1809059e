package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/campusgate/pkg/audit"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/httputil"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

// listUsers handles GET /users
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context())
	writeList(s, w, r, users, err, "Users")
}

// changeRole handles PUT /users/{id}/role
func (s *Server) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathString(r, "id")
	if err != nil {
		s.writeError(w, r, httputil.BadRequest("User ID is required"))
		return
	}

	var req validation.ChangeRoleRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.auth.ChangeRole(r.Context(), id, auth.Role(req.Role))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			err = httputil.NotFound("User not found")
		}
		s.writeError(w, r, err)
		return
	}

	s.record(r, s.event(r, audit.EventTypeAuthzRoleChange, audit.EventStatusSuccess).
		WithResource(user.ID).
		WithMetadata("role", string(user.Role)))

	httputil.WriteSuccess(w, "User role updated successfully", struct {
		ID       string    `json:"id"`
		FullName string    `json:"fullName"`
		Role     auth.Role `json:"role"`
	}{user.ID, user.FullName, user.Role})
}
