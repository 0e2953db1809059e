package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/rbac"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

// APIPrefix is the mount point of every gated route
const APIPrefix = "/api/v1"

var (
	everyone      = []auth.Role{auth.RoleStudent, auth.RoleFaculty, auth.RoleAdmin}
	adminOnly     = []auth.Role{auth.RoleAdmin}
	facultyOnly   = []auth.Role{auth.RoleFaculty}
	staff         = []auth.Role{auth.RoleAdmin, auth.RoleFaculty}
	studentsStaff = []auth.Role{auth.RoleStudent, auth.RoleAdmin, auth.RoleFaculty}
)

// Route is one row of the route table. Registration derives both the mux
// route and its matrix grant from the same row.
type Route struct {
	Methods []string
	Path    string

	// Roles is nil for public routes, which skip the auth pipeline
	Roles []auth.Role

	// APIKey adds the x-api-key stage after authentication
	APIKey bool

	// RateLimited routes share the login limiter
	RateLimited bool

	Schema  validation.Schema
	Handler http.HandlerFunc
}

// Public reports whether the route bypasses the pipeline
func (rt Route) Public() bool {
	return len(rt.Roles) == 0
}

// Template is the canonical mux template including the API prefix
func (rt Route) Template() string {
	return rbac.NormalizeTemplate(APIPrefix + "/" + strings.TrimPrefix(rt.Path, "/"))
}

// routes is the single declaration of the API surface
func (s *Server) routes() []Route {
	get := []string{http.MethodGet}
	post := []string{http.MethodPost}
	put := []string{http.MethodPut}

	return []Route{
		// auth
		{Methods: post, Path: "/auth/register", RateLimited: true, Schema: validation.RegisterSchema, Handler: s.register},
		{Methods: post, Path: "/auth/login", RateLimited: true, Schema: validation.LoginSchema, Handler: s.login},
		{Methods: []string{http.MethodGet, http.MethodPost}, Path: "/auth/refresh-token", RateLimited: true, Handler: s.refresh},
		{Methods: post, Path: "/auth/logout", Roles: everyone, Handler: s.logout},
		{Methods: post, Path: "/auth/generate-key", Roles: everyone, Handler: s.generateKey},
		{Methods: get, Path: "/auth/profile", Roles: everyone, Handler: s.profile},

		// admin
		{Methods: get, Path: "/users", Roles: adminOnly, APIKey: true, Handler: s.listUsers},
		{Methods: put, Path: "/users/{id}/role", Roles: adminOnly, Schema: validation.ChangeRoleSchema, Handler: s.changeRole},

		// announcements
		{Methods: get, Path: "/announcements", Roles: everyone, APIKey: true, Handler: s.listAnnouncements},
		{Methods: post, Path: "/announcements", Roles: staff, APIKey: true, Schema: validation.AnnouncementSchema, Handler: s.createAnnouncement},

		// attendance
		{Methods: post, Path: "/attendance", Roles: facultyOnly, APIKey: true, Schema: validation.AttendanceSchema, Handler: s.recordAttendance},
		{Methods: get, Path: "/attendance/students/{studentId}", Roles: studentsStaff, APIKey: true, Handler: s.studentAttendance},
		{Methods: get, Path: "/attendance/courses/{courseId}", Roles: staff, APIKey: true, Handler: s.courseAttendance},

		// courses
		{Methods: get, Path: "/courses", Roles: everyone, APIKey: true, Handler: s.listCourses},
		{Methods: post, Path: "/courses", Roles: adminOnly, APIKey: true, Schema: validation.CourseSchema, Handler: s.createCourse},
		{Methods: get, Path: "/courses/{courseId}/materials", Roles: []auth.Role{auth.RoleStudent, auth.RoleFaculty}, APIKey: true, Handler: s.listMaterials},
		{Methods: post, Path: "/courses/{courseId}/materials", Roles: facultyOnly, APIKey: true, Schema: validation.MaterialSchema, Handler: s.addMaterial},

		// enrollments
		{Methods: get, Path: "/enrollments", Roles: adminOnly, APIKey: true, Handler: s.listEnrollments},
		{Methods: post, Path: "/enrollments", Roles: adminOnly, APIKey: true, Schema: validation.EnrollmentSchema, Handler: s.enroll},
		{Methods: get, Path: "/enrollments/students/{studentId}", Roles: []auth.Role{auth.RoleStudent, auth.RoleAdmin}, APIKey: true, Handler: s.studentEnrollments},
		{Methods: get, Path: "/enrollments/courses/{courseId}", Roles: []auth.Role{auth.RoleFaculty, auth.RoleAdmin}, APIKey: true, Handler: s.courseEnrollments},

		// events
		{Methods: get, Path: "/events", Roles: everyone, APIKey: true, Handler: s.listEvents},
		{Methods: post, Path: "/events", Roles: adminOnly, APIKey: true, Schema: validation.EventSchema, Handler: s.createEvent},

		// results
		{Methods: post, Path: "/results", Roles: adminOnly, APIKey: true, Schema: validation.ResultSchema, Handler: s.declareResults},
		{Methods: get, Path: "/results/students/{studentId}", Roles: everyone, APIKey: true, Handler: s.studentResults},
	}
}

// buildMatrix grants every protected route. Public routes have no entry.
func buildMatrix(routes []Route) (*rbac.Matrix, error) {
	b := rbac.NewBuilder()
	for _, rt := range routes {
		if rt.Public() {
			continue
		}
		for _, m := range rt.Methods {
			b.Grant(m, rt.Template(), rt.Roles...)
		}
	}
	m, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build permission matrix: %w", err)
	}
	return m, nil
}

// DefaultRoutes returns the route table without bound handlers
func DefaultRoutes() []Route {
	routes := (&Server{}).routes()
	for i := range routes {
		routes[i].Handler = nil
	}
	return routes
}

// DefaultMatrix builds the permission matrix from the route table
func DefaultMatrix() (*rbac.Matrix, error) {
	return buildMatrix((&Server{}).routes())
}
