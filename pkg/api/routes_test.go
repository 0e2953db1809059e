package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

func TestDefaultMatrix_CoversProtectedRoutes(t *testing.T) {
	matrix, err := DefaultMatrix()
	require.NoError(t, err)

	protected := 0
	for _, rt := range DefaultRoutes() {
		assert.Nil(t, rt.Handler)
		for _, m := range rt.Methods {
			if rt.Public() {
				assert.False(t, matrix.Has(m, rt.Template()), "%s %s", m, rt.Template())
				continue
			}
			protected++
			assert.ElementsMatch(t, rt.Roles, matrix.Roles(m, rt.Template()), "%s %s", m, rt.Template())
		}
	}
	assert.Equal(t, protected, matrix.Len())
}

func TestRouteTable(t *testing.T) {
	byKey := map[string]Route{}
	for _, rt := range DefaultRoutes() {
		for _, m := range rt.Methods {
			byKey[m+" "+rt.Template()] = rt
		}
	}

	tests := []struct {
		key         string
		public      bool
		apiKey      bool
		rateLimited bool
		roles       []auth.Role
	}{
		{key: "POST /api/v1/auth/login", public: true, rateLimited: true},
		{key: "POST /api/v1/auth/register", public: true, rateLimited: true},
		{key: "GET /api/v1/auth/refresh-token", public: true, rateLimited: true},
		{key: "POST /api/v1/auth/generate-key", roles: everyone},
		{key: "PUT /api/v1/users/{id}/role", roles: adminOnly},
		{key: "GET /api/v1/users", roles: adminOnly, apiKey: true},
		{key: "POST /api/v1/enrollments", roles: adminOnly, apiKey: true},
		{key: "GET /api/v1/events", roles: everyone, apiKey: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			rt, ok := byKey[tt.key]
			require.True(t, ok)
			assert.Equal(t, tt.public, rt.Public())
			assert.Equal(t, tt.apiKey, rt.APIKey)
			assert.Equal(t, tt.rateLimited, rt.RateLimited)
			if !tt.public {
				assert.ElementsMatch(t, tt.roles, rt.Roles)
			}
		})
	}
}

func TestRouterTemplatesMatchMatrix(t *testing.T) {
	env := newTestEnv(t)
	matrix := env.server.Matrix()

	public := map[string]bool{}
	for _, rt := range DefaultRoutes() {
		if rt.Public() {
			for _, m := range rt.Methods {
				public[m+" "+rt.Template()] = true
			}
		}
	}

	seen := 0
	err := env.server.Router().Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		template, err := route.GetPathTemplate()
		if err != nil || !strings.HasPrefix(template, APIPrefix+"/") {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		for _, m := range methods {
			seen++
			if public[m+" "+template] {
				continue
			}
			assert.True(t, matrix.Has(m, template), "no grant for %s %s", m, template)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, matrix.Len()+len(public), seen)
}

func TestMatrixDeniesUnlistedMethod(t *testing.T) {
	matrix, err := DefaultMatrix()
	require.NoError(t, err)
	assert.False(t, matrix.Allowed(http.MethodDelete, APIPrefix+"/courses", auth.RoleAdmin))
	assert.False(t, matrix.Allowed(http.MethodPost, APIPrefix+"/results", auth.RoleFaculty))
	assert.True(t, matrix.Allowed(http.MethodGet, APIPrefix+"/courses/{courseId}/materials", auth.RoleStudent))
}
