package rbac

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

func TestNormalizeTemplate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"users", "/users"},
		{"/users/", "/users"},
		{"//users//{id}/role/", "/users/{id}/role"},
		{"/users/:id/role", "/users/{id}/role"},
		{"/users/{id:[0-9a-f-]+}/role", "/users/{id}/role"},
		{"  /courses/:courseId/materials  ", "/courses/{courseId}/materials"},
		{"/weird/:", "/weird/:"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTemplate(tt.in))
		})
	}
}

func buildTestMatrix(t *testing.T) *Matrix {
	t.Helper()
	m, err := NewBuilder().
		Grant("GET", "/users", auth.RoleAdmin).
		Grant("PUT", "/users/:id/role", auth.RoleAdmin).
		Grant("GET", "/courses", auth.RoleStudent, auth.RoleFaculty, auth.RoleAdmin).
		Grant("post", "/courses/", auth.RoleAdmin).
		Build()
	require.NoError(t, err)
	return m
}

func TestMatrix_Allowed(t *testing.T) {
	m := buildTestMatrix(t)

	tests := []struct {
		name     string
		method   string
		template string
		role     auth.Role
		want     bool
	}{
		{"admin lists users", "GET", "/users", auth.RoleAdmin, true},
		{"student cannot list users", "GET", "/users", auth.RoleStudent, false},
		{"faculty cannot list users", "GET", "/users", auth.RoleFaculty, false},
		{"student cannot change role", "PUT", "/users/{id}/role", auth.RoleStudent, false},
		{"admin changes role via mux template", "PUT", "/users/{id}/role", auth.RoleAdmin, true},
		{"lowercase method matches", "get", "/courses", auth.RoleStudent, true},
		{"trailing slash normalized", "POST", "/courses", auth.RoleAdmin, true},
		{"faculty cannot create course", "POST", "/courses", auth.RoleFaculty, false},
		{"unknown method denied for admin", "DELETE", "/courses", auth.RoleAdmin, false},
		{"unknown route denied for admin", "GET", "/secrets", auth.RoleAdmin, false},
		{"concrete url is not a template", "PUT", "/users/42/role", auth.RoleAdmin, false},
		{"empty role denied", "GET", "/courses", auth.Role(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Allowed(tt.method, tt.template, tt.role))
		})
	}
}

func TestMatrix_DenyByDefaultForEveryRole(t *testing.T) {
	m := buildTestMatrix(t)

	for _, role := range auth.AllRoles {
		assert.False(t, m.Allowed("GET", "/not-registered", role), "role %s", role)
	}

	var nilMatrix *Matrix
	assert.False(t, nilMatrix.Allowed("GET", "/users", auth.RoleAdmin))
}

func TestMatrix_RolesAndEntries(t *testing.T) {
	m := buildTestMatrix(t)

	assert.Equal(t, []auth.Role{auth.RoleStudent, auth.RoleFaculty, auth.RoleAdmin}, m.Roles("GET", "/courses"))
	assert.Empty(t, m.Roles("GET", "/nope"))
	assert.Equal(t, 4, m.Len())
	assert.True(t, m.Has("PUT", "/users/:id/role"))

	entries := m.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, Entry{Method: "GET", Template: "/courses", Roles: []auth.Role{auth.RoleStudent, auth.RoleFaculty, auth.RoleAdmin}}, entries[0])
	assert.Equal(t, "POST", entries[1].Method)
	assert.Equal(t, "/users/{id}/role", entries[3].Template)
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
	}{
		{"duplicate after normalization", func(b *Builder) {
			b.Grant("GET", "/users/:id", auth.RoleAdmin).Grant("GET", "/users/{id}/", auth.RoleStudent)
		}},
		{"no roles", func(b *Builder) { b.Grant("GET", "/users") }},
		{"unknown role", func(b *Builder) { b.Grant("GET", "/users", auth.Role("Root")) }},
		{"empty method", func(b *Builder) { b.Grant(" ", "/users", auth.RoleAdmin) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			m, err := b.Build()
			assert.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestMatrix_IsolatedFromBuilder(t *testing.T) {
	b := NewBuilder().Grant("GET", "/courses", auth.RoleAdmin)
	m, err := b.Build()
	require.NoError(t, err)

	b.Grant("GET", "/events", auth.RoleAdmin)
	assert.False(t, m.Has("GET", "/events"))
}

func TestMatrix_ConcurrentReads(t *testing.T) {
	m := buildTestMatrix(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Allowed("GET", "/courses", auth.RoleStudent)
			}
		}()
	}
	wg.Wait()
}

func TestMatrix_MarshalYAML(t *testing.T) {
	m, err := NewBuilder().Grant("GET", "/users", auth.RoleAdmin).Build()
	require.NoError(t, err)

	out, err := yaml.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(out), "template: /users")
	assert.Contains(t, string(out), "- Admin")
}
