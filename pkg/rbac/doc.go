// Package rbac holds the permission matrix that gates every protected route.
//
// # Overview
//
// The matrix maps (HTTP method, route template) to the set of roles allowed to
// call it. It is built once at startup and never changes afterwards, so it is
// shared across requests without locking.
//
// Lookups fail closed: a (method, template) pair with no entry denies every
// role, Admin included. Role checks are exact set membership; there is no
// hierarchy and no implicit admin bypass.
//
// # Templates
//
// Keys are route templates, never concrete URLs. NormalizeTemplate brings
// every spelling to one canonical form before it is stored or looked up:
//
//	/students/:studentId/   -> /students/{studentId}
//	students//{id:[0-9]+}   -> /students/{id}
//
// # Usage
//
//	b := rbac.NewBuilder()
//	b.Grant("GET", "/api/v1/courses", auth.RoleStudent, auth.RoleFaculty, auth.RoleAdmin)
//	b.Grant("POST", "/api/v1/courses", auth.RoleAdmin)
//	matrix, err := b.Build()
//
//	matrix.Allowed("POST", "/api/v1/courses", auth.RoleFaculty) // false
//
// The api package builds the matrix from its route table, so a route cannot be
// registered without an entry.
package rbac
