package rbac

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

// Entry is one row of the matrix
type Entry struct {
	Method   string      `json:"method" yaml:"method"`
	Template string      `json:"template" yaml:"template"`
	Roles    []auth.Role `json:"roles" yaml:"roles"`
}

type key struct {
	method   string
	template string
}

type roleSet map[auth.Role]struct{}

// Matrix is an immutable (method, template) -> allowed roles table
type Matrix struct {
	entries map[key]roleSet
}

// Allowed reports whether role may call method on template. Unknown pairs
// are denied.
func (m *Matrix) Allowed(method, template string, role auth.Role) bool {
	if m == nil {
		return false
	}
	roles, ok := m.entries[key{strings.ToUpper(method), NormalizeTemplate(template)}]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}

// Has reports whether the pair has an entry
func (m *Matrix) Has(method, template string) bool {
	if m == nil {
		return false
	}
	_, ok := m.entries[key{strings.ToUpper(method), NormalizeTemplate(template)}]
	return ok
}

// Roles returns the allowed roles for the pair in auth.AllRoles order
func (m *Matrix) Roles(method, template string) []auth.Role {
	if m == nil {
		return nil
	}
	return sortedRoles(m.entries[key{strings.ToUpper(method), NormalizeTemplate(template)}])
}

// Len returns the number of entries
func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns every row sorted by template then method
func (m *Matrix) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, 0, len(m.entries))
	for k, roles := range m.entries {
		out = append(out, Entry{Method: k.method, Template: k.template, Roles: sortedRoles(roles)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Template != out[j].Template {
			return out[i].Template < out[j].Template
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// MarshalYAML renders the matrix as its sorted entries
func (m *Matrix) MarshalYAML() (interface{}, error) {
	return m.Entries(), nil
}

func sortedRoles(set roleSet) []auth.Role {
	out := make([]auth.Role, 0, len(set))
	for _, r := range auth.AllRoles {
		if _, ok := set[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Builder collects grants and produces a Matrix
type Builder struct {
	entries map[key]roleSet
	errs    []error
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{entries: make(map[key]roleSet)}
}

// Grant allows roles to call method on template. Granting the same canonical
// pair twice, granting no roles, or granting an unknown role is recorded as
// an error and reported by Build.
func (b *Builder) Grant(method, template string, roles ...auth.Role) *Builder {
	method = strings.ToUpper(strings.TrimSpace(method))
	canonical := NormalizeTemplate(template)

	if method == "" {
		b.errs = append(b.errs, fmt.Errorf("grant %q: empty method", canonical))
		return b
	}
	if len(roles) == 0 {
		b.errs = append(b.errs, fmt.Errorf("grant %s %s: no roles", method, canonical))
		return b
	}

	k := key{method, canonical}
	if _, dup := b.entries[k]; dup {
		b.errs = append(b.errs, fmt.Errorf("grant %s %s: duplicate entry", method, canonical))
		return b
	}

	set := make(roleSet, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			b.errs = append(b.errs, fmt.Errorf("grant %s %s: unknown role %q", method, canonical, r))
			return b
		}
		set[r] = struct{}{}
	}
	b.entries[k] = set
	return b
}

// Build returns the matrix, or every recorded grant error
func (b *Builder) Build() (*Matrix, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	entries := make(map[key]roleSet, len(b.entries))
	for k, set := range b.entries {
		cp := make(roleSet, len(set))
		for r := range set {
			cp[r] = struct{}{}
		}
		entries[k] = cp
	}
	return &Matrix{entries: entries}, nil
}

// NormalizeTemplate returns the canonical spelling of a route template:
// leading slash, no trailing or repeated slashes, and every parameter written
// as {name} whether it arrived as :name, {name} or {name:pattern}.
func NormalizeTemplate(template string) string {
	parts := strings.Split(strings.TrimSpace(template), "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		switch {
		case strings.HasPrefix(p, ":") && len(p) > 1:
			p = "{" + p[1:] + "}"
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
			name := p[1 : len(p)-1]
			if i := strings.Index(name, ":"); i >= 0 {
				name = name[:i]
			}
			p = "{" + name + "}"
		}
		segments = append(segments, p)
	}
	return "/" + strings.Join(segments, "/")
}
