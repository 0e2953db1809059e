package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/httputil"
	"github.com/platinummonkey/campusgate/pkg/rbac"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

type fakeKeys struct {
	valid map[string]*auth.APIKey
	calls int
}

func (f *fakeKeys) ValidateAPIKey(_ context.Context, plaintext string) (*auth.APIKey, error) {
	f.calls++
	if key, ok := f.valid[plaintext]; ok {
		return key, nil
	}
	return nil, auth.ErrInvalidAPIKey
}

type fixture struct {
	tokens *auth.TokenService
	keys   *fakeKeys
	router *mux.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := auth.NewTokenService("access-secret", "refresh-secret")
	require.NoError(t, err)

	matrix, err := rbac.NewBuilder().
		Grant(http.MethodPut, "/api/v1/users/{id}/role", auth.RoleAdmin).
		Grant(http.MethodGet, "/api/v1/courses", auth.RoleStudent, auth.RoleFaculty, auth.RoleAdmin).
		Grant(http.MethodPost, "/api/v1/courses", auth.RoleAdmin).
		Build()
	require.NoError(t, err)

	keys := &fakeKeys{valid: map[string]*auth.APIKey{"good-key": {ID: "k1", UserID: "u-1"}}}

	base := NewPipeline(httputil.WriteError, Authenticate(tokens))
	keyed := base.With(RequireAPIKey(keys), Authorize(matrix))

	echo := func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		body, _ := io.ReadAll(r.Body)
		httputil.WriteSuccess(w, "ok", map[string]interface{}{"principal": p, "body": string(body)})
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Handle("/users/{id}/role", base.With(Authorize(matrix), ValidateBody(validation.ChangeRoleSchema)).ThenFunc(echo)).
		Methods(http.MethodPut)
	api.Handle("/courses", keyed.ThenFunc(echo)).Methods(http.MethodGet)
	api.Handle("/courses", keyed.With(ValidateBody(validation.CourseSchema)).ThenFunc(echo)).Methods(http.MethodPost)
	// registered without a matrix entry
	api.Handle("/secret", base.With(Authorize(matrix)).ThenFunc(echo)).Methods(http.MethodGet)

	return &fixture{tokens: tokens, keys: keys, router: router}
}

func (f *fixture) do(t *testing.T, method, path, body string, role auth.Role, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		pair, err := f.tokens.IssuePair(auth.Principal{ID: "u-1", Email: "a@x.com", Role: role})
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: httputil.AccessCookieName, Value: pair.AccessToken})
		req.AddCookie(&http.Cookie{Name: httputil.RefreshCookieName, Value: pair.RefreshToken})
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func withAPIKey(key string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(APIKeyHeader, key) }
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthenticate_MissingCookies(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/courses", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", envelope(t, rec).Message)

	pair, err := f.tokens.IssuePair(auth.Principal{ID: "u-1", Email: "a@x.com", Role: auth.RoleAdmin})
	require.NoError(t, err)

	onlyAccess := f.do(t, http.MethodGet, "/api/v1/courses", "", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: httputil.AccessCookieName, Value: pair.AccessToken})
	}, withAPIKey("good-key"))
	assert.Equal(t, http.StatusUnauthorized, onlyAccess.Code, "refresh cookie must be present too")
	assert.Zero(t, f.keys.calls, "key stage must not run after authentication fails")
}

func TestAuthenticate_RejectsRefreshTokenAsAccess(t *testing.T) {
	f := newFixture(t)
	pair, err := f.tokens.IssuePair(auth.Principal{ID: "u-1", Email: "a@x.com", Role: auth.RoleAdmin})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/v1/courses", "", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: httputil.AccessCookieName, Value: pair.RefreshToken})
		r.AddCookie(&http.Cookie{Name: httputil.RefreshCookieName, Value: pair.RefreshToken})
	}, withAPIKey("good-key"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAPIKey(t *testing.T) {
	f := newFixture(t)

	missing := f.do(t, http.MethodGet, "/api/v1/courses", "", auth.RoleStudent)
	assert.Equal(t, http.StatusForbidden, missing.Code)

	wrong := f.do(t, http.MethodGet, "/api/v1/courses", "", auth.RoleStudent, withAPIKey("bad-key"))
	assert.Equal(t, http.StatusForbidden, wrong.Code)

	ok := f.do(t, http.MethodGet, "/api/v1/courses", "", auth.RoleStudent, withAPIKey("good-key"))
	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestAuthorize_UsesRouteTemplate(t *testing.T) {
	f := newFixture(t)

	student := f.do(t, http.MethodPut, "/api/v1/users/42/role", `{"role":"Faculty"}`, auth.RoleStudent)
	assert.Equal(t, http.StatusForbidden, student.Code)
	assert.Equal(t, "Access denied", envelope(t, student).Message)

	admin := f.do(t, http.MethodPut, "/api/v1/users/42/role", `{"role":"Faculty"}`, auth.RoleAdmin)
	assert.Equal(t, http.StatusOK, admin.Code)
}

func TestAuthorize_RoleMatrixPerMethod(t *testing.T) {
	f := newFixture(t)

	for _, role := range auth.AllRoles {
		get := f.do(t, http.MethodGet, "/api/v1/courses", "", role, withAPIKey("good-key"))
		assert.Equal(t, http.StatusOK, get.Code, role)
	}

	faculty := f.do(t, http.MethodPost, "/api/v1/courses", `{"code":"CS101","name":"Intro","description":"Basics"}`,
		auth.RoleFaculty, withAPIKey("good-key"))
	assert.Equal(t, http.StatusForbidden, faculty.Code)
}

func TestAuthorize_DeniesRouteWithoutEntry(t *testing.T) {
	f := newFixture(t)

	for _, role := range auth.AllRoles {
		rec := f.do(t, http.MethodGet, "/api/v1/secret", "", role)
		assert.Equal(t, http.StatusForbidden, rec.Code, role)
	}
}

func TestAuthorize_WithoutPrincipal(t *testing.T) {
	matrix, err := rbac.NewBuilder().Build()
	require.NoError(t, err)

	_, err = Authorize(matrix).Run(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)
}

func TestValidateBody_ReplacesBodyWithNormalizedJSON(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/courses",
		`{"code":"  CS101 ","name":"Intro To Go","description":"Basics","extra":"dropped"}`,
		auth.RoleAdmin, withAPIKey("good-key"))
	require.Equal(t, http.StatusOK, rec.Code)

	data := envelope(t, rec).Data.(map[string]interface{})
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(data["body"].(string)), &body))
	assert.Equal(t, "cs101", body["code"])
	assert.Equal(t, "intro to go", body["name"])
	assert.NotContains(t, body, "extra")
}

func TestValidateBody_AggregatesErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/courses", `{"code":"x","name":"y"}`, auth.RoleAdmin, withAPIKey("good-key"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	msg := envelope(t, rec).Message
	assert.True(t, strings.HasPrefix(msg, "Validation error: "), msg)
	assert.Contains(t, msg, "code: must be at least 3 characters")
	assert.Contains(t, msg, "name: must be at least 3 characters")
	assert.Contains(t, msg, "description: is required")
}

func TestValidateBody_RunsAfterAuthorization(t *testing.T) {
	f := newFixture(t)

	// invalid body from a forbidden role is a 403, not a 400
	rec := f.do(t, http.MethodPut, "/api/v1/users/42/role", `{"role":"Root"}`, auth.RoleStudent)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestValidateBody_TooLarge(t *testing.T) {
	stage := ValidateBody(validation.LoginSchema)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","password":"0123456789"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 8)

	_, err := stage.Run(req)
	status, msg := httputil.StatusFor(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, msg, "must not exceed 8 bytes")
}
