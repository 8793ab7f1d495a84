package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense-dev/agrisense/internal/config"
	"github.com/agrisense-dev/agrisense/internal/guard"
	"github.com/agrisense-dev/agrisense/internal/menu"
	"github.com/agrisense-dev/agrisense/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Database: config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "agrisense.sqlite")},
		HTTP:     config.HTTPConfig{ListenAddr: ":0", CORSOrigins: []string{"http://localhost:4200"}},
		Auth:     config.AuthConfig{TokenTTL: time.Hour},
	}

	srv, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)

	t.Cleanup(func() { srv.Close() })
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seed creates the first admin and one regular user and returns their tokens.
func seed(t *testing.T, srv *Server) (adminToken, userToken string) {
	t.Helper()

	rec := doRequest(t, srv, http.MethodPost, "/api/setup", "", SetupRequest{
		Email: "admin@agrisense.test", Password: "admin-pass", Name: "Admin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	adminToken = decode[LoginResponse](t, rec).Token

	rec = doRequest(t, srv, http.MethodPost, "/api/users", adminToken, CreateUserRequest{
		Email: "farmer@agrisense.test", Name: "Farmer", Password: "farmer-pass", Role: "user",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email: "farmer@agrisense.test", Password: "farmer-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	userToken = decode[LoginResponse](t, rec).Token

	return adminToken, userToken
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", decode[map[string]any](t, rec)["status"])
}

func TestSetup_OnlyOnce(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/setup", "", SetupRequest{
		Email: "admin@agrisense.test", Password: "admin-pass", Name: "Admin",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[LoginResponse](t, rec)
	assert.Equal(t, session.RoleAdmin, resp.Role)
	assert.Equal(t, guard.AdminDashboard, resp.Home)
	assert.NotEmpty(t, resp.Token)

	rec = doRequest(t, srv, http.MethodPost, "/api/setup", "", SetupRequest{
		Email: "other@agrisense.test", Password: "x", Name: "Other",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSetup_SecretSurvivesRestart(t *testing.T) {
	srv := newTestServer(t)
	adminToken, _ := seed(t, srv)

	restarted, err := NewWithDB(srv.config, srv.db, zerolog.Nop(), "test")
	require.NoError(t, err)

	rec := doRequest(t, restarted, http.MethodGet, "/api/auth/me", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	tests := []struct {
		name     string
		body     any
		status   int
		wantRole session.Role
	}{
		{"user", LoginRequest{Email: "farmer@agrisense.test", Password: "farmer-pass"}, http.StatusOK, session.RoleUser},
		{"admin", LoginRequest{Email: "admin@agrisense.test", Password: "admin-pass"}, http.StatusOK, session.RoleAdmin},
		{"wrong password", LoginRequest{Email: "farmer@agrisense.test", Password: "nope"}, http.StatusUnauthorized, session.RoleNone},
		{"unknown email", LoginRequest{Email: "ghost@agrisense.test", Password: "nope"}, http.StatusUnauthorized, session.RoleNone},
		{"missing password", map[string]string{"email": "farmer@agrisense.test"}, http.StatusBadRequest, session.RoleNone},
		{"malformed email", LoginRequest{Email: "farmer", Password: "farmer-pass"}, http.StatusBadRequest, session.RoleNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/auth/login", "", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			if tt.status == http.StatusOK {
				resp := decode[LoginResponse](t, rec)
				assert.NotEmpty(t, resp.Token)
				assert.Equal(t, tt.wantRole, resp.Role)
				assert.Equal(t, guard.HomeFor(tt.wantRole), resp.Home)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t)
	_, userToken := seed(t, srv)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + userToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAdminEndpoints_SeparateUnauthorizedFromForbidden(t *testing.T) {
	srv := newTestServer(t)
	adminToken, userToken := seed(t, srv)

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, srv, http.MethodGet, "/api/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(t, srv, http.MethodGet, "/api/users", userToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(t, srv, http.MethodGet, "/api/system/info", userToken, nil).Code)

	rec := doRequest(t, srv, http.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]UserDetail](t, rec), 2)

	rec = doRequest(t, srv, http.MethodGet, "/api/system/info", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[SystemInfoResponse](t, rec)
	assert.Equal(t, map[string]int{"admin": 1, "user": 1}, info.Users)
}

func TestCreateUser_Validation(t *testing.T) {
	srv := newTestServer(t)
	adminToken, _ := seed(t, srv)

	bad := []CreateUserRequest{
		{Email: "a@agrisense.test", Name: "A", Password: "long-enough", Role: "root"},
		{Email: "a@agrisense.test", Name: "A", Password: "short", Role: "user"},
		{Email: "not-an-email", Name: "A", Password: "long-enough", Role: "user"},
	}
	for _, req := range bad {
		rec := doRequest(t, srv, http.MethodPost, "/api/users", adminToken, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%+v", req)
	}

	rec := doRequest(t, srv, http.MethodPost, "/api/users", adminToken, CreateUserRequest{
		Email: "farmer@agrisense.test", Name: "Dup", Password: "long-enough", Role: "admin",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	srv := newTestServer(t)
	adminToken, userToken := seed(t, srv)

	me := decode[UserDetail](t, doRequest(t, srv, http.MethodGet, "/api/auth/me", adminToken, nil))
	assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, http.MethodDelete, "/api/users/"+me.ID, adminToken, nil).Code)

	farmer := decode[UserDetail](t, doRequest(t, srv, http.MethodGet, "/api/auth/me", userToken, nil))
	assert.Equal(t, http.StatusNoContent, doRequest(t, srv, http.MethodDelete, "/api/users/"+farmer.ID, adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, srv, http.MethodDelete, "/api/users/"+farmer.ID, adminToken, nil).Code)

	// the deleted user's token is now rejected, which the client treats as an expired session
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, srv, http.MethodGet, "/api/auth/me", userToken, nil).Code)
}

func TestRoleChangeTakesEffectImmediately(t *testing.T) {
	srv := newTestServer(t)
	adminToken, userToken := seed(t, srv)

	assert.Equal(t, http.StatusForbidden, doRequest(t, srv, http.MethodGet, "/api/users", userToken, nil).Code)

	farmer := decode[UserDetail](t, doRequest(t, srv, http.MethodGet, "/api/auth/me", userToken, nil))
	rec := doRequest(t, srv, http.MethodPut, "/api/users/"+farmer.ID, adminToken, UpdateUserRequest{Role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, session.RoleAdmin, decode[UserDetail](t, rec).Role)

	// the token still says "user", but the stored role wins
	assert.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodGet, "/api/users", userToken, nil).Code)

	rec = doRequest(t, srv, http.MethodPut, "/api/users/"+farmer.ID, adminToken, UpdateUserRequest{Role: "user"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusForbidden, doRequest(t, srv, http.MethodGet, "/api/users", userToken, nil).Code)
}

func TestUpdateUser(t *testing.T) {
	srv := newTestServer(t)
	adminToken, userToken := seed(t, srv)

	admin := decode[UserDetail](t, doRequest(t, srv, http.MethodGet, "/api/auth/me", adminToken, nil))
	farmer := decode[UserDetail](t, doRequest(t, srv, http.MethodGet, "/api/auth/me", userToken, nil))

	tests := []struct {
		name   string
		token  string
		id     string
		body   UpdateUserRequest
		status int
	}{
		{"unknown role", adminToken, farmer.ID, UpdateUserRequest{Role: "root"}, http.StatusBadRequest},
		{"short password", adminToken, farmer.ID, UpdateUserRequest{Password: "short"}, http.StatusBadRequest},
		{"malformed email", adminToken, farmer.ID, UpdateUserRequest{Email: "farmer"}, http.StatusBadRequest},
		{"email taken", adminToken, farmer.ID, UpdateUserRequest{Email: "admin@agrisense.test"}, http.StatusConflict},
		{"demote self", adminToken, admin.ID, UpdateUserRequest{Role: "user"}, http.StatusBadRequest},
		{"missing user", adminToken, "01UNKNOWN", UpdateUserRequest{Name: "Ghost"}, http.StatusNotFound},
		{"not an admin", userToken, farmer.ID, UpdateUserRequest{Role: "admin"}, http.StatusForbidden},
		{"anonymous", "", farmer.ID, UpdateUserRequest{Name: "Anon"}, http.StatusUnauthorized},
		{"rename self", adminToken, admin.ID, UpdateUserRequest{Name: "Head Agronomist"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPut, "/api/users/"+tt.id, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	me := decode[UserDetail](t, doRequest(t, srv, http.MethodGet, "/api/auth/me", adminToken, nil))
	assert.Equal(t, "Head Agronomist", me.Name)
	assert.Equal(t, session.RoleAdmin, me.Role)

	// a new password replaces the old one
	rec := doRequest(t, srv, http.MethodPut, "/api/users/"+farmer.ID, adminToken, UpdateUserRequest{Password: "new-farmer-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, srv, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email: "farmer@agrisense.test", Password: "farmer-pass",
	}).Code)
	assert.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email: "farmer@agrisense.test", Password: "new-farmer-pass",
	}).Code)
}

func TestMenuEndpoint(t *testing.T) {
	srv := newTestServer(t)
	adminToken, userToken := seed(t, srv)

	tests := []struct {
		name  string
		token string
		role  session.Role
	}{
		{"anonymous", "", session.RoleNone},
		{"user", userToken, session.RoleUser},
		{"admin", adminToken, session.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, "/api/menu", tt.token, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			resp := decode[MenuResponse](t, rec)
			assert.Equal(t, tt.role, resp.Role)
			assert.Equal(t, menu.Titles(tt.role), titles(resp.Items))
		})
	}
}

func TestOptionalAuth_RejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t)
	adminToken, userToken := seed(t, srv)

	farmer := decode[UserDetail](t, doRequest(t, srv, http.MethodGet, "/api/auth/me", userToken, nil))
	require.Equal(t, http.StatusNoContent, doRequest(t, srv, http.MethodDelete, "/api/users/"+farmer.ID, adminToken, nil).Code)

	paths := []string{"/api/menu", "/api/navigate?path=" + guard.UserDashboard}
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusOK},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"deleted user", "Bearer " + userToken, http.StatusUnauthorized},
		{"valid token", "Bearer " + adminToken, http.StatusOK},
	}

	for _, path := range paths {
		for _, tt := range tests {
			t.Run(path+"/"+tt.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				if tt.header != "" {
					req.Header.Set("Authorization", tt.header)
				}
				rec := httptest.NewRecorder()
				srv.Handler().ServeHTTP(rec, req)
				assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			})
		}
	}
}

func titles(entries []menu.Entry) []string {
	var out []string
	for _, e := range menu.Flatten(entries) {
		out = append(out, e.Title)
	}
	return out
}

func TestNavigateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	adminToken, userToken := seed(t, srv)

	tests := []struct {
		name     string
		path     string
		token    string
		outcome  guard.Outcome
		redirect string
	}{
		{"anonymous admin dashboard", guard.AdminDashboard, "", guard.RedirectLogin, guard.LoginPath},
		{"anonymous login page", guard.LoginPath, "", guard.Allow, ""},
		{"user dashboard", guard.UserDashboard, userToken, guard.Allow, ""},
		{"user admin dashboard", guard.AdminDashboard, userToken, guard.Forbidden, guard.UnauthorizedPath},
		{"admin users", "/users", adminToken, guard.Allow, ""},
		{"user root", "/", userToken, guard.Allow, guard.UserDashboard},
		{"admin root", "/", adminToken, guard.Allow, guard.AdminDashboard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, "/api/navigate?path="+tt.path, tt.token, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			resp := decode[NavigateResponse](t, rec)
			assert.Equal(t, tt.outcome, resp.Decision.Outcome)
			assert.Equal(t, tt.redirect, resp.Decision.Redirect)
			assert.True(t, resp.Declared)
		})
	}
}

func TestRoutesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/routes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	routes := decode[[]RouteDetail](t, rec)
	assert.Len(t, routes, len(guard.DefaultTable.Routes()))
	assert.Contains(t, routes, RouteDetail{Path: guard.AdminDashboard, Requires: "authenticated,admin"})
	assert.Contains(t, routes, RouteDetail{Path: guard.LoginPath, Requires: "public"})
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	_, userToken := seed(t, srv)

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, srv, http.MethodPost, "/api/auth/logout", "", nil).Code)
	assert.Equal(t, http.StatusNoContent, doRequest(t, srv, http.MethodPost, "/api/auth/logout", userToken, nil).Code)
}
