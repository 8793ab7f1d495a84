package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense-dev/agrisense/internal/guard"
	"github.com/agrisense-dev/agrisense/internal/session"
)

// mockAPIServer answers like the AgriSense API for a fixed set of tokens.
func mockAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry a session token")
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if req.Email != "farmer@agrisense.test" || req.Password != "farmer-pass" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "good-user",
			"role":  "user",
			"home":  guard.UserDashboard,
			"user":  map[string]any{"id": "u1", "email": req.Email, "name": "Farmer", "role": "user"},
		})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good-user":
			writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "email": "farmer@agrisense.test", "role": "user"})
		case "Bearer good-admin":
			writeJSON(w, http.StatusOK, map[string]any{"id": "a1", "email": "admin@agrisense.test", "role": "admin"})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		}
	})
	mux.HandleFunc("GET /api/users", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good-admin":
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "a1", "email": "admin@agrisense.test", "role": "admin"}})
		case "Bearer good-user":
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Admin access required"})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
	})
	mux.HandleFunc("PUT /api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-admin" {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Admin access required"})
			return
		}
		var req UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "email": "farmer@agrisense.test", "role": req.Role})
	})
	mux.HandleFunc("GET /api/navigate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"path":     r.URL.Query().Get("path"),
			"requires": "authenticated,admin",
			"declared": true,
			"decision": map[string]string{"outcome": "forbidden", "redirect": guard.UnauthorizedPath},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) (*Client, *session.MemoryStore) {
	t.Helper()

	store := session.NewMemoryStore()
	return New(mockAPIServer(t).URL, store, zerolog.Nop()), store
}

func TestLogin(t *testing.T) {
	c, store := newTestClient(t)

	resp, err := c.Login(context.Background(), "farmer@agrisense.test", "farmer-pass")
	require.NoError(t, err)
	assert.Equal(t, "good-user", resp.Token)
	assert.Equal(t, session.RoleUser, resp.Role)
	assert.Equal(t, guard.UserDashboard, resp.Home)

	// persisting is the caller's job
	assert.Equal(t, "", session.Token(store))
}

func TestLogin_BadCredentialsKeepsExistingSession(t *testing.T) {
	c, store := newTestClient(t)
	require.NoError(t, session.SetSession(store, "good-admin", session.RoleAdmin))

	_, err := c.Login(context.Background(), "farmer@agrisense.test", "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.NotErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, "good-admin", session.Token(store))
}

func TestMe_NotAuthenticated(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestMe_AttachesToken(t *testing.T) {
	c, store := newTestClient(t)
	require.NoError(t, session.SetSession(store, "good-user", session.RoleUser))

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, session.RoleUser, user.Role)
}

func TestInterceptor_ClearsSessionOnUnauthorized(t *testing.T) {
	c, store := newTestClient(t)
	require.NoError(t, session.SetSession(store, "revoked", session.RoleAdmin))

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, session.Anonymous, s)

	// the next call fails locally without a round trip
	_, err = c.ListUsers(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestInterceptor_ForbiddenKeepsSession(t *testing.T) {
	c, store := newTestClient(t)
	require.NoError(t, session.SetSession(store, "good-user", session.RoleUser))

	_, err := c.ListUsers(context.Background())
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "good-user", session.Token(store))
}

func TestListUsers_Admin(t *testing.T) {
	c, store := newTestClient(t)
	require.NoError(t, session.SetSession(store, "good-admin", session.RoleAdmin))

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, session.RoleAdmin, users[0].Role)
}

func TestNavigate_DecodesDecision(t *testing.T) {
	c, _ := newTestClient(t)

	resp, err := c.Navigate(context.Background(), guard.AdminDashboard)
	require.NoError(t, err)
	assert.Equal(t, guard.AdminDashboard, resp.Path)
	assert.Equal(t, guard.Decision{Outcome: guard.Forbidden, Redirect: guard.UnauthorizedPath}, resp.Decision)
}

func TestUpdateUser(t *testing.T) {
	c, store := newTestClient(t)
	assert.NotEmpty(t, c.BaseURL())

	_, err := c.UpdateUser(context.Background(), "u1", UpdateUserRequest{Role: "admin"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, session.SetSession(store, "good-user", session.RoleUser))
	_, err = c.UpdateUser(context.Background(), "u1", UpdateUserRequest{Role: "admin"})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, session.SetSession(store, "good-admin", session.RoleAdmin))
	user, err := c.UpdateUser(context.Background(), "u1", UpdateUserRequest{Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, session.RoleAdmin, user.Role)
}
