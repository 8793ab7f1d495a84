package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agrisense-dev/agrisense/internal/guard"
	"github.com/agrisense-dev/agrisense/internal/menu"
	"github.com/agrisense-dev/agrisense/internal/session"
)

var (
	// ErrNotAuthenticated is returned before any request is sent when no session is stored.
	ErrNotAuthenticated = errors.New("not authenticated. Please run 'agrisense login' first")
	// ErrSessionExpired means the server rejected the stored token; the session has been cleared.
	ErrSessionExpired = errors.New("session expired or revoked. Please run 'agrisense login' again")
	// ErrForbidden means the session is valid but its role is not allowed.
	ErrForbidden = errors.New("your role is not allowed to perform this action")
)

// APIError is a non-success response that is not an auth failure
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// Client represents an HTTP client for the AgriSense API
type Client struct {
	baseURL    string
	store      session.Store
	httpClient *http.Client
}

// New creates a new API client whose requests carry the session in store
func New(baseURL string, store session.Store, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &sessionTransport{
				base:   http.DefaultTransport,
				store:  store,
				logger: logger,
			},
		},
	}
}

// BaseURL returns the server address the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) requireSession() error {
	if session.Token(c.store) == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// do sends a request and decodes a JSON response into out when non-nil
func (c *Client) do(ctx context.Context, method, path string, body, out any, wantStatus int) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.responseError(req, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) responseError(req *http.Request, resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	message := strings.TrimSpace(string(raw))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}

	if !isPublic(req.Context()) {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return ErrSessionExpired
		case http.StatusForbidden:
			return ErrForbidden
		}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User represents an AgriSense account
type User struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	Role      session.Role `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token string       `json:"token"`
	Role  session.Role `json:"role"`
	Home  string       `json:"home"`
	User  User         `json:"user"`
}

// Login authenticates the user. It does not touch the session store; the
// caller persists the result.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var loginResp LoginResponse
	err := c.do(public(ctx), http.MethodPost, "/api/auth/login", LoginRequest{Email: email, Password: password}, &loginResp, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if loginResp.Token == "" {
		return nil, fmt.Errorf("login failed: server returned no token")
	}
	return &loginResp, nil
}

// Logout notifies the server. Errors are informational: the local session is
// cleared by the caller regardless.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, http.StatusNoContent)
}

// Me returns the current user
func (c *Client) Me(ctx context.Context) (*User, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	var user User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// MenuResponse is the server-built navigation tree
type MenuResponse struct {
	Role  session.Role `json:"role"`
	Items []menu.Entry `json:"items"`
}

// Menu fetches the navigation tree the server builds for the stored session
func (c *Client) Menu(ctx context.Context) (*MenuResponse, error) {
	var resp MenuResponse
	if err := c.do(ctx, http.MethodGet, "/api/menu", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NavigateResponse is the server's guard decision for a route
type NavigateResponse struct {
	Path     string         `json:"path"`
	Requires string         `json:"requires"`
	Declared bool           `json:"declared"`
	Decision guard.Decision `json:"decision"`
}

// Navigate asks the server to evaluate the route guard for path
func (c *Client) Navigate(ctx context.Context, path string) (*NavigateResponse, error) {
	var resp NavigateResponse
	if err := c.do(ctx, http.MethodGet, "/api/navigate?path="+url.QueryEscape(path), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListUsers returns all users (admin only)
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	var users []User
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &users, http.StatusOK); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUserRequest represents a request to create a new user
type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUser creates a user (admin only)
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/users", req, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// UpdateUserRequest changes an existing user; empty fields are left unchanged
type UpdateUserRequest struct {
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
}

// UpdateUser updates a user by ID (admin only)
func (c *Client) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	var user User
	if err := c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), req, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser deletes a user by ID (admin only)
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}
