package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/agrisense-dev/agrisense/internal/session"
)

type publicKey struct{}

// public marks a request that must not carry the stored session, like login.
func public(ctx context.Context) context.Context {
	return context.WithValue(ctx, publicKey{}, true)
}

func isPublic(ctx context.Context) bool {
	v, _ := ctx.Value(publicKey{}).(bool)
	return v
}

// sessionTransport attaches the stored token to outgoing requests and clears
// the store when the server rejects that token.
type sessionTransport struct {
	base   http.RoundTripper
	store  session.Store
	logger zerolog.Logger
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attached := false
	if !isPublic(req.Context()) && req.Header.Get("Authorization") == "" {
		if token := session.Token(t.store); token != "" {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
			attached = true
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if attached && resp.StatusCode == http.StatusUnauthorized {
		t.logger.Debug().Str("path", req.URL.Path).Msg("Token rejected by server, clearing session")
		if err := t.store.Clear(); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to clear rejected session")
		}
	}

	return resp, nil
}
