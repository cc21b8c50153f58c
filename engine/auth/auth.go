// Package auth verifies bearer tokens against the identity service and
// carries the resulting identity through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnauthorized covers every authentication failure. Handlers map it to
// a 401 without leaking which check failed.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the verified caller.
type Identity struct {
	UserID string
	Email  string
}

// Verifier checks an access token and returns who it belongs to.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (*Identity, error)
}

type ctxKey struct{}

func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFromContext returns the verified caller, or nil outside an
// authenticated request.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(ctxKey{}).(*Identity)
	return identity
}

// BearerToken extracts the token from an Authorization header value.
// Empty return means the header is absent or malformed.
func BearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}

type identityUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// HTTPVerifier resolves tokens against the identity service's user
// endpoint. A fresh call per request keeps revocation immediate.
type HTTPVerifier struct {
	client *resty.Client
	apiKey string
}

func NewHTTPVerifier(baseURL, apiKey string) *HTTPVerifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	return &HTTPVerifier{client: client, apiKey: apiKey}
}

func (v *HTTPVerifier) Verify(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, ErrUnauthorized
	}

	var user identityUser
	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+accessToken).
		SetHeader("apikey", v.apiKey).
		SetResult(&user).
		Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("identity service request failed: %w", err)
	}
	if resp.IsError() {
		return nil, ErrUnauthorized
	}
	if user.ID == "" {
		return nil, ErrUnauthorized
	}
	return &Identity{UserID: user.ID, Email: user.Email}, nil
}
