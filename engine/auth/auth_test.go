package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	t.Run("Should extract tokens case-insensitively", func(t *testing.T) {
		assert.Equal(t, "abc123", BearerToken("Bearer abc123"))
		assert.Equal(t, "abc123", BearerToken("bearer abc123"))
		assert.Equal(t, "abc123", BearerToken("BEARER   abc123  "))
	})

	t.Run("Should return empty for missing or malformed headers", func(t *testing.T) {
		assert.Empty(t, BearerToken(""))
		assert.Empty(t, BearerToken("Basic abc123"))
		assert.Empty(t, BearerToken("Bearer"))
		assert.Empty(t, BearerToken("Bearer "))
	})
}

func TestHTTPVerifier_Verify(t *testing.T) {
	t.Run("Should return the identity for a valid token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/user", r.URL.Path)
			assert.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
			assert.Equal(t, "anon-key", r.Header.Get("apikey"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "user-1", "email": "learner@example.com"}`))
		}))
		t.Cleanup(server.Close)

		verifier := NewHTTPVerifier(server.URL, "anon-key")
		identity, err := verifier.Verify(context.Background(), "good-token")
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.UserID)
		assert.Equal(t, "learner@example.com", identity.Email)
	})

	t.Run("Should reject rejected tokens", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		t.Cleanup(server.Close)

		verifier := NewHTTPVerifier(server.URL, "anon-key")
		_, err := verifier.Verify(context.Background(), "bad-token")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("Should reject responses without a user id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		t.Cleanup(server.Close)

		verifier := NewHTTPVerifier(server.URL, "anon-key")
		_, err := verifier.Verify(context.Background(), "token")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("Should reject empty tokens without a network call", func(t *testing.T) {
		verifier := NewHTTPVerifier("http://unused", "anon-key")
		_, err := verifier.Verify(context.Background(), "")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestIdentityContext(t *testing.T) {
	t.Run("Should round-trip an identity through a context", func(t *testing.T) {
		identity := &Identity{UserID: "user-1", Email: "learner@example.com"}
		ctx := ContextWithIdentity(context.Background(), identity)
		assert.Equal(t, identity, IdentityFromContext(ctx))
	})

	t.Run("Should return nil outside an authenticated request", func(t *testing.T) {
		assert.Nil(t, IdentityFromContext(context.Background()))
	})
}
