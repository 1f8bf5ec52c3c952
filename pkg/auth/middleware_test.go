package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmforge/encounter-engine/pkg/models"
)

func newTestMiddleware(t *testing.T) (*Middleware, *TokenService) {
	t.Helper()
	tokens, err := NewTokenService("middleware-test-secret", time.Hour)
	require.NoError(t, err)
	return NewMiddleware(tokens, zap.NewNop()), tokens
}

func bearerRequest(t *testing.T, tokens *TokenService, username string, roles []string) *http.Request {
	t.Helper()
	signed, err := tokens.Issue(username, roles)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/users/alice/encounters", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	return req
}

func TestRequireAuth_MissingToken(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	called := false
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/monsters", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/monsters", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_SetsActor(t *testing.T) {
	mw, tokens := newTestMiddleware(t)

	var got models.Actor
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		require.True(t, ok)
		got = actor
	})

	rec := httptest.NewRecorder()
	handler(rec, bearerRequest(t, tokens, "alice", []string{models.RoleUser}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", got.Username)
	assert.False(t, got.Admin)
}

func TestRequireSelfOrAdmin_SelfAllowed(t *testing.T) {
	mw, tokens := newTestMiddleware(t)

	called := false
	handler := mw.RequireSelfOrAdmin("username")(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := bearerRequest(t, tokens, "alice", []string{models.RoleUser})
	req.SetPathValue("username", "alice")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequireSelfOrAdmin_MismatchForbidden(t *testing.T) {
	mw, tokens := newTestMiddleware(t)

	handler := mw.RequireSelfOrAdmin("username")(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	req := bearerRequest(t, tokens, "mallory", []string{models.RoleUser})
	req.SetPathValue("username", "alice")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireSelfOrAdmin_AdminBypass(t *testing.T) {
	mw, tokens := newTestMiddleware(t)

	called := false
	handler := mw.RequireSelfOrAdmin("username")(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := bearerRequest(t, tokens, "root", []string{models.RoleAdmin})
	req.SetPathValue("username", "alice")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequireAdmin(t *testing.T) {
	mw, tokens := newTestMiddleware(t)

	handler := mw.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	handler(rec, bearerRequest(t, tokens, "alice", []string{models.RoleUser}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler(rec, bearerRequest(t, tokens, "root", []string{models.RoleAdmin}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
