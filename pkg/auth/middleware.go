package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware. It is thin and
// delegates token validation to TokenService.
type Middleware struct {
	tokens *TokenService
	logger *zap.Logger
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(tokens *TokenService, logger *zap.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		logger: logger,
	}
}

// RequireAuth validates the bearer token and stores the actor in
// context for downstream handlers. Use for endpoints whose resource
// ownership is re-checked at the service layer.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.validateRequest(r)
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}

		next(w, r.WithContext(SetActor(r.Context(), claims.Actor())))
	}
}

// RequireSelfOrAdmin validates the bearer token and permits the call
// only when the caller is an admin or matches the username path
// parameter. pathParamName is the name used in r.PathValue (e.g.
// "username"). The service layer still re-checks ownership of the
// specific resource; this gate only validates the path username.
func (m *Middleware) RequireSelfOrAdmin(pathParamName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.validateRequest(r)
			if err != nil {
				m.unauthorized(w, "Authentication required")
				return
			}

			actor := claims.Actor()
			target := r.PathValue(pathParamName)
			if !actor.CanActFor(target) {
				m.logger.Warn("Path username mismatch",
					zap.String("actor", actor.Username),
					zap.String("target", target),
					zap.String("path", r.URL.Path))
				m.forbidden(w, "Not authorized for this user")
				return
			}

			next(w, r.WithContext(SetActor(r.Context(), actor)))
		}
	}
}

// RequireAdmin validates the bearer token and permits only admins.
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.validateRequest(r)
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}

		actor := claims.Actor()
		if !actor.Admin {
			m.forbidden(w, "Admin authorization required")
			return
		}

		next(w, r.WithContext(SetActor(r.Context(), actor)))
	}
}

// validateRequest extracts and validates the bearer token.
func (m *Middleware) validateRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, errors.New("missing bearer token")
	}
	return m.tokens.Validate(token)
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}

// forbidden returns a 403 response with JSON error body.
func (m *Middleware) forbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "forbidden",
		"message": message,
	})
}
