// Package auth provides JWT-based authentication for encounter-engine.
// Tokens are HMAC-signed with a server secret; the subject claim is the
// directory username and the roles claim grants admin access.
package auth

import (
	"context"
	"slices"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmforge/encounter-engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ActorKey is the context key for storing the authenticated actor.
	ActorKey contextKey = "actor"
)

// Claims represents the JWT claims structure. RegisteredClaims carries
// the standard fields (sub, exp, iat); Roles carries directory roles.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// Actor converts claims into the actor identity passed to services.
func (c *Claims) Actor() models.Actor {
	return models.Actor{
		Username: c.Subject,
		Admin:    slices.Contains(c.Roles, models.RoleAdmin),
	}
}

// GetActor retrieves the authenticated actor from the request context.
// Returns false if the request did not pass auth middleware.
func GetActor(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(models.Actor)
	return actor, ok
}

// SetActor stores the authenticated actor in the context.
func SetActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}
