// Package auth provides authentication context helpers.
//
// This package is imported by both middleware and handler packages, so it
// must not depend on either.
package auth

import (
	"context"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

// GetUser retrieves the authenticated user from the context.
//
// Returns nil if no user is authenticated.
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// UserID returns the authenticated user's ID, if any.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	user := GetUser(ctx)
	if user == nil {
		return uuid.Nil, false
	}
	return user.ID, true
}

// SetUser stores a user in the context.
//
// This is called by the authentication middleware after validating a
// session token.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
