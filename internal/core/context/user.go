// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// RoleAdviser is the accounting role allowed to post up to the fiscal year lock date,
// ignoring the period lock date that applies to everyone else.
const RoleAdviser = "account_adviser"

// UserContext describes the caller as asserted by the fronting gateway.
type UserContext struct {
	UserID    string
	Email     string
	Roles     []string
	SessionID string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// IsAdviser reports whether the caller holds the adviser role.
func IsAdviser(ctx context.Context) bool {
	return HasRole(ctx, RoleAdviser)
}
