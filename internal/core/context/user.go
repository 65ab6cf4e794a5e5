// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// SystemUserID is the actor recorded for transitions started by background jobs.
const SystemUserID = "system"

// UserContext identifies the acting user of a request.
// Authentication happens upstream; the service trusts the forwarded identity.
type UserContext struct {
	UserID string
	Name   string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// WithSystemUser marks ctx as acting on behalf of the service itself.
func WithSystemUser(ctx context.Context) context.Context {
	return WithUser(ctx, &UserContext{UserID: SystemUserID, Name: "System"})
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
