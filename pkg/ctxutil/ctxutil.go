// Package ctxutil provides utility functions for storing and retrieving
// request-scoped values in context.Context.
package ctxutil

import (
	"context"
	"slices"
	"time"
)

// ctxKey is an unexported type for context keys to prevent collisions.
type ctxKey int

const (
	requestIDKey ctxKey = iota
	identityKey
)

// Identity is the caller identity extracted from a verified bearer token.
type Identity struct {
	UserID      string
	TenantID    string
	Roles       []string
	Permissions []string

	// Issuer is the "iss" of the token the identity came from.
	Issuer string

	// ExpiresAt is the token "exp".
	ExpiresAt time.Time
}

// HasRole reports whether role is among the identity's roles.
func (id Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID from the context.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// WithIdentity returns a new context carrying the caller identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the caller identity from the context.
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserID returns the user ID of the caller identity.
// Reports false when no identity is set or its user ID is empty.
func UserID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok || id.UserID == "" {
		return "", false
	}
	return id.UserID, true
}

// TenantID returns the tenant ID of the caller identity.
func TenantID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return "", false
	}
	return id.TenantID, true
}

// Roles returns the roles of the caller identity.
func Roles(ctx context.Context) ([]string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return nil, false
	}
	return id.Roles, true
}

// Permissions returns the permissions of the caller identity.
func Permissions(ctx context.Context) ([]string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return nil, false
	}
	return id.Permissions, true
}
