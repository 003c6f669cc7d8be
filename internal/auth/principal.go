package auth

import (
	"context"
	"strings"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

type contextKey string

const principalContextKey contextKey = "auth_principal"

// Principal is the caller identity as asserted by the identity provider.
type Principal struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func IsValidRole(role string) bool {
	switch strings.TrimSpace(role) {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

func CurrentPrincipal(ctx context.Context) (*Principal, bool) {
	v := ctx.Value(principalContextKey)
	if v == nil {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// ContextWithPrincipal injects an authenticated principal into context.
// Useful for tests and internal handlers.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
