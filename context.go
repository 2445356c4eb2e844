package authkit

import (
	"context"

	"github.com/authkit-go/authkit/token"
)

type claimsContextKey struct{}

// WithClaims attaches verified session-token claims to ctx. The middleware
// package uses it after a successful verification so handlers can read the
// caller's identity.
func WithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the claims stored by [WithClaims], or nil when
// the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(claimsContextKey{}).(*token.Claims)
	return claims
}
