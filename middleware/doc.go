// Package middleware guards HTTP routes with signed session tokens.
//
// [Require] accepts the token from an Authorization bearer header or,
// failing that, the access_token cookie, verifies it, and stores the
// claims in the request context for handlers to read via
// authkit.ClaimsFromContext. Every verification failure answers 401
// without detail.
package middleware
