// Package token builds and verifies the short-lived signed session tokens
// issued by the credential service.
//
// Tokens are compact JWS structures signed with HS256. Verification enforces
// the signing algorithm, issuer, audience, and the embedded validity window;
// every failure surfaces as [ErrInvalidToken] so callers cannot distinguish
// a bad signature from an expired token. The wrapped cause is kept for
// server-side diagnostics only.
package token
