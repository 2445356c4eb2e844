// Package authkit implements the credential lifecycle for registered users:
// password verification, signed session-token issuance, opaque refresh-token
// handling, and revocation bookkeeping.
//
// The entry point is [Service], constructed through [New]:
//
//	svc, err := authkit.New().
//		WithConfig(cfg).
//		WithUserStore(users).
//		WithTokenStore(tokens).
//		Build()
//
// Persistence is injected through the [UserStore] and [TokenStore]
// capability interfaces. The package ships three implementations:
// store/memstore (in-memory reference), store/pgstore (PostgreSQL), and
// store/redistore (Redis, refresh tokens only).
//
// Signed tokens are produced and checked by the token subpackage; password
// digests by the password subpackage. The httpapi and middleware
// subpackages provide an HTTP boundary that carries both credentials as
// hardened cookies.
package authkit
