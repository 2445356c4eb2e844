package authkit

import (
	"context"
	"time"
)

// RoleUser is the role assigned to accounts created through [Service.Register].
const RoleUser = "User"

// User is an identity record. The ID is assigned by the [UserStore] at
// insertion and never changes. PasswordHash is an opaque PHC digest and is
// never logged or returned over the wire.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// RefreshToken is one issued, renewable session credential. The Token value
// is an opaque random string with at least 256 bits of entropy. Records are
// never deleted; revocation flips Revoked once and the row is retained for
// audit.
type RefreshToken struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active reports whether the token is usable at the given instant. It must
// be recomputed on every use, never cached.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}

// UserStore is the persistence contract for identity records.
//
// Lookups return [ErrNotFound] when no row matches. Insert assigns the ID
// and returns [ErrDuplicateUser] when the username or email is taken.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Insert(ctx context.Context, user *User) error
}

// TokenStore is the persistence contract for refresh tokens.
//
// Find returns [ErrNotFound] when the opaque value is unknown.
// RevokeAllForUser must be atomic from the caller's point of view: all
// matching active tokens become revoked, or none do.
type TokenStore interface {
	Find(ctx context.Context, token string) (*RefreshToken, error)
	Insert(ctx context.Context, token *RefreshToken) error
	MarkRevoked(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
}

// FailureKind classifies a failed credential operation for boundary-level
// status mapping. The Message on [AuthResult] is safe to render to callers;
// the kind never reveals more than the message does.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureConflict: duplicate identity during registration.
	FailureConflict
	// FailureUnauthorized: bad credentials or an invalid, expired, or
	// revoked refresh token.
	FailureUnauthorized
)

// AuthResult is the tagged outcome of Register, Login, and Refresh.
// Business-rule failures are carried here, not as Go errors; an error return
// from the service always means infrastructure or configuration trouble.
type AuthResult struct {
	Success      bool
	Failure      FailureKind
	Message      string
	Token        string
	RefreshToken string
	User         *User
}
