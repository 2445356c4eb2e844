package authkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/authkit-go/authkit/internal"
	"github.com/authkit-go/authkit/internal/metrics"
	"github.com/authkit-go/authkit/password"
	"github.com/authkit-go/authkit/token"
)

// Messages rendered to callers. Duplicate username and duplicate email
// share one Conflict text so the service never reveals which field
// collided; unknown user and wrong password share one Unauthorized text to
// block username enumeration.
const (
	msgConflict       = "Username or email already exists."
	msgBadCredentials = "Invalid credentials"
	msgBadRefresh     = "Invalid or expired refresh token"
)

// Service orchestrates the credential lifecycle: registration, login,
// refresh-token exchange, and revocation. Each method is an independent
// unit of work; the only shared state is the injected stores and the
// immutable configuration, so a Service is safe for concurrent use.
type Service struct {
	config  Config
	users   UserStore
	tokens  TokenStore
	signer  *token.Signer
	hasher  *password.Hasher
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Signer returns the token signer the service issues with, for wiring
// verification middleware against the same configuration.
func (s *Service) Signer() *token.Signer {
	return s.signer
}

// Register creates a user and issues its first credential pair.
//
// Both existence checks run unconditionally; duplicate detection considers
// username and email together and reports a single Conflict result. On
// success the user is persisted with role "User" before tokens are issued;
// an issuance failure afterwards is returned as an error and does not roll
// the user back.
func (s *Service) Register(ctx context.Context, username, email, plainPassword string) (*AuthResult, error) {
	byUsername, err := s.users.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.metrics.Registration(metrics.OutcomeError)
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	byEmail, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.metrics.Registration(metrics.OutcomeError)
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if byUsername != nil || byEmail != nil {
		s.metrics.Registration(metrics.OutcomeConflict)
		return failure(FailureConflict, msgConflict), nil
	}

	digest, err := s.hasher.Hash(plainPassword)
	if err != nil {
		s.metrics.Registration(metrics.OutcomeError)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		Role:         RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		// A concurrent registration can win the race past the lookups;
		// the store's uniqueness guarantee is authoritative.
		if errors.Is(err, ErrDuplicateUser) {
			s.metrics.Registration(metrics.OutcomeConflict)
			return failure(FailureConflict, msgConflict), nil
		}
		s.metrics.Registration(metrics.OutcomeError)
		return nil, fmt.Errorf("insert user: %w", err)
	}

	result, err := s.issueCredentials(ctx, user)
	if err != nil {
		s.metrics.Registration(metrics.OutcomeError)
		return nil, err
	}
	s.metrics.Registration(metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return result, nil
}

// Login verifies a password and issues a fresh credential pair. An unknown
// username and a wrong password produce byte-identical results.
func (s *Service) Login(ctx context.Context, username, plainPassword string) (*AuthResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.Login(metrics.OutcomeUnauthorized)
			return failure(FailureUnauthorized, msgBadCredentials), nil
		}
		s.metrics.Login(metrics.OutcomeError)
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	ok, err := s.hasher.Verify(plainPassword, user.PasswordHash)
	if err != nil {
		// Malformed digest means corrupted storage. Abort loudly rather
		// than degrade into an authentication decision.
		s.metrics.Login(metrics.OutcomeError)
		return nil, fmt.Errorf("verify password for user %d: %w", user.ID, err)
	}
	if !ok {
		s.metrics.Login(metrics.OutcomeUnauthorized)
		return failure(FailureUnauthorized, msgBadCredentials), nil
	}

	result, err := s.issueCredentials(ctx, user)
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return nil, err
	}
	s.metrics.Login(metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, "login succeeded", "user_id", user.ID)
	return result, nil
}

// Refresh exchanges an active opaque refresh token for a new signed token.
// The token's active state is recomputed here on every call. By default the
// presented opaque value is returned unchanged; with rotation enabled a
// replacement is minted and the presented record revoked.
func (s *Service) Refresh(ctx context.Context, presented string) (*AuthResult, error) {
	record, err := s.tokens.Find(ctx, presented)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.Refresh(metrics.OutcomeUnauthorized)
			return failure(FailureUnauthorized, msgBadRefresh), nil
		}
		s.metrics.Refresh(metrics.OutcomeError)
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !record.Active(s.now()) {
		s.metrics.Refresh(metrics.OutcomeUnauthorized)
		return failure(FailureUnauthorized, msgBadRefresh), nil
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Token outlived its owner; treat as any other dead token.
			s.metrics.Refresh(metrics.OutcomeUnauthorized)
			return failure(FailureUnauthorized, msgBadRefresh), nil
		}
		s.metrics.Refresh(metrics.OutcomeError)
		return nil, fmt.Errorf("resolve token owner: %w", err)
	}

	signed, err := s.signer.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		s.metrics.Refresh(metrics.OutcomeError)
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshValue := presented
	if s.config.Refresh.Rotate {
		refreshValue, err = s.rotate(ctx, record)
		if err != nil {
			s.metrics.Refresh(metrics.OutcomeError)
			return nil, err
		}
	}

	s.metrics.Refresh(metrics.OutcomeSuccess)
	return &AuthResult{
		Success:      true,
		Token:        signed,
		RefreshToken: refreshValue,
		User:         user,
	}, nil
}

// Revoke marks the presented refresh token revoked. An unknown or already
// inactive token is a silent no-op reported as false, never an error, so a
// logout with a stale token does not surface as a failure.
func (s *Service) Revoke(ctx context.Context, presented string) (bool, error) {
	record, err := s.tokens.Find(ctx, presented)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.Revocation(metrics.OutcomeNoop)
			return false, nil
		}
		s.metrics.Revocation(metrics.OutcomeError)
		return false, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !record.Active(s.now()) {
		s.metrics.Revocation(metrics.OutcomeNoop)
		return false, nil
	}

	if err := s.tokens.MarkRevoked(ctx, presented); err != nil {
		s.metrics.Revocation(metrics.OutcomeError)
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	s.metrics.Revocation(metrics.OutcomeRevoked)
	s.log.InfoContext(ctx, "refresh token revoked", "user_id", record.UserID)
	return true, nil
}

// RevokeAll revokes every refresh token belonging to userID, for logout-
// everywhere and compromise response. The store guarantees the transition
// is atomic from the caller's point of view.
func (s *Service) RevokeAll(ctx context.Context, userID int64) error {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		s.metrics.Revocation(metrics.OutcomeError)
		return fmt.Errorf("revoke all tokens for user %d: %w", userID, err)
	}
	s.metrics.Revocation(metrics.OutcomeRevoked)
	s.log.InfoContext(ctx, "all refresh tokens revoked", "user_id", userID)
	return nil
}

// issueCredentials signs an access token and persists a fresh refresh
// token for user. Called after the user record already exists; failures
// here are configuration or infrastructure faults, not business outcomes.
func (s *Service) issueCredentials(ctx context.Context, user *User) (*AuthResult, error) {
	signed, err := s.signer.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	opaque, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now().UTC()
	record := &RefreshToken{
		Token:     opaque,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.Refresh.TTL),
		CreatedAt: now,
	}
	if err := s.tokens.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &AuthResult{
		Success:      true,
		Token:        signed,
		RefreshToken: opaque,
		User:         user,
	}, nil
}

// rotate mints a replacement refresh token for the record's owner and
// revokes the presented one. The new record is persisted first so a crash
// between the two writes leaves the session recoverable.
func (s *Service) rotate(ctx context.Context, record *RefreshToken) (string, error) {
	next, err := internal.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate replacement token: %w", err)
	}

	now := s.now().UTC()
	if err := s.tokens.Insert(ctx, &RefreshToken{
		Token:     next,
		UserID:    record.UserID,
		ExpiresAt: now.Add(s.config.Refresh.TTL),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("persist replacement token: %w", err)
	}
	if err := s.tokens.MarkRevoked(ctx, record.Token); err != nil {
		return "", fmt.Errorf("revoke rotated token: %w", err)
	}
	return next, nil
}

func failure(kind FailureKind, message string) *AuthResult {
	return &AuthResult{Failure: kind, Message: message}
}
