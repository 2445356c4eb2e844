package authkit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/authkit-go/authkit"
	"github.com/authkit-go/authkit/password"
	"github.com/authkit-go/authkit/store/memstore"
)

func testConfig() authkit.Config {
	cfg := authkit.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.Issuer = "authkit-test"
	cfg.Token.Audience = "authkit-test-clients"
	// Smallest parameters the hasher accepts, to keep the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	return cfg
}

func newTestService(t *testing.T, cfg authkit.Config) (*authkit.Service, *memstore.Store) {
	t.Helper()

	store := memstore.New()
	svc, err := authkit.New().
		WithConfig(cfg).
		WithUserStore(store.Users()).
		WithTokenStore(store.Tokens()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return svc, store
}

func mustRegister(t *testing.T, svc *authkit.Service, username, email, pw string) *authkit.AuthResult {
	t.Helper()

	res, err := svc.Register(context.Background(), username, email, pw)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Register rejected: %q", res.Message)
	}
	return res
}

func TestRegisterIssuesCredentials(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	res := mustRegister(t, svc, "alice", "alice@example.com", "pw1")

	if res.Token == "" {
		t.Fatal("expected a signed token")
	}
	if res.RefreshToken == "" {
		t.Fatal("expected a refresh token")
	}
	if res.User == nil || res.User.ID == 0 {
		t.Fatalf("expected a persisted user, got %+v", res.User)
	}
	if res.User.Role != authkit.RoleUser {
		t.Fatalf("role = %q, want %q", res.User.Role, authkit.RoleUser)
	}
	if res.User.PasswordHash == "" {
		t.Fatal("expected a stored password digest")
	}
	if res.User.PasswordHash == "pw1" {
		t.Fatal("password stored in plaintext")
	}

	claims, err := svc.Signer().Verify(res.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID failed: %v", err)
	}
	if id != res.User.ID {
		t.Fatalf("token subject = %d, want %d", id, res.User.ID)
	}
	if claims.Username != "alice" {
		t.Fatalf("token username = %q, want %q", claims.Username, "alice")
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	mustRegister(t, svc, "alice", "alice@example.com", "pw1")

	cases := []struct {
		name     string
		username string
		email    string
	}{
		{"same username", "alice", "other@example.com"},
		{"same email", "other", "alice@example.com"},
		{"both taken", "alice", "alice@example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := svc.Register(context.Background(), tc.username, tc.email, "pw2")
			if err != nil {
				t.Fatalf("Register failed: %v", err)
			}
			if res.Success {
				t.Fatal("expected a conflict")
			}
			if res.Failure != authkit.FailureConflict {
				t.Fatalf("failure = %v, want FailureConflict", res.Failure)
			}
			if res.Message != "Username or email already exists." {
				t.Fatalf("message = %q", res.Message)
			}
			if res.Token != "" || res.RefreshToken != "" {
				t.Fatal("conflict result must not carry credentials")
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	reg := mustRegister(t, svc, "alice", "alice@example.com", "pw1")

	res, err := svc.Login(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Login rejected: %q", res.Message)
	}
	if res.RefreshToken == reg.RefreshToken {
		t.Fatal("login reused the registration refresh token")
	}
	if _, err := svc.Signer().Verify(res.Token); err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	mustRegister(t, svc, "alice", "alice@example.com", "pw1")

	unknown, err := svc.Login(context.Background(), "nobody", "pw1")
	if err != nil {
		t.Fatalf("Login(unknown) failed: %v", err)
	}
	wrongPw, err := svc.Login(context.Background(), "alice", "wrong")
	if err != nil {
		t.Fatalf("Login(wrong password) failed: %v", err)
	}

	for name, res := range map[string]*authkit.AuthResult{
		"unknown user":   unknown,
		"wrong password": wrongPw,
	} {
		if res.Success {
			t.Fatalf("%s: expected rejection", name)
		}
		if res.Failure != authkit.FailureUnauthorized {
			t.Fatalf("%s: failure = %v, want FailureUnauthorized", name, res.Failure)
		}
		if res.Message != "Invalid credentials" {
			t.Fatalf("%s: message = %q", name, res.Message)
		}
		if res.User != nil {
			t.Fatalf("%s: result leaks the user record", name)
		}
	}
	if *unknown != *wrongPw {
		t.Fatalf("results differ: %+v vs %+v", unknown, wrongPw)
	}
}

func TestLoginCorruptedDigestIsError(t *testing.T) {
	svc, store := newTestService(t, testConfig())

	if err := store.Users().Insert(context.Background(), &authkit.User{
		Username:     "broken",
		Email:        "broken@example.com",
		PasswordHash: "$argon2id$not-a-digest",
		Role:         authkit.RoleUser,
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	res, err := svc.Login(context.Background(), "broken", "pw1")
	if err == nil {
		t.Fatalf("expected an error for a corrupted digest, got %+v", res)
	}
	if !errors.Is(err, password.ErrInvalidDigest) {
		t.Fatalf("error = %v, want ErrInvalidDigest", err)
	}
}

func TestRefreshReturnsSameOpaqueValue(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	reg := mustRegister(t, svc, "alice", "alice@example.com", "pw1")

	res, err := svc.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Refresh rejected: %q", res.Message)
	}
	if res.RefreshToken != reg.RefreshToken {
		t.Fatal("refresh must hand back the presented opaque value")
	}
	if res.Token == "" {
		t.Fatal("expected a fresh signed token")
	}
	claims, err := svc.Signer().Verify(res.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("token username = %q, want %q", claims.Username, "alice")
	}

	// The same value keeps working until revoked.
	again, err := svc.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if !again.Success {
		t.Fatalf("second Refresh rejected: %q", again.Message)
	}
}

func TestRefreshRejections(t *testing.T) {
	svc, store := newTestService(t, testConfig())
	reg := mustRegister(t, svc, "alice", "alice@example.com", "pw1")

	expired := &authkit.RefreshToken{
		Token:     "expired-token",
		UserID:    reg.User.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	if err := store.Tokens().Insert(context.Background(), expired); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	revoked := &authkit.RefreshToken{
		Token:     "revoked-token",
		UserID:    reg.User.ID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	if err := store.Tokens().Insert(context.Background(), revoked); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Tokens().MarkRevoked(context.Background(), revoked.Token); err != nil {
		t.Fatalf("MarkRevoked failed: %v", err)
	}

	for name, value := range map[string]string{
		"unknown": "no-such-token",
		"expired": expired.Token,
		"revoked": revoked.Token,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := svc.Refresh(context.Background(), value)
			if err != nil {
				t.Fatalf("Refresh failed: %v", err)
			}
			if res.Success {
				t.Fatal("expected rejection")
			}
			if res.Failure != authkit.FailureUnauthorized {
				t.Fatalf("failure = %v, want FailureUnauthorized", res.Failure)
			}
			if res.Message != "Invalid or expired refresh token" {
				t.Fatalf("message = %q", res.Message)
			}
		})
	}
}

func TestRefreshWithRotation(t *testing.T) {
	cfg := testConfig()
	cfg.Refresh.Rotate = true
	svc, store := newTestService(t, cfg)
	reg := mustRegister(t, svc, "alice", "alice@example.com", "pw1")

	res, err := svc.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Refresh rejected: %q", res.Message)
	}
	if res.RefreshToken == reg.RefreshToken {
		t.Fatal("rotation must mint a new opaque value")
	}

	old, err := store.Tokens().Find(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !old.Revoked {
		t.Fatal("rotated-out token must be revoked")
	}

	replay, err := svc.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if replay.Success {
		t.Fatal("rotated-out token must not refresh again")
	}

	next, err := svc.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !next.Success {
		t.Fatalf("replacement token rejected: %q", next.Message)
	}
}

func TestRevoke(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	reg := mustRegister(t, svc, "alice", "alice@example.com", "pw1")

	ok, err := svc.Revoke(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if !ok {
		t.Fatal("expected the active token to be revoked")
	}

	res, err := svc.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if res.Success {
		t.Fatal("revoked token must not refresh")
	}

	// Second revoke of the same token is a silent no-op.
	ok, err = svc.Revoke(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("second Revoke failed: %v", err)
	}
	if ok {
		t.Fatal("already revoked token must report false")
	}

	ok, err = svc.Revoke(context.Background(), "no-such-token")
	if err != nil {
		t.Fatalf("Revoke(unknown) failed: %v", err)
	}
	if ok {
		t.Fatal("unknown token must report false")
	}
}

func TestRevokeAll(t *testing.T) {
	svc, store := newTestService(t, testConfig())
	alice := mustRegister(t, svc, "alice", "alice@example.com", "pw1")
	bob := mustRegister(t, svc, "bob", "bob@example.com", "pw2")

	var aliceTokens []string
	aliceTokens = append(aliceTokens, alice.RefreshToken)
	for n := 0; n < 2; n++ {
		res, err := svc.Login(context.Background(), "alice", "pw1")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		aliceTokens = append(aliceTokens, res.RefreshToken)
	}

	if err := svc.RevokeAll(context.Background(), alice.User.ID); err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}

	for i, value := range aliceTokens {
		record, err := store.Tokens().Find(context.Background(), value)
		if err != nil {
			t.Fatalf("Find failed: %v", err)
		}
		if !record.Revoked {
			t.Fatalf("token %d survived RevokeAll", i)
		}
	}

	res, err := svc.Refresh(context.Background(), bob.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !res.Success {
		t.Fatal("other user's token must stay active")
	}
}

func TestCredentialLifecycle(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	reg := mustRegister(t, svc, "carol", "carol@example.com", "pw1")

	refreshed, err := svc.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !refreshed.Success {
		t.Fatalf("Refresh rejected: %q", refreshed.Message)
	}
	if refreshed.Token == reg.Token {
		t.Fatal("refresh reused the signed token")
	}
	if refreshed.RefreshToken != reg.RefreshToken {
		t.Fatal("refresh changed the opaque value")
	}

	ok, err := svc.Revoke(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if !ok {
		t.Fatal("expected revocation to apply")
	}

	dead, err := svc.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if dead.Success {
		t.Fatal("revoked token refreshed")
	}
	if dead.Message != "Invalid or expired refresh token" {
		t.Fatalf("message = %q", dead.Message)
	}
}

func TestBuilderValidation(t *testing.T) {
	store := memstore.New()

	t.Run("missing user store", func(t *testing.T) {
		_, err := authkit.New().
			WithConfig(testConfig()).
			WithTokenStore(store.Tokens()).
			Build()
		if err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("missing token store", func(t *testing.T) {
		_, err := authkit.New().
			WithConfig(testConfig()).
			WithUserStore(store.Users()).
			Build()
		if err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("short secret", func(t *testing.T) {
		cfg := testConfig()
		cfg.Token.Secret = []byte("too-short")
		_, err := authkit.New().
			WithConfig(cfg).
			WithUserStore(store.Users()).
			WithTokenStore(store.Tokens()).
			Build()
		if err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("reuse", func(t *testing.T) {
		b := authkit.New().
			WithConfig(testConfig()).
			WithUserStore(store.Users()).
			WithTokenStore(store.Tokens())
		if _, err := b.Build(); err != nil {
			t.Fatalf("first Build failed: %v", err)
		}
		if _, err := b.Build(); err == nil {
			t.Fatal("expected the second Build to fail")
		}
	})
}
