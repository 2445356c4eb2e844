package authkit

import (
	"errors"
	"time"
)

// Config holds every tunable of the credential service. It is validated
// once in [Builder.Build] and treated as immutable afterwards; nothing is
// re-read per request.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Refresh  RefreshConfig
}

// TokenConfig configures signed session tokens.
type TokenConfig struct {
	// Secret is the HMAC signing key. At least 32 bytes.
	Secret   []byte
	Issuer   string
	Audience string
	// AccessTTL is the signed-token lifetime applied at issuance.
	AccessTTL time.Duration
	// Leeway tolerates small clock skew during verification.
	Leeway time.Duration
}

// PasswordConfig carries the argon2id cost parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// RefreshConfig configures opaque refresh tokens.
type RefreshConfig struct {
	// TTL is the absolute lifetime of a refresh token, set at issuance.
	TTL time.Duration
	// Rotate mints a replacement value on every refresh and revokes the
	// presented one. Off by default: the same opaque value is then reused
	// until explicitly revoked.
	Rotate bool
}

// DefaultConfig returns the baseline configuration: 15 minute access
// tokens, 7 day refresh tokens, no rotation, and argon2id parameters that
// keep a single verification in the tens of milliseconds.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL: 15 * time.Minute,
			Leeway:    0,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        1,
			Parallelism: 4,
			SaltLength:  16,
			KeyLength:   32,
		},
		Refresh: RefreshConfig{
			TTL:    7 * 24 * time.Hour,
			Rotate: false,
		},
	}
}

// Validate checks the parts of the configuration owned by this package.
// Signer and hasher parameters are additionally validated by their own
// constructors during Build.
func (c *Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("token access TTL must be positive")
	}
	if c.Refresh.TTL <= 0 {
		return errors.New("refresh TTL must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
