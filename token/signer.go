package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by [Signer.Verify] for every verification
// failure. Compare with errors.Is; the wrapped cause is diagnostic detail
// and must not be forwarded to clients.
var ErrInvalidToken = errors.New("invalid token")

const minSecretLength = 32

// Config holds the immutable signing parameters.
type Config struct {
	// Secret is the symmetric HMAC key. Rejected below 32 bytes.
	Secret   []byte
	Issuer   string
	Audience string
	// TTL is the validity window applied at issuance.
	TTL time.Duration
	// Leeway tolerates clock skew between issuer and verifier.
	Leeway time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Claims is the claim bundle carried by a session token. Subject holds the
// decimal user id; Username and Role ride alongside the registered claims.
type Claims struct {
	Username string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim as a numeric user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	return id, nil
}

// Signer issues and verifies signed session tokens. It is safe for
// concurrent use.
type Signer struct {
	config Config
}

// NewSigner validates cfg and returns a ready Signer. A missing or short
// secret, an empty issuer or audience, or a non-positive TTL is a
// configuration error and fails construction.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSecretLength)
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer must be configured")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience must be configured")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)
	return &Signer{config: cfg}, nil
}

// Issue signs a token for the given identity with expiry now+TTL.
func (s *Signer) Issue(userID int64, username, role string) (string, error) {
	now := s.config.Now()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.config.Issuer,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
}

// Verify parses raw and checks signature, issuer, audience, and validity
// window. On success it returns the embedded claims.
func (s *Signer) Verify(raw string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.config.Now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL reports the configured validity window.
func (s *Signer) TTL() time.Duration {
	return s.config.TTL
}
