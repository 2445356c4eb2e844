package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidDigest marks a stored digest that cannot be decoded. This is a
// distinct outcome from a verification mismatch: the caller should treat it
// as data corruption, not as a wrong password.
var ErrInvalidDigest = errors.New("invalid password digest")

const (
	algorithm = "argon2id"

	minMemoryKiB   uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// Params are the argon2id cost parameters. Memory is in KiB.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams targets tens of milliseconds per verification on current
// server hardware.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Params) validate() error {
	switch {
	case p.Memory < minMemoryKiB:
		return fmt.Errorf("memory must be >= %d KiB", minMemoryKiB)
	case p.Time < minTime:
		return fmt.Errorf("time cost must be >= %d", minTime)
	case p.Parallelism < minParallelism:
		return fmt.Errorf("parallelism must be >= %d", minParallelism)
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("salt length must be >= %d", minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("key length must be >= %d", minKeyLength)
	}
	return nil
}

// Hasher derives and checks argon2id digests. Safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates p and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: p}, nil
}

// Hash derives a digest from plaintext under a fresh random salt and
// returns it in PHC string format.
func (h *Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	sum := argon2.IDKey([]byte(plaintext), salt,
		h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify recomputes the digest for plaintext under the parameters embedded
// in digest and compares in constant time. It returns false for a mismatch
// and an error only when the digest itself is malformed.
func (h *Hasher) Verify(plaintext, digest string) (bool, error) {
	params, salt, sum, err := decode(digest)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(plaintext), salt,
		params.Time, params.Memory, params.Parallelism, uint32(len(sum)))

	return subtle.ConstantTimeCompare(computed, sum) == 1, nil
}

// NeedsRehash reports whether digest was produced with weaker parameters
// than the hasher currently uses.
func (h *Hasher) NeedsRehash(digest string) (bool, error) {
	params, _, sum, err := decode(digest)
	if err != nil {
		return false, err
	}
	if params.Memory < h.params.Memory ||
		params.Time < h.params.Time ||
		params.Parallelism < h.params.Parallelism {
		return true, nil
	}
	return uint32(len(sum)) != h.params.KeyLength, nil
}

func decode(digest string) (Params, []byte, []byte, error) {
	var params Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return params, nil, nil, fmt.Errorf("%w: want 6 '$'-separated fields", ErrInvalidDigest)
	}
	if parts[1] != algorithm {
		return params, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidDigest, parts[1])
	}

	var version int
	if n, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || n != 1 {
		return params, nil, nil, fmt.Errorf("%w: malformed version field", ErrInvalidDigest)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrInvalidDigest, version)
	}

	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.Memory, &params.Time, &params.Parallelism); err != nil || n != 3 {
		return params, nil, nil, fmt.Errorf("%w: malformed cost parameters", ErrInvalidDigest)
	}
	if params.Memory == 0 || params.Time == 0 || params.Parallelism == 0 {
		return params, nil, nil, fmt.Errorf("%w: zero cost parameter", ErrInvalidDigest)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: undecodable salt", ErrInvalidDigest)
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return params, nil, nil, fmt.Errorf("%w: undecodable hash", ErrInvalidDigest)
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(sum))
	return params, salt, sum, nil
}
