package password

import (
	"errors"
	"strings"
	"testing"
)

// fastParams keeps each derivation cheap; production strength is not the
// point of these tests.
func fastParams() Params {
	return Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func newTestHasher(t *testing.T, p Params) *Hasher {
	t.Helper()

	h, err := NewHasher(p)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t, fastParams())

	digest, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("digest %q not in PHC format", digest)
	}
	if strings.Contains(digest, "pw1") {
		t.Fatal("digest leaks the plaintext")
	}

	ok, err := h.Verify("pw1", digest)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = h.Verify("wrong", digest)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	h := newTestHasher(t, fastParams())

	a, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("two digests of the same password are identical")
	}
}

func TestVerifyAcrossParameters(t *testing.T) {
	// A digest must verify under its embedded parameters even when the
	// hasher is configured differently.
	old := newTestHasher(t, fastParams())
	digest, err := old.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	stronger := fastParams()
	stronger.Memory = 16 * 1024
	stronger.Parallelism = 2
	h := newTestHasher(t, stronger)

	ok, err := h.Verify("pw1", digest)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("digest rejected under a differently configured hasher")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := newTestHasher(t, fastParams())

	good, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	parts := strings.Split(good, "$")

	cases := map[string]string{
		"empty":            "",
		"plaintext":        "hunter2",
		"missing fields":   "$argon2id$v=19",
		"wrong algorithm":  strings.Replace(good, "argon2id", "argon2i", 1),
		"bad version":      strings.Replace(good, "v=19", "v=7", 1),
		"bad costs":        "$argon2id$v=19$m=abc,t=1,p=1$" + parts[4] + "$" + parts[5],
		"zero costs":       "$argon2id$v=19$m=0,t=0,p=0$" + parts[4] + "$" + parts[5],
		"undecodable salt": "$argon2id$v=19$" + parts[3] + "$!!!$" + parts[5],
		"undecodable hash": "$argon2id$v=19$" + parts[3] + "$" + parts[4] + "$!!!",
		"trailing garbage": good + "$extra",
	}
	for name, digest := range cases {
		t.Run(name, func(t *testing.T) {
			ok, err := h.Verify("pw1", digest)
			if !errors.Is(err, ErrInvalidDigest) {
				t.Fatalf("error = %v, want ErrInvalidDigest", err)
			}
			if ok {
				t.Fatal("malformed digest verified")
			}
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := newTestHasher(t, fastParams())
	digest, err := weak.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	same, err := weak.NeedsRehash(digest)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if same {
		t.Fatal("digest at current parameters flagged for rehash")
	}

	stronger := fastParams()
	stronger.Memory = 32 * 1024
	h := newTestHasher(t, stronger)

	upgrade, err := h.NeedsRehash(digest)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if !upgrade {
		t.Fatal("weaker digest not flagged for rehash")
	}

	if _, err := h.NeedsRehash("garbage"); !errors.Is(err, ErrInvalidDigest) {
		t.Fatalf("error = %v, want ErrInvalidDigest", err)
	}
}

func TestNewHasherValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"low memory", func(p *Params) { p.Memory = 1024 }},
		{"zero time", func(p *Params) { p.Time = 0 }},
		{"zero parallelism", func(p *Params) { p.Parallelism = 0 }},
		{"short salt", func(p *Params) { p.SaltLength = 8 }},
		{"short key", func(p *Params) { p.KeyLength = 8 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := fastParams()
			tc.mutate(&p)
			if _, err := NewHasher(p); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
