// Package redistore implements the authkit refresh-token contract on
// Redis. Each token lives in its own hash and a per-user set indexes the
// bulk operations; bulk revocation runs as a single Lua script so the
// transition is atomic. Records are written without a TTL and survive
// revocation, keeping the audit trail intact.
package redistore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authkit-go/authkit"
)

const (
	fieldUserID    = "user_id"
	fieldExpiresAt = "expires_at"
	fieldRevoked   = "revoked"
	fieldCreatedAt = "created_at"
)

const revokeAllScript = `
local tokens = redis.call("SMEMBERS", KEYS[1])
local touched = 0
for _, token in ipairs(tokens) do
  local key = ARGV[1] .. token
  if redis.call("EXISTS", key) == 1 then
    redis.call("HSET", key, "revoked", "1")
    touched = touched + 1
  end
end
return touched
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// Store implements authkit.TokenStore on a Redis client. prefix namespaces
// every key so multiple deployments can share an instance.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New returns a Store using the given client and key prefix.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "authkit"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) tokenKey(token string) string {
	return s.prefix + ":rt:" + token
}

func (s *Store) userKey(userID int64) string {
	return s.prefix + ":user:" + strconv.FormatInt(userID, 10)
}

func (s *Store) Insert(ctx context.Context, record *authkit.RefreshToken) error {
	key := s.tokenKey(record.Token)

	revoked := "0"
	if record.Revoked {
		revoked = "1"
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		fieldUserID, strconv.FormatInt(record.UserID, 10),
		fieldExpiresAt, strconv.FormatInt(record.ExpiresAt.Unix(), 10),
		fieldRevoked, revoked,
		fieldCreatedAt, strconv.FormatInt(record.CreatedAt.Unix(), 10),
	)
	pipe.SAdd(ctx, s.userKey(record.UserID), record.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redistore insert: %w", err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, token string) (*authkit.RefreshToken, error) {
	fields, err := s.rdb.HGetAll(ctx, s.tokenKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redistore find: %w", err)
	}
	if len(fields) == 0 {
		return nil, authkit.ErrNotFound
	}

	userID, err := strconv.ParseInt(fields[fieldUserID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redistore find: corrupt user_id field: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redistore find: corrupt expires_at field: %w", err)
	}
	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redistore find: corrupt created_at field: %w", err)
	}

	return &authkit.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Unix(expiresAt, 0).UTC(),
		Revoked:   fields[fieldRevoked] == "1",
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}

func (s *Store) MarkRevoked(ctx context.Context, token string) error {
	key := s.tokenKey(token)

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redistore revoke: %w", err)
	}
	if exists == 0 {
		return authkit.ErrNotFound
	}
	if err := s.rdb.HSet(ctx, key, fieldRevoked, "1").Err(); err != nil {
		return fmt.Errorf("redistore revoke: %w", err)
	}
	return nil
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID int64) error {
	keys := []string{s.userKey(userID)}
	args := []any{s.prefix + ":rt:"}
	if err := revokeAllLua.Run(ctx, s.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("redistore revoke all: %w", err)
	}
	return nil
}
