package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore keeps a per-user "not before" instant in Redis. Tokens
// issued before it are refused until the key expires.
type RevocationStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// ttl must be at least the lifetime of the longest token the identity
// provider issues.
func NewRevocationStore(rdb *redis.Client, ttl time.Duration) *RevocationStore {
	return &RevocationStore{rdb: rdb, ttl: ttl}
}

func key(uid string) string { return fmt.Sprintf("app:revoked:%s", uid) }

func (s *RevocationStore) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.RevokeAllForUserAt(ctx, userID, time.Now())
}

func (s *RevocationStore) RevokeAllForUserAt(ctx context.Context, userID string, at time.Time) error {
	return s.rdb.Set(ctx, key(userID), strconv.FormatInt(at.Unix(), 10), s.ttl).Err()
}

// IsRevoked reports whether a token for userID issued at issuedAt predates
// the user's revocation mark.
func (s *RevocationStore) IsRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	v, err := s.rdb.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	notBefore, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, fmt.Errorf("revocation mark for %s: %w", userID, err)
	}
	return issuedAt.Unix() <= notBefore, nil
}

func (s *RevocationStore) Clear(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, key(userID)).Err()
}
