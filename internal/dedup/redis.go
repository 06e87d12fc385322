package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements the visited-set contract on a shared Redis instance.
// Membership is monotonically non-decreasing for a live task; the whole set
// expires VisitedTTL after the task's last insert step.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// IsVisited reports whether url was already dispatched for taskID.
func (s *RedisStore) IsVisited(ctx context.Context, taskID, url string) (bool, error) {
	member, err := s.rdb.SIsMember(ctx, visitedKey(taskID), url).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", visitedKey(taskID), err)
	}
	return member, nil
}

// MarkVisited records url as dispatched for taskID.
func (s *RedisStore) MarkVisited(ctx context.Context, taskID, url string) error {
	if err := s.rdb.SAdd(ctx, visitedKey(taskID), url).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", visitedKey(taskID), err)
	}
	return nil
}

// VisitedCount returns the size of the task's visited set.
func (s *RedisStore) VisitedCount(ctx context.Context, taskID string) (int64, error) {
	n, err := s.rdb.SCard(ctx, visitedKey(taskID)).Result()
	if err != nil {
		return 0, fmt.Errorf("scard %s: %w", visitedKey(taskID), err)
	}
	return n, nil
}

// Expire sets (or refreshes) the TTL on the task's visited set.
func (s *RedisStore) Expire(ctx context.Context, taskID string, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, visitedKey(taskID), ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", visitedKey(taskID), err)
	}
	return nil
}
