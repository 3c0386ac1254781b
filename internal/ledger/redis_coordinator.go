package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCoordinator implements Coordinator on top of go-redis, following
// the connection style of pkg/cache's client construction.
type RedisCoordinator struct {
	client *redis.Client
}

// NewRedisCoordinator wraps an already-connected Redis client.
func NewRedisCoordinator(client *redis.Client) *RedisCoordinator {
	return &RedisCoordinator{client: client}
}

func (c *RedisCoordinator) Incr(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("coordinator: incr %s: %w", key, err)
	}
	return v, nil
}

func (c *RedisCoordinator) Decr(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("coordinator: decr %s: %w", key, err)
	}
	return v, nil
}

func (c *RedisCoordinator) Set(ctx context.Context, key string, value int64) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("coordinator: set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCoordinator) Get(ctx context.Context, key string) (int64, bool, error) {
	v, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("coordinator: get %s: %w", key, err)
	}
	return v, true, nil
}

func (c *RedisCoordinator) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("coordinator: setnx %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisCoordinator) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("coordinator: set-ttl %s: %w", key, err)
	}
	return nil
}

func (c *RedisCoordinator) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("coordinator: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *RedisCoordinator) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("coordinator: delete %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *RedisCoordinator) ZAddNX(ctx context.Context, key string, score float64, member string) error {
	err := c.client.ZAddArgs(ctx, key, redis.ZAddArgs{
		NX:      true,
		Members: []redis.Z{{Score: score, Member: member}},
	}).Err()
	if err != nil {
		return fmt.Errorf("coordinator: zadd %s: %w", key, err)
	}
	return nil
}

func (c *RedisCoordinator) ZRank(ctx context.Context, key, member string) (int64, bool, error) {
	rank, err := c.client.ZRank(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("coordinator: zrank %s: %w", key, err)
	}
	return rank, true, nil
}

func (c *RedisCoordinator) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := c.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("coordinator: zcard %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisCoordinator) ZHead(ctx context.Context, key string) (string, bool, error) {
	members, err := c.client.ZRange(ctx, key, 0, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("coordinator: zrange %s: %w", key, err)
	}
	if len(members) == 0 {
		return "", false, nil
	}
	return members[0], true, nil
}

func (c *RedisCoordinator) ZRem(ctx context.Context, key, member string) error {
	if err := c.client.ZRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("coordinator: zrem %s: %w", key, err)
	}
	return nil
}
