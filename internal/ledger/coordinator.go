// Package ledger is the only module permitted to touch the shared
// coordinator (Redis). It owns the seat counter, the queue ordering,
// active-user markers, and the expiration-processed fence described in
// spec §4.1. All callers are in-process; the coordinator itself is
// shared across every process running this service.
package ledger

import (
	"context"
	"time"
)

// Coordinator is the minimal set of atomic primitives the ledger needs:
// integer counters, sorted-set ordering, set-if-absent, and per-key TTL.
// It is satisfied by RedisCoordinator in production and by FakeCoordinator
// in tests, so the concurrency properties in spec §8 can be exercised
// without a live Redis instance.
type Coordinator interface {
	// Incr atomically adds one to key (creating it at 0 first) and
	// returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Decr atomically subtracts one from key (creating it at 0 first)
	// and returns the new value, which may be negative.
	Decr(ctx context.Context, key string) (int64, error)
	// Set unconditionally overwrites key with value.
	Set(ctx context.Context, key string, value int64) error
	// Get returns the integer stored at key, or (0, false, nil) if absent.
	Get(ctx context.Context, key string) (int64, bool, error)

	// SetNX sets key to value with the given ttl only if key is absent.
	// Returns true iff this call was the one that set it.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// SetTTL unconditionally sets key to value with the given ttl.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// ZAddNX adds member to the sorted set at key with the given score,
	// unless member is already present, in which case its score is
	// left unchanged.
	ZAddNX(ctx context.Context, key string, score float64, member string) error
	// ZRank returns the 0-based rank of member in the sorted set at key
	// ordered by ascending score, or (0, false, nil) if absent.
	ZRank(ctx context.Context, key, member string) (int64, bool, error)
	// ZCard returns the number of members in the sorted set at key.
	ZCard(ctx context.Context, key string) (int64, error)
	// ZHead returns the lowest-scored member of the sorted set at key,
	// or (\"\", false, nil) if the set is empty.
	ZHead(ctx context.Context, key string) (string, bool, error)
	// ZRem removes member from the sorted set at key.
	ZRem(ctx context.Context, key, member string) error
}
