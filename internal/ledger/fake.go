package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// FakeCoordinator is an in-process, mutex-protected implementation of
// Coordinator used by tests that exercise the ledger's and the
// promotion/expiration pipelines' concurrency properties without a live
// Redis instance. Expired TTL entries are reaped lazily on access,
// mirroring the in-memory lock/idempotency stores used elsewhere in the
// ticketing reference material this module is grounded on.
type FakeCoordinator struct {
	mu sync.Mutex

	counters map[string]int64
	strings  map[string]ttlString
	zsets    map[string]map[string]float64
}

type ttlString struct {
	value   string
	expires time.Time // zero means no expiry
}

// NewFakeCoordinator creates an empty in-memory coordinator.
func NewFakeCoordinator() *FakeCoordinator {
	return &FakeCoordinator{
		counters: make(map[string]int64),
		strings:  make(map[string]ttlString),
		zsets:    make(map[string]map[string]float64),
	}
}

func (f *FakeCoordinator) reapLocked(key string) {
	if v, ok := f.strings[key]; ok && !v.expires.IsZero() && time.Now().After(v.expires) {
		delete(f.strings, key)
	}
}

func (f *FakeCoordinator) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	return f.counters[key], nil
}

func (f *FakeCoordinator) Decr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]--
	return f.counters[key], nil
}

func (f *FakeCoordinator) Set(_ context.Context, key string, value int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key] = value
	return nil
}

func (f *FakeCoordinator) Get(_ context.Context, key string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.counters[key]
	return v, ok, nil
}

func (f *FakeCoordinator) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reapLocked(key)
	if _, ok := f.strings[key]; ok {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.strings[key] = ttlString{value: value, expires: exp}
	return true, nil
}

func (f *FakeCoordinator) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.strings[key] = ttlString{value: value, expires: exp}
	return nil
}

func (f *FakeCoordinator) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reapLocked(key)
	_, ok := f.strings[key]
	return ok, nil
}

func (f *FakeCoordinator) Delete(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reapLocked(key)
	_, ok := f.strings[key]
	delete(f.strings, key)
	return ok, nil
}

func (f *FakeCoordinator) ZAddNX(_ context.Context, key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.zsets[key]
	if !ok {
		set = make(map[string]float64)
		f.zsets[key] = set
	}
	if _, exists := set[member]; !exists {
		set[member] = score
	}
	return nil
}

func (f *FakeCoordinator) ZRank(_ context.Context, key, member string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.zsets[key]
	if !ok {
		return 0, false, nil
	}
	score, ok := set[member]
	if !ok {
		return 0, false, nil
	}
	members := sortedMembers(set)
	for i, m := range members {
		if m == member {
			return int64(i), true, nil
		}
	}
	_ = score
	return 0, false, nil
}

func (f *FakeCoordinator) ZCard(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.zsets[key])), nil
}

func (f *FakeCoordinator) ZHead(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.zsets[key]
	if !ok || len(set) == 0 {
		return "", false, nil
	}
	members := sortedMembers(set)
	return members[0], true, nil
}

func (f *FakeCoordinator) ZRem(_ context.Context, key, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.zsets[key]; ok {
		delete(set, member)
	}
	return nil
}

func sortedMembers(set map[string]float64) []string {
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		return set[members[i]] < set[members[j]]
	})
	return members
}
