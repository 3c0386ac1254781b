package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExpirationFenceTTL bounds how long a claimed expiration fence holds
// storage once set, per spec §4.1's "one hour" guidance.
const ExpirationFenceTTL = time.Hour

// Ledger is the only facade permitted to touch Coordinator keys. All
// key names are confined to this file; no other package builds one.
type Ledger struct {
	coord Coordinator
}

// New wraps a Coordinator (RedisCoordinator in production, FakeCoordinator
// in tests) in the ledger's domain-specific operations.
func New(coord Coordinator) *Ledger {
	return &Ledger{coord: coord}
}

func seatsKey(eventID uuid.UUID) string       { return fmt.Sprintf("seats:%s", eventID) }
func queueKey(eventID uuid.UUID) string       { return fmt.Sprintf("queue:%s", eventID) }
func activeKey(eventID, userID uuid.UUID) string {
	return fmt.Sprintf("active:%s:%s", eventID, userID)
}
func activeCountKey(eventID uuid.UUID) string { return fmt.Sprintf("activeCount:%s", eventID) }
func expiredKey(reservationID uuid.UUID) string {
	return fmt.Sprintf("expired:%s", reservationID)
}

// ─── Seat counter ───────────────────────────────────────────

// InitializeSeats writes N to the event's seat counter. Called once per
// event at creation; repeated calls overwrite rather than accumulate, so
// callers must not reinitialize an event already in use.
func (l *Ledger) InitializeSeats(ctx context.Context, eventID uuid.UUID, n int) error {
	if err := l.coord.Set(ctx, seatsKey(eventID), int64(n)); err != nil {
		return fmt.Errorf("ledger: initialize seats: %w", err)
	}
	return nil
}

// DecrementSeats atomically subtracts one and returns the new value,
// which may be negative. Callers are responsible for reverting via
// IncrementSeats if the negative result signals sold-out.
func (l *Ledger) DecrementSeats(ctx context.Context, eventID uuid.UUID) (int, error) {
	v, err := l.coord.Decr(ctx, seatsKey(eventID))
	if err != nil {
		return 0, fmt.Errorf("ledger: decrement seats: %w", err)
	}
	return int(v), nil
}

// IncrementSeats atomically adds one and returns the new value.
func (l *Ledger) IncrementSeats(ctx context.Context, eventID uuid.UUID) (int, error) {
	v, err := l.coord.Incr(ctx, seatsKey(eventID))
	if err != nil {
		return 0, fmt.Errorf("ledger: increment seats: %w", err)
	}
	return int(v), nil
}

// GetRemainingSeats returns the current seat count, 0 if the event has
// never been initialized.
func (l *Ledger) GetRemainingSeats(ctx context.Context, eventID uuid.UUID) (int, error) {
	v, ok, err := l.coord.Get(ctx, seatsKey(eventID))
	if err != nil {
		return 0, fmt.Errorf("ledger: get remaining seats: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if v < 0 {
		return 0, nil
	}
	return int(v), nil
}

// ─── Queue ordering ─────────────────────────────────────────

// AddToQueue adds user to event's queue if absent (set-if-absent on the
// sorted set, scored by the current instant) and returns the member's
// 1-based rank. Repeated calls for an existing member leave its score
// (and therefore its position) unchanged.
func (l *Ledger) AddToQueue(ctx context.Context, eventID, userID uuid.UUID) (int, error) {
	key := queueKey(eventID)
	score := float64(time.Now().UnixNano())
	if err := l.coord.ZAddNX(ctx, key, score, userID.String()); err != nil {
		return 0, fmt.Errorf("ledger: add to queue: %w", err)
	}
	rank, ok, err := l.coord.ZRank(ctx, key, userID.String())
	if err != nil {
		return 0, fmt.Errorf("ledger: add to queue: rank: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("ledger: add to queue: member missing immediately after add")
	}
	return int(rank) + 1, nil
}

// GetQueuePosition returns the 1-based rank of user in event's queue, or
// (0, false) if the user is not queued.
func (l *Ledger) GetQueuePosition(ctx context.Context, eventID, userID uuid.UUID) (int, bool, error) {
	rank, ok, err := l.coord.ZRank(ctx, queueKey(eventID), userID.String())
	if err != nil {
		return 0, false, fmt.Errorf("ledger: get queue position: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	return int(rank) + 1, true, nil
}

// GetQueueLength returns the number of members currently queued for event.
func (l *Ledger) GetQueueLength(ctx context.Context, eventID uuid.UUID) (int64, error) {
	n, err := l.coord.ZCard(ctx, queueKey(eventID))
	if err != nil {
		return 0, fmt.Errorf("ledger: get queue length: %w", err)
	}
	return n, nil
}

// PeekQueueHead returns the user at the front of event's queue without
// removing them, or (uuid.Nil, false) if the queue is empty.
func (l *Ledger) PeekQueueHead(ctx context.Context, eventID uuid.UUID) (uuid.UUID, bool, error) {
	member, ok, err := l.coord.ZHead(ctx, queueKey(eventID))
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("ledger: peek queue head: %w", err)
	}
	if !ok {
		return uuid.Nil, false, nil
	}
	userID, err := uuid.Parse(member)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("ledger: peek queue head: parse member: %w", err)
	}
	return userID, true, nil
}

// RemoveFromQueue removes user from event's queue.
func (l *Ledger) RemoveFromQueue(ctx context.Context, eventID, userID uuid.UUID) error {
	if err := l.coord.ZRem(ctx, queueKey(eventID), userID.String()); err != nil {
		return fmt.Errorf("ledger: remove from queue: %w", err)
	}
	return nil
}

// ─── Active markers ─────────────────────────────────────────

// SetActive marks user as holding an active payment window for event,
// with the active marker expiring after ttl (which should match the
// reservation's deadline, per P7).
func (l *Ledger) SetActive(ctx context.Context, eventID, userID uuid.UUID, ttl time.Duration) error {
	if err := l.coord.SetTTL(ctx, activeKey(eventID, userID), "1", ttl); err != nil {
		return fmt.Errorf("ledger: set active: %w", err)
	}
	if _, err := l.coord.Incr(ctx, activeCountKey(eventID)); err != nil {
		return fmt.Errorf("ledger: set active: increment count: %w", err)
	}
	return nil
}

// IsActive reports whether user currently holds an active payment window
// for event.
func (l *Ledger) IsActive(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	ok, err := l.coord.Exists(ctx, activeKey(eventID, userID))
	if err != nil {
		return false, fmt.Errorf("ledger: is active: %w", err)
	}
	return ok, nil
}

// ClearActive removes user's active marker for event, decrementing the
// auxiliary active count only if the marker actually existed.
func (l *Ledger) ClearActive(ctx context.Context, eventID, userID uuid.UUID) error {
	existed, err := l.coord.Delete(ctx, activeKey(eventID, userID))
	if err != nil {
		return fmt.Errorf("ledger: clear active: %w", err)
	}
	if existed {
		if _, err := l.coord.Decr(ctx, activeCountKey(eventID)); err != nil {
			return fmt.Errorf("ledger: clear active: decrement count: %w", err)
		}
	}
	return nil
}

// GetActiveCount returns the auxiliary count of active members for event,
// used by promote-batch admission control. See spec §9's Open Question on
// this counter's eventual-consistency relationship with the TTL'd markers.
func (l *Ledger) GetActiveCount(ctx context.Context, eventID uuid.UUID) (int, error) {
	v, ok, err := l.coord.Get(ctx, activeCountKey(eventID))
	if err != nil {
		return 0, fmt.Errorf("ledger: get active count: %w", err)
	}
	if !ok || v < 0 {
		return 0, nil
	}
	return int(v), nil
}

// ─── Expiration fence ───────────────────────────────────────

// ClaimExpiration is a set-if-absent fence on the reservation: it returns
// true exactly once per reservation, to at most one caller, across any
// number of concurrent or repeated invocations (P4).
func (l *Ledger) ClaimExpiration(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	ok, err := l.coord.SetNX(ctx, expiredKey(reservationID), "1", ExpirationFenceTTL)
	if err != nil {
		return false, fmt.Errorf("ledger: claim expiration: %w", err)
	}
	return ok, nil
}
