package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Reservation is proof that one usage slot was durably consumed.
type Reservation struct {
	PromotionID uuid.UUID
	// UsageCount is the counter value after this reservation.
	UsageCount int64
}

// CoordinatorConfig tunes the reservation retry loop.
type CoordinatorConfig struct {
	// MaxAttempts bounds retries when the store reports an optimistic
	// conflict. Zero or negative falls back to the default of 5.
	MaxAttempts int
	// RetryBackoff is the base delay between attempts; it doubles on each
	// conflict. Zero or negative falls back to 10ms.
	RetryBackoff time.Duration
}

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 10 * time.Millisecond
)

// Coordinator serializes usage-slot reservations through the store's atomic
// conditional increment. The store operation is all-or-nothing at the
// granularity of one promotion id, so the coordinator itself holds no locks
// and reservations for distinct promotions never contend.
type Coordinator struct {
	store        Store
	maxAttempts  int
	retryBackoff time.Duration
}

// NewCoordinator creates a Coordinator over the given store.
func NewCoordinator(store Store, cfg CoordinatorConfig) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &Coordinator{
		store:        store,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
	}
}

// TryReserve consumes exactly one usage slot for the promotion, or fails
// without mutating state.
//
// Returns ErrLimitReached when the ceiling is already met,
// ErrContentionExceeded when the optimistic retry budget runs out, the
// context error when cancelled, and a StoreError for infrastructure faults.
// Under N concurrent callers with k slots remaining, exactly min(N, k)
// reservations succeed.
func (c *Coordinator) TryReserve(ctx context.Context, id uuid.UUID) (Reservation, error) {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Reservation{}, err
		}

		res, err := c.store.TryIncrementUsage(ctx, id)
		switch {
		case err == nil:
			if !res.Applied {
				return Reservation{}, ErrLimitReached
			}
			return Reservation{PromotionID: id, UsageCount: res.UsageCount}, nil
		case errors.Is(err, ErrReservationConflict):
			if attempt >= c.maxAttempts {
				return Reservation{}, ErrContentionExceeded
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return Reservation{}, err
		default:
			return Reservation{}, &StoreError{Op: "increment usage", Err: err}
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Reservation{}, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}
