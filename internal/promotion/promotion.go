// Package promotion implements the promotion redemption and
// quota-enforcement engine: lifecycle evaluation, discount calculation, and
// atomic usage-slot reservation against a configurable ceiling.
package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/money"
)

// Sentinel errors for redemption outcomes.
var (
	// ErrCodeNotFound is returned when no promotion exists for a code or id.
	ErrCodeNotFound = errors.New("promotion code not found")
	// ErrDisabled is returned when a promotion's kill-switch is off.
	ErrDisabled = errors.New("promotion disabled")
	// ErrLimitReached is returned when a promotion has no usage slots left.
	ErrLimitReached = errors.New("promotion usage limit reached")
	// ErrNonPositiveAmount is returned for purchase amounts <= 0.
	ErrNonPositiveAmount = errors.New("purchase amount must be positive")
	// ErrContentionExceeded is returned when the reservation retry budget is
	// exhausted without a definitive outcome. The whole redeem call may be
	// retried by the caller.
	ErrContentionExceeded = errors.New("reservation contention budget exceeded")
	// ErrReservationConflict is returned by optimistic stores when a
	// concurrent writer invalidated the attempted increment. The Coordinator
	// retries on it; it never escapes to callers of Redeem.
	ErrReservationConflict = errors.New("reservation conflict")
)

// NotStartedError indicates the promotion's validity window has not opened.
type NotStartedError struct {
	AvailableAt time.Time
}

func (e *NotStartedError) Error() string {
	return fmt.Sprintf("promotion not started, available at %s", e.AvailableAt.Format(time.RFC3339))
}

// ExpiredError indicates the promotion's validity window has closed.
type ExpiredError struct {
	ExpiredAt time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("promotion expired at %s", e.ExpiredAt.Format(time.RFC3339))
}

// BelowMinimumError indicates the purchase amount does not meet the
// promotion's minimum purchase requirement.
type BelowMinimumError struct {
	Minimum money.Money
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("purchase below minimum of %s", e.Minimum)
}

// StoreError wraps an infrastructure failure from the backing store so
// callers can distinguish "try again later" from a business rejection.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("promotion store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Record is the promotion data model. Identity and code are immutable after
// creation; UsageCount is mutated only through Store.TryIncrementUsage.
type Record struct {
	ID              uuid.UUID
	Code            string
	DiscountPercent decimal.Decimal
	// MaxDiscount caps the computed discount when non-nil.
	MaxDiscount *money.Money
	// MinPurchase rejects purchases below this amount when non-nil.
	MinPurchase *money.Money
	// ValidFrom is the window open instant; nil means already started.
	ValidFrom *time.Time
	// ValidUntil is the window close instant. Required: a promotion without
	// an end is not a valid record.
	ValidUntil time.Time
	// UsageLimit is the redemption ceiling; nil means unlimited.
	UsageLimit *int64
	UsageCount int64
	// Enabled is the operator kill-switch, independent of the time window.
	Enabled bool
}

// Remaining returns the number of usage slots left, or nil for unlimited
// promotions. Never negative.
func (r *Record) Remaining() *int64 {
	if r.UsageLimit == nil {
		return nil
	}
	left := *r.UsageLimit - r.UsageCount
	if left < 0 {
		left = 0
	}
	return &left
}

// IncrementResult reports the outcome of a conditional usage increment.
type IncrementResult struct {
	// Applied is true when the increment was persisted; false means the
	// usage ceiling was already reached and nothing changed.
	Applied bool
	// UsageCount is the counter value after the increment. Only meaningful
	// when Applied is true.
	UsageCount int64
}

// Store provides promotion persistence. Implementations must make
// TryIncrementUsage equivalent to a single atomic compare-and-increment
// scoped to one promotion id: concurrent calls against the same id must
// never drive UsageCount past UsageLimit, and distinct ids must not contend
// with each other.
type Store interface {
	FindByCode(ctx context.Context, code string) (*Record, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// TryIncrementUsage atomically increments the usage counter when
	// capacity remains (or the promotion is unlimited). Optimistic
	// implementations may return ErrReservationConflict to request a retry.
	TryIncrementUsage(ctx context.Context, id uuid.UUID) (IncrementResult, error)
	// Save persists management-API field edits. It never writes UsageCount.
	Save(ctx context.Context, rec *Record) error
}
