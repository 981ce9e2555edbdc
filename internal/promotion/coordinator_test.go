package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptStore returns canned TryIncrementUsage outcomes in order, then
// repeats the last one.
type scriptStore struct {
	results []incrementOutcome
	calls   int
}

type incrementOutcome struct {
	res IncrementResult
	err error
}

func (s *scriptStore) FindByCode(context.Context, string) (*Record, error) {
	return nil, ErrCodeNotFound
}

func (s *scriptStore) FindByID(context.Context, uuid.UUID) (*Record, error) {
	return nil, ErrCodeNotFound
}

func (s *scriptStore) TryIncrementUsage(context.Context, uuid.UUID) (IncrementResult, error) {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	out := s.results[i]
	return out.res, out.err
}

func (s *scriptStore) Save(context.Context, *Record) error { return nil }

func TestCoordinatorTryReserve(t *testing.T) {
	id := uuid.New()

	t.Run("applied increment returns reservation", func(t *testing.T) {
		store := &scriptStore{results: []incrementOutcome{
			{res: IncrementResult{Applied: true, UsageCount: 7}},
		}}
		c := NewCoordinator(store, CoordinatorConfig{})

		got, err := c.TryReserve(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, got.PromotionID)
		assert.Equal(t, int64(7), got.UsageCount)
		assert.Equal(t, 1, store.calls)
	})

	t.Run("unapplied increment is limit reached", func(t *testing.T) {
		store := &scriptStore{results: []incrementOutcome{
			{res: IncrementResult{Applied: false}},
		}}
		c := NewCoordinator(store, CoordinatorConfig{})

		_, err := c.TryReserve(context.Background(), id)
		require.ErrorIs(t, err, ErrLimitReached)
		assert.Equal(t, 1, store.calls)
	})

	t.Run("conflict retried until success", func(t *testing.T) {
		store := &scriptStore{results: []incrementOutcome{
			{err: ErrReservationConflict},
			{err: ErrReservationConflict},
			{res: IncrementResult{Applied: true, UsageCount: 3}},
		}}
		c := NewCoordinator(store, CoordinatorConfig{MaxAttempts: 5, RetryBackoff: time.Millisecond})

		got, err := c.TryReserve(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.UsageCount)
		assert.Equal(t, 3, store.calls)
	})

	t.Run("retry budget exhausted surfaces contention", func(t *testing.T) {
		store := &scriptStore{results: []incrementOutcome{
			{err: ErrReservationConflict},
		}}
		c := NewCoordinator(store, CoordinatorConfig{MaxAttempts: 4, RetryBackoff: time.Millisecond})

		_, err := c.TryReserve(context.Background(), id)
		require.ErrorIs(t, err, ErrContentionExceeded)
		assert.Equal(t, 4, store.calls)
	})

	t.Run("infrastructure fault wrapped as store error", func(t *testing.T) {
		store := &scriptStore{results: []incrementOutcome{
			{err: errors.New("connection refused")},
		}}
		c := NewCoordinator(store, CoordinatorConfig{})

		_, err := c.TryReserve(context.Background(), id)
		var storeErr *StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, 1, store.calls)
	})

	t.Run("cancelled context stops before the store", func(t *testing.T) {
		store := &scriptStore{results: []incrementOutcome{
			{res: IncrementResult{Applied: true, UsageCount: 1}},
		}}
		c := NewCoordinator(store, CoordinatorConfig{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.TryReserve(ctx, id)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, store.calls)
	})

	t.Run("cancellation during backoff", func(t *testing.T) {
		store := &scriptStore{results: []incrementOutcome{
			{err: ErrReservationConflict},
		}}
		c := NewCoordinator(store, CoordinatorConfig{MaxAttempts: 10, RetryBackoff: time.Hour})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := c.TryReserve(ctx, id)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, 1, store.calls)
	})
}
