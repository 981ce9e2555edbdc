package memstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/promo-engine/internal/promotion"
)

func seedRecord(s *Store, usageLimit *int64, usageCount int64) promotion.Record {
	rec := promotion.Record{
		ID:              uuid.New(),
		Code:            fmt.Sprintf("CODE-%s", uuid.New().String()[:8]),
		DiscountPercent: decimal.NewFromInt(10),
		ValidUntil:      time.Now().Add(time.Hour),
		UsageLimit:      usageLimit,
		UsageCount:      usageCount,
		Enabled:         true,
	}
	s.Put(rec)
	return rec
}

func limit(v int64) *int64 { return &v }

func TestFindByCode(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := seedRecord(s, nil, 0)

	got, err := s.FindByCode(ctx, rec.Code)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = s.FindByCode(ctx, "missing")
	require.ErrorIs(t, err, promotion.ErrCodeNotFound)

	// Lookups are case-sensitive.
	_, err = s.FindByCode(ctx, "code-"+rec.Code[5:])
	require.ErrorIs(t, err, promotion.ErrCodeNotFound)
}

func TestTryIncrementUsage(t *testing.T) {
	ctx := context.Background()
	s := New()

	t.Run("increments until the limit", func(t *testing.T) {
		rec := seedRecord(s, limit(2), 0)

		res, err := s.TryIncrementUsage(ctx, rec.ID)
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, int64(1), res.UsageCount)

		res, err = s.TryIncrementUsage(ctx, rec.ID)
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, int64(2), res.UsageCount)

		res, err = s.TryIncrementUsage(ctx, rec.ID)
		require.NoError(t, err)
		assert.False(t, res.Applied)

		got, err := s.FindByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.UsageCount)
	})

	t.Run("unlimited never refuses", func(t *testing.T) {
		rec := seedRecord(s, nil, 0)
		for i := int64(1); i <= 10; i++ {
			res, err := s.TryIncrementUsage(ctx, rec.ID)
			require.NoError(t, err)
			assert.True(t, res.Applied)
			assert.Equal(t, i, res.UsageCount)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.TryIncrementUsage(ctx, uuid.New())
		require.ErrorIs(t, err, promotion.ErrCodeNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		rec := seedRecord(s, nil, 0)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.TryIncrementUsage(cancelled, rec.ID)
		require.ErrorIs(t, err, context.Canceled)
	})
}

// Quota safety: for limit L, starting count c, and N concurrent attempts,
// exactly min(N, L-c) succeed and the final count is c + successes.
func TestTryIncrementUsageQuotaSafety(t *testing.T) {
	cases := []struct {
		name    string
		limit   int64
		start   int64
		callers int
	}{
		{name: "more callers than slots", limit: 3, start: 0, callers: 10},
		{name: "fewer callers than slots", limit: 100, start: 0, callers: 10},
		{name: "partially used", limit: 10, start: 7, callers: 20},
		{name: "already full", limit: 5, start: 5, callers: 8},
		{name: "heavy contention", limit: 50, start: 0, callers: 500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New()
			rec := seedRecord(s, limit(tc.limit), tc.start)

			var successes atomic.Int64
			g := new(errgroup.Group)
			for i := 0; i < tc.callers; i++ {
				g.Go(func() error {
					res, err := s.TryIncrementUsage(context.Background(), rec.ID)
					if err != nil {
						return err
					}
					if res.Applied {
						successes.Add(1)
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			want := tc.limit - tc.start
			if int64(tc.callers) < want {
				want = int64(tc.callers)
			}
			assert.Equal(t, want, successes.Load())

			got, err := s.FindByID(context.Background(), rec.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.start+want, got.UsageCount)
		})
	}
}

func TestSavePreservesUsageCount(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := seedRecord(s, limit(10), 0)

	_, err := s.TryIncrementUsage(ctx, rec.ID)
	require.NoError(t, err)

	// Management edit racing with redemptions must not reset the counter.
	edited := rec
	edited.Enabled = false
	edited.UsageCount = 0
	require.NoError(t, s.Save(ctx, &edited))

	got, err := s.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, int64(1), got.UsageCount)
}

func TestFindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := seedRecord(s, limit(10), 0)

	got, err := s.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	got.UsageCount = 99

	again, err := s.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.UsageCount)
}
