package promotion

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/money"
)

func moneyPtr(cents int64) *money.Money {
	m := money.FromCents(cents)
	return &m
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name         string
		rec          Record
		amount       int64
		wantDiscount int64
		wantFinal    int64
		wantErr      error
	}{
		{
			name: "happy path 20 percent with minimum",
			rec: Record{
				DiscountPercent: decimal.NewFromInt(20),
				MinPurchase:     moneyPtr(5000),
			},
			amount:       10000,
			wantDiscount: 2000,
			wantFinal:    8000,
		},
		{
			name: "raw discount clamped to cap",
			rec: Record{
				DiscountPercent: decimal.NewFromInt(50),
				MaxDiscount:     moneyPtr(1000),
			},
			amount:       10000,
			wantDiscount: 1000,
			wantFinal:    9000,
		},
		{
			name: "cap above raw discount is inert",
			rec: Record{
				DiscountPercent: decimal.NewFromInt(10),
				MaxDiscount:     moneyPtr(5000),
			},
			amount:       10000,
			wantDiscount: 1000,
			wantFinal:    9000,
		},
		{
			name: "100 percent leaves zero final",
			rec: Record{
				DiscountPercent: decimal.NewFromInt(100),
			},
			amount:       4242,
			wantDiscount: 4242,
			wantFinal:    0,
		},
		{
			name: "fractional percent rounds half-up",
			rec: Record{
				DiscountPercent: decimal.RequireFromString("33.33"),
			},
			amount:       999,
			wantDiscount: 333,
			wantFinal:    666,
		},
		{
			name: "amount equal to minimum passes",
			rec: Record{
				DiscountPercent: decimal.NewFromInt(10),
				MinPurchase:     moneyPtr(5000),
			},
			amount:       5000,
			wantDiscount: 500,
			wantFinal:    4500,
		},
		{
			name: "amount below minimum rejected",
			rec: Record{
				DiscountPercent: decimal.NewFromInt(10),
				MinPurchase:     moneyPtr(5000),
			},
			amount:  4999,
			wantErr: &BelowMinimumError{},
		},
		{
			name: "zero amount rejected",
			rec: Record{
				DiscountPercent: decimal.NewFromInt(10),
			},
			amount:  0,
			wantErr: ErrNonPositiveAmount,
		},
		{
			name: "negative amount rejected",
			rec: Record{
				DiscountPercent: decimal.NewFromInt(10),
			},
			amount:  -100,
			wantErr: ErrNonPositiveAmount,
		},
		{
			name: "non-positive beats below-minimum",
			rec: Record{
				DiscountPercent: decimal.NewFromInt(10),
				MinPurchase:     moneyPtr(5000),
			},
			amount:  -1,
			wantErr: ErrNonPositiveAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeDiscount(&tt.rec, money.FromCents(tt.amount))

			if tt.wantErr != nil {
				var belowMin *BelowMinimumError
				if assert.Error(t, err) {
					switch tt.wantErr.(type) {
					case *BelowMinimumError:
						require.ErrorAs(t, err, &belowMin)
						assert.Equal(t, tt.rec.MinPurchase.Cents(), belowMin.Minimum.Cents())
					default:
						require.ErrorIs(t, err, tt.wantErr)
					}
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantDiscount, got.Amount.Cents())
			assert.Equal(t, tt.wantFinal, got.Final.Cents())
		})
	}
}

// For every accepted input: 0 <= discount <= amount, discount <= cap when a
// cap is set, and final == amount - discount >= 0.
func TestComputeDiscountBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < 5000; i++ {
		rec := Record{
			// Percent in (0, 100] with two fractional digits.
			DiscountPercent: decimal.New(rng.Int63n(10000)+1, -2),
		}
		if rng.Intn(2) == 0 {
			rec.MaxDiscount = moneyPtr(rng.Int63n(100_000))
		}
		amount := money.FromCents(rng.Int63n(10_000_000) + 1)

		got, err := ComputeDiscount(&rec, amount)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, got.Amount.Cents(), int64(0),
			"discount negative for amount=%d percent=%s", amount.Cents(), rec.DiscountPercent)
		assert.LessOrEqual(t, got.Amount.Cents(), amount.Cents(),
			"discount exceeds amount for amount=%d percent=%s", amount.Cents(), rec.DiscountPercent)
		if rec.MaxDiscount != nil {
			assert.LessOrEqual(t, got.Amount.Cents(), rec.MaxDiscount.Cents())
		}
		assert.Equal(t, amount.Cents()-got.Amount.Cents(), got.Final.Cents())
	}
}
