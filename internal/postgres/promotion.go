package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/money"
	"github.com/xenking/promo-engine/internal/promotion"
)

const (
	promotionColumns = `id, code, discount_percent, max_discount_cents, min_purchase_cents,
		valid_from, valid_until, usage_limit, usage_count, enabled`

	findPromotionByCodeSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE code = $1`

	findPromotionByIDSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`

	// The conditional increment. The WHERE guard and the SET execute as one
	// atomic statement per row, so concurrent callers can never drive
	// usage_count past usage_limit; losers simply match zero rows.
	tryIncrementUsageSQL = `UPDATE promotions
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
		RETURNING usage_count`

	savePromotionSQL = `UPDATE promotions
		SET discount_percent = $2, max_discount_cents = $3, min_purchase_cents = $4,
			valid_from = $5, valid_until = $6, usage_limit = $7, enabled = $8,
			updated_at = now()
		WHERE id = $1`

	insertPromotionSQL = `INSERT INTO promotions
		(id, code, discount_percent, max_discount_cents, min_purchase_cents,
		 valid_from, valid_until, usage_limit, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO NOTHING`
)

var _ promotion.Store = (*PromotionStore)(nil)

// PromotionStore implements promotion.Store backed by PostgreSQL.
type PromotionStore struct {
	pool *pgxpool.Pool
}

// NewPromotionStore returns a PromotionStore using the given pool.
func NewPromotionStore(pool *pgxpool.Pool) *PromotionStore {
	return &PromotionStore{pool: pool}
}

// FindByCode looks up a promotion by its code (case-sensitive).
// Returns promotion.ErrCodeNotFound when no such promotion exists.
func (s *PromotionStore) FindByCode(ctx context.Context, code string) (*promotion.Record, error) {
	rows, err := s.pool.Query(ctx, findPromotionByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find promotion by code %q", code)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrCodeNotFound
		}
		return nil, errors.Wrapf(err, "find promotion by code %q", code)
	}
	return &rec, nil
}

// FindByID looks up a promotion by its id.
func (s *PromotionStore) FindByID(ctx context.Context, id uuid.UUID) (*promotion.Record, error) {
	rows, err := s.pool.Query(ctx, findPromotionByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "find promotion %s", id)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrCodeNotFound
		}
		return nil, errors.Wrapf(err, "find promotion %s", id)
	}
	return &rec, nil
}

// TryIncrementUsage performs the atomic conditional increment. A zero-row
// result means the usage ceiling was already met; the row-level lock taken
// by UPDATE scopes contention to this one promotion id.
func (s *PromotionStore) TryIncrementUsage(ctx context.Context, id uuid.UUID) (promotion.IncrementResult, error) {
	var count int64
	err := s.pool.QueryRow(ctx, tryIncrementUsageSQL, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promotion.IncrementResult{Applied: false}, nil
		}
		return promotion.IncrementResult{}, errors.Wrapf(err, "increment usage for promotion %s", id)
	}
	return promotion.IncrementResult{Applied: true, UsageCount: count}, nil
}

// Save persists management-API field edits. The statement deliberately
// omits code and usage_count: the former is immutable, the latter belongs
// to TryIncrementUsage alone.
func (s *PromotionStore) Save(ctx context.Context, rec *promotion.Record) error {
	tag, err := s.pool.Exec(ctx, savePromotionSQL,
		rec.ID,
		rec.DiscountPercent,
		moneyPtrToCents(rec.MaxDiscount),
		moneyPtrToCents(rec.MinPurchase),
		rec.ValidFrom,
		rec.ValidUntil,
		rec.UsageLimit,
		rec.Enabled,
	)
	if err != nil {
		return errors.Wrapf(err, "save promotion %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrCodeNotFound
	}
	return nil
}

// Insert creates a promotion, ignoring duplicates by code. Used by the
// ingest tool; the engine itself never creates records.
func (s *PromotionStore) Insert(ctx context.Context, rec *promotion.Record) error {
	_, err := s.pool.Exec(ctx, insertPromotionSQL,
		rec.ID,
		rec.Code,
		rec.DiscountPercent,
		moneyPtrToCents(rec.MaxDiscount),
		moneyPtrToCents(rec.MinPurchase),
		rec.ValidFrom,
		rec.ValidUntil,
		rec.UsageLimit,
		rec.Enabled,
	)
	if err != nil {
		return errors.Wrapf(err, "insert promotion %q", rec.Code)
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Record, error) {
	var (
		rec             promotion.Record
		discountPercent decimal.Decimal
		maxDiscount     *int64
		minPurchase     *int64
		validFrom       *time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.Code, &discountPercent, &maxDiscount, &minPurchase,
		&validFrom, &rec.ValidUntil, &rec.UsageLimit, &rec.UsageCount, &rec.Enabled,
	)
	rec.DiscountPercent = discountPercent
	rec.MaxDiscount = centsPtrToMoney(maxDiscount)
	rec.MinPurchase = centsPtrToMoney(minPurchase)
	rec.ValidFrom = validFrom
	return rec, err
}

func moneyPtrToCents(m *money.Money) *int64 {
	if m == nil {
		return nil
	}
	cents := m.Cents()
	return &cents
}

func centsPtrToMoney(cents *int64) *money.Money {
	if cents == nil {
		return nil
	}
	m := money.FromCents(*cents)
	return &m
}
