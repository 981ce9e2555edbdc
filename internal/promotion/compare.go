package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/promo-engine/internal/money"
)

// Quote is a priced-but-not-reserved application of a promotion: what a
// redemption would yield right now, without consuming a usage slot.
type Quote struct {
	PromotionID    uuid.UUID
	Code           string
	DiscountAmount money.Money
	FinalAmount    money.Money
}

// CandidateRejection explains why one code in a comparison did not qualify.
type CandidateRejection struct {
	Code   string
	Reason error
}

// Comparison is the outcome of evaluating several codes against one
// purchase. Best is nil when no candidate qualified.
type Comparison struct {
	Best       *Quote
	Rejections []CandidateRejection
}

// Quote evaluates and prices a single code without reserving a slot.
func (s *Service) Quote(ctx context.Context, code string, amount money.Money, now time.Time) (*Quote, error) {
	rec, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, &StoreError{Op: "find by code", Err: err}
	}

	if err := s.checkRedeemable(ctx, rec, amount, now); err != nil {
		return nil, err
	}

	disc, err := ComputeDiscount(rec, amount)
	if err != nil {
		return nil, err
	}

	return &Quote{
		PromotionID:    rec.ID,
		Code:           rec.Code,
		DiscountAmount: disc.Amount,
		FinalAmount:    disc.Final,
	}, nil
}

// Compare quotes every candidate code against the purchase and picks the
// one with the largest discount; earlier input position wins ties.
//
// Business rejections (unknown code, disabled, expired, below minimum, ...)
// are collected per candidate rather than silently skipped, so a caller can
// report exactly why each losing code lost. Infrastructure faults are
// different: they abort the whole comparison, because a store outage must
// not masquerade as "promotion invalid".
func (s *Service) Compare(ctx context.Context, codes []string, amount money.Money, now time.Time) (*Comparison, error) {
	result := &Comparison{}

	for _, code := range codes {
		q, err := s.Quote(ctx, code, amount, now)
		if err != nil {
			var storeErr *StoreError
			if errors.As(err, &storeErr) {
				return nil, err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			result.Rejections = append(result.Rejections, CandidateRejection{
				Code:   code,
				Reason: err,
			})
			continue
		}

		if result.Best == nil || result.Best.DiscountAmount.LessThan(q.DiscountAmount) {
			result.Best = q
		}
	}

	return result, nil
}
