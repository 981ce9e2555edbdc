package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/money"
)

// Receipt is the result of a successful redemption.
type Receipt struct {
	PromotionID    uuid.UUID
	Code           string
	OriginalAmount money.Money
	DiscountAmount money.Money
	FinalAmount    money.Money
	// RemainingUses is nil for unlimited promotions.
	RemainingUses *int64
	RedeemedAt    time.Time
}

// Options carries the service's optional collaborators. Zero values are
// replaced with no-op implementations.
type Options struct {
	Sink    EventSink
	Metrics *Metrics
	Tracer  trace.Tracer
	Logger  *zap.Logger
}

// Service orchestrates a redemption attempt: fetch the record, evaluate the
// validity window, validate the purchase amount, reserve a usage slot, and
// compute the discount. All collaborators are supplied at construction and
// never change.
type Service struct {
	store       Store
	coordinator *Coordinator
	sink        EventSink
	metrics     *Metrics
	tracer      trace.Tracer
	lg          *zap.Logger
}

// NewService creates a redemption Service over the given store and
// coordinator.
func NewService(store Store, coordinator *Coordinator, opts Options) *Service {
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		coordinator: coordinator,
		sink:        opts.Sink,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		lg:          opts.Logger,
	}
}

// Redeem applies the promotion identified by code to a purchase of amount
// at instant now.
//
// Ordering is deliberate: window and enabled checks, then purchase-amount
// checks, then the slot reservation, then the discount calculation. Amount
// validation happens before reserving so a request that was always going to
// be rejected never burns a usage slot; once the reservation succeeds it is
// final, because the calculation cannot fail for an amount that already
// passed validation.
//
// Business rejections come back as typed errors (ErrCodeNotFound,
// ErrDisabled, NotStartedError, ExpiredError, ErrLimitReached,
// BelowMinimumError, ErrNonPositiveAmount). ErrContentionExceeded means the
// whole call may be retried. StoreError marks infrastructure faults.
func (s *Service) Redeem(ctx context.Context, code string, amount money.Money, now time.Time) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.Redeem",
		trace.WithAttributes(attribute.String("promotion.code", code)),
	)
	defer span.End()

	rec, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			s.metrics.recordRejection(ctx, "code_not_found")
			return nil, ErrCodeNotFound
		}
		return nil, &StoreError{Op: "find by code", Err: err}
	}

	if err := s.checkRedeemable(ctx, rec, amount, now); err != nil {
		return nil, err
	}

	reservation, err := s.coordinator.TryReserve(ctx, rec.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrLimitReached):
			s.metrics.recordRejection(ctx, "limit_reached")
		case errors.Is(err, ErrContentionExceeded):
			s.metrics.recordRejection(ctx, "contention_exceeded")
		}
		return nil, err
	}

	// Reservation is final from here on.
	disc, err := ComputeDiscount(rec, amount)
	if err != nil {
		// Unreachable for amounts that passed checkRedeemable; kept so a
		// logic regression surfaces loudly instead of producing a bogus
		// receipt for an already-consumed slot.
		s.lg.Error("discount calculation failed after reservation",
			zap.String("code", rec.Code),
			zap.Error(err),
		)
		return nil, err
	}

	var remaining *int64
	if rec.UsageLimit != nil {
		left := *rec.UsageLimit - reservation.UsageCount
		if left < 0 {
			left = 0
		}
		remaining = &left
	}

	receipt := &Receipt{
		PromotionID:    rec.ID,
		Code:           rec.Code,
		OriginalAmount: amount,
		DiscountAmount: disc.Amount,
		FinalAmount:    disc.Final,
		RemainingUses:  remaining,
		RedeemedAt:     now,
	}

	s.metrics.recordRedemption(ctx, rec.Code)
	s.sink.RedemptionRecorded(ctx, Event{
		PromotionID:    receipt.PromotionID,
		Code:           receipt.Code,
		OriginalAmount: receipt.OriginalAmount,
		DiscountAmount: receipt.DiscountAmount,
		FinalAmount:    receipt.FinalAmount,
		RemainingUses:  receipt.RemainingUses,
		RedeemedAt:     receipt.RedeemedAt,
	})
	s.lg.Debug("promotion redeemed",
		zap.String("code", rec.Code),
		zap.Int64("discount_cents", disc.Amount.Cents()),
	)

	return receipt, nil
}

// checkRedeemable maps the validity state and amount checks onto typed
// rejections, recording rejection metrics along the way.
func (s *Service) checkRedeemable(ctx context.Context, rec *Record, amount money.Money, now time.Time) error {
	switch Evaluate(rec, now) {
	case StateDisabled:
		s.metrics.recordRejection(ctx, "disabled")
		return ErrDisabled
	case StateNotStarted:
		s.metrics.recordRejection(ctx, "not_started")
		return &NotStartedError{AvailableAt: *rec.ValidFrom}
	case StateExpired:
		s.metrics.recordRejection(ctx, "expired")
		return &ExpiredError{ExpiredAt: rec.ValidUntil}
	case StateExhausted:
		// Advisory only; the coordinator re-checks atomically.
		s.metrics.recordRejection(ctx, "limit_reached")
		return ErrLimitReached
	}

	if !amount.IsPositive() {
		s.metrics.recordRejection(ctx, "non_positive_amount")
		return ErrNonPositiveAmount
	}
	if rec.MinPurchase != nil && amount.LessThan(*rec.MinPurchase) {
		s.metrics.recordRejection(ctx, "below_minimum")
		return &BelowMinimumError{Minimum: *rec.MinPurchase}
	}
	return nil
}

// Status returns the promotion record for code together with its lifecycle
// state at now. Read-only; no slot is consumed.
func (s *Service) Status(ctx context.Context, code string, now time.Time) (*Record, State, error) {
	rec, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, "", ErrCodeNotFound
		}
		return nil, "", &StoreError{Op: "find by code", Err: err}
	}
	return rec, Evaluate(rec, now), nil
}
