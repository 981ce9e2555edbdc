package promotion

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/promo-engine/internal/money"
)

// Event describes one successful redemption. The engine emits it; delivery
// (audit log, notifications) belongs to the sink implementation.
type Event struct {
	PromotionID    uuid.UUID
	Code           string
	OriginalAmount money.Money
	DiscountAmount money.Money
	FinalAmount    money.Money
	// RemainingUses is nil for unlimited promotions.
	RemainingUses *int64
	RedeemedAt    time.Time
}

// EventSink receives redemption events. Implementations must not block the
// redemption path for long; the reservation is already durable when the
// sink is invoked, and sink failures do not fail the redemption.
type EventSink interface {
	RedemptionRecorded(ctx context.Context, ev Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RedemptionRecorded(context.Context, Event) {}
