// Package eventlog writes redemption events as JSON lines. It is the
// default EventSink implementation; anything beyond an append-only stream
// (audit storage, notification fan-out) is a consumer of this output, not
// part of the engine.
package eventlog

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/promotion"
)

// Writer encodes each redemption event as one JSON line on w. Writes are
// serialized; a failed write is logged and dropped, never propagated into
// the redemption path.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
	lg *zap.Logger
}

var _ promotion.EventSink = (*Writer)(nil)

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer, lg *zap.Logger) *Writer {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Writer{w: w, lg: lg}
}

// RedemptionRecorded implements promotion.EventSink.
func (l *Writer) RedemptionRecorded(_ context.Context, ev promotion.Event) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("promotion_id", func(e *jx.Encoder) { e.Str(ev.PromotionID.String()) })
		e.Field("code", func(e *jx.Encoder) { e.Str(ev.Code) })
		e.Field("original_cents", func(e *jx.Encoder) { e.Int64(ev.OriginalAmount.Cents()) })
		e.Field("discount_cents", func(e *jx.Encoder) { e.Int64(ev.DiscountAmount.Cents()) })
		e.Field("final_cents", func(e *jx.Encoder) { e.Int64(ev.FinalAmount.Cents()) })
		e.Field("remaining_uses", func(e *jx.Encoder) {
			if ev.RemainingUses == nil {
				e.Null()
				return
			}
			e.Int64(*ev.RemainingUses)
		})
		e.Field("redeemed_at", func(e *jx.Encoder) { e.Str(ev.RedeemedAt.Format(time.RFC3339Nano)) })
	})

	line := append(e.Bytes(), '\n')

	l.mu.Lock()
	_, err := l.w.Write(line)
	l.mu.Unlock()
	if err != nil {
		l.lg.Warn("dropping redemption event", zap.Error(err), zap.String("code", ev.Code))
	}
}
