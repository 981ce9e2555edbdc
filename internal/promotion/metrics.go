package promotion

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the engine's OpenTelemetry instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	redemptions metric.Int64Counter
	rejections  metric.Int64Counter
}

// NewMetrics registers the engine's counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	redemptions, err := meter.Int64Counter("promo.redemptions",
		metric.WithDescription("Successful promotion redemptions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "redemptions counter")
	}
	rejections, err := meter.Int64Counter("promo.rejections",
		metric.WithDescription("Rejected redemption attempts by reason"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "rejections counter")
	}
	return &Metrics{redemptions: redemptions, rejections: rejections}, nil
}

func (m *Metrics) recordRedemption(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

func (m *Metrics) recordRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
