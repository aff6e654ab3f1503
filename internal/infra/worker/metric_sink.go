package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/adapter"
	"pdf-conversion-billing/internal/domain/ports/repository"
	"pdf-conversion-billing/internal/infra/metrics"
)

var _ adapter.MetricSink = (*Sink)(nil)

// Sink fans usage events out to Prometheus and, through the pool, to the
// metrics table. Submission never blocks; rows are dropped when the queue
// is saturated.
type Sink struct {
	pool *Pool
	repo repository.MetricRepository
	log  *zerolog.Logger
}

func NewMetricSink(pool *Pool, repo repository.MetricRepository, logger *zerolog.Logger) *Sink {
	l := logger.With().Str("component", "MetricSink").Logger()
	return &Sink{pool: pool, repo: repo, log: &l}
}

func (s *Sink) Emit(event string, value float64, meta map[string]string) {
	switch event {
	case "payment_intent_created":
		metrics.IncPayment(meta["provider"], "created")
	case "payment_completed":
		metrics.IncPayment(meta["provider"], "completed")
		if cents, err := strconv.ParseInt(meta["amount_cents"], 10, 64); err == nil {
			metrics.AddPaymentRevenue(meta["currency"], cents)
		}
	case "payment_failed":
		metrics.IncPayment(meta["provider"], "failed")
	case "conversion_completed":
		metrics.IncConversion("completed")
		metrics.AddConversionPages(int(value))
	case "conversion_failed":
		metrics.IncConversion("failed")
	}

	m := &model.Metric{
		Event:     event,
		Value:     value,
		CreatedAt: time.Now(),
	}
	if len(meta) > 0 {
		m.Meta = make(map[string]string, len(meta))
		for k, v := range meta {
			m.Meta[k] = v
		}
	}
	err := s.pool.Submit(func(ctx context.Context) error {
		return s.repo.Insert(ctx, repository.NoTX, m)
	})
	if err != nil {
		s.log.Debug().Err(err).Str("event", event).Msg("metric event dropped")
	}
}
