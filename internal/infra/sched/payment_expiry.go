package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/infra/metrics"
	"pdf-conversion-billing/internal/usecase"
)

// PaymentExpiryWorker periodically parks pending payments that outlived
// their expiry horizon via the use case.
type PaymentExpiryWorker struct {
	interval time.Duration
	uc       usecase.PaymentUseCase
	log      *zerolog.Logger
}

func NewPaymentExpiryWorker(interval time.Duration, uc usecase.PaymentUseCase, logger *zerolog.Logger) *PaymentExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	expLog := logger.With().Str("component", "PaymentExpiryWorker").Logger()
	return &PaymentExpiryWorker{
		interval: interval,
		uc:       uc,
		log:      &expLog,
	}
}

func (w *PaymentExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting payment expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.uc.ExpireOverdue(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("payment expiry worker error")
			}
			if n > 0 {
				metrics.IncPaymentsExpired(n)
				w.log.Info().Int64("count", n).Msg("overdue payments expired")
			}
		}
	}
}
