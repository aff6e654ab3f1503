package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending payments and polls
// the provider for their real state. This covers webhook deliveries that
// never arrived or a process that crashed mid-confirm.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	interval   time.Duration // scan cadence
	staleAfter time.Duration // pending age before a payment qualifies
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, interval: interval, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	n, err := w.uc.ReconcilePending(ctx, w.staleAfter, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("reconcile pass failed")
		return
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("stale payments reconciled")
	}
}
