package repository

import (
	"context"
	"time"

	"pdf-conversion-billing/internal/domain/model"
)

// PaymentRepository persists payment attempts and enforces the conditional
// transitions the reconciliation paths depend on.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByExternalRef locates a payment by provider reference, for webhook
	// events whose metadata went missing upstream.
	FindByExternalRef(ctx context.Context, tx Tx, provider, externalRef string) (*model.Payment, error)
	// UpdateStatusIfPending applies a transition only while the row is still
	// pending and reports whether this caller won it. Racing completion
	// sources (webhook delivery vs. status poll) rely on exactly one true.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, st *model.Settlement) (bool, error)
	// ListPendingOlderThan feeds the reconciler payments that should have
	// been confirmed by webhook already.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	// ExpirePending moves pending payments past their expiry horizon to
	// expired, returning the number of rows transitioned.
	ExpirePending(ctx context.Context, tx Tx, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.PaymentStatus]int, error)
	SumCompletedUSDCentsSince(ctx context.Context, tx Tx, since time.Time) (int64, error)
}
