//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/repository"
)

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPaymentRepo(testPool)
	convRepo := NewConversionRepo(testPool)

	seedConversion := func(t *testing.T) *model.Conversion {
		t.Helper()
		cleanup(t)
		conv := model.NewConversion(nil, "report.docx", "/tmp/report.docx")
		conv.Status = model.ConversionStatusCompleted
		conv.PageCount = 80
		conv.PriceCents = 300
		if err := convRepo.Save(ctx, nil, conv); err != nil {
			t.Fatalf("failed to save conversion: %v", err)
		}
		return conv
	}

	newPending := func(conv *model.Conversion) *model.Payment {
		p := model.NewPayment(conv.ID, nil, model.PaymentMethodCreditCard, decimal.RequireFromString("3.00"), "USD", 24*time.Hour)
		p.Provider = "stripe"
		p.ExternalRef = "pi_" + p.ID[:8]
		return p
	}

	t.Run("should save and find a payment", func(t *testing.T) {
		conv := seedConversion(t)
		payment := newPending(conv)

		if err := repo.Save(ctx, nil, payment); err != nil {
			t.Fatalf("Failed to save new payment: %v", err)
		}

		foundByID, err := repo.FindByID(ctx, nil, payment.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if foundByID.AmountCents != 300 || foundByID.Status != model.PaymentStatusPending {
			t.Fatalf("unexpected payment row: %+v", foundByID)
		}

		foundByRef, err := repo.FindByExternalRef(ctx, nil, "stripe", payment.ExternalRef)
		if err != nil {
			t.Fatalf("FindByExternalRef failed: %v", err)
		}
		if foundByRef.ID != payment.ID {
			t.Fatal("Did not find the correct payment by provider reference")
		}
	})

	t.Run("should return not found for unknown ids", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, nil, "11111111-1111-1111-1111-111111111111"); err != domain.ErrNotFound {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("should let exactly one conditional transition win", func(t *testing.T) {
		conv := seedConversion(t)
		payment := newPending(conv)
		if err := repo.Save(ctx, nil, payment); err != nil {
			t.Fatalf("save: %v", err)
		}

		paidAt := time.Now().Truncate(time.Millisecond)
		st := &model.Settlement{
			PaidAt:       &paidAt,
			ProviderData: []byte(`{"status":"succeeded"}`),
			CardLast4:    "4242",
			CardBrand:    "visa",
		}

		won, err := repo.UpdateStatusIfPending(ctx, nil, payment.ID, model.PaymentStatusCompleted, st)
		if err != nil {
			t.Fatalf("UpdateStatusIfPending failed: %v", err)
		}
		if !won {
			t.Fatal("expected the first transition to win")
		}

		// Second attempt must lose without touching the row.
		won, err = repo.UpdateStatusIfPending(ctx, nil, payment.ID, model.PaymentStatusFailed, nil)
		if err != nil {
			t.Fatalf("second UpdateStatusIfPending failed: %v", err)
		}
		if won {
			t.Fatal("expected the second transition to lose")
		}

		updated, err := repo.FindByID(ctx, nil, payment.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if updated.Status != model.PaymentStatusCompleted {
			t.Errorf("expected completed, got %s", updated.Status)
		}
		if updated.PaidAt == nil || !updated.PaidAt.Equal(paidAt) {
			t.Errorf("expected paid_at %v, got %v", paidAt, updated.PaidAt)
		}
		if updated.CardLast4 != "4242" || updated.CardBrand != "visa" {
			t.Errorf("expected settlement card details, got %q %q", updated.CardLast4, updated.CardBrand)
		}
		if len(updated.ProviderData) == 0 {
			t.Error("expected provider data snapshot")
		}
	})

	t.Run("should apply the transition inside a transaction", func(t *testing.T) {
		conv := seedConversion(t)
		payment := newPending(conv)
		if err := repo.Save(ctx, nil, payment); err != nil {
			t.Fatalf("save: %v", err)
		}

		tm := NewTxManager(testPool)
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			won, err := repo.UpdateStatusIfPending(ctx, tx, payment.ID, model.PaymentStatusCompleted, nil)
			if err != nil {
				return err
			}
			if !won {
				t.Fatal("expected the transactional transition to win")
			}
			return convRepo.MarkPaid(ctx, tx, conv.ID)
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}

		updated, _ := repo.FindByID(ctx, nil, payment.ID)
		if updated.Status != model.PaymentStatusCompleted {
			t.Errorf("expected completed after commit, got %s", updated.Status)
		}
		paidConv, _ := convRepo.FindByID(ctx, nil, conv.ID)
		if !paidConv.IsPaid {
			t.Error("expected conversion marked paid after commit")
		}
	})

	t.Run("should list stale pending payments oldest first", func(t *testing.T) {
		conv := seedConversion(t)
		older := newPending(conv)
		older.CreatedAt = time.Now().Add(-2 * time.Hour)
		fresh := newPending(conv)
		if err := repo.Save(ctx, nil, older); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := repo.Save(ctx, nil, fresh); err != nil {
			t.Fatalf("save: %v", err)
		}

		stale, err := repo.ListPendingOlderThan(ctx, nil, time.Now().Add(-time.Hour), 10)
		if err != nil {
			t.Fatalf("ListPendingOlderThan failed: %v", err)
		}
		if len(stale) != 1 || stale[0].ID != older.ID {
			t.Fatalf("expected only the stale payment, got %d rows", len(stale))
		}
	})

	t.Run("should expire overdue pending payments", func(t *testing.T) {
		conv := seedConversion(t)
		overdue := model.NewPayment(conv.ID, nil, model.PaymentMethodBitcoin, decimal.RequireFromString("3.00"), "USD", -time.Minute)
		overdue.Provider = "coinbase"
		if err := repo.Save(ctx, nil, overdue); err != nil {
			t.Fatalf("save: %v", err)
		}

		n, err := repo.ExpirePending(ctx, nil, time.Now())
		if err != nil {
			t.Fatalf("ExpirePending failed: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected one expired payment, got %d", n)
		}
		expired, _ := repo.FindByID(ctx, nil, overdue.ID)
		if expired.Status != model.PaymentStatusExpired {
			t.Errorf("expected expired, got %s", expired.Status)
		}
	})

	t.Run("should aggregate status counts and revenue", func(t *testing.T) {
		conv := seedConversion(t)
		done := newPending(conv)
		if err := repo.Save(ctx, nil, done); err != nil {
			t.Fatalf("save: %v", err)
		}
		paidAt := time.Now()
		if _, err := repo.UpdateStatusIfPending(ctx, nil, done.ID, model.PaymentStatusCompleted, &model.Settlement{PaidAt: &paidAt}); err != nil {
			t.Fatalf("transition: %v", err)
		}
		pending := newPending(conv)
		pending.ExternalRef = "pi_other"
		if err := repo.Save(ctx, nil, pending); err != nil {
			t.Fatalf("save: %v", err)
		}

		counts, err := repo.CountByStatus(ctx, nil)
		if err != nil {
			t.Fatalf("CountByStatus failed: %v", err)
		}
		if counts[model.PaymentStatusCompleted] != 1 || counts[model.PaymentStatusPending] != 1 {
			t.Fatalf("unexpected counts: %+v", counts)
		}

		sum, err := repo.SumCompletedUSDCentsSince(ctx, nil, time.Now().AddDate(0, 0, -1))
		if err != nil {
			t.Fatalf("SumCompletedUSDCentsSince failed: %v", err)
		}
		if sum != 300 {
			t.Fatalf("expected 300 cents of revenue, got %d", sum)
		}
	})
}
