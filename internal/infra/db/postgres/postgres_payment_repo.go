package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, conversion_id, user_id, method, provider, status, amount_cents, currency, amount_usd_cents, external_ref, checkout_url, crypto_address, crypto_amount, crypto_currency, received_amount, tx_hash, confirmations, card_last4, card_brand, provider_data, created_at, updated_at, paid_at, expires_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24
) ON CONFLICT (id) DO UPDATE SET
  provider=$5, status=$6, external_ref=$10, checkout_url=$11,
  crypto_address=$12, crypto_amount=$13, crypto_currency=$14,
  received_amount=$15, tx_hash=$16, confirmations=$17,
  card_last4=$18, card_brand=$19, provider_data=$20,
  updated_at=$22, paid_at=$23, expires_at=$24;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.ConversionID, p.UserID, p.Method, p.Provider, p.Status,
		p.AmountCents, p.Currency, p.AmountUSDCents, p.ExternalRef, p.CheckoutURL,
		p.CryptoAddress, p.CryptoAmount, p.CryptoCurrency, p.ReceivedAmount,
		p.TxHash, p.Confirmations, p.CardLast4, p.CardBrand, p.ProviderData,
		p.CreatedAt, p.UpdatedAt, p.PaidAt, p.ExpiresAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.ConversionID, &p.UserID, &p.Method, &p.Provider, &p.Status,
		&p.AmountCents, &p.Currency, &p.AmountUSDCents, &p.ExternalRef, &p.CheckoutURL,
		&p.CryptoAddress, &p.CryptoAmount, &p.CryptoCurrency, &p.ReceivedAmount,
		&p.TxHash, &p.Confirmations, &p.CardLast4, &p.CardBrand, &p.ProviderData,
		&p.CreatedAt, &p.UpdatedAt, &p.PaidAt, &p.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) FindByExternalRef(ctx context.Context, tx repository.Tx, provider, externalRef string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider=$1 AND external_ref=$2 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, provider, externalRef)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.ConversionID, &p.UserID, &p.Method, &p.Provider, &p.Status,
		&p.AmountCents, &p.Currency, &p.AmountUSDCents, &p.ExternalRef, &p.CheckoutURL,
		&p.CryptoAddress, &p.CryptoAmount, &p.CryptoCurrency, &p.ReceivedAmount,
		&p.TxHash, &p.Confirmations, &p.CardLast4, &p.CardBrand, &p.ProviderData,
		&p.CreatedAt, &p.UpdatedAt, &p.PaidAt, &p.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

// UpdateStatusIfPending atomically moves a payment out of 'pending'.
// Settlement fields only overwrite existing data when the event carried them.
func (r *paymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, st *model.Settlement) (bool, error) {
	if st == nil {
		st = &model.Settlement{}
	}
	const q = `
UPDATE payments
   SET status = $2,
       paid_at = COALESCE($3, paid_at),
       provider_data = COALESCE($4, provider_data),
       card_last4 = COALESCE(NULLIF($5,''), card_last4),
       card_brand = COALESCE(NULLIF($6,''), card_brand),
       received_amount = COALESCE(NULLIF($7,''), received_amount),
       tx_hash = COALESCE(NULLIF($8,''), tx_hash),
       confirmations = GREATEST(confirmations, $9),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status),
		st.PaidAt, st.ProviderData, st.CardLast4, st.CardBrand,
		st.ReceivedAmount, st.TxHash, st.Confirmations)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p := new(model.Payment)
		if err := rows.Scan(&p.ID, &p.ConversionID, &p.UserID, &p.Method, &p.Provider, &p.Status,
			&p.AmountCents, &p.Currency, &p.AmountUSDCents, &p.ExternalRef, &p.CheckoutURL,
			&p.CryptoAddress, &p.CryptoAmount, &p.CryptoCurrency, &p.ReceivedAmount,
			&p.TxHash, &p.Confirmations, &p.CardLast4, &p.CardBrand, &p.ProviderData,
			&p.CreatedAt, &p.UpdatedAt, &p.PaidAt, &p.ExpiresAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *paymentRepo) ExpirePending(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `UPDATE payments SET status='expired', updated_at=NOW() WHERE status='pending' AND expires_at < $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return cmd.RowsAffected(), nil
}

func (r *paymentRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.PaymentStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM payments GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	out := map[model.PaymentStatus]int{}
	for rows.Next() {
		var status model.PaymentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *paymentRepo) SumCompletedUSDCentsSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_usd_cents),0) FROM payments WHERE status='completed' AND paid_at >= $1;`
	row, err := pickRow(ctx, r.pool, tx, q, since)
	if err != nil {
		return 0, err
	}

	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
