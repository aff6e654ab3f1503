package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/repository"
)

var _ repository.ConversionRepository = (*conversionRepo)(nil)

type conversionRepo struct{ pool *pgxpool.Pool }

func NewConversionRepo(pool *pgxpool.Pool) *conversionRepo {
	return &conversionRepo{pool: pool}
}

const conversionColumns = `id, user_id, filename, source_path, pdf_path, file_size, page_count, price_cents, is_paid, status, created_at, updated_at`

func (r *conversionRepo) Save(ctx context.Context, tx repository.Tx, c *model.Conversion) error {
	const q = `
INSERT INTO conversions (` + conversionColumns + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  pdf_path=$5, file_size=$6, page_count=$7, price_cents=$8, is_paid=$9, status=$10, updated_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.UserID, c.Filename, c.SourcePath, c.PDFPath, c.FileSize,
		c.PageCount, c.PriceCents, c.IsPaid, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *conversionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversion, error) {
	q := `SELECT ` + conversionColumns + ` FROM conversions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	c := &model.Conversion{}
	if err := row.Scan(&c.ID, &c.UserID, &c.Filename, &c.SourcePath, &c.PDFPath, &c.FileSize,
		&c.PageCount, &c.PriceCents, &c.IsPaid, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

// MarkPaid flips is_paid on; the flag never goes back.
func (r *conversionRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE conversions SET is_paid=TRUE, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *conversionRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM conversions;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *conversionRepo) CountPaid(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM conversions WHERE is_paid=TRUE;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
