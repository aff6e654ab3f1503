package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/repository"
)

var _ repository.MetricRepository = (*metricRepo)(nil)

// metricRepo appends business events to the metrics table. Rows are audit
// data only; nothing in the request path reads them back.
type metricRepo struct{ pool *pgxpool.Pool }

func NewMetricRepo(pool *pgxpool.Pool) *metricRepo {
	return &metricRepo{pool: pool}
}

func (r *metricRepo) Insert(ctx context.Context, tx repository.Tx, m *model.Metric) error {
	const q = `INSERT INTO metrics (event, value, meta, created_at) VALUES ($1,$2,$3,$4);`
	_, err := execSQL(ctx, r.pool, tx, q, m.Event, m.Value, m.Meta, m.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
