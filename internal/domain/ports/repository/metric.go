package repository

import (
	"context"

	"pdf-conversion-billing/internal/domain/model"
)

// MetricRepository is the storage side of the fire-and-forget metric sink.
type MetricRepository interface {
	Insert(ctx context.Context, tx Tx, m *model.Metric) error
}
