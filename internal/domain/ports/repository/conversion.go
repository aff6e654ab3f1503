package repository

import (
	"context"

	"pdf-conversion-billing/internal/domain/model"
)

type ConversionRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Conversion) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Conversion, error)
	// MarkPaid flips the paid flag. Monotonic: re-marking a paid conversion
	// is a no-op, the flag never reverts.
	MarkPaid(ctx context.Context, tx Tx, id string) error
	Count(ctx context.Context, tx Tx) (int, error)
	CountPaid(ctx context.Context, tx Tx) (int, error)
}
