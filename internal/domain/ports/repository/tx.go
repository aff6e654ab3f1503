package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque execution context threaded through repository calls.
// The concrete type is infra-defined (pgx.Tx for Postgres); repositories
// accept NoTX for the non-transactional path.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction, handing the
// transaction back through `tx` so repository calls within fn share it.
// Keeps use-case signatures free of driver types; reconciliation relies on
// it to pair the payment transition with the conversion paid flip.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
