package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an open ledger transaction handle. Only the repository
// implementation that created it knows its concrete type.
type Tx interface{}

// NoTX makes a repository call run on the pool, outside any transaction.
var NoTX interface{}

// LedgerWrite is used by every operation that moves money or credits
// (redemption, credit consumption). Row locks taken with FOR UPDATE carry the
// ordering, so read committed is enough.
var LedgerWrite = pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}

// TransactionManager scopes a unit of ledger work. fn's error rolls the
// transaction back; a nil return commits it. Inside fn, repository reads that
// receive tx lock the rows they return until commit.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
