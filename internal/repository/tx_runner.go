package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritaslabs/mnemo/internal/service"
)

// TxRunner provides transaction-bound stores using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(stores service.TxStores) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	stores := &txStores{tx: tx}
	if err := fn(stores); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txStores struct {
	tx pgx.Tx
}

func (s *txStores) Knowledge() service.KnowledgeStoreInterface {
	return NewKnowledgeStoreWithTx(s.tx)
}

func (s *txStores) ArchiveLog() service.ArchiveLogStoreInterface {
	return NewArchiveLogStoreWithTx(s.tx)
}
