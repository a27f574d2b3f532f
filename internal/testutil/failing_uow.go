package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/pianotech/tournee/internal/db"
)

// FailingUoW runs callbacks in a real transaction but makes the FailOn-th
// write (counted from 1 across the transaction) return Err. Reads are not
// counted. Tests use it to prove multi-write use cases roll back as a whole,
// e.g. an activation whose promotion fails after the demotion succeeded.
type FailingUoW struct {
	DB     *sql.DB
	FailOn int32
	Err    error

	// Writes counts ExecContext calls seen across every transaction.
	Writes atomic.Int32
}

func (u *FailingUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(ctx, &failingTx{DBTX: tx, uow: u}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type failingTx struct {
	db.DBTX
	n   atomic.Int32
	uow *FailingUoW
}

func (f *failingTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.uow.Writes.Add(1)
	if f.n.Add(1) == f.uow.FailOn {
		return nil, f.uow.Err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
