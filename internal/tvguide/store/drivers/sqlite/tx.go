package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
)

// txStore is the store handed to WithTx callbacks. Program writes use it to
// check the channel and write the row together, and bootstrap uses it to
// count admins and promote under one lock.
type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore { return &txStore{tx: tx} }

func (t *txStore) Users() store.Users       { return &usersRepo{q: t.tx} }
func (t *txStore) Channels() store.Channels { return &channelsRepo{q: t.tx} }
func (t *txStore) Programs() store.Programs { return &programsRepo{q: t.tx} }

// LockAdmins takes sqlite's database write lock up front. A write statement
// reserves it even when no row matches, and it is held until the tx ends.
func (t *txStore) LockAdmins(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE users SET role = role WHERE 0`)
	return err
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// The rest of store.Store has nothing to do inside a transaction.

func (t *txStore) Close() error                                       { return nil }
func (t *txStore) Ping(context.Context) error                         { return nil }
func (t *txStore) ApplyMigrations(context.Context) error              { return nil }
func (t *txStore) Tx(context.Context) (store.Tx, error)               { return nil, sql.ErrTxDone }
func (t *txStore) WithTx(context.Context, func(store.Tx) error) error { return sql.ErrTxDone }
