// internal/repository/provider.go
package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Readonly wraps the sqlx read methods shared by *sqlx.DB and *sqlx.Tx.
type Readonly interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Transaction wraps the sqlx write methods used inside Transact.
type Transaction interface {
	Readonly

	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

var _ Transaction = &sqlx.DB{}
var _ Transaction = &sqlx.Tx{}

// Provider creates transaction and readonly scopes. Every repository
// method reads its handle back out of the context, so a service can
// compose several repository calls into one atomic unit.
type Provider interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	Readonly(ctx context.Context) context.Context
}

type ctxTxKeyType struct{}
type ctxReadonlyKeyType struct{}

var ctxTxKey = ctxTxKeyType{}
var ctxReadonlyKey = ctxReadonlyKeyType{}

type ctxTxValue struct {
	tx *sqlx.Tx
}

type ctxReadonlyValue struct {
	db *sqlx.DB
}

// GetTx gets the Transaction from the context. Panics outside a
// Transact scope: calling a write method without a transaction is a
// programming error, not a runtime condition.
func GetTx(ctx context.Context) Transaction {
	val, ok := ctx.Value(ctxTxKey).(ctxTxValue)
	if !ok {
		panic("not inside a transaction")
	}
	return val.tx
}

// GetReadonly gets the Readonly handle from the context.
func GetReadonly(ctx context.Context) Readonly {
	val, ok := ctx.Value(ctxReadonlyKey).(ctxReadonlyValue)
	if !ok {
		panic("not inside a readonly scope")
	}
	return val.db
}

// getQueryer returns the transaction when one is active, otherwise the
// readonly handle. Used by repositories whose reads happen in both
// scopes (the slot list is read inside mutations and by the view
// builder).
func getQueryer(ctx context.Context) Readonly {
	if val, ok := ctx.Value(ctxTxKey).(ctxTxValue); ok {
		return val.tx
	}
	return GetReadonly(ctx)
}

type providerImpl struct {
	db *sqlx.DB
}

// NewProvider creates a Provider over the given pool.
func NewProvider(db *sqlx.DB) Provider {
	return &providerImpl{db: db}
}

// Transact runs fn inside a single database transaction. Rolls back on
// error or panic; nothing fn wrote is visible unless Transact returns
// nil.
func (p *providerImpl) Transact(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	ctx = context.WithValue(ctx, ctxTxKey, ctxTxValue{tx: tx})

	err = fn(ctx)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Readonly attaches the pool for read-side queries.
func (p *providerImpl) Readonly(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxReadonlyKey, ctxReadonlyValue{db: p.db})
}
