package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool used by the repositories. pgx.Tx and
// pgxmock's pool interface satisfy it, so scoped reads and repository tests
// both route through the same contract.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxDB adds transaction support to DB. *pgxpool.Pool and pgxmock's pool
// interface satisfy it.
type TxDB interface {
	DB
	Begin(ctx context.Context) (pgx.Tx, error)
}

type querierKey struct{}

// withQuerier pins q as the querier for every repository call made with the
// returned context. TenantScope uses it to route scoped reads through the
// transaction carrying the tenant setting.
func withQuerier(ctx context.Context, q DB) context.Context {
	return context.WithValue(ctx, querierKey{}, q)
}

// querier returns the context-pinned querier, or fallback when the context
// carries none. Pool calls have no connection affinity, so anything that must
// share a session with a prior statement has to come through the pinned path.
func querier(ctx context.Context, fallback DB) DB {
	if q, ok := ctx.Value(querierKey{}).(DB); ok {
		return q
	}
	return fallback
}
