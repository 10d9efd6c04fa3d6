package postgres

import (
	"context"
	"fmt"

	"github.com/salonsphere/auth-service/internal/repository"
)

// TenantScope binds the row-level-security tenant context to a single
// datastore transaction. Pool-level Exec has no connection affinity, so a
// session-level set_config on one pooled connection would be invisible to
// reads running on another; the setting therefore has to live on the same
// transaction the scoped reads use, and it must be transaction-local so it
// can never leak into later statements on the released connection.
type TenantScope struct {
	db TxDB
}

// NewTenantScope creates a new PostgreSQL-backed tenant scope adapter.
func NewTenantScope(db TxDB) *TenantScope {
	return &TenantScope{db: db}
}

// Activate opens a transaction, sets app.tenant_id transaction-locally, and
// returns a context that routes repository reads through that transaction.
// A nil tenantID denotes a cross-tenant super-principal and binds the empty
// string, which the policies treat as unrestricted. Scoped access is
// read-only; release rolls the transaction back, which also discards the
// setting.
func (s *TenantScope) Activate(ctx context.Context, tenantID *string) (context.Context, repository.ReleaseFunc, error) {
	value := ""
	if tenantID != nil {
		value = *tenantID
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("activate tenant scope: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('app.tenant_id', $1, true)`, value); err != nil {
		_ = tx.Rollback(ctx)
		return ctx, nil, fmt.Errorf("activate tenant scope: %w", err)
	}

	release := func() {
		_ = tx.Rollback(ctx)
	}
	return withQuerier(ctx, tx), release, nil
}
