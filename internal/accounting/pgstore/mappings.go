package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

func (r *txStore) GetMapping(ctx context.Context, orgID int64, module, key string) (accounting.AccountMapping, error) {
	var m accounting.AccountMapping
	err := r.tx.QueryRow(ctx, `SELECT org_id, module, key, account_code, COALESCE(updated_by, 0), updated_at
FROM account_mappings WHERE org_id=$1 AND module=$2 AND key=$3`, orgID, module, key).
		Scan(&m.OrgID, &m.Module, &m.Key, &m.AccountCode, &m.UpdatedBy, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.AccountMapping{}, accounting.ErrMappingNotFound
	}
	return m, err
}

func (r *txStore) UpsertMapping(ctx context.Context, m accounting.AccountMapping) (accounting.AccountMapping, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO account_mappings (org_id, module, key, account_code, updated_by)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (org_id, module, key) DO UPDATE SET account_code=EXCLUDED.account_code, updated_by=EXCLUDED.updated_by, updated_at=NOW()
RETURNING updated_at`, m.OrgID, m.Module, m.Key, m.AccountCode, nullInt(m.UpdatedBy)).Scan(&m.UpdatedAt)
	return m, err
}
