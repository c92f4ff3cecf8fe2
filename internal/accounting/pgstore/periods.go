package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

const periodColumns = `id, org_id, name, start_date, end_date, status, COALESCE(closed_by, 0), closed_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (accounting.FiscalPeriod, error) {
	var p accounting.FiscalPeriod
	err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.FiscalPeriod{}, accounting.ErrPeriodNotFound
	}
	return p, err
}

func (r *txStore) GetPeriod(ctx context.Context, id int64) (accounting.FiscalPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE id=$1`, id))
}

func (r *txStore) GetPeriodForUpdate(ctx context.Context, id int64) (accounting.FiscalPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE id=$1 FOR UPDATE`, id))
}

func (r *txStore) ListPeriods(ctx context.Context, orgID int64) ([]accounting.FiscalPeriod, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE org_id=$1 ORDER BY start_date`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.FiscalPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txStore) FindOpenPeriod(ctx context.Context, orgID int64, date time.Time) (accounting.FiscalPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE org_id=$1 AND status='OPEN' AND start_date <= $2 AND end_date >= $2
ORDER BY start_date LIMIT 1`, orgID, accounting.DateOnly(date)))
}

func (r *txStore) FindOverlappingPeriod(ctx context.Context, orgID int64, start, end time.Time) (accounting.FiscalPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE org_id=$1 AND start_date <= $3 AND end_date >= $2
ORDER BY start_date LIMIT 1`, orgID, accounting.DateOnly(start), accounting.DateOnly(end)))
}

func (r *txStore) InsertPeriod(ctx context.Context, p accounting.FiscalPeriod) (accounting.FiscalPeriod, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO fiscal_periods (org_id, name, start_date, end_date, status)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		p.OrgID, p.Name, accounting.DateOnly(p.StartDate), accounting.DateOnly(p.EndDate), p.Status).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isConstraint(err, pgExclusionViolation, constraintPeriodRanges) {
		return accounting.FiscalPeriod{}, &accounting.OverlappingPeriodError{}
	}
	return p, err
}

func (r *txStore) ClosePeriod(ctx context.Context, id int64, closedBy int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_periods SET status='CLOSED', closed_by=$2, closed_at=$3, updated_at=NOW() WHERE id=$1`, id, nullInt(closedBy), at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounting.ErrPeriodNotFound
	}
	return nil
}
