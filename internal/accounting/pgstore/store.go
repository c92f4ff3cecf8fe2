// Package pgstore persists the ledger in PostgreSQL through pgx.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/platform/db"
)

const (
	pgUniqueViolation     = "23505"
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"

	constraintAccountCode  = "uq_accounts_org_code"
	constraintEntrySource  = "uq_journal_entries_source"
	constraintPeriodRanges = "ex_fiscal_periods_overlap"
)

// Store is an accounting.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn in a read-committed transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.Tx) error) error {
	if s == nil || s.pool == nil {
		return errors.New("pgstore: not initialised")
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

// View runs fn in a read-only snapshot.
func (s *Store) View(ctx context.Context, fn func(context.Context, accounting.Reader) error) error {
	if s == nil || s.pool == nil {
		return errors.New("pgstore: not initialised")
	}
	return db.WithSnapshot(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

const accountColumns = `id, org_id, code, name, type, parent_code, level, is_header, allow_manual_entry, is_active, cached_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (accounting.Account, error) {
	var a accounting.Account
	err := row.Scan(&a.ID, &a.OrgID, &a.Code, &a.Name, &a.Type, &a.ParentCode, &a.Level, &a.IsHeader, &a.AllowManualEntry, &a.IsActive, &a.CachedBalance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.Account{}, accounting.ErrAccountNotFound
	}
	return a, err
}

func (r *txStore) GetAccount(ctx context.Context, id int64) (accounting.Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *txStore) GetAccountByCode(ctx context.Context, orgID int64, code string) (accounting.Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 AND code=$2`, orgID, code))
}

func (r *txStore) ListAccounts(ctx context.Context, filter accounting.AccountFilter) ([]accounting.Account, error) {
	where := []string{"org_id=$1"}
	args := []any{filter.OrgID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type=$%d", len(args)))
	}
	if filter.PostableOnly {
		where = append(where, "NOT is_header", "is_active", "allow_manual_entry")
	}
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+strings.Join(where, " AND ")+` ORDER BY code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (r *txStore) HasChildAccounts(ctx context.Context, orgID int64, code string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE org_id=$1 AND parent_code=$2)`, orgID, code).Scan(&exists)
	return exists, err
}

func (r *txStore) HasPostedLines(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE l.account_id=$1 AND e.status IN ('POSTED','VOID'))`, accountID).Scan(&exists)
	return exists, err
}

func (r *txStore) HasPendingLines(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE l.account_id=$1 AND e.status IN ('DRAFT','APPROVED'))`, accountID).Scan(&exists)
	return exists, err
}

func (r *txStore) InsertAccount(ctx context.Context, a accounting.Account) (accounting.Account, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (org_id, code, name, type, parent_code, level, is_header, allow_manual_entry, is_active, cached_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		a.OrgID, a.Code, a.Name, a.Type, a.ParentCode, a.Level, a.IsHeader, a.AllowManualEntry, a.IsActive, a.CachedBalance).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if isConstraint(err, pgUniqueViolation, constraintAccountCode) {
		return accounting.Account{}, &accounting.DuplicateCodeError{Code: a.Code}
	}
	return a, err
}

func (r *txStore) UpdateAccount(ctx context.Context, a accounting.Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET name=$2, parent_code=$3, level=$4, allow_manual_entry=$5, is_active=$6, updated_at=NOW() WHERE id=$1`,
		a.ID, a.Name, a.ParentCode, a.Level, a.AllowManualEntry, a.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounting.ErrAccountNotFound
	}
	return nil
}

func (r *txStore) DeleteAccount(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if isConstraint(err, pgForeignKeyViolation, "") {
		return &accounting.AccountInUseError{AccountID: id}
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounting.ErrAccountNotFound
	}
	return nil
}

func (r *txStore) AdjustCachedBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET cached_balance = cached_balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounting.ErrAccountNotFound
	}
	return nil
}

func (r *txStore) ListOrgIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT org_id FROM accounts UNION SELECT org_id FROM fiscal_periods ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func isConstraint(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == code && (constraint == "" || pgErr.ConstraintName == constraint)
}

func nullInt(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nullString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := accounting.DateOnly(t)
	return &d
}
