package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

const entryColumns = `id, org_id, entry_number, entry_date, fiscal_period_id, status, memo,
COALESCE(source_module, ''), COALESCE(source_ref, ''), is_system, created_by,
COALESCE(approved_by, 0), approved_at, COALESCE(posted_by, 0), posted_at,
COALESCE(voided_by, 0), voided_at, void_reason, COALESCE(reversal_of_id, 0), COALESCE(reversed_by_id, 0),
created_at, updated_at`

func scanEntry(row pgx.Row) (accounting.JournalEntry, error) {
	var e accounting.JournalEntry
	err := row.Scan(&e.ID, &e.OrgID, &e.EntryNumber, &e.EntryDate, &e.FiscalPeriodID, &e.Status, &e.Memo,
		&e.SourceModule, &e.SourceRef, &e.IsSystem, &e.CreatedBy,
		&e.ApprovedBy, &e.ApprovedAt, &e.PostedBy, &e.PostedAt,
		&e.VoidedBy, &e.VoidedAt, &e.VoidReason, &e.ReversalOfID, &e.ReversedByID,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.JournalEntry{}, accounting.ErrJournalNotFound
	}
	return e, err
}

func (r *txStore) GetEntry(ctx context.Context, id int64) (accounting.JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	entry.Lines, err = r.lines(ctx, id)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	return entry, nil
}

func (r *txStore) lines(ctx context.Context, entryID int64) ([]accounting.JournalLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, journal_entry_id, account_id, debit, credit, line_order, memo
FROM journal_lines WHERE journal_entry_id=$1 ORDER BY line_order, id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.JournalLine
	for rows.Next() {
		var l accounting.JournalLine
		if err := rows.Scan(&l.ID, &l.JournalEntryID, &l.AccountID, &l.Debit, &l.Credit, &l.LineOrder, &l.Memo); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *txStore) ListEntries(ctx context.Context, filter accounting.JournalFilter) ([]accounting.JournalEntry, error) {
	where := []string{"org_id=$1"}
	args := []any{filter.OrgID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.PeriodID != 0 {
		add("fiscal_period_id=$%d", filter.PeriodID)
	}
	if filter.Status != "" {
		add("status=$%d", filter.Status)
	}
	if d := nullDate(filter.From); d != nil {
		add("entry_date >= $%d", *d)
	}
	if d := nullDate(filter.To); d != nil {
		add("entry_date <= $%d", *d)
	}
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE ` + strings.Join(where, " AND ") + ` ORDER BY entry_date, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *txStore) FindEntryBySource(ctx context.Context, orgID int64, module, ref string) (accounting.JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE org_id=$1 AND source_module=$2 AND source_ref=$3`, orgID, module, ref))
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	entry.Lines, err = r.lines(ctx, entry.ID)
	return entry, err
}

func (r *txStore) SumPostedLines(ctx context.Context, filter accounting.BalanceFilter) ([]accounting.AccountTotals, error) {
	where := []string{"e.org_id=$1", "e.status IN ('POSTED','VOID')"}
	args := []any{filter.OrgID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.AccountID != 0 {
		add("l.account_id=$%d", filter.AccountID)
	}
	if d := nullDate(filter.From); d != nil {
		add("e.entry_date >= $%d", *d)
	}
	if d := nullDate(filter.To); d != nil {
		add("e.entry_date <= $%d", *d)
	}
	if filter.ExcludeSystem {
		where = append(where, "NOT e.is_system")
	}
	rows, err := r.tx.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE `+strings.Join(where, " AND ")+`
GROUP BY l.account_id ORDER BY l.account_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.AccountTotals
	for rows.Next() {
		var t accounting.AccountTotals
		if err := rows.Scan(&t.AccountID, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *txStore) NextEntrySequence(ctx context.Context, orgID int64, year int) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO entry_sequences (org_id, year, last_value) VALUES ($1, $2, 1)
ON CONFLICT (org_id, year) DO UPDATE SET last_value = entry_sequences.last_value + 1
RETURNING last_value`, orgID, year).Scan(&seq)
	return seq, err
}

func (r *txStore) InsertEntry(ctx context.Context, e accounting.JournalEntry) (accounting.JournalEntry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (org_id, entry_number, entry_date, fiscal_period_id, status, memo,
source_module, source_ref, is_system, created_by, reversal_of_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id, created_at, updated_at`,
		e.OrgID, e.EntryNumber, accounting.DateOnly(e.EntryDate), e.FiscalPeriodID, e.Status, e.Memo,
		nullString(e.SourceModule), nullString(e.SourceRef), e.IsSystem, e.CreatedBy, nullInt(e.ReversalOfID)).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if isConstraint(err, pgUniqueViolation, constraintEntrySource) {
		return accounting.JournalEntry{}, accounting.ErrSourceAlreadyLinked
	}
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	e.Lines, err = r.insertLines(ctx, e.ID, e.Lines)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	return e, nil
}

func (r *txStore) insertLines(ctx context.Context, entryID int64, lines []accounting.JournalLine) ([]accounting.JournalLine, error) {
	out := make([]accounting.JournalLine, 0, len(lines))
	for idx, l := range lines {
		if l.LineOrder == 0 {
			l.LineOrder = idx + 1
		}
		l.JournalEntryID = entryID
		if err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (journal_entry_id, account_id, debit, credit, line_order, memo)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, entryID, l.AccountID, l.Debit, l.Credit, l.LineOrder, l.Memo).Scan(&l.ID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *txStore) UpdateEntry(ctx context.Context, e accounting.JournalEntry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET entry_date=$2, fiscal_period_id=$3, status=$4, memo=$5,
approved_by=$6, approved_at=$7, posted_by=$8, posted_at=$9, voided_by=$10, voided_at=$11, void_reason=$12,
reversed_by_id=$13, updated_at=NOW() WHERE id=$1`,
		e.ID, accounting.DateOnly(e.EntryDate), e.FiscalPeriodID, e.Status, e.Memo,
		nullInt(e.ApprovedBy), e.ApprovedAt, nullInt(e.PostedBy), e.PostedAt, nullInt(e.VoidedBy), e.VoidedAt, e.VoidReason,
		nullInt(e.ReversedByID))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounting.ErrJournalNotFound
	}
	return nil
}

func (r *txStore) ReplaceLines(ctx context.Context, entryID int64, lines []accounting.JournalLine) ([]accounting.JournalLine, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE journal_entry_id=$1`, entryID); err != nil {
		return nil, err
	}
	return r.insertLines(ctx, entryID, lines)
}

func (r *txStore) DeleteEntry(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounting.ErrJournalNotFound
	}
	return nil
}
