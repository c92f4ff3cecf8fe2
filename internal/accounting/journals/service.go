package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// SourceModuleVoid marks reversals created by Void. Their source ref is the
// voided entry number.
const SourceModuleVoid = "journal.void"

// Engine coordinates creating, approving, posting and voiding journal entries.
type Engine struct {
	store    accounting.Store
	audit    shared.AuditPort
	logger   *slog.Logger
	observer accounting.Observer
	now      func() time.Time
}

// NewEngine constructs the journal engine.
func NewEngine(store accounting.Store, audit shared.AuditPort, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// WithObserver registers an observer for committed postings and voids.
func (e *Engine) WithObserver(obs accounting.Observer) {
	e.observer = obs
}

// CreateEntry validates and persists a draft entry.
func (e *Engine) CreateEntry(ctx context.Context, in EntryInput) (accounting.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return accounting.JournalEntry{}, err
	}
	var entry accounting.JournalEntry
	err := e.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		var err error
		entry, err = e.createTx(ctx, tx, in, false)
		return err
	})
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	e.record(ctx, in.Actor, "journal.create", entry, map[string]any{
		"number": entry.EntryNumber,
	})
	return entry, nil
}

// PostJournal creates and posts an entry in one transaction. Integration
// hooks use it so that a failure leaves no draft behind.
func (e *Engine) PostJournal(ctx context.Context, in EntryInput) (accounting.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return accounting.JournalEntry{}, err
	}
	var entry accounting.JournalEntry
	err := e.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		created, err := e.createTx(ctx, tx, in, false)
		if err != nil {
			return err
		}
		entry, err = e.postTx(ctx, tx, created, in.Actor, true)
		return err
	})
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	e.afterPost(ctx, in.Actor, entry)
	return entry, nil
}

// PostSystemEntry creates and posts an entry inside the caller's transaction.
// The entry goes through the same validation as any other; the caller is
// responsible for notifying observers once its transaction commits.
func (e *Engine) PostSystemEntry(ctx context.Context, tx accounting.Tx, in EntryInput) (accounting.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return accounting.JournalEntry{}, err
	}
	created, err := e.createTx(ctx, tx, in, true)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	return e.postTx(ctx, tx, created, in.Actor, false)
}

// createTx inserts a draft. System entries may reference inactive accounts
// so balances left on them can still be closed.
func (e *Engine) createTx(ctx context.Context, tx accounting.Tx, in EntryInput, system bool) (accounting.JournalEntry, error) {
	lines := in.journalLines()
	if err := checkAccounts(ctx, tx, in.OrgID, lines, !system); err != nil {
		return accounting.JournalEntry{}, err
	}
	if err := accounting.ValidateLines(lines); err != nil {
		return accounting.JournalEntry{}, err
	}
	period, err := lockOpenPeriod(ctx, tx, in.OrgID, in.EntryDate)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	seq, err := tx.NextEntrySequence(ctx, in.OrgID, period.FiscalYear())
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	return tx.InsertEntry(ctx, accounting.JournalEntry{
		OrgID:          in.OrgID,
		EntryNumber:    FormatEntryNumber(period.FiscalYear(), seq),
		EntryDate:      accounting.DateOnly(in.EntryDate),
		FiscalPeriodID: period.ID,
		Status:         accounting.JournalStatusDraft,
		Memo:           strings.TrimSpace(in.Memo),
		SourceModule:   in.SourceModule,
		SourceRef:      in.SourceRef,
		IsSystem:       system,
		CreatedBy:      in.Actor.ID,
		Lines:          lines,
	})
}

// lockOpenPeriod resolves the open period for date and locks it for the rest
// of the transaction.
func lockOpenPeriod(ctx context.Context, tx accounting.Tx, orgID int64, date time.Time) (accounting.FiscalPeriod, error) {
	period, err := periods.ResolveOpen(ctx, tx, orgID, date)
	if err != nil {
		return accounting.FiscalPeriod{}, err
	}
	locked, err := tx.GetPeriodForUpdate(ctx, period.ID)
	if err != nil {
		return accounting.FiscalPeriod{}, err
	}
	if locked.Status != accounting.PeriodStatusOpen {
		return accounting.FiscalPeriod{}, &accounting.NoOpenPeriodError{OrgID: orgID, Date: accounting.DateOnly(date)}
	}
	return locked, nil
}

// checkAccounts resolves every line account. Inactive accounts are rejected
// only when requireActive is set.
func checkAccounts(ctx context.Context, r accounting.Reader, orgID int64, lines []accounting.JournalLine, requireActive bool) error {
	cache := make(map[int64]accounting.Account, len(lines))
	for idx, line := range lines {
		acc, ok := cache[line.AccountID]
		if !ok {
			var err error
			acc, err = r.GetAccount(ctx, line.AccountID)
			if errors.Is(err, accounting.ErrAccountNotFound) {
				return &accounting.UnknownAccountError{AccountID: line.AccountID, Line: idx}
			}
			if err != nil {
				return err
			}
			cache[line.AccountID] = acc
		}
		if acc.OrgID != orgID {
			return &accounting.UnknownAccountError{AccountID: line.AccountID, Line: idx}
		}
		if acc.IsHeader {
			return &accounting.HeaderPostingError{AccountID: acc.ID, Code: acc.Code, Line: idx}
		}
		if requireActive && !acc.IsActive {
			return &accounting.UnknownAccountError{AccountID: line.AccountID, Line: idx, Inactive: true}
		}
	}
	return nil
}

// UpdateDraft replaces date, memo and lines of a draft or approved entry. An
// approved entry returns to draft.
func (e *Engine) UpdateDraft(ctx context.Context, id int64, in EntryInput) (accounting.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return accounting.JournalEntry{}, err
	}
	var entry accounting.JournalEntry
	err := e.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		current, err := orgEntry(ctx, tx, in.OrgID, id)
		if err != nil {
			return err
		}
		if !current.Status.Editable() {
			return &accounting.InvalidStatusTransitionError{EntryID: id, From: current.Status, To: accounting.JournalStatusDraft}
		}
		lines := in.journalLines()
		if err := checkAccounts(ctx, tx, in.OrgID, lines, true); err != nil {
			return err
		}
		if err := accounting.ValidateLines(lines); err != nil {
			return err
		}
		period, err := lockOpenPeriod(ctx, tx, in.OrgID, in.EntryDate)
		if err != nil {
			return err
		}
		current.EntryDate = accounting.DateOnly(in.EntryDate)
		current.FiscalPeriodID = period.ID
		current.Memo = strings.TrimSpace(in.Memo)
		current.Status = accounting.JournalStatusDraft
		current.ApprovedBy = 0
		current.ApprovedAt = nil
		if err := tx.UpdateEntry(ctx, current); err != nil {
			return err
		}
		current.Lines, err = tx.ReplaceLines(ctx, id, lines)
		if err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	e.record(ctx, in.Actor, "journal.update", entry, nil)
	return entry, nil
}

// DeleteDraft removes a draft or approved entry. Posted history is never
// deleted.
func (e *Engine) DeleteDraft(ctx context.Context, orgID, id int64, actor shared.Actor) error {
	var deleted accounting.JournalEntry
	err := e.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		current, err := orgEntry(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if !current.Status.Editable() {
			return &accounting.InvalidStatusTransitionError{EntryID: id, From: current.Status, To: accounting.JournalStatusDraft}
		}
		deleted = current
		return tx.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}
	e.record(ctx, actor, "journal.delete", deleted, map[string]any{"number": deleted.EntryNumber})
	return nil
}

// Approve moves a draft to approved.
func (e *Engine) Approve(ctx context.Context, orgID, id int64, actor shared.Actor) (accounting.JournalEntry, error) {
	if !actor.Valid() {
		return accounting.JournalEntry{}, fmt.Errorf("%w: actor required", accounting.ErrValidation)
	}
	var entry accounting.JournalEntry
	err := e.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		current, err := orgEntry(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if err := accounting.CheckTransition(id, current.Status, accounting.JournalStatusApproved); err != nil {
			return err
		}
		at := e.now()
		current.Status = accounting.JournalStatusApproved
		current.ApprovedBy = actor.ID
		current.ApprovedAt = &at
		if err := tx.UpdateEntry(ctx, current); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	e.record(ctx, actor, "journal.approve", entry, nil)
	return entry, nil
}

// Post publishes a draft or approved entry to the ledger.
func (e *Engine) Post(ctx context.Context, orgID, id int64, actor shared.Actor) (accounting.JournalEntry, error) {
	if !actor.Valid() {
		return accounting.JournalEntry{}, fmt.Errorf("%w: actor required", accounting.ErrValidation)
	}
	var entry accounting.JournalEntry
	err := e.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		current, err := orgEntry(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		entry, err = e.postTx(ctx, tx, current, actor, true)
		return err
	})
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	e.afterPost(ctx, actor, entry)
	return entry, nil
}

// postTx re-validates the entry against current state while holding the
// period lock and marks it posted.
func (e *Engine) postTx(ctx context.Context, tx accounting.Tx, entry accounting.JournalEntry, actor shared.Actor, requireActive bool) (accounting.JournalEntry, error) {
	if err := accounting.CheckTransition(entry.ID, entry.Status, accounting.JournalStatusPosted); err != nil {
		return accounting.JournalEntry{}, err
	}
	period, err := tx.GetPeriodForUpdate(ctx, entry.FiscalPeriodID)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	if period.Status != accounting.PeriodStatusOpen {
		return accounting.JournalEntry{}, &accounting.PeriodClosedError{PeriodID: period.ID}
	}
	if err := checkAccounts(ctx, tx, entry.OrgID, entry.Lines, requireActive); err != nil {
		return accounting.JournalEntry{}, err
	}
	if err := accounting.ValidateLines(entry.Lines); err != nil {
		return accounting.JournalEntry{}, err
	}
	at := e.now()
	entry.Status = accounting.JournalStatusPosted
	entry.PostedBy = actor.ID
	entry.PostedAt = &at
	if err := tx.UpdateEntry(ctx, entry); err != nil {
		return accounting.JournalEntry{}, err
	}
	if err := adjustCachedBalances(ctx, tx, entry.Lines); err != nil {
		return accounting.JournalEntry{}, err
	}
	return entry, nil
}

// orgEntry loads an entry owned by orgID. Entries of other organisations are
// reported as missing.
func orgEntry(ctx context.Context, rd accounting.Reader, orgID, id int64) (accounting.JournalEntry, error) {
	entry, err := rd.GetEntry(ctx, id)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	if entry.OrgID != orgID {
		return accounting.JournalEntry{}, accounting.ErrJournalNotFound
	}
	return entry, nil
}

func adjustCachedBalances(ctx context.Context, tx accounting.Tx, lines []accounting.JournalLine) error {
	deltas := make(map[int64]decimal.Decimal)
	order := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := deltas[l.AccountID]; !ok {
			order = append(order, l.AccountID)
			deltas[l.AccountID] = decimal.Zero
		}
		deltas[l.AccountID] = deltas[l.AccountID].Add(l.Net())
	}
	for _, id := range order {
		if err := tx.AdjustCachedBalance(ctx, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

// Void reverses a posted entry in an open period. The reversal is posted with
// every line swapped and the original is marked void and linked to it.
func (e *Engine) Void(ctx context.Context, in VoidInput) (VoidResult, error) {
	if in.OrgID == 0 || in.EntryID == 0 {
		return VoidResult{}, fmt.Errorf("%w: org id and entry id required", accounting.ErrValidation)
	}
	if !in.Actor.Valid() {
		return VoidResult{}, fmt.Errorf("%w: actor required", accounting.ErrValidation)
	}
	var result VoidResult
	err := e.store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		original, err := orgEntry(ctx, tx, in.OrgID, in.EntryID)
		if err != nil {
			return err
		}
		if err := accounting.CheckTransition(original.ID, original.Status, accounting.JournalStatusVoid); err != nil {
			return err
		}
		period, err := tx.GetPeriodForUpdate(ctx, original.FiscalPeriodID)
		if err != nil {
			return err
		}
		if period.Status != accounting.PeriodStatusOpen {
			return &accounting.PeriodClosedError{PeriodID: period.ID}
		}
		seq, err := tx.NextEntrySequence(ctx, original.OrgID, period.FiscalYear())
		if err != nil {
			return err
		}
		reversal, err := tx.InsertEntry(ctx, accounting.JournalEntry{
			OrgID:          original.OrgID,
			EntryNumber:    FormatEntryNumber(period.FiscalYear(), seq),
			EntryDate:      original.EntryDate,
			FiscalPeriodID: period.ID,
			Status:         accounting.JournalStatusDraft,
			Memo:           defaultReversalMemo(in.Reason, original.EntryNumber),
			SourceModule:   SourceModuleVoid,
			SourceRef:      original.EntryNumber,
			IsSystem:       original.IsSystem,
			CreatedBy:      in.Actor.ID,
			ReversalOfID:   original.ID,
			Lines:          accounting.ReverseLines(original.Lines),
		})
		if err != nil {
			return err
		}
		reversal, err = e.postTx(ctx, tx, reversal, in.Actor, false)
		if err != nil {
			return err
		}
		at := e.now()
		original.Status = accounting.JournalStatusVoid
		original.VoidedBy = in.Actor.ID
		original.VoidedAt = &at
		original.VoidReason = strings.TrimSpace(in.Reason)
		original.ReversedByID = reversal.ID
		if err := tx.UpdateEntry(ctx, original); err != nil {
			return err
		}
		result = VoidResult{Original: original, Reversal: reversal}
		return nil
	})
	if err != nil {
		return VoidResult{}, err
	}
	e.record(ctx, in.Actor, "journal.void", result.Original, map[string]any{
		"reason":          in.Reason,
		"reversal_id":     result.Reversal.ID,
		"reversal_number": result.Reversal.EntryNumber,
	})
	e.notify(ctx, result.Original.OrgID, accounting.EventEntryVoided)
	return result, nil
}

// Get loads an entry with its lines.
func (e *Engine) Get(ctx context.Context, id int64) (accounting.JournalEntry, error) {
	var entry accounting.JournalEntry
	err := e.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		entry, err = rd.GetEntry(ctx, id)
		return err
	})
	return entry, err
}

// FindBySource loads the entry linked to an originating document.
func (e *Engine) FindBySource(ctx context.Context, orgID int64, module, ref string) (accounting.JournalEntry, error) {
	var entry accounting.JournalEntry
	err := e.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		entry, err = rd.FindEntryBySource(ctx, orgID, module, ref)
		return err
	})
	return entry, err
}

// List retrieves entry headers matching filter.
func (e *Engine) List(ctx context.Context, filter accounting.JournalFilter) ([]accounting.JournalEntry, error) {
	var entries []accounting.JournalEntry
	err := e.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		entries, err = rd.ListEntries(ctx, filter)
		return err
	})
	return entries, err
}

func (e *Engine) afterPost(ctx context.Context, actor shared.Actor, entry accounting.JournalEntry) {
	debit, _ := entry.Totals()
	e.record(ctx, actor, "journal.post", entry, map[string]any{
		"number":        entry.EntryNumber,
		"total":         debit.StringFixed(2),
		"source_module": entry.SourceModule,
		"source_ref":    entry.SourceRef,
	})
	e.notify(ctx, entry.OrgID, accounting.EventEntryPosted)
}

func (e *Engine) notify(ctx context.Context, orgID int64, event string) {
	if e.observer != nil {
		e.observer.LedgerChanged(ctx, orgID, event)
	}
}

func (e *Engine) record(ctx context.Context, actor shared.Actor, action string, entry accounting.JournalEntry, meta map[string]any) {
	shared.RecordBestEffort(ctx, e.audit, e.logger, shared.AuditLog{
		OrgID:     entry.OrgID,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		Entity:    "journal_entry",
		EntityID:  strconv.FormatInt(entry.ID, 10),
		Meta:      meta,
		At:        e.now(),
	})
}
