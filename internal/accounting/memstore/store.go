// Package memstore keeps ledger state in process memory. Transactions are
// serialised and applied copy-on-write so a failed transaction leaves no
// trace.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

type seqKey struct {
	orgID int64
	year  int
}

type mappingKey struct {
	orgID  int64
	module string
	key    string
}

type state struct {
	accounts  map[int64]accounting.Account
	periods   map[int64]accounting.FiscalPeriod
	entries   map[int64]accounting.JournalEntry
	sequences map[seqKey]int64
	mappings  map[mappingKey]accounting.AccountMapping
	nextID    int64
}

func newState() *state {
	return &state{
		accounts:  make(map[int64]accounting.Account),
		periods:   make(map[int64]accounting.FiscalPeriod),
		entries:   make(map[int64]accounting.JournalEntry),
		sequences: make(map[seqKey]int64),
		mappings:  make(map[mappingKey]accounting.AccountMapping),
	}
}

func (s *state) clone() *state {
	out := &state{
		accounts:  make(map[int64]accounting.Account, len(s.accounts)),
		periods:   make(map[int64]accounting.FiscalPeriod, len(s.periods)),
		entries:   make(map[int64]accounting.JournalEntry, len(s.entries)),
		sequences: make(map[seqKey]int64, len(s.sequences)),
		mappings:  make(map[mappingKey]accounting.AccountMapping, len(s.mappings)),
		nextID:    s.nextID,
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.periods {
		out.periods[k] = v
	}
	for k, v := range s.entries {
		v.Lines = append([]accounting.JournalLine(nil), v.Lines...)
		out.entries[k] = v
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	for k, v := range s.mappings {
		out.mappings[k] = v
	}
	return out
}

// Store is an accounting.Store backed by maps.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithTx executes fn against a private copy of the state and publishes it on
// success.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.Tx) error) error {
	if s == nil {
		return errors.New("memstore: not initialised")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(ctx, &tx{state: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// View executes fn against the committed state.
func (s *Store) View(ctx context.Context, fn func(context.Context, accounting.Reader) error) error {
	if s == nil {
		return errors.New("memstore: not initialised")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &tx{state: s.state, now: s.now})
}

type tx struct {
	state *state
	now   func() time.Time
}

func (t *tx) id() int64 {
	t.state.nextID++
	return t.state.nextID
}

func (t *tx) GetAccount(_ context.Context, id int64) (accounting.Account, error) {
	acc, ok := t.state.accounts[id]
	if !ok {
		return accounting.Account{}, accounting.ErrAccountNotFound
	}
	return acc, nil
}

func (t *tx) GetAccountByCode(_ context.Context, orgID int64, code string) (accounting.Account, error) {
	for _, acc := range t.state.accounts {
		if acc.OrgID == orgID && acc.Code == code {
			return acc, nil
		}
	}
	return accounting.Account{}, accounting.ErrAccountNotFound
}

func (t *tx) ListAccounts(_ context.Context, filter accounting.AccountFilter) ([]accounting.Account, error) {
	var out []accounting.Account
	for _, acc := range t.state.accounts {
		if acc.OrgID != filter.OrgID {
			continue
		}
		if filter.Type != "" && acc.Type != filter.Type {
			continue
		}
		if filter.PostableOnly && (!acc.Postable() || !acc.AllowManualEntry) {
			continue
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) HasChildAccounts(_ context.Context, orgID int64, code string) (bool, error) {
	for _, acc := range t.state.accounts {
		if acc.OrgID == orgID && acc.ParentCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) HasPostedLines(_ context.Context, accountID int64) (bool, error) {
	return t.referenced(accountID, accounting.JournalStatus.Posted), nil
}

func (t *tx) HasPendingLines(_ context.Context, accountID int64) (bool, error) {
	return t.referenced(accountID, accounting.JournalStatus.Editable), nil
}

func (t *tx) referenced(accountID int64, match func(accounting.JournalStatus) bool) bool {
	for _, e := range t.state.entries {
		if !match(e.Status) {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				return true
			}
		}
	}
	return false
}

func (t *tx) GetPeriod(_ context.Context, id int64) (accounting.FiscalPeriod, error) {
	p, ok := t.state.periods[id]
	if !ok {
		return accounting.FiscalPeriod{}, accounting.ErrPeriodNotFound
	}
	return p, nil
}

func (t *tx) ListPeriods(_ context.Context, orgID int64) ([]accounting.FiscalPeriod, error) {
	var out []accounting.FiscalPeriod
	for _, p := range t.state.periods {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (t *tx) FindOpenPeriod(ctx context.Context, orgID int64, date time.Time) (accounting.FiscalPeriod, error) {
	periods, _ := t.ListPeriods(ctx, orgID)
	for _, p := range periods {
		if p.Status == accounting.PeriodStatusOpen && p.Contains(date) {
			return p, nil
		}
	}
	return accounting.FiscalPeriod{}, accounting.ErrPeriodNotFound
}

func (t *tx) FindOverlappingPeriod(ctx context.Context, orgID int64, start, end time.Time) (accounting.FiscalPeriod, error) {
	periods, _ := t.ListPeriods(ctx, orgID)
	for _, p := range periods {
		if p.Overlaps(start, end) {
			return p, nil
		}
	}
	return accounting.FiscalPeriod{}, accounting.ErrPeriodNotFound
}

func (t *tx) GetEntry(_ context.Context, id int64) (accounting.JournalEntry, error) {
	e, ok := t.state.entries[id]
	if !ok {
		return accounting.JournalEntry{}, accounting.ErrJournalNotFound
	}
	e.Lines = append([]accounting.JournalLine(nil), e.Lines...)
	return e, nil
}

func (t *tx) ListEntries(_ context.Context, filter accounting.JournalFilter) ([]accounting.JournalEntry, error) {
	var out []accounting.JournalEntry
	for _, e := range t.state.entries {
		if e.OrgID != filter.OrgID {
			continue
		}
		if filter.PeriodID != 0 && e.FiscalPeriodID != filter.PeriodID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if !inRange(e.EntryDate, filter.From, filter.To) {
			continue
		}
		e.Lines = nil
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *tx) FindEntryBySource(_ context.Context, orgID int64, module, ref string) (accounting.JournalEntry, error) {
	for _, e := range t.state.entries {
		if e.OrgID == orgID && e.SourceModule == module && e.SourceRef == ref {
			return e, nil
		}
	}
	return accounting.JournalEntry{}, accounting.ErrJournalNotFound
}

func (t *tx) SumPostedLines(_ context.Context, filter accounting.BalanceFilter) ([]accounting.AccountTotals, error) {
	totals := make(map[int64]*accounting.AccountTotals)
	for _, e := range t.state.entries {
		if e.OrgID != filter.OrgID || !e.Status.Posted() {
			continue
		}
		if filter.ExcludeSystem && e.IsSystem {
			continue
		}
		if !inRange(e.EntryDate, filter.From, filter.To) {
			continue
		}
		for _, l := range e.Lines {
			if filter.AccountID != 0 && l.AccountID != filter.AccountID {
				continue
			}
			row, ok := totals[l.AccountID]
			if !ok {
				row = &accounting.AccountTotals{AccountID: l.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
				totals[l.AccountID] = row
			}
			row.Debit = row.Debit.Add(l.Debit)
			row.Credit = row.Credit.Add(l.Credit)
		}
	}
	out := make([]accounting.AccountTotals, 0, len(totals))
	for _, row := range totals {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (t *tx) ListOrgIDs(_ context.Context) ([]int64, error) {
	seen := make(map[int64]struct{})
	for _, acc := range t.state.accounts {
		seen[acc.OrgID] = struct{}{}
	}
	for _, p := range t.state.periods {
		seen[p.OrgID] = struct{}{}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *tx) GetMapping(_ context.Context, orgID int64, module, key string) (accounting.AccountMapping, error) {
	m, ok := t.state.mappings[mappingKey{orgID: orgID, module: module, key: key}]
	if !ok {
		return accounting.AccountMapping{}, accounting.ErrMappingNotFound
	}
	return m, nil
}

func (t *tx) UpsertMapping(_ context.Context, m accounting.AccountMapping) (accounting.AccountMapping, error) {
	m.UpdatedAt = t.now()
	t.state.mappings[mappingKey{orgID: m.OrgID, module: m.Module, key: m.Key}] = m
	return m, nil
}

func (t *tx) InsertAccount(ctx context.Context, account accounting.Account) (accounting.Account, error) {
	if _, err := t.GetAccountByCode(ctx, account.OrgID, account.Code); err == nil {
		return accounting.Account{}, &accounting.DuplicateCodeError{Code: account.Code}
	}
	now := t.now()
	account.ID = t.id()
	account.CreatedAt = now
	account.UpdatedAt = now
	t.state.accounts[account.ID] = account
	return account, nil
}

func (t *tx) UpdateAccount(_ context.Context, account accounting.Account) error {
	if _, ok := t.state.accounts[account.ID]; !ok {
		return accounting.ErrAccountNotFound
	}
	account.UpdatedAt = t.now()
	t.state.accounts[account.ID] = account
	return nil
}

func (t *tx) DeleteAccount(_ context.Context, id int64) error {
	acc, ok := t.state.accounts[id]
	if !ok {
		return accounting.ErrAccountNotFound
	}
	if t.referenced(id, func(accounting.JournalStatus) bool { return true }) {
		return &accounting.AccountInUseError{AccountID: id, Code: acc.Code}
	}
	delete(t.state.accounts, id)
	return nil
}

func (t *tx) AdjustCachedBalance(_ context.Context, accountID int64, delta decimal.Decimal) error {
	acc, ok := t.state.accounts[accountID]
	if !ok {
		return accounting.ErrAccountNotFound
	}
	acc.CachedBalance = acc.CachedBalance.Add(delta)
	t.state.accounts[accountID] = acc
	return nil
}

func (t *tx) InsertPeriod(_ context.Context, period accounting.FiscalPeriod) (accounting.FiscalPeriod, error) {
	now := t.now()
	period.ID = t.id()
	period.CreatedAt = now
	period.UpdatedAt = now
	t.state.periods[period.ID] = period
	return period, nil
}

func (t *tx) GetPeriodForUpdate(ctx context.Context, id int64) (accounting.FiscalPeriod, error) {
	return t.GetPeriod(ctx, id)
}

func (t *tx) ClosePeriod(_ context.Context, id int64, closedBy int64, at time.Time) error {
	p, ok := t.state.periods[id]
	if !ok {
		return accounting.ErrPeriodNotFound
	}
	p.Status = accounting.PeriodStatusClosed
	p.ClosedBy = closedBy
	closedAt := at
	p.ClosedAt = &closedAt
	p.UpdatedAt = at
	t.state.periods[id] = p
	return nil
}

func (t *tx) NextEntrySequence(_ context.Context, orgID int64, year int) (int64, error) {
	key := seqKey{orgID: orgID, year: year}
	t.state.sequences[key]++
	return t.state.sequences[key], nil
}

func (t *tx) InsertEntry(ctx context.Context, entry accounting.JournalEntry) (accounting.JournalEntry, error) {
	if entry.SourceModule != "" && entry.SourceRef != "" {
		if _, err := t.FindEntryBySource(ctx, entry.OrgID, entry.SourceModule, entry.SourceRef); err == nil {
			return accounting.JournalEntry{}, accounting.ErrSourceAlreadyLinked
		}
	}
	now := t.now()
	entry.ID = t.id()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	entry.Lines = t.stampLines(entry.ID, entry.Lines)
	t.state.entries[entry.ID] = entry
	out := entry
	out.Lines = append([]accounting.JournalLine(nil), entry.Lines...)
	return out, nil
}

func (t *tx) UpdateEntry(_ context.Context, entry accounting.JournalEntry) error {
	current, ok := t.state.entries[entry.ID]
	if !ok {
		return accounting.ErrJournalNotFound
	}
	entry.Lines = current.Lines
	entry.CreatedAt = current.CreatedAt
	entry.UpdatedAt = t.now()
	t.state.entries[entry.ID] = entry
	return nil
}

func (t *tx) ReplaceLines(_ context.Context, entryID int64, lines []accounting.JournalLine) ([]accounting.JournalLine, error) {
	current, ok := t.state.entries[entryID]
	if !ok {
		return nil, accounting.ErrJournalNotFound
	}
	current.Lines = t.stampLines(entryID, lines)
	t.state.entries[entryID] = current
	return append([]accounting.JournalLine(nil), current.Lines...), nil
}

func (t *tx) DeleteEntry(_ context.Context, id int64) error {
	if _, ok := t.state.entries[id]; !ok {
		return accounting.ErrJournalNotFound
	}
	delete(t.state.entries, id)
	return nil
}

func (t *tx) stampLines(entryID int64, lines []accounting.JournalLine) []accounting.JournalLine {
	out := make([]accounting.JournalLine, 0, len(lines))
	for idx, l := range lines {
		l.ID = t.id()
		l.JournalEntryID = entryID
		if l.LineOrder == 0 {
			l.LineOrder = idx + 1
		}
		out = append(out, l)
	}
	return out
}

func inRange(date, from, to time.Time) bool {
	d := accounting.DateOnly(date)
	if !from.IsZero() && d.Before(accounting.DateOnly(from)) {
		return false
	}
	if !to.IsZero() && d.After(accounting.DateOnly(to)) {
		return false
	}
	return true
}
