// Package ledgertest wires an in-memory ledger with the default chart and one
// open fiscal year for tests across the accounting packages.
package ledgertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/balances"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// OrgID is the organisation every fixture seeds.
const OrgID int64 = 1

// Now is the fixed clock of the fixture.
var Now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

// Ledger bundles the services over one memstore.
type Ledger struct {
	Store    *memstore.Store
	Accounts *accounts.Registry
	Periods  *periods.Manager
	Journals *journals.Engine
	Balances *balances.Calculator
	Audit    *RecordingAudit
	Actor    shared.Actor
	Period   accounting.FiscalPeriod
}

// New seeds the default chart and opens fiscal year 2025.
func New(t testing.TB) *Ledger {
	t.Helper()
	clock := func() time.Time { return Now }
	store := memstore.New()
	store.WithNow(clock)
	audit := &RecordingAudit{}
	l := &Ledger{
		Store:    store,
		Accounts: accounts.NewRegistry(store, audit, nil),
		Periods:  periods.NewManager(store, audit, nil),
		Journals: journals.NewEngine(store, audit, nil),
		Balances: balances.NewCalculator(store),
		Audit:    audit,
		Actor:    shared.Actor{ID: 7, Name: "controller"},
	}
	l.Accounts.WithNow(clock)
	l.Periods.WithNow(clock)
	l.Journals.WithNow(clock)

	ctx := context.Background()
	_, err := l.Accounts.SeedDefaultChart(ctx, OrgID, l.Actor)
	require.NoError(t, err)
	l.Period = l.OpenPeriod(t, "FY2025", Date(2025, 1, 1), Date(2025, 12, 31))
	return l
}

// OpenPeriod creates an additional period.
func (l *Ledger) OpenPeriod(t testing.TB, name string, start, end time.Time) accounting.FiscalPeriod {
	t.Helper()
	period, err := l.Periods.Create(context.Background(), periods.CreateInput{
		OrgID: OrgID, Name: name, StartDate: start, EndDate: end, Actor: l.Actor,
	})
	require.NoError(t, err)
	return period
}

// Account looks an account up by code.
func (l *Ledger) Account(t testing.TB, code string) accounting.Account {
	t.Helper()
	acc, err := l.Accounts.FindByCode(context.Background(), OrgID, code)
	require.NoError(t, err)
	return acc
}

// Line builds a line against the account with the given code. Positive
// amounts debit, negative amounts credit.
func (l *Ledger) Line(t testing.TB, code, amount string) journals.LineInput {
	t.Helper()
	acc := l.Account(t, code)
	value := D(amount)
	if value.IsNegative() {
		return journals.LineInput{AccountID: acc.ID, Credit: value.Neg()}
	}
	return journals.LineInput{AccountID: acc.ID, Debit: value}
}

// Post creates and posts an entry dated date.
func (l *Ledger) Post(t testing.TB, date time.Time, lines ...journals.LineInput) accounting.JournalEntry {
	t.Helper()
	entry, err := l.Journals.PostJournal(context.Background(), l.Input(date, lines...))
	require.NoError(t, err)
	return entry
}

// Input assembles an entry input for the fixture organisation and actor.
func (l *Ledger) Input(date time.Time, lines ...journals.LineInput) journals.EntryInput {
	return journals.EntryInput{OrgID: OrgID, EntryDate: date, Memo: "test", Lines: lines, Actor: l.Actor}
}

// Balance returns the derived balance of the account with the given code.
func (l *Ledger) Balance(t testing.TB, code string) decimal.Decimal {
	t.Helper()
	bal, err := l.Balances.AccountBalance(context.Background(), l.Account(t, code).ID)
	require.NoError(t, err)
	return bal
}

// Date builds a UTC calendar date.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// D parses a decimal literal.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// RecordingAudit keeps audit records in memory.
type RecordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

// Record implements shared.AuditPort.
func (a *RecordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

// Actions lists recorded actions in order.
func (a *RecordingAudit) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

// Logs returns a copy of the recorded entries.
func (a *RecordingAudit) Logs() []shared.AuditLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]shared.AuditLog(nil), a.logs...)
}
