package pgstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/balances"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/platform/db"
	"github.com/odyssey-erp/ledger/internal/shared"
	_ "github.com/odyssey-erp/ledger/testing"
)

func TestIsConstraint(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintAccountCode})
	require.True(t, isConstraint(err, pgUniqueViolation, constraintAccountCode))
	require.True(t, isConstraint(err, pgUniqueViolation, ""))
	require.False(t, isConstraint(err, pgUniqueViolation, constraintEntrySource))
	require.False(t, isConstraint(err, pgExclusionViolation, ""))
	require.False(t, isConstraint(nil, pgUniqueViolation, ""))

	fk := &pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "journal_lines_account_id_fkey"}
	require.True(t, isConstraint(fk, pgForeignKeyViolation, ""))
}

func TestNullHelpers(t *testing.T) {
	require.Nil(t, nullInt(0))
	require.Equal(t, int64(4), *nullInt(4))
	require.Nil(t, nullString(""))
	require.Equal(t, "x", *nullString("x"))
	require.Nil(t, nullDate(time.Time{}))
	require.Equal(t, ledgertest.Date(2025, 3, 1), *nullDate(time.Date(2025, 3, 1, 17, 30, 0, 0, time.UTC)))
}

// TestPostgresLedger runs against a disposable database named by
// LEDGER_TEST_PG_DSN.
func TestPostgresLedger(t *testing.T) {
	dsn := os.Getenv("LEDGER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	require.NoError(t, db.Migrate(dsn, nil))
	pool, err := db.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := New(pool)
	actor := shared.Actor{ID: 1, Name: "pg-test"}
	orgID := int64(900000 + os.Getpid())

	registry := accounts.NewRegistry(store, nil, nil)
	_, err = registry.SeedDefaultChart(ctx, orgID, actor)
	require.NoError(t, err)
	_, err = registry.SeedDefaultChart(ctx, orgID, actor)
	require.NoError(t, err)

	manager := periods.NewManager(store, nil, nil)
	period, err := manager.Create(ctx, periods.CreateInput{
		OrgID: orgID, Name: "FY2025", StartDate: ledgertest.Date(2025, 1, 1), EndDate: ledgertest.Date(2025, 12, 31), Actor: actor,
	})
	require.NoError(t, err)
	_, err = manager.Create(ctx, periods.CreateInput{
		OrgID: orgID, Name: "overlap", StartDate: ledgertest.Date(2025, 6, 1), EndDate: ledgertest.Date(2026, 5, 31), Actor: actor,
	})
	require.ErrorIs(t, err, accounting.ErrPeriodOverlap)

	cash, err := registry.FindByCode(ctx, orgID, accounts.CodeCash)
	require.NoError(t, err)
	sales, err := registry.FindByCode(ctx, orgID, accounts.CodeSalesRevenue)
	require.NoError(t, err)

	engine := journals.NewEngine(store, nil, nil)
	const n = 8
	var wg sync.WaitGroup
	numbers := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := engine.PostJournal(ctx, journals.EntryInput{
				OrgID: orgID, EntryDate: ledgertest.Date(2025, 3, 1), Actor: actor,
				Lines: []journals.LineInput{
					{AccountID: cash.ID, Debit: ledgertest.D("10.50")},
					{AccountID: sales.ID, Credit: ledgertest.D("10.50")},
				},
			})
			if err == nil {
				numbers <- entry.EntryNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)
	seen := map[string]bool{}
	for num := range numbers {
		require.False(t, seen[num])
		seen[num] = true
	}
	require.Len(t, seen, n)

	calc := balances.NewCalculator(store)
	bal, err := calc.AccountBalance(ctx, cash.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(ledgertest.D("84")), bal.String())
	drifts, err := calc.VerifyCachedBalances(ctx, orgID)
	require.NoError(t, err)
	require.Empty(t, drifts)

	_, err = engine.PostJournal(ctx, journals.EntryInput{
		OrgID: orgID, EntryDate: ledgertest.Date(2025, 3, 2), Actor: actor, SourceModule: "sales", SourceRef: "INV-1",
		Lines: []journals.LineInput{{AccountID: cash.ID, Debit: ledgertest.D("1")}, {AccountID: sales.ID, Credit: ledgertest.D("1")}},
	})
	require.NoError(t, err)
	_, err = engine.PostJournal(ctx, journals.EntryInput{
		OrgID: orgID, EntryDate: ledgertest.Date(2025, 3, 2), Actor: actor, SourceModule: "sales", SourceRef: "INV-1",
		Lines: []journals.LineInput{{AccountID: cash.ID, Debit: ledgertest.D("1")}, {AccountID: sales.ID, Credit: ledgertest.D("1")}},
	})
	require.ErrorIs(t, err, accounting.ErrSourceAlreadyLinked)

	_, err = mappings.NewResolver(store, registry).Override(ctx, orgID, mappings.ModuleSales, mappings.KeySaleCash, accounts.CodeBank, actor)
	require.NoError(t, err)
	mapping, err := mappings.NewResolver(store, registry).Get(ctx, orgID, mappings.ModuleSales, mappings.KeySaleCash)
	require.NoError(t, err)
	require.False(t, mapping.Default)
	require.Equal(t, accounts.CodeBank, mapping.AccountCode)

	bank, err := registry.FindByCode(ctx, orgID, accounts.CodeBank)
	require.NoError(t, err)
	_, err = engine.CreateEntry(ctx, journals.EntryInput{
		OrgID: orgID, EntryDate: ledgertest.Date(2025, 3, 3), Actor: actor,
		Lines: []journals.LineInput{{AccountID: bank.ID, Debit: ledgertest.D("2")}, {AccountID: sales.ID, Credit: ledgertest.D("2")}},
	})
	require.NoError(t, err)
	err = registry.Delete(ctx, bank.ID, actor)
	require.ErrorIs(t, err, accounting.ErrAccountInUse)
	err = store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		return tx.DeleteAccount(ctx, bank.ID)
	})
	require.ErrorIs(t, err, accounting.ErrAccountInUse)

	_, err = manager.Close(ctx, period.ID, actor)
	require.NoError(t, err)
}
