package balances_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/balances"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/ledgertest"
)

func TestAccountBalanceIgnoresDrafts(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	l.Post(t, ledgertest.Date(2025, 2, 1), l.Line(t, accounts.CodeCash, "1000"), l.Line(t, accounts.CodeSalesRevenue, "-1000"))
	l.Post(t, ledgertest.Date(2025, 2, 3), l.Line(t, accounts.CodeOperatingExpense, "300"), l.Line(t, accounts.CodeCash, "-300"))
	_, err := l.Journals.CreateEntry(ctx, l.Input(ledgertest.Date(2025, 2, 4),
		l.Line(t, accounts.CodeCash, "50"), l.Line(t, accounts.CodeSalesRevenue, "-50")))
	require.NoError(t, err)

	require.True(t, l.Balance(t, accounts.CodeCash).Equal(ledgertest.D("700")))
	require.True(t, l.Balance(t, accounts.CodeSalesRevenue).Equal(ledgertest.D("-1000")))
	require.True(t, l.Balance(t, accounts.CodeOperatingExpense).Equal(ledgertest.D("300")))
	require.True(t, l.Balance(t, accounts.CodeBank).IsZero())

	_, err = l.Balances.AccountBalance(ctx, 424242)
	require.ErrorIs(t, err, accounting.ErrAccountNotFound)
}

func TestTrialBalanceRows(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	l.Post(t, ledgertest.Date(2025, 2, 1), l.Line(t, accounts.CodeCash, "1000"), l.Line(t, accounts.CodeSalesRevenue, "-1000"))
	l.Post(t, ledgertest.Date(2025, 3, 1), l.Line(t, accounts.CodeOperatingExpense, "300"), l.Line(t, accounts.CodeCash, "-300"))

	tb, err := l.Balances.TrialBalance(ctx, ledgertest.OrgID)
	require.NoError(t, err)
	require.True(t, tb.Balanced())
	require.True(t, tb.TotalDebit.Equal(ledgertest.D("1000")))
	require.Len(t, tb.Rows, 3)
	require.Equal(t, accounts.CodeCash, tb.Rows[0].Account.Code)
	require.True(t, tb.Rows[0].Debit.Equal(ledgertest.D("700")))
	require.Equal(t, accounts.CodeSalesRevenue, tb.Rows[1].Account.Code)
	require.True(t, tb.Rows[1].Credit.Equal(ledgertest.D("1000")))
	require.Nil(t, tb.AsOf)

	early, err := l.Balances.TrialBalanceAsOf(ctx, ledgertest.OrgID, ledgertest.Date(2025, 2, 28))
	require.NoError(t, err)
	require.NotNil(t, early.AsOf)
	require.Len(t, early.Rows, 2)
	require.True(t, early.TotalCredit.Equal(ledgertest.D("1000")))

	empty, err := l.Balances.TrialBalance(ctx, 99)
	require.NoError(t, err)
	require.Empty(t, empty.Rows)
	require.True(t, empty.Balanced())
}

func TestTrialBalanceStaysBalancedOverRandomPostings(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	codes := []string{
		accounts.CodeCash, accounts.CodeBank, accounts.CodeReceivables, accounts.CodePayables,
		accounts.CodeCapital, accounts.CodeSalesRevenue, accounts.CodeCOGS, accounts.CodeOperatingExpense,
	}

	for i := 0; i < 60; i++ {
		n := 2 + rng.Intn(3)
		lines := make([]journals.LineInput, 0, n+1)
		total := decimal.Zero
		for j := 0; j < n; j++ {
			amount := decimal.New(int64(1+rng.Intn(100000)), -2)
			total = total.Add(amount)
			acc := l.Account(t, codes[rng.Intn(len(codes))])
			lines = append(lines, journals.LineInput{AccountID: acc.ID, Debit: amount})
		}
		acc := l.Account(t, codes[rng.Intn(len(codes))])
		lines = append(lines, journals.LineInput{AccountID: acc.ID, Credit: total})
		entry := l.Post(t, ledgertest.Date(2025, time.Month(1+rng.Intn(12)), 1+rng.Intn(28)), lines...)

		if rng.Intn(5) == 0 {
			_, err := l.Journals.Void(ctx, journals.VoidInput{OrgID: ledgertest.OrgID, EntryID: entry.ID, Actor: l.Actor})
			require.NoError(t, err)
		}
	}

	tb, err := l.Balances.TrialBalance(ctx, ledgertest.OrgID)
	require.NoError(t, err)
	require.True(t, tb.TotalDebit.Equal(tb.TotalCredit), "debit %s credit %s", tb.TotalDebit, tb.TotalCredit)

	drifts, err := l.Balances.VerifyCachedBalances(ctx, ledgertest.OrgID)
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func TestVerifyCachedBalancesReportsDrift(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()
	l.Post(t, ledgertest.Date(2025, 2, 1), l.Line(t, accounts.CodeCash, "10"), l.Line(t, accounts.CodeCapital, "-10"))

	cash := l.Account(t, accounts.CodeCash)
	err := l.Store.WithTx(ctx, func(ctx context.Context, tx accounting.Tx) error {
		return tx.AdjustCachedBalance(ctx, cash.ID, ledgertest.D("5"))
	})
	require.NoError(t, err)

	drifts, err := l.Balances.VerifyCachedBalances(ctx, ledgertest.OrgID)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	require.Equal(t, accounts.CodeCash, drifts[0].Code)
	require.True(t, drifts[0].Cached.Equal(ledgertest.D("15")))
	require.True(t, drifts[0].Actual.Equal(ledgertest.D("10")))
}

func TestBuildTrialBalanceSkipsHeaders(t *testing.T) {
	rows := []balances.AccountBalance{
		{Account: accounting.Account{Code: "1000", IsHeader: true}, Debit: ledgertest.D("5"), Credit: decimal.Zero},
		{Account: accounting.Account{Code: "1111"}, Debit: ledgertest.D("5"), Credit: decimal.Zero},
		{Account: accounting.Account{Code: "4100"}, Debit: decimal.Zero, Credit: ledgertest.D("5")},
	}
	tb := balances.BuildTrialBalance(1, rows)
	require.Len(t, tb.Rows, 2)
	require.True(t, tb.Balanced())
}
