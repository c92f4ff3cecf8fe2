package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/ledger/internal/accounting/mappings"
)

func newHooks(t *testing.T) (*ledgertest.Ledger, *Hooks) {
	t.Helper()
	l := ledgertest.New(t)
	return l, NewHooks(l.Journals, mappings.NewResolver(l.Store, l.Accounts), nil)
}

func TestHandleSalePostedWithCOGS(t *testing.T) {
	l, hooks := newHooks(t)
	ctx := context.Background()
	evt := SalePostedEvent{
		OrgID: ledgertest.OrgID, ID: 11, Number: "INV-11", Date: ledgertest.Date(2025, 5, 5),
		Net: ledgertest.D("1000"), Tax: ledgertest.D("110"), Cost: ledgertest.D("600"), Actor: l.Actor,
	}

	entries, err := hooks.HandleSalePosted(ctx, evt)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, SourceSale, entries[0].SourceModule)
	require.Equal(t, SourceCOGS, entries[1].SourceModule)
	require.Equal(t, "Sales invoice INV-11", entries[0].Memo)

	require.True(t, l.Balance(t, accounts.CodeReceivables).Equal(ledgertest.D("1110")))
	require.True(t, l.Balance(t, accounts.CodeSalesRevenue).Equal(ledgertest.D("-1000")))
	require.True(t, l.Balance(t, accounts.CodeVATPayable).Equal(ledgertest.D("-110")))
	require.True(t, l.Balance(t, accounts.CodeCOGS).Equal(ledgertest.D("600")))
	require.True(t, l.Balance(t, accounts.CodeInventory).Equal(ledgertest.D("-600")))

	// replaying the event returns the original entries and books nothing new
	replay, err := hooks.HandleSalePosted(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, entries[0].ID, replay[0].ID)
	require.Equal(t, entries[1].ID, replay[1].ID)
	require.True(t, l.Balance(t, accounts.CodeReceivables).Equal(ledgertest.D("1110")))
}

func TestHandleCashSaleWithoutTax(t *testing.T) {
	l, hooks := newHooks(t)
	entries, err := hooks.HandleSalePosted(context.Background(), SalePostedEvent{
		OrgID: ledgertest.OrgID, ID: 12, Number: "INV-12", Date: ledgertest.Date(2025, 5, 5),
		Net: ledgertest.D("250"), Paid: true, Actor: l.Actor,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Lines, 2)
	require.True(t, l.Balance(t, accounts.CodeCash).Equal(ledgertest.D("250")))
}

func TestHandlePurchaseExpenseAndVouchers(t *testing.T) {
	l, hooks := newHooks(t)
	ctx := context.Background()
	date := ledgertest.Date(2025, 6, 1)

	_, err := hooks.HandlePurchasePosted(ctx, PurchasePostedEvent{
		OrgID: ledgertest.OrgID, ID: 1, Number: "PI-1", Date: date, Net: ledgertest.D("400"), Tax: ledgertest.D("40"), Actor: l.Actor,
	})
	require.NoError(t, err)
	_, err = hooks.HandleExpensePosted(ctx, ExpensePostedEvent{
		OrgID: ledgertest.OrgID, ID: 1, Number: "EX-1", Date: date, Amount: ledgertest.D("75.555"), Paid: true, Actor: l.Actor,
	})
	require.NoError(t, err)
	_, err = hooks.HandleVoucherPosted(ctx, VoucherPostedEvent{
		OrgID: ledgertest.OrgID, ID: 1, Number: "PV-1", Kind: VoucherPayment, Date: date, Amount: ledgertest.D("440"), Actor: l.Actor,
	})
	require.NoError(t, err)
	receipt, err := hooks.HandleVoucherPosted(ctx, VoucherPostedEvent{
		OrgID: ledgertest.OrgID, ID: 1, Number: "RV-1", Kind: VoucherReceipt, Date: date, Amount: ledgertest.D("100"), Actor: l.Actor,
	})
	require.NoError(t, err)
	require.Equal(t, SourceReceipt, receipt.SourceModule)

	require.True(t, l.Balance(t, accounts.CodeInventory).Equal(ledgertest.D("400")))
	require.True(t, l.Balance(t, accounts.CodePayables).IsZero())
	require.True(t, l.Balance(t, accounts.CodeOperatingExpense).Equal(ledgertest.D("75.56")))
	require.True(t, l.Balance(t, accounts.CodeCash).Equal(ledgertest.D("-415.56")))
	require.True(t, l.Balance(t, accounts.CodeReceivables).Equal(ledgertest.D("-100")))

	tb, err := l.Balances.TrialBalance(ctx, ledgertest.OrgID)
	require.NoError(t, err)
	require.True(t, tb.Balanced())
}

func TestHooksRejectBadEvents(t *testing.T) {
	l, hooks := newHooks(t)
	ctx := context.Background()

	_, err := hooks.HandleExpensePosted(ctx, ExpensePostedEvent{OrgID: ledgertest.OrgID, ID: 1, Amount: ledgertest.D("5"), Actor: l.Actor})
	require.Error(t, err)

	_, err = hooks.HandleExpensePosted(ctx, ExpensePostedEvent{OrgID: ledgertest.OrgID, ID: 1, Date: ledgertest.Date(2025, 1, 1), Amount: ledgertest.D("0"), Actor: l.Actor})
	require.ErrorIs(t, err, accounting.ErrValidation)

	_, err = hooks.HandleVoucherPosted(ctx, VoucherPostedEvent{OrgID: ledgertest.OrgID, ID: 1, Kind: "REFUND", Date: ledgertest.Date(2025, 1, 1), Amount: ledgertest.D("5"), Actor: l.Actor})
	require.ErrorIs(t, err, accounting.ErrValidation)

	_, err = hooks.HandleExpensePosted(ctx, ExpensePostedEvent{OrgID: ledgertest.OrgID, ID: 1, Date: ledgertest.Date(2031, 1, 1), Amount: ledgertest.D("5"), Actor: l.Actor})
	require.ErrorIs(t, err, accounting.ErrNoOpenPeriod)
}

func TestSourceRefIsStable(t *testing.T) {
	require.Equal(t, sourceRef("SALE", 7), sourceRef("SALE", 7))
	require.NotEqual(t, sourceRef("SALE", 7), sourceRef("PURCHASE", 7))
}
