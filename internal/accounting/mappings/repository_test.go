package mappings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/ledger/internal/accounting/mappings"
)

func TestResolverDefaultsAndOverrides(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()
	r := mappings.NewResolver(l.Store, l.Accounts)

	mapping, err := r.Get(ctx, ledgertest.OrgID, "sales", mappings.KeySaleRevenue)
	require.NoError(t, err)
	require.Equal(t, mappings.ModuleSales, mapping.Module)
	require.Equal(t, accounts.CodeSalesRevenue, mapping.AccountCode)
	require.True(t, mapping.Default)

	id, err := r.Resolve(ctx, ledgertest.OrgID, mappings.ModuleSales, mappings.KeySaleCash)
	require.NoError(t, err)
	require.Equal(t, l.Account(t, accounts.CodeCash).ID, id)

	saved, err := r.Override(ctx, ledgertest.OrgID, "Sales", mappings.KeySaleCash, accounts.CodeBank, l.Actor)
	require.NoError(t, err)
	require.Equal(t, mappings.ModuleSales, saved.Module)
	require.False(t, saved.Default)
	id, err = r.Resolve(ctx, ledgertest.OrgID, mappings.ModuleSales, mappings.KeySaleCash)
	require.NoError(t, err)
	require.Equal(t, l.Account(t, accounts.CodeBank).ID, id)

	// overrides stay within their organisation
	mapping, err = r.Get(ctx, 2, mappings.ModuleSales, mappings.KeySaleCash)
	require.NoError(t, err)
	require.Equal(t, accounts.CodeCash, mapping.AccountCode)
}

func TestOverridesSharedThroughStore(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	writer := mappings.NewResolver(l.Store, l.Accounts)
	_, err := writer.Override(ctx, ledgertest.OrgID, mappings.ModuleExpense, mappings.KeyExpenseExpense, accounts.CodeCOGS, l.Actor)
	require.NoError(t, err)

	reader := mappings.NewResolver(l.Store, l.Accounts)
	mapping, err := reader.Get(ctx, ledgertest.OrgID, mappings.ModuleExpense, mappings.KeyExpenseExpense)
	require.NoError(t, err)
	require.False(t, mapping.Default)
	require.Equal(t, accounts.CodeCOGS, mapping.AccountCode)

	id, err := reader.Resolve(ctx, ledgertest.OrgID, mappings.ModuleExpense, mappings.KeyExpenseExpense)
	require.NoError(t, err)
	require.Equal(t, l.Account(t, accounts.CodeCOGS).ID, id)

	_, err = reader.Override(ctx, ledgertest.OrgID, mappings.ModuleExpense, mappings.KeyExpenseExpense, accounts.CodeOperatingExpense, l.Actor)
	require.NoError(t, err)
	mapping, err = writer.Get(ctx, ledgertest.OrgID, mappings.ModuleExpense, mappings.KeyExpenseExpense)
	require.NoError(t, err)
	require.Equal(t, accounts.CodeOperatingExpense, mapping.AccountCode)

	err = l.Store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		stored, err := rd.GetMapping(ctx, ledgertest.OrgID, mappings.ModuleExpense, mappings.KeyExpenseExpense)
		require.NoError(t, err)
		require.Equal(t, l.Actor.ID, stored.UpdatedBy)
		return nil
	})
	require.NoError(t, err)
}

func TestResolverErrors(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()
	r := mappings.NewResolver(l.Store, l.Accounts)

	_, err := r.Get(ctx, ledgertest.OrgID, mappings.ModuleSales, "sale.unknown")
	require.ErrorIs(t, err, accounting.ErrMappingNotFound)

	_, err = r.Get(ctx, ledgertest.OrgID, "", mappings.KeySaleCash)
	require.ErrorIs(t, err, accounting.ErrValidation)

	_, err = r.Override(ctx, ledgertest.OrgID, mappings.ModuleSales, "sale.unknown", "1111", l.Actor)
	require.ErrorIs(t, err, accounting.ErrMappingNotFound)
	_, err = r.Override(ctx, ledgertest.OrgID, mappings.ModuleSales, mappings.KeySaleCash, " ", l.Actor)
	require.ErrorIs(t, err, accounting.ErrValidation)

	_, err = r.Override(ctx, ledgertest.OrgID, mappings.ModuleSales, mappings.KeySaleCash, "9999", l.Actor)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, ledgertest.OrgID, mappings.ModuleSales, mappings.KeySaleCash)
	require.ErrorIs(t, err, accounting.ErrAccountNotFound)
}
