package accounts_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/ledgertest"
	_ "github.com/odyssey-erp/ledger/testing"
)

func TestSeedDefaultChartIsIdempotent(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	created, err := l.Accounts.SeedDefaultChart(ctx, ledgertest.OrgID, l.Actor)
	require.NoError(t, err)
	require.Empty(t, created)

	all, err := l.Accounts.List(ctx, ledgertest.OrgID)
	require.NoError(t, err)
	require.Len(t, all, len(accounts.DefaultChart))

	cash := l.Account(t, accounts.CodeCash)
	require.Equal(t, 1, cash.Level)
	require.Equal(t, accounts.CodeAssets, cash.ParentCode)
	require.True(t, cash.Postable())

	retained := l.Account(t, accounts.CodeRetainedEarnings)
	require.False(t, retained.AllowManualEntry)

	postable, err := l.Accounts.ListPostable(ctx, ledgertest.OrgID)
	require.NoError(t, err)
	for _, acc := range postable {
		require.False(t, acc.IsHeader)
		require.NotEqual(t, accounts.CodeRetainedEarnings, acc.Code)
	}
}

func TestCreateRejectsDuplicateAndMissingParent(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	_, err := l.Accounts.Create(ctx, accounts.CreateInput{
		OrgID: ledgertest.OrgID, Code: accounts.CodeCash, Name: "Cash again", Type: accounting.AccountTypeAsset, Actor: l.Actor,
	})
	var dup *accounting.DuplicateCodeError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, accounts.CodeCash, dup.Code)

	_, err = l.Accounts.Create(ctx, accounts.CreateInput{
		OrgID: ledgertest.OrgID, Code: "1190", Name: "Orphan", Type: accounting.AccountTypeAsset, ParentCode: "1999", Actor: l.Actor,
	})
	var parent *accounting.InvalidParentError
	require.ErrorAs(t, err, &parent)
	require.False(t, parent.Cycle)

	_, err = l.Accounts.Create(ctx, accounts.CreateInput{
		OrgID: ledgertest.OrgID, Code: "1190", Name: "Self", Type: accounting.AccountTypeAsset, ParentCode: "1190", Actor: l.Actor,
	})
	require.ErrorIs(t, err, accounting.ErrInvalidParent)

	_, err = l.Accounts.Create(ctx, accounts.CreateInput{
		OrgID: ledgertest.OrgID, Code: "1190", Name: "Bad type", Type: "CASHFLOW", Actor: l.Actor,
	})
	require.ErrorIs(t, err, accounting.ErrValidation)

	// the same code is free in another organisation
	_, err = l.Accounts.Create(ctx, accounts.CreateInput{
		OrgID: 2, Code: accounts.CodeCash, Name: "Cash", Type: accounting.AccountTypeAsset, Actor: l.Actor,
	})
	require.NoError(t, err)
}

func TestMoveRelevelsSubtreeAndRejectsCycles(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	current, err := l.Accounts.Create(ctx, accounts.CreateInput{
		OrgID: ledgertest.OrgID, Code: "1100", Name: "Current Assets", Type: accounting.AccountTypeAsset, ParentCode: accounts.CodeAssets, IsHeader: true, Actor: l.Actor,
	})
	require.NoError(t, err)
	require.Equal(t, 1, current.Level)

	petty, err := l.Accounts.Create(ctx, accounts.CreateInput{
		OrgID: ledgertest.OrgID, Code: "1101", Name: "Petty Cash", Type: accounting.AccountTypeAsset, ParentCode: "1100", Actor: l.Actor,
	})
	require.NoError(t, err)
	require.Equal(t, 2, petty.Level)

	_, err = l.Accounts.Move(ctx, current.ID, "1101", l.Actor)
	var cycle *accounting.InvalidParentError
	require.ErrorAs(t, err, &cycle)
	require.True(t, cycle.Cycle)

	moved, err := l.Accounts.Move(ctx, current.ID, "", l.Actor)
	require.NoError(t, err)
	require.Equal(t, 0, moved.Level)
	require.Equal(t, 1, l.Account(t, "1101").Level)
}

func TestDeleteGuards(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	err := l.Accounts.Delete(ctx, l.Account(t, accounts.CodeAssets).ID, l.Actor)
	var children *accounting.HasChildrenError
	require.ErrorAs(t, err, &children)

	l.Post(t, ledgertest.Date(2025, 1, 10), l.Line(t, accounts.CodeCash, "5"), l.Line(t, accounts.CodeCapital, "-5"))
	err = l.Accounts.Delete(ctx, l.Account(t, accounts.CodeCash).ID, l.Actor)
	var activity *accounting.HasPostedActivityError
	require.ErrorAs(t, err, &activity)

	bank := l.Account(t, accounts.CodeBank)
	require.NoError(t, l.Accounts.Delete(ctx, bank.ID, l.Actor))
	_, err = l.Accounts.Get(ctx, bank.ID)
	require.ErrorIs(t, err, accounting.ErrAccountNotFound)
	require.Contains(t, l.Audit.Actions(), "account.delete")
}

func TestDeleteRefusesAccountOnUnpostedEntries(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	freight, err := l.Accounts.Create(ctx, accounts.CreateInput{
		OrgID: ledgertest.OrgID, Code: "5300", Name: "Freight", Type: accounting.AccountTypeExpense,
		ParentCode: accounts.CodeExpenses, Actor: l.Actor,
	})
	require.NoError(t, err)
	draft, err := l.Journals.CreateEntry(ctx, l.Input(ledgertest.Date(2025, 5, 2),
		l.Line(t, "5300", "12"), l.Line(t, accounts.CodeCash, "-12")))
	require.NoError(t, err)

	err = l.Accounts.Delete(ctx, freight.ID, l.Actor)
	var inUse *accounting.AccountInUseError
	require.ErrorAs(t, err, &inUse)
	require.Equal(t, "5300", inUse.Code)
	require.Equal(t, accounting.KindAccountInUse, accounting.KindOf(err))

	posted, err := l.Journals.Post(ctx, ledgertest.OrgID, draft.ID, l.Actor)
	require.NoError(t, err)
	require.Equal(t, accounting.JournalStatusPosted, posted.Status)
	require.True(t, l.Balance(t, "5300").Equal(ledgertest.D("12")))
}

func TestRenameAndDeactivate(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()
	bank := l.Account(t, accounts.CodeBank)

	renamed, err := l.Accounts.Rename(ctx, bank.ID, "Main Bank", l.Actor)
	require.NoError(t, err)
	require.Equal(t, "Main Bank", renamed.Name)

	_, err = l.Accounts.Rename(ctx, bank.ID, "  ", l.Actor)
	require.ErrorIs(t, err, accounting.ErrValidation)

	inactive, err := l.Accounts.Deactivate(ctx, bank.ID, l.Actor)
	require.NoError(t, err)
	require.False(t, inactive.Postable())

	_, err = l.Journals.PostJournal(ctx, l.Input(ledgertest.Date(2025, 2, 1), l.Line(t, accounts.CodeBank, "5"), l.Line(t, accounts.CodeCapital, "-5")))
	var unknown *accounting.UnknownAccountError
	require.ErrorAs(t, err, &unknown)
	require.True(t, unknown.Inactive)

	assets, err := l.Accounts.ListByType(ctx, ledgertest.OrgID, accounting.AccountTypeAsset)
	require.NoError(t, err)
	for _, acc := range assets {
		require.Equal(t, accounting.AccountTypeAsset, acc.Type)
	}
}

type eventLog struct {
	events []string
}

func (e *eventLog) LedgerChanged(_ context.Context, orgID int64, event string) {
	e.events = append(e.events, fmt.Sprintf("%d:%s", orgID, event))
}

func TestAccountChangesNotifyObserver(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()
	log := &eventLog{}
	l.Accounts.WithObserver(log)

	acc, err := l.Accounts.Create(ctx, accounts.CreateInput{
		OrgID: ledgertest.OrgID, Code: "1140", Name: "Prepaid", Type: accounting.AccountTypeAsset,
		ParentCode: accounts.CodeAssets, Actor: l.Actor,
	})
	require.NoError(t, err)
	require.Empty(t, log.events)

	_, err = l.Accounts.Rename(ctx, acc.ID, "Prepaid Expenses", l.Actor)
	require.NoError(t, err)
	_, err = l.Accounts.Move(ctx, acc.ID, "", l.Actor)
	require.NoError(t, err)
	_, err = l.Accounts.Deactivate(ctx, acc.ID, l.Actor)
	require.NoError(t, err)
	require.NoError(t, l.Accounts.Delete(ctx, acc.ID, l.Actor))

	want := fmt.Sprintf("%d:%s", ledgertest.OrgID, accounting.EventAccountChanged)
	require.Equal(t, []string{want, want, want, want}, log.events)

	_, err = l.Accounts.Rename(ctx, acc.ID, "gone", l.Actor)
	require.ErrorIs(t, err, accounting.ErrAccountNotFound)
	require.Len(t, log.events, 4)
}
