package accounting

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func line(account int64, debit, credit string) JournalLine {
	return JournalLine{AccountID: account, Debit: decimal.RequireFromString(debit), Credit: decimal.RequireFromString(credit)}
}

func TestValidateLines(t *testing.T) {
	cases := []struct {
		name  string
		lines []JournalLine
		want  error
	}{
		{"balanced", []JournalLine{line(1, "100", "0"), line(2, "0", "100")}, nil},
		{"within tolerance", []JournalLine{line(1, "100.0005", "0"), line(2, "0", "100")}, nil},
		{"at tolerance", []JournalLine{line(1, "100.001", "0"), line(2, "0", "100")}, ErrUnbalanced},
		{"unbalanced", []JournalLine{line(1, "500", "0"), line(2, "0", "400")}, ErrUnbalanced},
		{"single line", []JournalLine{line(1, "100", "0")}, ErrTooFewLines},
		{"both sides", []JournalLine{line(1, "100", "100"), line(2, "0", "0")}, ErrInvalidLine},
		{"negative", []JournalLine{line(1, "-100", "0"), line(2, "0", "-100")}, ErrInvalidLine},
		{"missing account", []JournalLine{line(0, "100", "0"), line(2, "0", "100")}, ErrInvalidLine},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateLines(tc.lines)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUnbalancedEntryErrorCarriesTotals(t *testing.T) {
	err := ValidateLines([]JournalLine{line(1, "500", "0"), line(2, "0", "400")})
	var unbalanced *UnbalancedEntryError
	require.ErrorAs(t, err, &unbalanced)
	require.True(t, unbalanced.Debit.Equal(decimal.NewFromInt(500)))
	require.True(t, unbalanced.Credit.Equal(decimal.NewFromInt(400)))
	require.Equal(t, KindUnbalancedEntry, KindOf(err))
}

func TestReverseLinesSwapsSides(t *testing.T) {
	reversed := ReverseLines([]JournalLine{line(1, "70", "0"), line(2, "0", "70")})
	require.True(t, reversed[0].Credit.Equal(decimal.NewFromInt(70)))
	require.True(t, reversed[1].Debit.Equal(decimal.NewFromInt(70)))
	require.Equal(t, 2, reversed[1].LineOrder)
	require.NoError(t, ValidateLines(reversed))
}

func TestTransitionTable(t *testing.T) {
	statuses := []JournalStatus{JournalStatusDraft, JournalStatusApproved, JournalStatusPosted, JournalStatusVoid}
	allowed := map[[2]JournalStatus]bool{
		{JournalStatusDraft, JournalStatusApproved}:  true,
		{JournalStatusDraft, JournalStatusPosted}:    true,
		{JournalStatusApproved, JournalStatusPosted}: true,
		{JournalStatusPosted, JournalStatusVoid}:     true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]JournalStatus{from, to}]
			require.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
			err := CheckTransition(9, from, to)
			if want {
				require.NoError(t, err)
				continue
			}
			var invalid *InvalidStatusTransitionError
			require.ErrorAs(t, err, &invalid)
			require.Equal(t, from, invalid.From)
			require.Equal(t, to, invalid.To)
		}
	}
	require.True(t, JournalStatusVoid.Posted())
	require.False(t, JournalStatusApproved.Posted())
	require.True(t, JournalStatusApproved.Editable())
	require.False(t, JournalStatusPosted.Editable())
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindPeriodClosed, KindOf(fmt.Errorf("post: %w", &PeriodClosedError{PeriodID: 3})))
	require.Equal(t, KindNotFound, KindOf(ErrJournalNotFound))
	require.Equal(t, KindConflict, KindOf(ErrSourceAlreadyLinked))
	require.Equal(t, KindOverlappingPeriod, KindOf(&OverlappingPeriodError{}))
	require.Equal(t, KindAccountInUse, KindOf(&AccountInUseError{AccountID: 3}))
	require.Equal(t, "", KindOf(fmt.Errorf("boom")))
}

func TestAccountTypeNormalSide(t *testing.T) {
	require.True(t, AccountTypeAsset.DebitNormal())
	require.True(t, AccountTypeExpense.DebitNormal())
	require.False(t, AccountTypeRevenue.DebitNormal())
	require.True(t, AccountTypeRevenue.Temporary())
	require.False(t, AccountTypeEquity.Temporary())
	require.False(t, AccountType("CASH").Valid())
}
