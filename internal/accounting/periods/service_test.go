package periods_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	_ "github.com/odyssey-erp/ledger/testing"
)

func TestCreateRejectsOverlap(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	_, err := l.Periods.Create(ctx, periods.CreateInput{
		OrgID: ledgertest.OrgID, Name: "H2", StartDate: ledgertest.Date(2025, 7, 1), EndDate: ledgertest.Date(2026, 6, 30), Actor: l.Actor,
	})
	var overlap *accounting.OverlappingPeriodError
	require.ErrorAs(t, err, &overlap)
	require.Equal(t, l.Period.ID, overlap.ExistingID)

	// touching ranges are allowed
	next, err := l.Periods.Create(ctx, periods.CreateInput{
		OrgID: ledgertest.OrgID, Name: "FY2026", StartDate: ledgertest.Date(2026, 1, 1), EndDate: ledgertest.Date(2026, 12, 31), Actor: l.Actor,
	})
	require.NoError(t, err)
	require.Equal(t, accounting.PeriodStatusOpen, next.Status)

	// other organisations are independent
	_, err = l.Periods.Create(ctx, periods.CreateInput{
		OrgID: 2, Name: "FY2025", StartDate: ledgertest.Date(2025, 1, 1), EndDate: ledgertest.Date(2025, 12, 31), Actor: l.Actor,
	})
	require.NoError(t, err)
}

func TestCreateValidatesRange(t *testing.T) {
	l := ledgertest.New(t)
	_, err := l.Periods.Create(context.Background(), periods.CreateInput{
		OrgID: ledgertest.OrgID, Name: "bad", StartDate: ledgertest.Date(2027, 2, 1), EndDate: ledgertest.Date(2027, 1, 1), Actor: l.Actor,
	})
	require.ErrorIs(t, err, accounting.ErrInvalidPeriodRange)
}

func TestOpenPeriodForAndClose(t *testing.T) {
	l := ledgertest.New(t)
	ctx := context.Background()

	found, err := l.Periods.OpenPeriodFor(ctx, ledgertest.OrgID, ledgertest.Date(2025, 12, 31))
	require.NoError(t, err)
	require.Equal(t, l.Period.ID, found.ID)

	_, err = l.Periods.OpenPeriodFor(ctx, ledgertest.OrgID, ledgertest.Date(2024, 12, 31))
	var none *accounting.NoOpenPeriodError
	require.ErrorAs(t, err, &none)

	closed, err := l.Periods.Close(ctx, l.Period.ID, l.Actor)
	require.NoError(t, err)
	require.Equal(t, accounting.PeriodStatusClosed, closed.Status)
	require.Equal(t, l.Actor.ID, closed.ClosedBy)
	require.NotNil(t, closed.ClosedAt)

	_, err = l.Periods.Close(ctx, l.Period.ID, l.Actor)
	var already *accounting.PeriodAlreadyClosedError
	require.ErrorAs(t, err, &already)

	_, err = l.Periods.OpenPeriodFor(ctx, ledgertest.OrgID, ledgertest.Date(2025, 6, 1))
	require.ErrorIs(t, err, accounting.ErrNoOpenPeriod)

	list, err := l.Periods.List(ctx, ledgertest.OrgID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []string{"period.create", "period.close"}, periodActions(l))
}

func periodActions(l *ledgertest.Ledger) []string {
	var out []string
	for _, log := range l.Audit.Logs() {
		if log.Entity == "fiscal_period" {
			out = append(out, log.Action)
		}
	}
	return out
}
