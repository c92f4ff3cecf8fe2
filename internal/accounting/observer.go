package accounting

import "context"

// Ledger change events.
const (
	EventEntryPosted  = "entry.posted"
	EventEntryVoided  = "entry.voided"
	EventPeriodClosed = "period.closed"

	// EventAccountChanged covers renames, moves, deactivations and deletes.
	EventAccountChanged = "account.changed"
)

// Observer is told about ledger changes after they commit.
type Observer interface {
	LedgerChanged(ctx context.Context, orgID int64, event string)
}

// Observers fans a change out to several observers.
type Observers []Observer

// LedgerChanged notifies every non-nil observer.
func (o Observers) LedgerChanged(ctx context.Context, orgID int64, event string) {
	for _, obs := range o {
		if obs != nil {
			obs.LedgerChanged(ctx, orgID, event)
		}
	}
}
