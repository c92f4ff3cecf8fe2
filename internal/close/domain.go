package close

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// SourceModule tags closing entries. The source ref is the closed period id,
// which keeps a period from being closed into equity twice.
const SourceModule = "close.fiscal_year"

// CloseInput selects the period to close. A zero PeriodID closes the
// organisation's oldest open period.
type CloseInput struct {
	OrgID    int64
	PeriodID int64
	Actor    shared.Actor
}

// Validate ensures the close input is coherent.
func (in CloseInput) Validate() error {
	if in.OrgID == 0 {
		return fmt.Errorf("%w: org id required", accounting.ErrValidation)
	}
	if !in.Actor.Valid() {
		return fmt.Errorf("%w: actor required", accounting.ErrValidation)
	}
	return nil
}

// CloseResult describes a completed fiscal year close. Entry is nil when the
// period had no revenue or expense activity.
type CloseResult struct {
	Period         accounting.FiscalPeriod  `json:"period"`
	Entry          *accounting.JournalEntry `json:"entry,omitempty"`
	NetIncome      decimal.Decimal          `json:"net_income"`
	ClosedAccounts int                      `json:"closed_accounts"`
}
