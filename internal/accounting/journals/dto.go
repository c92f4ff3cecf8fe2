package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// LineInput describes a journal line.
type LineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// EntryInput groups fields required to create or edit a journal entry.
type EntryInput struct {
	OrgID        int64
	EntryDate    time.Time
	Memo         string
	SourceModule string
	SourceRef    string
	Lines        []LineInput
	Actor        shared.Actor
}

// Validate checks header fields. Lines are validated against the store.
func (in EntryInput) Validate() error {
	if in.OrgID == 0 {
		return fmt.Errorf("%w: org id required", accounting.ErrValidation)
	}
	if in.EntryDate.IsZero() {
		return fmt.Errorf("%w: entry date required", accounting.ErrValidation)
	}
	if !in.Actor.Valid() {
		return fmt.Errorf("%w: actor required", accounting.ErrValidation)
	}
	if (in.SourceModule == "") != (in.SourceRef == "") {
		return fmt.Errorf("%w: source module and source ref go together", accounting.ErrValidation)
	}
	return nil
}

func (in EntryInput) journalLines() []accounting.JournalLine {
	out := make([]accounting.JournalLine, 0, len(in.Lines))
	for idx, l := range in.Lines {
		out = append(out, accounting.JournalLine{
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			LineOrder: idx + 1,
			Memo:      strings.TrimSpace(l.Memo),
		})
	}
	return out
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	OrgID   int64
	EntryID int64
	Actor   shared.Actor
	Reason  string
}

// VoidResult pairs the voided original with its reversal.
type VoidResult struct {
	Original accounting.JournalEntry
	Reversal accounting.JournalEntry
}

// FormatEntryNumber renders JE-<year>-<seq>.
func FormatEntryNumber(year int, seq int64) string {
	return fmt.Sprintf("JE-%d-%06d", year, seq)
}

func defaultReversalMemo(reason, number string) string {
	if reason != "" {
		return fmt.Sprintf("Reversal of %s: %s", number, reason)
	}
	return "Reversal of " + number
}
