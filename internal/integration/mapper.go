package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
)

// sourceNamespace scopes deterministic source refs of integration postings.
var sourceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:odyssey:ledger:integration"))

// sourceRef derives a stable reference from a document kind and id so a
// replayed event maps onto the entry it produced the first time.
func sourceRef(kind string, id int64) string {
	return uuid.NewSHA1(sourceNamespace, []byte(fmt.Sprintf("%s:%d", kind, id))).String()
}

func round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

type lineBuilder struct {
	lines []journals.LineInput
}

func (b *lineBuilder) debit(accountID int64, amount decimal.Decimal, memo string) {
	if amount.IsZero() {
		return
	}
	b.lines = append(b.lines, journals.LineInput{AccountID: accountID, Debit: amount, Memo: memo})
}

func (b *lineBuilder) credit(accountID int64, amount decimal.Decimal, memo string) {
	if amount.IsZero() {
		return
	}
	b.lines = append(b.lines, journals.LineInput{AccountID: accountID, Credit: amount, Memo: memo})
}

func requireDate(kind string, date time.Time) error {
	if date.IsZero() {
		return fmt.Errorf("%w: %s date required", accounting.ErrValidation, kind)
	}
	return nil
}
