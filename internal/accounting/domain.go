package accounting

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	default:
		return false
	}
}

// DebitNormal reports whether the account type carries a debit balance in
// normal operation.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Temporary reports whether balances of this type are closed into equity at
// fiscal year end.
func (t AccountType) Temporary() bool {
	return t == AccountTypeRevenue || t == AccountTypeExpense
}

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

// Account models a chart of accounts node.
type Account struct {
	ID               int64           `json:"id"`
	OrgID            int64           `json:"org_id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Type             AccountType     `json:"type"`
	ParentCode       string          `json:"parent_code,omitempty"`
	Level            int             `json:"level"`
	IsHeader         bool            `json:"is_header"`
	AllowManualEntry bool            `json:"allow_manual_entry"`
	IsActive         bool            `json:"is_active"`
	CachedBalance    decimal.Decimal `json:"cached_balance"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Postable reports whether journal lines may reference the account.
func (a Account) Postable() bool {
	return !a.IsHeader && a.IsActive
}

// FiscalPeriod represents a fiscal period window. Start and end dates are
// inclusive calendar days.
type FiscalPeriod struct {
	ID        int64        `json:"id"`
	OrgID     int64        `json:"org_id"`
	Name      string       `json:"name"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Status    PeriodStatus `json:"status"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
	ClosedBy  int64        `json:"closed_by,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Contains reports whether date falls within the period.
func (p FiscalPeriod) Contains(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(p.StartDate)) && !d.After(DateOnly(p.EndDate))
}

// Overlaps reports whether [start, end] intersects the period.
func (p FiscalPeriod) Overlaps(start, end time.Time) bool {
	return !DateOnly(start).After(DateOnly(p.EndDate)) && !DateOnly(end).Before(DateOnly(p.StartDate))
}

// FiscalYear is the year label used for entry numbering.
func (p FiscalPeriod) FiscalYear() int {
	return p.StartDate.Year()
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID             int64         `json:"id"`
	OrgID          int64         `json:"org_id"`
	EntryNumber    string        `json:"entry_number"`
	EntryDate      time.Time     `json:"entry_date"`
	FiscalPeriodID int64         `json:"fiscal_period_id"`
	Status         JournalStatus `json:"status"`
	Memo           string        `json:"memo,omitempty"`
	SourceModule   string        `json:"source_module,omitempty"`
	SourceRef      string        `json:"source_ref,omitempty"`
	IsSystem       bool          `json:"is_system"`
	CreatedBy      int64         `json:"created_by"`
	ApprovedBy     int64         `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time    `json:"approved_at,omitempty"`
	PostedBy       int64         `json:"posted_by,omitempty"`
	PostedAt       *time.Time    `json:"posted_at,omitempty"`
	VoidedBy       int64         `json:"voided_by,omitempty"`
	VoidedAt       *time.Time    `json:"voided_at,omitempty"`
	VoidReason     string        `json:"void_reason,omitempty"`
	ReversalOfID   int64         `json:"reversal_of_id,omitempty"`
	ReversedByID   int64         `json:"reversed_by_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Lines          []JournalLine `json:"lines,omitempty"`
}

// Totals returns the debit and credit sums of the entry lines.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	return SumLines(e.Lines)
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID             int64           `json:"id"`
	JournalEntryID int64           `json:"journal_entry_id"`
	AccountID      int64           `json:"account_id"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	LineOrder      int             `json:"line_order"`
	Memo           string          `json:"memo,omitempty"`
}

// Net returns debit minus credit for the line.
func (l JournalLine) Net() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// AccountMapping is an organisation override routing an integration key to
// an account code.
type AccountMapping struct {
	OrgID       int64     `json:"org_id"`
	Module      string    `json:"module"`
	Key         string    `json:"key"`
	AccountCode string    `json:"account_code"`
	UpdatedBy   int64     `json:"updated_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccountTotals aggregates posted debits and credits for one account.
type AccountTotals struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Balance returns debit minus credit.
func (t AccountTotals) Balance() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

// BalanceFilter narrows posted line aggregation. Zero dates are unbounded.
type BalanceFilter struct {
	OrgID     int64
	AccountID int64
	From      time.Time
	To        time.Time
	// ExcludeSystem skips year-end closing entries so income statements of a
	// closed period still show its activity.
	ExcludeSystem bool
}

// AccountFilter narrows account listings.
type AccountFilter struct {
	OrgID        int64
	Type         AccountType
	PostableOnly bool
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	OrgID    int64
	PeriodID int64
	Status   JournalStatus
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// DateOnly truncates t to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
