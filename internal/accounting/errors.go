package accounting

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrUnknownAccount indicates a line references a missing or inactive account.
	ErrUnknownAccount = errors.New("accounting: unknown account")
	// ErrHeaderPosting indicates a line targets a header account.
	ErrHeaderPosting = errors.New("accounting: header accounts cannot be posted to")
	// ErrNoOpenPeriod indicates no open period covers the entry date.
	ErrNoOpenPeriod = errors.New("accounting: no open fiscal period for date")
	// ErrPeriodOverlap indicates the requested period conflicts with an existing range.
	ErrPeriodOverlap = errors.New("accounting: period overlaps existing range")
	// ErrPeriodClosed indicates the entry's period no longer accepts postings.
	ErrPeriodClosed = errors.New("accounting: period is closed")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrDuplicateCode indicates the account code is taken.
	ErrDuplicateCode = errors.New("accounting: account code already exists")
	// ErrInvalidParent indicates a missing parent or a parent cycle.
	ErrInvalidParent = errors.New("accounting: invalid parent account")
	// ErrHasChildren indicates the account still has children.
	ErrHasChildren = errors.New("accounting: account has child accounts")
	// ErrHasPostedActivity indicates posted lines reference the account.
	ErrHasPostedActivity = errors.New("accounting: account has posted activity")
	// ErrAccountInUse indicates unposted entries still reference the account.
	ErrAccountInUse = errors.New("accounting: account referenced by unposted entries")
	// ErrPeriodAlreadyClosed indicates the period was closed before.
	ErrPeriodAlreadyClosed = errors.New("accounting: period already closed")

	// ErrInvalidLine indicates a malformed journal line.
	ErrInvalidLine = errors.New("accounting: invalid journal line")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrPeriodNotFound indicates missing period.
	ErrPeriodNotFound = errors.New("accounting: period not found")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrInvalidPeriodRange indicates start date after end date.
	ErrInvalidPeriodRange = errors.New("accounting: period start must not be after end")
	// ErrValidation wraps malformed command input.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrRetainedEarningsMisconfigured indicates the closing target is missing
	// or not a postable equity account.
	ErrRetainedEarningsMisconfigured = errors.New("accounting: retained earnings account misconfigured")
	// ErrClosingInProgress indicates another close holds the period lock.
	ErrClosingInProgress = errors.New("accounting: period close already in progress")
	// ErrMappingNotFound indicates no account is mapped to an integration key.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
)

// UnbalancedEntryError carries the offending totals.
type UnbalancedEntryError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("accounting: journal lines must balance (debit %s, credit %s)", e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalanced }

// UnknownAccountError identifies the line account that failed to resolve.
type UnknownAccountError struct {
	AccountID int64
	Line      int
	Inactive  bool
}

func (e *UnknownAccountError) Error() string {
	if e.Inactive {
		return fmt.Sprintf("accounting: line %d account %d is inactive", e.Line, e.AccountID)
	}
	return fmt.Sprintf("accounting: line %d references unknown account %d", e.Line, e.AccountID)
}

func (e *UnknownAccountError) Unwrap() error { return ErrUnknownAccount }

// HeaderPostingError identifies the header account targeted by a line.
type HeaderPostingError struct {
	AccountID int64
	Code      string
	Line      int
}

func (e *HeaderPostingError) Error() string {
	return fmt.Sprintf("accounting: line %d targets header account %s", e.Line, e.Code)
}

func (e *HeaderPostingError) Unwrap() error { return ErrHeaderPosting }

// NoOpenPeriodError reports the date no open period covers.
type NoOpenPeriodError struct {
	OrgID int64
	Date  time.Time
}

func (e *NoOpenPeriodError) Error() string {
	return fmt.Sprintf("accounting: no open fiscal period for %s", e.Date.Format(time.DateOnly))
}

func (e *NoOpenPeriodError) Unwrap() error { return ErrNoOpenPeriod }

// OverlappingPeriodError reports the existing period that conflicts.
type OverlappingPeriodError struct {
	ExistingID   int64
	ExistingName string
}

func (e *OverlappingPeriodError) Error() string {
	return fmt.Sprintf("accounting: period overlaps existing period %q", e.ExistingName)
}

func (e *OverlappingPeriodError) Unwrap() error { return ErrPeriodOverlap }

// PeriodClosedError reports the period that rejected a posting.
type PeriodClosedError struct {
	PeriodID int64
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("accounting: period %d is closed", e.PeriodID)
}

func (e *PeriodClosedError) Unwrap() error { return ErrPeriodClosed }

// InvalidStatusTransitionError reports a rejected state change.
type InvalidStatusTransitionError struct {
	EntryID int64
	From    JournalStatus
	To      JournalStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("accounting: entry %d cannot move from %s to %s", e.EntryID, e.From, e.To)
}

func (e *InvalidStatusTransitionError) Unwrap() error { return ErrInvalidStatus }

// DuplicateCodeError reports the taken account code.
type DuplicateCodeError struct {
	Code string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("accounting: account code %s already exists", e.Code)
}

func (e *DuplicateCodeError) Unwrap() error { return ErrDuplicateCode }

// InvalidParentError reports an unresolvable or cyclic parent.
type InvalidParentError struct {
	Code       string
	ParentCode string
	Cycle      bool
}

func (e *InvalidParentError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("accounting: parent %s of account %s would create a cycle", e.ParentCode, e.Code)
	}
	return fmt.Sprintf("accounting: parent %s of account %s not found", e.ParentCode, e.Code)
}

func (e *InvalidParentError) Unwrap() error { return ErrInvalidParent }

// HasChildrenError reports an account with dependants.
type HasChildrenError struct {
	AccountID int64
	Code      string
}

func (e *HasChildrenError) Error() string {
	return fmt.Sprintf("accounting: account %s has child accounts", e.Code)
}

func (e *HasChildrenError) Unwrap() error { return ErrHasChildren }

// HasPostedActivityError reports an account referenced by posted lines.
type HasPostedActivityError struct {
	AccountID int64
	Code      string
}

func (e *HasPostedActivityError) Error() string {
	return fmt.Sprintf("accounting: account %s has posted activity", e.Code)
}

func (e *HasPostedActivityError) Unwrap() error { return ErrHasPostedActivity }

// AccountInUseError reports an account referenced by draft or approved lines.
type AccountInUseError struct {
	AccountID int64
	Code      string
}

func (e *AccountInUseError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("accounting: account %d is referenced by journal lines", e.AccountID)
	}
	return fmt.Sprintf("accounting: account %s is referenced by unposted entries", e.Code)
}

func (e *AccountInUseError) Unwrap() error { return ErrAccountInUse }

// PeriodAlreadyClosedError reports a repeated close.
type PeriodAlreadyClosedError struct {
	PeriodID int64
}

func (e *PeriodAlreadyClosedError) Error() string {
	return fmt.Sprintf("accounting: period %d already closed", e.PeriodID)
}

func (e *PeriodAlreadyClosedError) Unwrap() error { return ErrPeriodAlreadyClosed }

// InvalidLineError reports a malformed line.
type InvalidLineError struct {
	Line   int
	Reason string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("accounting: line %d %s", e.Line, e.Reason)
}

func (e *InvalidLineError) Unwrap() error { return ErrInvalidLine }

// Error kinds exposed to transports.
const (
	KindUnbalancedEntry         = "unbalanced_entry"
	KindUnknownAccount          = "unknown_account"
	KindHeaderPosting           = "header_posting"
	KindNoOpenPeriod            = "no_open_period"
	KindOverlappingPeriod       = "overlapping_period"
	KindPeriodClosed            = "period_closed"
	KindInvalidStatusTransition = "invalid_status_transition"
	KindDuplicateCode           = "duplicate_code"
	KindInvalidParent           = "invalid_parent"
	KindHasChildren             = "has_children"
	KindHasPostedActivity       = "has_posted_activity"
	KindAccountInUse            = "account_in_use"
	KindPeriodAlreadyClosed     = "period_already_closed"
	KindInvalidLine             = "invalid_line"
	KindRetainedEarnings        = "retained_earnings_misconfigured"
	KindClosingInProgress       = "closing_in_progress"
	KindNotFound                = "not_found"
	KindConflict                = "conflict"
	KindValidation              = "validation"
)

var kinds = []struct {
	target error
	kind   string
}{
	{ErrUnbalanced, KindUnbalancedEntry},
	{ErrUnknownAccount, KindUnknownAccount},
	{ErrHeaderPosting, KindHeaderPosting},
	{ErrNoOpenPeriod, KindNoOpenPeriod},
	{ErrPeriodOverlap, KindOverlappingPeriod},
	{ErrPeriodClosed, KindPeriodClosed},
	{ErrInvalidStatus, KindInvalidStatusTransition},
	{ErrDuplicateCode, KindDuplicateCode},
	{ErrInvalidParent, KindInvalidParent},
	{ErrHasChildren, KindHasChildren},
	{ErrHasPostedActivity, KindHasPostedActivity},
	{ErrAccountInUse, KindAccountInUse},
	{ErrPeriodAlreadyClosed, KindPeriodAlreadyClosed},
	{ErrInvalidLine, KindInvalidLine},
	{ErrTooFewLines, KindInvalidLine},
	{ErrAccountNotFound, KindNotFound},
	{ErrPeriodNotFound, KindNotFound},
	{ErrJournalNotFound, KindNotFound},
	{ErrMappingNotFound, KindNotFound},
	{ErrSourceAlreadyLinked, KindConflict},
	{ErrRetainedEarningsMisconfigured, KindRetainedEarnings},
	{ErrClosingInProgress, KindClosingInProgress},
	{ErrInvalidPeriodRange, KindValidation},
	{ErrValidation, KindValidation},
}

// KindOf returns a stable identifier for a ledger error, or "" when err is
// not a ledger error.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return ""
}
