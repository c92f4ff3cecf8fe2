package accounting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store abstracts transactional ledger persistence. WithTx runs fn in a
// read-write transaction that commits when fn returns nil. View runs fn
// against a consistent read-only snapshot of committed data.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	View(ctx context.Context, fn func(context.Context, Reader) error) error
}

// Reader exposes the read side shared by snapshots and transactions.
type Reader interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	GetAccountByCode(ctx context.Context, orgID int64, code string) (Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)
	HasChildAccounts(ctx context.Context, orgID int64, code string) (bool, error)
	HasPostedLines(ctx context.Context, accountID int64) (bool, error)
	// HasPendingLines reports lines of draft or approved entries.
	HasPendingLines(ctx context.Context, accountID int64) (bool, error)

	GetPeriod(ctx context.Context, id int64) (FiscalPeriod, error)
	ListPeriods(ctx context.Context, orgID int64) ([]FiscalPeriod, error)
	FindOpenPeriod(ctx context.Context, orgID int64, date time.Time) (FiscalPeriod, error)
	FindOverlappingPeriod(ctx context.Context, orgID int64, start, end time.Time) (FiscalPeriod, error)

	GetEntry(ctx context.Context, id int64) (JournalEntry, error)
	ListEntries(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)
	FindEntryBySource(ctx context.Context, orgID int64, module, ref string) (JournalEntry, error)

	SumPostedLines(ctx context.Context, filter BalanceFilter) ([]AccountTotals, error)
	ListOrgIDs(ctx context.Context) ([]int64, error)

	// GetMapping returns ErrMappingNotFound when the organisation has no
	// override for module/key.
	GetMapping(ctx context.Context, orgID int64, module, key string) (AccountMapping, error)
}

// Tx exposes mutations available inside WithTx.
type Tx interface {
	Reader

	InsertAccount(ctx context.Context, account Account) (Account, error)
	UpdateAccount(ctx context.Context, account Account) error
	DeleteAccount(ctx context.Context, id int64) error
	AdjustCachedBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error

	InsertPeriod(ctx context.Context, period FiscalPeriod) (FiscalPeriod, error)
	// GetPeriodForUpdate loads the period and holds it against concurrent
	// posting and closing until the transaction ends.
	GetPeriodForUpdate(ctx context.Context, id int64) (FiscalPeriod, error)
	ClosePeriod(ctx context.Context, id int64, closedBy int64, at time.Time) error

	// NextEntrySequence atomically increments and returns the entry counter
	// for the organisation and fiscal year.
	NextEntrySequence(ctx context.Context, orgID int64, year int) (int64, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	UpdateEntry(ctx context.Context, entry JournalEntry) error
	ReplaceLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error)
	DeleteEntry(ctx context.Context, id int64) error

	UpsertMapping(ctx context.Context, mapping AccountMapping) (AccountMapping, error)
}
