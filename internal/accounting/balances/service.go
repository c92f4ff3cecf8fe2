// Package balances derives account balances from posted journal lines. It
// never trusts Account.CachedBalance.
package balances

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

// AccountBalance pairs an account with its posted totals.
type AccountBalance struct {
	Account accounting.Account `json:"account"`
	Debit   decimal.Decimal    `json:"debit"`
	Credit  decimal.Decimal    `json:"credit"`
}

// Balance returns the signed debit-minus-credit balance.
func (b AccountBalance) Balance() decimal.Decimal {
	return b.Debit.Sub(b.Credit)
}

// TrialBalanceRow is one account line of a trial balance.
type TrialBalanceRow struct {
	Account accounting.Account `json:"account"`
	Debit   decimal.Decimal    `json:"debit"`
	Credit  decimal.Decimal    `json:"credit"`
}

// TrialBalance lists every postable account with posted activity.
type TrialBalance struct {
	OrgID       int64             `json:"org_id"`
	AsOf        *time.Time        `json:"as_of,omitempty"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
}

// Balanced reports whether total debits equal total credits.
func (tb TrialBalance) Balanced() bool {
	return accounting.Balanced(tb.TotalDebit, tb.TotalCredit)
}

// Drift reports an account whose cached balance disagrees with its posted
// lines.
type Drift struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Cached    decimal.Decimal `json:"cached"`
	Actual    decimal.Decimal `json:"actual"`
}

// Calculator aggregates posted lines.
type Calculator struct {
	store accounting.Store
}

// NewCalculator constructs the balance calculator.
func NewCalculator(store accounting.Store) *Calculator {
	return &Calculator{store: store}
}

// AccountBalance returns Σdebit − Σcredit over posted lines of the account.
func (c *Calculator) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	balance := decimal.Zero
	err := c.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		acc, err := rd.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		totals, err := rd.SumPostedLines(ctx, accounting.BalanceFilter{OrgID: acc.OrgID, AccountID: acc.ID})
		if err != nil {
			return err
		}
		for _, t := range totals {
			balance = balance.Add(t.Balance())
		}
		return nil
	})
	return balance, err
}

// Balances returns posted totals for every account of the organisation that
// has activity in the filter window, ordered by account code.
func (c *Calculator) Balances(ctx context.Context, filter accounting.BalanceFilter) ([]AccountBalance, error) {
	var out []AccountBalance
	err := c.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		out, err = BalancesTx(ctx, rd, filter)
		return err
	})
	return out, err
}

// BalancesTx is Balances against an existing reader or transaction.
func BalancesTx(ctx context.Context, rd accounting.Reader, filter accounting.BalanceFilter) ([]AccountBalance, error) {
	accounts, err := rd.ListAccounts(ctx, accounting.AccountFilter{OrgID: filter.OrgID})
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]accounting.Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}
	totals, err := rd.SumPostedLines(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]AccountBalance, 0, len(totals))
	for _, t := range totals {
		acc, ok := byID[t.AccountID]
		if !ok {
			acc, err = rd.GetAccount(ctx, t.AccountID)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, AccountBalance{Account: acc, Debit: t.Debit, Credit: t.Credit})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account.Code < out[j].Account.Code })
	return out, nil
}

// TrialBalance lists postable accounts with posted activity. Each row carries
// its net balance on the debit or credit side.
func (c *Calculator) TrialBalance(ctx context.Context, orgID int64) (TrialBalance, error) {
	return c.trialBalance(ctx, orgID, time.Time{})
}

// TrialBalanceAsOf limits the trial balance to entries dated on or before asOf.
func (c *Calculator) TrialBalanceAsOf(ctx context.Context, orgID int64, asOf time.Time) (TrialBalance, error) {
	return c.trialBalance(ctx, orgID, asOf)
}

func (c *Calculator) trialBalance(ctx context.Context, orgID int64, asOf time.Time) (TrialBalance, error) {
	rows, err := c.Balances(ctx, accounting.BalanceFilter{OrgID: orgID, To: asOf})
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(orgID, rows)
	if !asOf.IsZero() {
		d := accounting.DateOnly(asOf)
		tb.AsOf = &d
	}
	return tb, nil
}

// BuildTrialBalance folds account balances into debit/credit rows.
func BuildTrialBalance(orgID int64, rows []AccountBalance) TrialBalance {
	tb := TrialBalance{OrgID: orgID, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, row := range rows {
		if row.Account.IsHeader {
			continue
		}
		balance := row.Balance()
		line := TrialBalanceRow{Account: row.Account, Debit: decimal.Zero, Credit: decimal.Zero}
		if balance.IsPositive() {
			line.Debit = balance
		} else {
			line.Credit = balance.Neg()
		}
		tb.Rows = append(tb.Rows, line)
		tb.TotalDebit = tb.TotalDebit.Add(line.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(line.Credit)
	}
	return tb
}

// VerifyCachedBalances compares every account's cached balance with its
// posted lines and returns the accounts that drifted.
func (c *Calculator) VerifyCachedBalances(ctx context.Context, orgID int64) ([]Drift, error) {
	var drifts []Drift
	err := c.store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		accounts, err := rd.ListAccounts(ctx, accounting.AccountFilter{OrgID: orgID})
		if err != nil {
			return err
		}
		totals, err := rd.SumPostedLines(ctx, accounting.BalanceFilter{OrgID: orgID})
		if err != nil {
			return err
		}
		actual := make(map[int64]decimal.Decimal, len(totals))
		for _, t := range totals {
			actual[t.AccountID] = t.Balance()
		}
		for _, acc := range accounts {
			want, ok := actual[acc.ID]
			if !ok {
				want = decimal.Zero
			}
			if !acc.CachedBalance.Equal(want) {
				drifts = append(drifts, Drift{AccountID: acc.ID, Code: acc.Code, Cached: acc.CachedBalance, Actual: want})
			}
		}
		return nil
	})
	return drifts, err
}
