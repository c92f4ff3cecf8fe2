package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

// CurrentEarningsCode labels the synthetic equity row carrying revenue and
// expense activity that has not been closed yet.
const CurrentEarningsCode = "CURRENT_EARNINGS"

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"total_liabilities_and_equity"`
}

// Balanced reports whether assets equal liabilities plus equity.
func (bs BalanceSheet) Balanced() bool {
	return accounting.Balanced(bs.Assets.Total, bs.TotalLiabilitiesAndEquity)
}

// BuildBalanceSheet aggregates balances into assets, liabilities, and equity
// sections. Assets keep their debit balance, liabilities and equity are shown
// credit-positive. Revenue and expense balances are folded into equity as
// current earnings.
func BuildBalanceSheet(accounts []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets", Total: decimal.Zero}
	liabilities := BalanceSheetSection{Label: "Liabilities", Total: decimal.Zero}
	equity := BalanceSheetSection{Label: "Equity", Total: decimal.Zero}
	earnings := decimal.Zero

	for _, acc := range accounts {
		balance := acc.Closing()
		row := BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: balance}
		switch acc.Type {
		case accounting.AccountTypeAsset:
			assets.Accounts = append(assets.Accounts, row)
			assets.Total = assets.Total.Add(row.Balance)
		case accounting.AccountTypeLiability:
			row.Balance = balance.Neg()
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total = liabilities.Total.Add(row.Balance)
		case accounting.AccountTypeEquity:
			row.Balance = balance.Neg()
			equity.Accounts = append(equity.Accounts, row)
			equity.Total = equity.Total.Add(row.Balance)
		case accounting.AccountTypeRevenue, accounting.AccountTypeExpense:
			earnings = earnings.Sub(balance)
		}
	}

	sort.Slice(assets.Accounts, func(i, j int) bool { return assets.Accounts[i].Code < assets.Accounts[j].Code })
	sort.Slice(liabilities.Accounts, func(i, j int) bool { return liabilities.Accounts[i].Code < liabilities.Accounts[j].Code })
	sort.Slice(equity.Accounts, func(i, j int) bool { return equity.Accounts[i].Code < equity.Accounts[j].Code })

	if !earnings.IsZero() {
		equity.Accounts = append(equity.Accounts, BalanceSheetAccount{Code: CurrentEarningsCode, Name: "Current Earnings", Balance: earnings})
		equity.Total = equity.Total.Add(earnings)
	}

	return BalanceSheet{
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		TotalLiabilitiesAndEquity: liabilities.Total.Add(equity.Total),
	}
}
