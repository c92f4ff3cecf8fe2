package accounts

import "github.com/odyssey-erp/ledger/internal/accounting"

// Default chart codes.
const (
	CodeAssets           = "1000"
	CodeCash             = "1111"
	CodeBank             = "1112"
	CodeReceivables      = "1120"
	CodeInventory        = "1130"
	CodeLiabilities      = "2000"
	CodePayables         = "2110"
	CodeVATPayable       = "2120"
	CodeEquity           = "3000"
	CodeCapital          = "3100"
	CodeRetainedEarnings = "3200"
	CodeRevenue          = "4000"
	CodeSalesRevenue     = "4100"
	CodeExpenses         = "5000"
	CodeCOGS             = "5100"
	CodeOperatingExpense = "5200"
)

// DefaultChart is the small-business chart installed by SeedDefaultChart.
// Parents precede children.
var DefaultChart = []CreateInput{
	{Code: CodeAssets, Name: "Assets", Type: accounting.AccountTypeAsset, IsHeader: true},
	{Code: CodeCash, Name: "Cash", Type: accounting.AccountTypeAsset, ParentCode: CodeAssets},
	{Code: CodeBank, Name: "Bank", Type: accounting.AccountTypeAsset, ParentCode: CodeAssets},
	{Code: CodeReceivables, Name: "Accounts Receivable", Type: accounting.AccountTypeAsset, ParentCode: CodeAssets},
	{Code: CodeInventory, Name: "Inventory", Type: accounting.AccountTypeAsset, ParentCode: CodeAssets},
	{Code: CodeLiabilities, Name: "Liabilities", Type: accounting.AccountTypeLiability, IsHeader: true},
	{Code: CodePayables, Name: "Accounts Payable", Type: accounting.AccountTypeLiability, ParentCode: CodeLiabilities},
	{Code: CodeVATPayable, Name: "VAT Payable", Type: accounting.AccountTypeLiability, ParentCode: CodeLiabilities},
	{Code: CodeEquity, Name: "Equity", Type: accounting.AccountTypeEquity, IsHeader: true},
	{Code: CodeCapital, Name: "Owner Capital", Type: accounting.AccountTypeEquity, ParentCode: CodeEquity},
	{Code: CodeRetainedEarnings, Name: "Retained Earnings", Type: accounting.AccountTypeEquity, ParentCode: CodeEquity, SystemOnly: true},
	{Code: CodeRevenue, Name: "Revenue", Type: accounting.AccountTypeRevenue, IsHeader: true},
	{Code: CodeSalesRevenue, Name: "Sales Revenue", Type: accounting.AccountTypeRevenue, ParentCode: CodeRevenue},
	{Code: CodeExpenses, Name: "Expenses", Type: accounting.AccountTypeExpense, IsHeader: true},
	{Code: CodeCOGS, Name: "Cost of Goods Sold", Type: accounting.AccountTypeExpense, ParentCode: CodeExpenses},
	{Code: CodeOperatingExpense, Name: "Operating Expenses", Type: accounting.AccountTypeExpense, ParentCode: CodeExpenses},
}
