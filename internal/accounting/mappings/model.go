package mappings

import (
	"strings"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
)

// Integration modules.
const (
	ModuleSales    = "SALES"
	ModulePurchase = "PURCHASE"
	ModuleExpense  = "EXPENSE"
	ModuleCash     = "CASH"
)

// Mapping keys per module.
const (
	KeySaleCash       = "sale.cash"
	KeySaleReceivable = "sale.receivable"
	KeySaleRevenue    = "sale.revenue"
	KeySaleTax        = "sale.tax"
	KeySaleCOGS       = "sale.cogs"
	KeySaleInventory  = "sale.inventory"

	KeyPurchaseInventory = "purchase.inventory"
	KeyPurchaseTax       = "purchase.tax"
	KeyPurchasePayable   = "purchase.payable"
	KeyPurchaseCash      = "purchase.cash"

	KeyExpenseExpense = "expense.expense"
	KeyExpenseCash    = "expense.cash"
	KeyExpensePayable = "expense.payable"

	KeyReceiptCash       = "receipt.cash"
	KeyReceiptReceivable = "receipt.receivable"
	KeyPaymentCash       = "payment.cash"
	KeyPaymentPayable    = "payment.payable"
)

// AccountMapping links an integration key to a ledger account code.
type AccountMapping struct {
	Module      string `json:"module"`
	Key         string `json:"key"`
	AccountCode string `json:"account_code"`
	// Default is set when no organisation override exists.
	Default bool `json:"default"`
}

// defaults routes every key to the seeded chart of accounts.
var defaults = map[string]map[string]string{
	ModuleSales: {
		KeySaleCash:       accounts.CodeCash,
		KeySaleReceivable: accounts.CodeReceivables,
		KeySaleRevenue:    accounts.CodeSalesRevenue,
		KeySaleTax:        accounts.CodeVATPayable,
		KeySaleCOGS:       accounts.CodeCOGS,
		KeySaleInventory:  accounts.CodeInventory,
	},
	ModulePurchase: {
		KeyPurchaseInventory: accounts.CodeInventory,
		KeyPurchaseTax:       accounts.CodeVATPayable,
		KeyPurchasePayable:   accounts.CodePayables,
		KeyPurchaseCash:      accounts.CodeCash,
	},
	ModuleExpense: {
		KeyExpenseExpense: accounts.CodeOperatingExpense,
		KeyExpenseCash:    accounts.CodeCash,
		KeyExpensePayable: accounts.CodePayables,
	},
	ModuleCash: {
		KeyReceiptCash:       accounts.CodeCash,
		KeyReceiptReceivable: accounts.CodeReceivables,
		KeyPaymentCash:       accounts.CodeCash,
		KeyPaymentPayable:    accounts.CodePayables,
	},
}

func normalize(module string) string {
	return strings.ToUpper(strings.TrimSpace(module))
}
