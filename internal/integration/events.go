package integration

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/shared"
)

// SalePostedEvent is raised when a sales invoice is issued.
type SalePostedEvent struct {
	OrgID  int64
	ID     int64
	Number string
	Date   time.Time
	// Net is the revenue amount before tax.
	Net decimal.Decimal
	Tax decimal.Decimal
	// Cost is the inventory cost of the goods sold. Zero skips the COGS entry.
	Cost decimal.Decimal
	// Paid settles the invoice in cash instead of leaving a receivable.
	Paid  bool
	Actor shared.Actor
}

// PurchasePostedEvent is raised when a supplier invoice for stock is booked.
type PurchasePostedEvent struct {
	OrgID  int64
	ID     int64
	Number string
	Date   time.Time
	Net    decimal.Decimal
	Tax    decimal.Decimal
	Paid   bool
	Actor  shared.Actor
}

// ExpensePostedEvent is raised when an expense claim or bill is booked.
type ExpensePostedEvent struct {
	OrgID  int64
	ID     int64
	Number string
	Date   time.Time
	Amount decimal.Decimal
	Paid   bool
	Actor  shared.Actor
}

// VoucherKind distinguishes cash receipts from cash payments.
type VoucherKind string

const (
	VoucherReceipt VoucherKind = "RECEIPT"
	VoucherPayment VoucherKind = "PAYMENT"
)

// VoucherPostedEvent is raised when a customer receipt or supplier payment is
// recorded.
type VoucherPostedEvent struct {
	OrgID  int64
	ID     int64
	Number string
	Kind   VoucherKind
	Date   time.Time
	Amount decimal.Decimal
	Actor  shared.Actor
}
