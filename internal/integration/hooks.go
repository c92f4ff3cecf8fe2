package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// Source modules stamped on integration entries.
const (
	SourceSale     = "SALES.INVOICE"
	SourceCOGS     = "SALES.COGS"
	SourcePurchase = "PURCHASE.INVOICE"
	SourceExpense  = "EXPENSE.BILL"
	SourceReceipt  = "CASH.RECEIPT"
	SourcePayment  = "CASH.PAYMENT"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	PostJournal(ctx context.Context, in journals.EntryInput) (accounting.JournalEntry, error)
	FindBySource(ctx context.Context, orgID int64, module, ref string) (accounting.JournalEntry, error)
}

// AccountResolver provides mapping lookups.
type AccountResolver interface {
	Resolve(ctx context.Context, orgID int64, module, key string) (int64, error)
}

// Hooks wires domain events from operational modules into the general ledger.
type Hooks struct {
	ledger   Ledger
	resolver AccountResolver
	logger   *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, resolver AccountResolver, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, resolver: resolver, logger: logger}
}

func (h *Hooks) resolve(ctx context.Context, orgID int64, module string, keys ...string) ([]int64, error) {
	ids := make([]int64, len(keys))
	for i, key := range keys {
		id, err := h.resolver.Resolve(ctx, orgID, module, key)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// post books the entry once per source. A replay returns the entry booked
// the first time.
func (h *Hooks) post(ctx context.Context, in journals.EntryInput) (accounting.JournalEntry, error) {
	entry, err := h.ledger.PostJournal(ctx, in)
	if errors.Is(err, accounting.ErrSourceAlreadyLinked) {
		h.logger.Debug("integration replay", slog.String("source_module", in.SourceModule), slog.String("source_ref", in.SourceRef))
		return h.ledger.FindBySource(ctx, in.OrgID, in.SourceModule, in.SourceRef)
	}
	return entry, err
}

// HandleSalePosted books revenue, output tax and the receivable or cash
// side. A non-zero cost also books COGS against inventory as a second entry.
func (h *Hooks) HandleSalePosted(ctx context.Context, evt SalePostedEvent) ([]accounting.JournalEntry, error) {
	if err := requireDate("sale", evt.Date); err != nil {
		return nil, err
	}
	net, tax, cost := round2(evt.Net), round2(evt.Tax), round2(evt.Cost)
	if !net.IsPositive() || tax.IsNegative() || cost.IsNegative() {
		return nil, fmt.Errorf("%w: sale amounts must be positive", accounting.ErrValidation)
	}
	settleKey := mappings.KeySaleReceivable
	if evt.Paid {
		settleKey = mappings.KeySaleCash
	}
	ids, err := h.resolve(ctx, evt.OrgID, mappings.ModuleSales, settleKey, mappings.KeySaleRevenue, mappings.KeySaleTax)
	if err != nil {
		return nil, err
	}
	var b lineBuilder
	b.debit(ids[0], net.Add(tax), "")
	b.credit(ids[1], net, "")
	b.credit(ids[2], tax, "")
	sale, err := h.post(ctx, entryInput(evt.OrgID, evt.Actor, evt.Date, SourceSale, sourceRef("SALE", evt.ID), fmt.Sprintf("Sales invoice %s", evt.Number), b.lines))
	if err != nil {
		return nil, err
	}
	out := []accounting.JournalEntry{sale}
	if cost.IsZero() {
		return out, nil
	}
	ids, err = h.resolve(ctx, evt.OrgID, mappings.ModuleSales, mappings.KeySaleCOGS, mappings.KeySaleInventory)
	if err != nil {
		return out, err
	}
	b = lineBuilder{}
	b.debit(ids[0], cost, "")
	b.credit(ids[1], cost, "")
	cogs, err := h.post(ctx, entryInput(evt.OrgID, evt.Actor, evt.Date, SourceCOGS, sourceRef("SALE", evt.ID), fmt.Sprintf("Cost of sales %s", evt.Number), b.lines))
	if err != nil {
		return out, err
	}
	return append(out, cogs), nil
}

// HandlePurchasePosted books stock and input tax against the payable or cash.
func (h *Hooks) HandlePurchasePosted(ctx context.Context, evt PurchasePostedEvent) (accounting.JournalEntry, error) {
	if err := requireDate("purchase", evt.Date); err != nil {
		return accounting.JournalEntry{}, err
	}
	net, tax := round2(evt.Net), round2(evt.Tax)
	if !net.IsPositive() || tax.IsNegative() {
		return accounting.JournalEntry{}, fmt.Errorf("%w: purchase amounts must be positive", accounting.ErrValidation)
	}
	settleKey := mappings.KeyPurchasePayable
	if evt.Paid {
		settleKey = mappings.KeyPurchaseCash
	}
	ids, err := h.resolve(ctx, evt.OrgID, mappings.ModulePurchase, mappings.KeyPurchaseInventory, mappings.KeyPurchaseTax, settleKey)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	var b lineBuilder
	b.debit(ids[0], net, "")
	b.debit(ids[1], tax, "input tax")
	b.credit(ids[2], net.Add(tax), "")
	return h.post(ctx, entryInput(evt.OrgID, evt.Actor, evt.Date, SourcePurchase, sourceRef("PURCHASE", evt.ID), fmt.Sprintf("Purchase invoice %s", evt.Number), b.lines))
}

// HandleExpensePosted books an operating expense against the payable or cash.
func (h *Hooks) HandleExpensePosted(ctx context.Context, evt ExpensePostedEvent) (accounting.JournalEntry, error) {
	if err := requireDate("expense", evt.Date); err != nil {
		return accounting.JournalEntry{}, err
	}
	amount := round2(evt.Amount)
	if !amount.IsPositive() {
		return accounting.JournalEntry{}, fmt.Errorf("%w: expense amount must be positive", accounting.ErrValidation)
	}
	settleKey := mappings.KeyExpensePayable
	if evt.Paid {
		settleKey = mappings.KeyExpenseCash
	}
	ids, err := h.resolve(ctx, evt.OrgID, mappings.ModuleExpense, mappings.KeyExpenseExpense, settleKey)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	var b lineBuilder
	b.debit(ids[0], amount, "")
	b.credit(ids[1], amount, "")
	return h.post(ctx, entryInput(evt.OrgID, evt.Actor, evt.Date, SourceExpense, sourceRef("EXPENSE", evt.ID), fmt.Sprintf("Expense %s", evt.Number), b.lines))
}

// HandleVoucherPosted books a customer receipt into cash or a supplier
// payment out of it.
func (h *Hooks) HandleVoucherPosted(ctx context.Context, evt VoucherPostedEvent) (accounting.JournalEntry, error) {
	if err := requireDate("voucher", evt.Date); err != nil {
		return accounting.JournalEntry{}, err
	}
	amount := round2(evt.Amount)
	if !amount.IsPositive() {
		return accounting.JournalEntry{}, fmt.Errorf("%w: voucher amount must be positive", accounting.ErrValidation)
	}
	var debitKey, creditKey, source, memo string
	switch evt.Kind {
	case VoucherReceipt:
		debitKey, creditKey, source, memo = mappings.KeyReceiptCash, mappings.KeyReceiptReceivable, SourceReceipt, "Receipt"
	case VoucherPayment:
		debitKey, creditKey, source, memo = mappings.KeyPaymentPayable, mappings.KeyPaymentCash, SourcePayment, "Payment"
	default:
		return accounting.JournalEntry{}, fmt.Errorf("%w: unknown voucher kind %q", accounting.ErrValidation, evt.Kind)
	}
	ids, err := h.resolve(ctx, evt.OrgID, mappings.ModuleCash, debitKey, creditKey)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	var b lineBuilder
	b.debit(ids[0], amount, "")
	b.credit(ids[1], amount, "")
	return h.post(ctx, entryInput(evt.OrgID, evt.Actor, evt.Date, source, sourceRef(string(evt.Kind), evt.ID), fmt.Sprintf("%s %s", memo, evt.Number), b.lines))
}

func entryInput(orgID int64, actor shared.Actor, date time.Time, module, ref, memo string, lines []journals.LineInput) journals.EntryInput {
	return journals.EntryInput{
		OrgID:        orgID,
		EntryDate:    date,
		Memo:         memo,
		SourceModule: module,
		SourceRef:    ref,
		Lines:        lines,
		Actor:        actor,
	}
}
