// Package integrationhttp accepts operational document events and books them
// into the ledger.
package integrationhttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	accountinghttp "github.com/odyssey-erp/ledger/internal/accounting/http"
	"github.com/odyssey-erp/ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/ledger/internal/integration"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
	"github.com/odyssey-erp/ledger/internal/shared"
)

type hooks interface {
	HandleSalePosted(ctx context.Context, evt integration.SalePostedEvent) ([]accounting.JournalEntry, error)
	HandlePurchasePosted(ctx context.Context, evt integration.PurchasePostedEvent) (accounting.JournalEntry, error)
	HandleExpensePosted(ctx context.Context, evt integration.ExpensePostedEvent) (accounting.JournalEntry, error)
	HandleVoucherPosted(ctx context.Context, evt integration.VoucherPostedEvent) (accounting.JournalEntry, error)
}

type mappingStore interface {
	Get(ctx context.Context, orgID int64, module, key string) (mappings.AccountMapping, error)
	Override(ctx context.Context, orgID int64, module, key, code string, actor shared.Actor) (mappings.AccountMapping, error)
}

// Handler exposes integration endpoints.
type Handler struct {
	logger    *slog.Logger
	hooks     hooks
	mappings  mappingStore
	validator *validator.Validate
}

// NewHandler constructs the integration handler.
func NewHandler(logger *slog.Logger, hooks hooks, mappings mappingStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, hooks: hooks, mappings: mappings, validator: validator.New()}
}

// MountRoutes registers routes on a router scoped to /orgs/{orgID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/integration", func(r chi.Router) {
		r.Post("/sales", h.sale)
		r.Post("/purchases", h.purchase)
		r.Post("/expenses", h.expense)
		r.Post("/vouchers", h.voucher)
		r.Get("/mappings/{module}/{key}", h.getMapping)
		r.Put("/mappings/{module}/{key}", h.putMapping)
	})
}

type documentRequest struct {
	ID     int64  `json:"id" validate:"required,gt=0"`
	Number string `json:"number" validate:"required,max=64"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
}

type saleRequest struct {
	documentRequest
	Net  decimal.Decimal `json:"net"`
	Tax  decimal.Decimal `json:"tax"`
	Cost decimal.Decimal `json:"cost"`
	Paid bool            `json:"paid"`
}

type purchaseRequest struct {
	documentRequest
	Net  decimal.Decimal `json:"net"`
	Tax  decimal.Decimal `json:"tax"`
	Paid bool            `json:"paid"`
}

type expenseRequest struct {
	documentRequest
	Amount decimal.Decimal `json:"amount"`
	Paid   bool            `json:"paid"`
}

type voucherRequest struct {
	documentRequest
	Kind   string          `json:"kind" validate:"required,oneof=RECEIPT PAYMENT"`
	Amount decimal.Decimal `json:"amount"`
}

type mappingRequest struct {
	AccountCode string `json:"account_code" validate:"required,max=32"`
}

// request carries the parsed common parts of an event call.
type request struct {
	orgID int64
	date  time.Time
}

func (h *Handler) sale(w http.ResponseWriter, r *http.Request) {
	var body saleRequest
	req, ok := h.read(w, r, &body, &body.documentRequest)
	if !ok {
		return
	}
	actor, _ := accountinghttp.RequireActor(r)
	entries, err := h.hooks.HandleSalePosted(r.Context(), integration.SalePostedEvent{
		OrgID: req.orgID, ID: body.ID, Number: body.Number, Date: req.date,
		Net: body.Net, Tax: body.Tax, Cost: body.Cost, Paid: body.Paid, Actor: actor,
	})
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entries)
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	var body purchaseRequest
	req, ok := h.read(w, r, &body, &body.documentRequest)
	if !ok {
		return
	}
	actor, _ := accountinghttp.RequireActor(r)
	entry, err := h.hooks.HandlePurchasePosted(r.Context(), integration.PurchasePostedEvent{
		OrgID: req.orgID, ID: body.ID, Number: body.Number, Date: req.date,
		Net: body.Net, Tax: body.Tax, Paid: body.Paid, Actor: actor,
	})
	h.respondEntry(w, entry, err)
}

func (h *Handler) expense(w http.ResponseWriter, r *http.Request) {
	var body expenseRequest
	req, ok := h.read(w, r, &body, &body.documentRequest)
	if !ok {
		return
	}
	actor, _ := accountinghttp.RequireActor(r)
	entry, err := h.hooks.HandleExpensePosted(r.Context(), integration.ExpensePostedEvent{
		OrgID: req.orgID, ID: body.ID, Number: body.Number, Date: req.date,
		Amount: body.Amount, Paid: body.Paid, Actor: actor,
	})
	h.respondEntry(w, entry, err)
}

func (h *Handler) voucher(w http.ResponseWriter, r *http.Request) {
	var body voucherRequest
	req, ok := h.read(w, r, &body, &body.documentRequest)
	if !ok {
		return
	}
	actor, _ := accountinghttp.RequireActor(r)
	entry, err := h.hooks.HandleVoucherPosted(r.Context(), integration.VoucherPostedEvent{
		OrgID: req.orgID, ID: body.ID, Number: body.Number, Kind: integration.VoucherKind(body.Kind),
		Date: req.date, Amount: body.Amount, Actor: actor,
	})
	h.respondEntry(w, entry, err)
}

func (h *Handler) getMapping(w http.ResponseWriter, r *http.Request) {
	orgID, err := accountinghttp.IDParam(r, "orgID")
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	mapping, err := h.mappings.Get(r.Context(), orgID, chi.URLParam(r, "module"), chi.URLParam(r, "key"))
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mapping)
}

func (h *Handler) putMapping(w http.ResponseWriter, r *http.Request) {
	orgID, err := accountinghttp.IDParam(r, "orgID")
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	actor, err := accountinghttp.RequireActor(r)
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	var body mappingRequest
	if err := h.decode(r, &body); err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	module, key := chi.URLParam(r, "module"), chi.URLParam(r, "key")
	mapping, err := h.mappings.Override(r.Context(), orgID, module, key, body.AccountCode, actor)
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	h.logger.Info("account mapping overridden",
		slog.Int64("org_id", orgID),
		slog.String("module", mapping.Module),
		slog.String("key", mapping.Key),
		slog.String("account_code", mapping.AccountCode),
		slog.String("actor", actor.Label()),
	)
	httpx.JSON(w, http.StatusOK, mapping)
}

// read parses the organisation, requires an actor and decodes the document
// body. It writes the problem response itself and reports ok=false on failure.
func (h *Handler) read(w http.ResponseWriter, r *http.Request, body any, doc *documentRequest) (request, bool) {
	orgID, err := accountinghttp.IDParam(r, "orgID")
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return request{}, false
	}
	if _, err := accountinghttp.RequireActor(r); err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return request{}, false
	}
	if err := h.decode(r, body); err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return request{}, false
	}
	date, err := time.Parse(time.DateOnly, doc.Date)
	if err != nil {
		accountinghttp.WriteError(w, h.logger, fmt.Errorf("%w: invalid date %q", httpx.ErrValidation, doc.Date))
		return request{}, false
	}
	return request{orgID: orgID, date: date}, true
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", httpx.ErrValidation, err)
	}
	return h.validator.Struct(dst)
}

func (h *Handler) respondEntry(w http.ResponseWriter, entry accounting.JournalEntry, err error) {
	if err != nil {
		accountinghttp.WriteError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}
