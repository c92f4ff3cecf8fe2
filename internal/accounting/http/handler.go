// Package accountinghttp exposes the ledger over a JSON API.
package accountinghttp

import (
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/balances"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Services groups the ledger services served by the handler.
type Services struct {
	Accounts *accounts.Registry
	Periods  *periods.Manager
	Journals *journals.Engine
	Balances *balances.Calculator
	Reports  *reports.Generator
}

// Handler wires HTTP endpoints for the chart of accounts, periods, journals
// and reports of one organisation.
type Handler struct {
	logger    *slog.Logger
	svc       Services
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, svc Services) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Handler{logger: logger, svc: svc, validator: v}
}

// MountRoutes registers ledger routes on a router scoped to /orgs/{orgID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Post("/seed", h.seedAccounts)
		r.Get("/{accountID}", h.getAccount)
		r.Patch("/{accountID}", h.updateAccount)
		r.Delete("/{accountID}", h.deleteAccount)
		r.Post("/{accountID}/deactivate", h.deactivateAccount)
		r.Get("/{accountID}/balance", h.accountBalance)
	})
	r.Route("/periods", func(r chi.Router) {
		r.Get("/", h.listPeriods)
		r.Post("/", h.createPeriod)
		r.Get("/{periodID}", h.getPeriod)
	})
	r.Route("/journals", func(r chi.Router) {
		r.Get("/", h.listEntries)
		r.Post("/", h.createEntry)
		r.Get("/{entryID}", h.getEntry)
		r.Put("/{entryID}", h.updateEntry)
		r.Delete("/{entryID}", h.deleteEntry)
		r.Post("/{entryID}/approve", h.approveEntry)
		r.Post("/{entryID}/post", h.postEntry)
		r.Post("/{entryID}/void", h.voidEntry)
	})
	r.Route("/reports", func(r chi.Router) {
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/periods/{periodID}/trial-balance", h.periodTrialBalance)
		r.Get("/income-statement", h.incomeStatement)
		r.Get("/balance-sheet", h.balanceSheet)
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	WriteError(w, h.logger, err)
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return badRequest("decode body: %v", err)
	}
	return h.validator.Struct(dst)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var list []accounting.Account
	switch typ := strings.ToUpper(r.URL.Query().Get("type")); {
	case r.URL.Query().Get("postable") == "true":
		list, err = h.svc.Accounts.ListPostable(r.Context(), orgID)
	case typ != "":
		if !accounting.AccountType(typ).Valid() {
			h.fail(w, badRequest("invalid type %q", typ))
			return
		}
		list, err = h.svc.Accounts.ListByType(r.Context(), orgID, accounting.AccountType(typ))
	default:
		list, err = h.svc.Accounts.List(r.Context(), orgID)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": list})
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req createAccountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	acc, err := h.svc.Accounts.Create(r.Context(), req.input(orgID, actor))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acc)
}

func (h *Handler) seedAccounts(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	created, err := h.svc.Accounts.SeedDefaultChart(r.Context(), orgID, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"created": created})
}

// account loads the account named by the route, scoped to the organisation.
func (h *Handler) account(r *http.Request) (accounting.Account, error) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		return accounting.Account{}, err
	}
	id, err := IDParam(r, "accountID")
	if err != nil {
		return accounting.Account{}, err
	}
	acc, err := h.svc.Accounts.Get(r.Context(), id)
	if err != nil {
		return accounting.Account{}, err
	}
	if acc.OrgID != orgID {
		return accounting.Account{}, accounting.ErrAccountNotFound
	}
	return acc, nil
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.account(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	acc, err := h.account(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req updateAccountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if req.Name != nil {
		if acc, err = h.svc.Accounts.Rename(r.Context(), acc.ID, *req.Name, actor); err != nil {
			h.fail(w, err)
			return
		}
	}
	if req.ParentCode != nil {
		if acc, err = h.svc.Accounts.Move(r.Context(), acc.ID, *req.ParentCode, actor); err != nil {
			h.fail(w, err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	acc, err := h.account(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.svc.Accounts.Delete(r.Context(), acc.ID, actor); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	acc, err := h.account(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	acc, err = h.svc.Accounts.Deactivate(r.Context(), acc.ID, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	acc, err := h.account(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	bal, err := h.svc.Balances.AccountBalance(r.Context(), acc.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Balance: bal})
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.svc.Periods.List(r.Context(), orgID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": list})
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req createPeriodRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	in, err := req.input(orgID, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	period, err := h.svc.Periods.Create(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	id, err := IDParam(r, "periodID")
	if err != nil {
		h.fail(w, err)
		return
	}
	period, err := h.svc.Periods.Get(r.Context(), id)
	if err == nil && period.OrgID != orgID {
		err = accounting.ErrPeriodNotFound
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	filter, err := journalFilter(r, orgID)
	if err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.svc.Journals.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": list, "limit": filter.Limit, "offset": filter.Offset})
}

func journalFilter(r *http.Request, orgID int64) (accounting.JournalFilter, error) {
	filter := accounting.JournalFilter{OrgID: orgID}
	q := r.URL.Query()
	if status := strings.ToUpper(q.Get("status")); status != "" {
		filter.Status = accounting.JournalStatus(status)
		if !filter.Status.Valid() {
			return filter, badRequest("invalid status %q", status)
		}
	}
	var err error
	if raw := q.Get("period_id"); raw != "" {
		if filter.PeriodID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return filter, badRequest("invalid period_id %q", raw)
		}
	}
	if filter.From, err = queryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(r, "limit", defaultPageSize); err != nil {
		return filter, err
	}
	if filter.Limit == 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req entryRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	in, err := req.input(orgID, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	var entry accounting.JournalEntry
	if req.Post {
		entry, err = h.svc.Journals.PostJournal(r.Context(), in)
	} else {
		entry, err = h.svc.Journals.CreateEntry(r.Context(), in)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

// entry loads the entry named by the route, scoped to the organisation.
func (h *Handler) entry(r *http.Request) (accounting.JournalEntry, error) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	id, err := IDParam(r, "entryID")
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	entry, err := h.svc.Journals.Get(r.Context(), id)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	if entry.OrgID != orgID {
		return accounting.JournalEntry{}, accounting.ErrJournalNotFound
	}
	return entry, nil
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.entry(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	current, err := h.entry(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req entryRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	in, err := req.input(current.OrgID, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.svc.Journals.UpdateDraft(r.Context(), current.ID, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	current, err := h.entry(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.svc.Journals.DeleteDraft(r.Context(), current.OrgID, current.ID, actor); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) approveEntry(w http.ResponseWriter, r *http.Request) {
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	current, err := h.entry(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.svc.Journals.Approve(r.Context(), current.OrgID, current.ID, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	current, err := h.entry(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.svc.Journals.Post(r.Context(), current.OrgID, current.ID, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) voidEntry(w http.ResponseWriter, r *http.Request) {
	actor, err := RequireActor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	current, err := h.entry(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req voidRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			h.fail(w, err)
			return
		}
	}
	res, err := h.svc.Journals.Void(r.Context(), journals.VoidInput{OrgID: current.OrgID, EntryID: current.ID, Actor: actor, Reason: req.Reason})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"original": res.Original, "reversal": res.Reversal})
}
