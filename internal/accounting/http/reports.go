package accountinghttp

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
)

// wantsText reports whether the client asked for the plain text rendering.
func wantsText(r *http.Request) bool {
	return r.URL.Query().Get("format") == "text"
}

func (h *Handler) writeText(w http.ResponseWriter, r *http.Request, render func(reports.TextView, *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(reports.NewTextView(r.URL.Query().Get("locale")), &buf); err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		h.fail(w, err)
		return
	}
	tb, err := h.svc.Balances.TrialBalanceAsOf(r.Context(), orgID, asOf)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"trial_balance": tb, "balanced": tb.Balanced()})
}

func (h *Handler) periodTrialBalance(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	periodID, err := IDParam(r, "periodID")
	if err != nil {
		h.fail(w, err)
		return
	}
	tb, err := h.svc.Reports.TrialBalance(r.Context(), orgID, periodID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if wantsText(r) {
		h.writeText(w, r, func(v reports.TextView, buf *bytes.Buffer) error { return v.TrialBalance(buf, tb) })
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var report reports.IncomeStatement
	if raw := r.URL.Query().Get("period_id"); raw != "" {
		periodID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			h.fail(w, badRequest("invalid period_id %q", raw))
			return
		}
		report, err = h.svc.Reports.IncomeStatement(r.Context(), orgID, periodID)
	} else {
		from, ferr := queryDate(r, "from")
		to, terr := queryDate(r, "to")
		switch {
		case ferr != nil:
			err = ferr
		case terr != nil:
			err = terr
		case from.IsZero() || to.IsZero():
			err = badRequest("period_id or from and to required")
		default:
			report, err = h.svc.Reports.IncomeStatementRange(r.Context(), orgID, from, to)
		}
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	if wantsText(r) {
		h.writeText(w, r, func(v reports.TextView, buf *bytes.Buffer) error { return v.IncomeStatement(buf, report) })
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	orgID, err := IDParam(r, "orgID")
	if err != nil {
		h.fail(w, err)
		return
	}
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		h.fail(w, err)
		return
	}
	if asOf.IsZero() {
		h.fail(w, badRequest("as_of required"))
		return
	}
	report, err := h.svc.Reports.BalanceSheet(r.Context(), orgID, asOf)
	if err != nil {
		h.fail(w, err)
		return
	}
	if wantsText(r) {
		h.writeText(w, r, func(v reports.TextView, buf *bytes.Buffer) error { return v.BalanceSheet(buf, report) })
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
