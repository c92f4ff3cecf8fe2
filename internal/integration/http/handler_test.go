package integrationhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	accountinghttp "github.com/odyssey-erp/ledger/internal/accounting/http"
	"github.com/odyssey-erp/ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/ledger/internal/integration"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
)

func newRouter(t *testing.T) (*ledgertest.Ledger, http.Handler) {
	t.Helper()
	l := ledgertest.New(t)
	resolver := mappings.NewResolver(l.Store, l.Accounts)
	h := NewHandler(nil, integration.NewHooks(l.Journals, resolver, nil), resolver)
	r := chi.NewRouter()
	r.Use(accountinghttp.ActorFromHeaders)
	r.Route("/orgs/{orgID}", h.MountRoutes)
	return l, r
}

func call(router http.Handler, method, path, body string, actor bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor {
		req.Header.Set(accountinghttp.HeaderActorID, "7")
		req.Header.Set(accountinghttp.HeaderActorName, "controller")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSaleEventBooksEntriesOnce(t *testing.T) {
	l, router := newRouter(t)
	body := `{"id":10,"number":"INV-10","date":"2025-03-05","net":"100","tax":"11","cost":"60"}`

	rec := call(router, http.MethodPost, "/orgs/1/integration/sales", body, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first []accounting.JournalEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first, 2)
	require.Equal(t, accounting.JournalStatusPosted, first[0].Status)
	require.Equal(t, integration.SourceSale, first[0].SourceModule)
	require.Equal(t, integration.SourceCOGS, first[1].SourceModule)

	rec = call(router, http.MethodPost, "/orgs/1/integration/sales", body, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var replay []accounting.JournalEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replay))
	require.Len(t, replay, 2)
	require.Equal(t, first[0].ID, replay[0].ID)
	require.Equal(t, first[1].ID, replay[1].ID)

	require.True(t, ledgertest.D("111").Equal(l.Balance(t, "1120")))
	require.True(t, ledgertest.D("60").Equal(l.Balance(t, "5100")))
}

func TestEventRequiresActor(t *testing.T) {
	_, router := newRouter(t)
	rec := call(router, http.MethodPost, "/orgs/1/integration/expenses", `{"id":1,"number":"EXP-1","date":"2025-03-05","amount":"5"}`, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVoucherValidation(t *testing.T) {
	_, router := newRouter(t)
	rec := call(router, http.MethodPost, "/orgs/1/integration/vouchers", `{"id":1,"number":"RV-1","date":"2025-03-05","kind":"REFUND","amount":"5"}`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "validation", problem.Kind)
}

func TestExpenseOutsideOpenPeriodConflicts(t *testing.T) {
	_, router := newRouter(t)
	rec := call(router, http.MethodPost, "/orgs/1/integration/expenses", `{"id":2,"number":"EXP-2","date":"2031-01-01","amount":"5"}`, true)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestMappingOverrideRoutesPostings(t *testing.T) {
	l, router := newRouter(t)

	rec := call(router, http.MethodGet, "/orgs/1/integration/mappings/expense/expense.expense", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var mapping mappings.AccountMapping
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mapping))
	require.True(t, mapping.Default)
	require.Equal(t, "5200", mapping.AccountCode)

	rec = call(router, http.MethodPut, "/orgs/1/integration/mappings/expense/expense.expense", `{"account_code":"5100"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mapping))
	require.False(t, mapping.Default)
	require.Equal(t, "5100", mapping.AccountCode)

	rec = call(router, http.MethodPost, "/orgs/1/integration/expenses", `{"id":3,"number":"EXP-3","date":"2025-03-05","amount":"40","paid":true}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, ledgertest.D("40").Equal(l.Balance(t, "5100")))
	require.True(t, ledgertest.D("-40").Equal(l.Balance(t, "1111")))

	rec = call(router, http.MethodPut, "/orgs/1/integration/mappings/expense/expense.unknown", `{"account_code":"5100"}`, true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
