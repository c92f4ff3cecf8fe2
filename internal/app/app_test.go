package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/close"
	"github.com/odyssey-erp/ledger/internal/observability"
	_ "github.com/odyssey-erp/ledger/testing"
)

func memoryConfig(redisAddr string) *Config {
	return &Config{
		AppEnv:               "test",
		LedgerStore:          StoreMemory,
		RedisAddr:            redisAddr,
		ReportCacheTTL:       time.Minute,
		RetainedEarningsCode: "3200",
		CloseLockTTL:         time.Minute,
	}
}

type server struct {
	ledger *Ledger
	router http.Handler
}

func newServer(t *testing.T, cfg *Config, metrics *observability.Metrics) *server {
	t.Helper()
	ledger, err := Bootstrap(context.Background(), cfg, nil, metrics)
	require.NoError(t, err)
	t.Cleanup(ledger.Close)
	router := NewRouter(RouterParams{Config: cfg, Ledger: ledger, API: ledger.APIHandlers(), Metrics: metrics})
	return &server{ledger: ledger, router: router}
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "9")
	req.Header.Set("X-Actor-Name", "ops")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *server) accountID(t *testing.T, code string) int64 {
	t.Helper()
	acc, err := s.ledger.Accounts.FindByCode(context.Background(), 1, code)
	require.NoError(t, err)
	return acc.ID
}

func (s *server) openYear(t *testing.T) accounting.FiscalPeriod {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/orgs/1/accounts/seed", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/v1/orgs/1/periods", `{"name":"FY2025","start_date":"2025-01-01","end_date":"2025-12-31"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var period accounting.FiscalPeriod
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &period))
	return period
}

func (s *server) postSale(t *testing.T, amount string) {
	t.Helper()
	body := fmt.Sprintf(`{"entry_date":"2025-04-01","memo":"cash sale","post":true,"lines":[{"account_id":%d,"debit":"%s"},{"account_id":%d,"credit":"%s"}]}`,
		s.accountID(t, "1111"), amount, s.accountID(t, "4100"), amount)
	rec := s.do(t, http.MethodPost, "/api/v1/orgs/1/journals", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestTestModeFlagFromGuardPackage(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestConfigValidate(t *testing.T) {
	cfg := memoryConfig("")
	require.NoError(t, cfg.Validate())

	cfg.LedgerStore = "sqlite"
	require.Error(t, cfg.Validate())

	cfg = memoryConfig("")
	cfg.LedgerStore = StorePostgres
	cfg.PGDSN = ""
	require.Error(t, cfg.Validate())

	cfg = memoryConfig("")
	cfg.CloseLockTTL = 0
	require.Error(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LEDGER_STORE", StoreMemory)
	t.Setenv("APP_ADDR", ":9999")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.AppAddr)
	require.Equal(t, StoreMemory, cfg.LedgerStore)
	require.Equal(t, "3200", cfg.RetainedEarningsCode)
	require.False(t, cfg.IsProduction())
}

func TestHealthEndpoints(t *testing.T) {
	s := newServer(t, memoryConfig(""), nil)

	rec := s.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestLedgerLifecycleOverHTTP(t *testing.T) {
	metrics := observability.NewMetrics()
	s := newServer(t, memoryConfig(""), metrics)
	period := s.openYear(t)
	s.postSale(t, "1200.00")

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orgs/1/accounts/%d/balance", s.accountID(t, "1111")), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"1200`)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orgs/1/periods/%d/close-year", period.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result close.CloseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, accounting.PeriodStatusClosed, result.Period.Status)
	require.True(t, result.NetIncome.Equal(decimalFromString(t, "1200")))
	require.NotNil(t, result.Entry)

	rec = s.do(t, http.MethodPost, "/api/v1/orgs/1/close-year", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `ledger_events_total{event="entry.posted"} 1`)
	require.Contains(t, string(body), `ledger_events_total{event="period.closed"} 1`)
}

func TestReportCacheInvalidatedByPosting(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newServer(t, memoryConfig(mr.Addr()), nil)
	require.NotNil(t, s.ledger.Redis)
	period := s.openYear(t)

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orgs/1/reports/income-statement?period_id=%d", period.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	version, err := mr.Get("ledger:reports:org:1:version")
	require.NoError(t, err)
	require.Equal(t, "1", version)

	s.postSale(t, "300.00")
	version, err = mr.Get("ledger:reports:org:1:version")
	require.NoError(t, err)
	require.Equal(t, "2", version)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orgs/1/reports/income-statement?period_id=%d", period.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"300`)
}

func TestIntegrationEventsMounted(t *testing.T) {
	s := newServer(t, memoryConfig(""), nil)
	s.openYear(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orgs/1/integration/expenses", `{"id":5,"number":"EXP-5","date":"2025-02-10","amount":"80","paid":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bal, err := s.ledger.Balances.AccountBalance(context.Background(), s.accountID(t, "5200"))
	require.NoError(t, err)
	require.Equal(t, "80", bal.String())
}
