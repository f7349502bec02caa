package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"kobo/internal/aggregate"
	"kobo/internal/core"
	"kobo/internal/gateway"
	"kobo/internal/session"
	"kobo/internal/store"
	"kobo/internal/store/memory"
)

const testAccount = "acct-1"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestServer(t *testing.T, st store.Store, opts Options) (*Server, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.New(st, gateway.WithClock(clk.now), gateway.WithLogger(logger))
	settings := session.NewSettingsService(st, clk.now)
	if opts.RequestsPerMinute == 0 {
		opts.RequestsPerMinute = 1000
	}
	srv := NewServer(":0", Deps{
		Gateway:   gw,
		Navigator: gateway.NewNavigator(gw),
		Settings:  settings,
		Gate:      session.NewGate(settings, session.DefaultTTL),
		Logger:    logger,
		Now:       clk.now,
	}, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, clk
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(HeaderAccountID, testAccount)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status=%d want %d body=%s", rr.Code, want, rr.Body.String())
	}
}

func expectErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	body := decode[ErrorBody](t, rr)
	if body.Error.Code != code {
		t.Fatalf("error code=%q want %q", body.Error.Code, code)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, "")
		expectStatus(t, rr, http.StatusOK)
	}

	srv.ready = func(context.Context) error { return errors.New("db down") }
	rr := do(srv, http.MethodGet, "/readyz", "")
	expectStatus(t, rr, http.StatusServiceUnavailable)
}

func TestMissingAccountHeader(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	expectErrorCode(t, rr, http.StatusUnauthorized, codeUnauthorized)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control=%q", rr.Header().Get("Cache-Control"))
	}
}

func TestRecordTransactionAndSnapshot(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})

	rr := do(srv, http.MethodPut, "/api/categories", `{"name":"Food","type":"Expense","budget_limit":100}`)
	expectStatus(t, rr, http.StatusOK)
	cat := decode[core.Category](t, rr)

	rr = do(srv, http.MethodPost, "/api/transactions",
		`{"amount":120.5,"type":"expense","category":"Food","payee":"Market","date":"2025-03-10"}`)
	expectStatus(t, rr, http.StatusCreated)
	tx := decode[core.Transaction](t, rr)
	if tx.CategoryID != cat.ID || tx.Amount.Cents != 12050 || tx.Type != core.Expense {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	rr = do(srv, http.MethodGet, "/api/transactions/"+tx.ID, "")
	expectStatus(t, rr, http.StatusOK)

	rr = do(srv, http.MethodGet, "/api/snapshot?start=2025-03-01&end=2025-03-31", "")
	expectStatus(t, rr, http.StatusOK)
	snap := decode[gateway.Snapshot](t, rr)
	if len(snap.Transactions) != 1 || len(snap.Categories) != 1 {
		t.Fatalf("snapshot has %d transactions, %d categories", len(snap.Transactions), len(snap.Categories))
	}
	if got := snap.Categories[0].CurrentSpent.Cents; got != 12050 {
		t.Fatalf("current spent=%d want 12050", got)
	}

	rr = do(srv, http.MethodGet, "/api/snapshot?start=2025-04-01&end=2025-04-30", "")
	snap = decode[gateway.Snapshot](t, rr)
	if len(snap.Transactions) != 0 || snap.Categories[0].CurrentSpent.Cents != 0 {
		t.Fatalf("april snapshot should be empty, got %+v", snap)
	}
}

func TestRecordTransactionValidation(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	tests := []struct {
		name string
		body string
	}{
		{"missing payee", `{"amount":10,"type":"Expense","category":"Food"}`},
		{"zero amount", `{"amount":0,"type":"Expense","category":"Food","payee":"X"}`},
		{"bad type", `{"amount":10,"type":"gift","category":"Food","payee":"X"}`},
		{"missing type", `{"amount":10,"category":"Food","payee":"X"}`},
		{"bad date", `{"amount":10,"type":"Expense","category":"Food","payee":"X","date":"10/03/2025"}`},
		{"unknown field", `{"amount":10,"type":"Expense","category":"Food","payee":"X","tip":1}`},
		{"empty body", ``},
		{"overflowing amount", `{"amount":184467440737095516.17,"type":"Expense","category":"Food","payee":"X"}`},
		{"exponent amount", `{"amount":1e20,"type":"Expense","category":"Food","payee":"X"}`},
		{"negative amount", `{"amount":-5,"type":"Expense","category":"Food","payee":"X"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, http.MethodPost, "/api/transactions", tt.body)
			expectErrorCode(t, rr, http.StatusBadRequest, codeInvalid)
		})
	}
}

func TestSnapshotRejectsHalfRange(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	rr := do(srv, http.MethodGet, "/api/snapshot?start=2025-03-01", "")
	expectErrorCode(t, rr, http.StatusBadRequest, codeInvalid)
}

type brokenCategories struct{ *memory.Store }

func (brokenCategories) ListCategories(context.Context, core.AccountID) ([]core.Category, error) {
	return nil, errors.New("connection reset")
}

func TestSnapshotFetchFailureServesEmptySnapshot(t *testing.T) {
	srv, _ := newTestServer(t, brokenCategories{memory.New()}, Options{})
	rr := do(srv, http.MethodGet, "/api/snapshot", "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"transactions":[]`) {
		t.Fatalf("expected empty collections, got %s", rr.Body.String())
	}
}

func TestPeriodEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/period?duration=monthly&start=2025-01-01&end=2025-01-31&step=next", nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	expectStatus(t, rr, http.StatusOK)
	got := decode[periodResponse](t, rr)
	wantEnd := time.Date(2025, time.February, 28, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !got.Period.End.Equal(wantEnd) || got.Label != "February 2025" {
		t.Fatalf("next period=%+v label=%q", got.Period, got.Label)
	}

	rr = do(srv, http.MethodGet, "/api/period?duration=weekly", "")
	got = decode[periodResponse](t, rr)
	if got.Period.Start.Weekday() != time.Sunday {
		t.Fatalf("weekly period starts on %s", got.Period.Start.Weekday())
	}

	rr = do(srv, http.MethodGet, "/api/period?duration=daily", "")
	expectErrorCode(t, rr, http.StatusBadRequest, codeInvalid)
	rr = do(srv, http.MethodGet, "/api/period?step=sideways", "")
	expectErrorCode(t, rr, http.StatusBadRequest, codeInvalid)
}

func TestViewNavigation(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})

	steps := []struct {
		method, path, label string
	}{
		{http.MethodGet, "/api/view", "March 2025"},
		{http.MethodPost, "/api/view/next", "April 2025"},
		{http.MethodPost, "/api/view/previous", "March 2025"},
		{http.MethodPost, "/api/view/previous", "February 2025"},
		{http.MethodPost, "/api/view/current", "March 2025"},
	}
	for _, st := range steps {
		rr := do(srv, st.method, st.path, "")
		expectStatus(t, rr, http.StatusOK)
		if v := decode[gateway.View](t, rr); v.Label != st.label {
			t.Fatalf("%s %s label=%q want %q", st.method, st.path, v.Label, st.label)
		}
	}

	rr := do(srv, http.MethodPut, "/api/settings/duration", `{"duration":"yearly"}`)
	expectStatus(t, rr, http.StatusOK)
	rr = do(srv, http.MethodGet, "/api/view", "")
	if v := decode[gateway.View](t, rr); v.Label != "2025" {
		t.Fatalf("yearly label=%q", v.Label)
	}
}

func TestLockedSessionBlocksData(t *testing.T) {
	srv, clk := newTestServer(t, memory.New(), Options{})

	rr := do(srv, http.MethodPut, "/api/settings/pin", `{"pin":"1234"}`)
	expectStatus(t, rr, http.StatusOK)
	rr = do(srv, http.MethodGet, "/api/snapshot", "")
	expectStatus(t, rr, http.StatusOK)

	clk.advance(3 * time.Hour)
	rr = do(srv, http.MethodGet, "/api/snapshot", "")
	expectErrorCode(t, rr, http.StatusLocked, codeLocked)

	rr = do(srv, http.MethodGet, "/api/session", "")
	expectStatus(t, rr, http.StatusOK)
	if s := decode[sessionResponse](t, rr); s.State != session.Locked || !s.NeedsVerification {
		t.Fatalf("session=%+v", s)
	}

	rr = do(srv, http.MethodPost, "/api/session/verify", `{"pin":"0000"}`)
	expectErrorCode(t, rr, http.StatusUnauthorized, codePINMismatch)

	rr = do(srv, http.MethodPost, "/api/session/verify", `{"pin":"1234"}`)
	expectStatus(t, rr, http.StatusOK)
	rr = do(srv, http.MethodGet, "/api/snapshot", "")
	expectStatus(t, rr, http.StatusOK)
}

func TestChangePINRequiresCurrent(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	expectStatus(t, do(srv, http.MethodPut, "/api/settings/pin", `{"pin":"1234"}`), http.StatusOK)

	rr := do(srv, http.MethodPut, "/api/settings/pin", `{"pin":"5678","current_pin":"9999"}`)
	expectErrorCode(t, rr, http.StatusForbidden, codeWrongPIN)

	rr = do(srv, http.MethodPut, "/api/settings/pin", `{"pin":"12a4"}`)
	expectErrorCode(t, rr, http.StatusBadRequest, codeInvalid)
}

func TestVerifyWithoutPIN(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	rr := do(srv, http.MethodPost, "/api/session/verify", `{"pin":"1234"}`)
	expectErrorCode(t, rr, http.StatusPreconditionRequired, codePINNotSet)

	rr = do(srv, http.MethodPut, "/api/settings/pin-enabled", `{"enabled":true}`)
	expectErrorCode(t, rr, http.StatusPreconditionRequired, codePINNotSet)
}

func TestPINAttemptsAreRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{PINAttemptsPerMinute: 2})
	for i := 0; i < 2; i++ {
		rr := do(srv, http.MethodPost, "/api/session/verify", `{"pin":"1234"}`)
		expectStatus(t, rr, http.StatusPreconditionRequired)
	}
	rr := do(srv, http.MethodPost, "/api/session/verify", `{"pin":"1234"}`)
	expectErrorCode(t, rr, http.StatusTooManyRequests, codeRateLimited)
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}

	// Other routes are not affected.
	expectStatus(t, do(srv, http.MethodGet, "/api/session", ""), http.StatusOK)
}

func TestAnalyticsCachedUntilMutation(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	record := func(amount string) {
		rr := do(srv, http.MethodPost, "/api/transactions",
			`{"amount":`+amount+`,"type":"Expense","category":"Food","payee":"Market","date":"2025-03-10"}`)
		expectStatus(t, rr, http.StatusCreated)
	}
	record("10")

	rr := do(srv, http.MethodGet, "/api/analytics/summary?lookback=month", "")
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first read X-Cache=%q", rr.Header().Get("X-Cache"))
	}
	rr = do(srv, http.MethodGet, "/api/analytics/summary?lookback=month", "")
	if rr.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second read X-Cache=%q", rr.Header().Get("X-Cache"))
	}

	record("5")
	rr = do(srv, http.MethodGet, "/api/analytics/summary?lookback=month", "")
	if rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("read after mutation X-Cache=%q", rr.Header().Get("X-Cache"))
	}
	sum := decode[aggregate.Summary](t, rr)
	if sum.Count != 2 || sum.Expense.Cents != 1500 {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestAnalyticsReports(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	for _, body := range []string{
		`{"amount":30,"type":"Expense","category":"Food","payee":"A","date":"2025-03-10"}`,
		`{"amount":10,"type":"Expense","category":"Fuel","payee":"B","date":"2025-03-12"}`,
		`{"amount":20,"type":"Expense","category":"Food","payee":"C","date":"2025-02-10"}`,
		`{"amount":500,"type":"Income","category":"Salary","payee":"D","date":"2025-03-01"}`,
	} {
		expectStatus(t, do(srv, http.MethodPost, "/api/transactions", body), http.StatusCreated)
	}

	rr := do(srv, http.MethodGet, "/api/analytics/breakdown?from=2025-03-01&to=2025-03-31", "")
	expectStatus(t, rr, http.StatusOK)
	shares := decode[[]aggregate.CategoryShare](t, rr)
	if len(shares) != 2 || shares[0].Name != "Food" || shares[0].Percent != 75 {
		t.Fatalf("breakdown=%+v", shares)
	}

	rr = do(srv, http.MethodGet, "/api/analytics/trend", "")
	trends := decode[[]aggregate.CategoryTrend](t, rr)
	if len(trends) == 0 || trends[0].Name != "Food" || trends[0].Change != 50 {
		t.Fatalf("trend=%+v", trends)
	}

	rr = do(srv, http.MethodGet, "/api/analytics/comparison?type=expense", "")
	expectStatus(t, rr, http.StatusOK)
	cmp := decode[aggregate.Comparison](t, rr)
	if cmp.Current.Income.Cents != 0 || cmp.Current.Expense.Cents != 4000 {
		t.Fatalf("comparison=%+v", cmp)
	}

	rr = do(srv, http.MethodGet, "/api/analytics/series?lookback=quarter", "")
	expectStatus(t, rr, http.StatusOK)
	if points := decode[[]aggregate.Point](t, rr); len(points) != 4 {
		t.Fatalf("series has %d points", len(points))
	}

	rr = do(srv, http.MethodGet, "/api/analytics/summary?lookback=decade", "")
	expectErrorCode(t, rr, http.StatusBadRequest, codeInvalid)
}

func TestBudgetOverrideEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	rr := do(srv, http.MethodPut, "/api/categories", `{"name":"Food","type":"Expense","budget_limit":100}`)
	cat := decode[core.Category](t, rr)

	body := `{"category_id":"` + cat.ID + `","amount":50,"period_start":"2025-03-01","period_end":"2025-03-31"}`
	expectStatus(t, do(srv, http.MethodPut, "/api/budgets/overrides", body), http.StatusOK)
	expectStatus(t, do(srv, http.MethodPut, "/api/budgets/overrides", body), http.StatusOK)

	rr = do(srv, http.MethodGet, "/api/snapshot?start=2025-03-01&end=2025-03-31", "")
	snap := decode[gateway.Snapshot](t, rr)
	if len(snap.Overrides) != 1 || snap.Categories[0].EffectiveLimit.Cents != 5000 {
		t.Fatalf("overrides=%d limit=%d", len(snap.Overrides), snap.Categories[0].EffectiveLimit.Cents)
	}

	rr = do(srv, http.MethodGet, "/api/snapshot?start=2025-04-01&end=2025-04-30", "")
	snap = decode[gateway.Snapshot](t, rr)
	if snap.Categories[0].EffectiveLimit.Cents != 10000 {
		t.Fatalf("april limit=%d", snap.Categories[0].EffectiveLimit.Cents)
	}
}

func TestCategoryAndInvestmentErrors(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})

	expectErrorCode(t, do(srv, http.MethodDelete, "/api/categories/nope", ""), http.StatusNotFound, codeNotFound)
	expectErrorCode(t, do(srv, http.MethodDelete, "/api/investments/nope", ""), http.StatusNotFound, codeNotFound)

	expectStatus(t, do(srv, http.MethodPut, "/api/categories", `{"name":"Food","type":"Expense"}`), http.StatusOK)
	rr := do(srv, http.MethodPut, "/api/categories", `{"name":"Food","type":"Expense"}`)
	expectErrorCode(t, rr, http.StatusConflict, codeConflict)

	rr = do(srv, http.MethodPut, "/api/investments", `{"category":"Stocks","target_amount":1000,"current_balance":250}`)
	expectStatus(t, rr, http.StatusOK)
	inv := decode[core.Investment](t, rr)
	expectStatus(t, do(srv, http.MethodDelete, "/api/investments/"+inv.ID, ""), http.StatusNoContent)
}

func TestOnboardingSeedsDefaultCategories(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	rr := do(srv, http.MethodPost, "/api/settings/onboarding", `{"default_categories":true}`)
	expectStatus(t, rr, http.StatusOK)
	got := decode[onboardingResponse](t, rr)
	if !got.Settings.OnboardingCompleted || got.CategoriesCreated != len(core.DefaultCategories()) {
		t.Fatalf("onboarding=%+v", got)
	}

	rr = do(srv, http.MethodPost, "/api/settings/onboarding", "")
	expectStatus(t, rr, http.StatusOK)
	if got := decode[onboardingResponse](t, rr); got.CategoriesCreated != 0 {
		t.Fatalf("second onboarding created %d categories", got.CategoriesCreated)
	}
}

func TestSuspiciousRequestRejected(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	rr := do(srv, http.MethodGet, "/api/snapshot?file=../../etc/passwd", "")
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{AllowedOrigins: []string{"https://app.example.com"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/snapshot", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", HeaderAccountID)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Access-Control-Allow-Origin=%q", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Options{})
	expectErrorCode(t, do(srv, http.MethodGet, "/api/nothing", ""), http.StatusNotFound, codeNotFound)
}
