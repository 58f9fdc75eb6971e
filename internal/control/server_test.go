package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	engineDomain "github.com/flowsniper/flowsniper/business/engine/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/testutil"
)

type fakeEngine struct {
	mu       sync.Mutex
	snapshot engineDomain.Snapshot
	startErr error
	starts   int
	stops    int
	updated  *engineDomain.Params
	activity time.Time
}

func (f *fakeEngine) Start(mode string, params engineDomain.Params) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.snapshot.State = engineDomain.StateScanning
	f.snapshot.Mode = mode
	f.snapshot.Params = f.snapshot.Params.Merge(params)
	return nil
}

func (f *fakeEngine) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot.State == engineDomain.StateStopped {
		return apperror.New(apperror.CodeEngineNotRunning)
	}
	f.stops++
	f.snapshot.State = engineDomain.StateStopped
	return nil
}

func (f *fakeEngine) Snapshot() engineDomain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeEngine) UpdateParams(params engineDomain.Params) engineDomain.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = &params
	f.snapshot.Params = f.snapshot.Params.Merge(params)
	return f.snapshot.Params
}

func (f *fakeEngine) LastActivity() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activity
}

type fakeHistory struct{}

func (fakeHistory) Recent(int) []engineDomain.FlowStep { return nil }

type fakeTreasury struct {
	transfers  int
	recharges  int
	liquidated bool
}

func (f *fakeTreasury) Transfer(_ context.Context, _ *asset.Asset, _ common.Address, _ decimal.Decimal) (common.Hash, error) {
	f.transfers++
	return common.HexToHash("0x1"), nil
}

func (f *fakeTreasury) RechargeGas(_ context.Context, _ decimal.Decimal) (common.Hash, error) {
	f.recharges++
	return common.HexToHash("0x2"), nil
}

func (f *fakeTreasury) EmergencyLiquidate(_ context.Context, _ *asset.Registry) ([]common.Hash, error) {
	f.liquidated = true
	return []common.Hash{common.HexToHash("0x3")}, nil
}

type fakeCustodian struct {
	paired bool
}

func (f *fakeCustodian) Operator() common.Address {
	return common.HexToAddress("0x4444444444444444444444444444444444444444")
}

func (f *fakeCustodian) Owner() (common.Address, bool) {
	return common.Address{}, false
}

func (f *fakeCustodian) Pair(context.Context, common.Address, []byte) error {
	f.paired = true
	return nil
}

type testServer struct {
	server   *Server
	engine   *fakeEngine
	treasury *fakeTreasury
	custody  *fakeCustodian
	mux      http.Handler
}

func newTestServer(t *testing.T, authToken string) *testServer {
	t.Helper()

	ts := &testServer{
		engine:   &fakeEngine{snapshot: engineDomain.Snapshot{State: engineDomain.StateStopped}},
		treasury: &fakeTreasury{},
		custody:  &fakeCustodian{},
	}
	ts.server = NewServer(Config{ListenAddr: "127.0.0.1:0", AuthToken: authToken},
		ts.engine, fakeHistory{}, ts.treasury, ts.custody, asset.DefaultRegistry(), testutil.NopLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", ts.server.auth(ts.server.handleStatus))
	mux.HandleFunc("POST /start", ts.server.auth(ts.server.handleStart))
	mux.HandleFunc("POST /stop", ts.server.auth(ts.server.handleStop))
	mux.HandleFunc("POST /config", ts.server.auth(ts.server.handleConfig))
	mux.HandleFunc("POST /withdraw", ts.server.auth(ts.server.handleWithdraw))
	mux.HandleFunc("POST /liquidate", ts.server.auth(ts.server.handleLiquidate))
	mux.HandleFunc("POST /recharge", ts.server.auth(ts.server.handleRecharge))
	ts.mux = mux
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsBadToken(t *testing.T) {
	ts := newTestServer(t, "secret")

	if rec := ts.do(t, http.MethodGet, "/status", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/status", "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/status", "secret", ""); rec.Code != http.StatusOK {
		t.Fatalf("good token: status = %d", rec.Code)
	}
}

func TestStatusReportsEngineAndOperator(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Engine.State != engineDomain.StateStopped {
		t.Fatalf("engine state = %s", resp.Engine.State)
	}
	if resp.Operator != ts.custody.Operator().Hex() {
		t.Fatalf("operator = %s", resp.Operator)
	}
	if resp.Owner != "" {
		t.Fatalf("owner = %s, want empty when unpaired", resp.Owner)
	}
}

func TestStartAndStop(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, "/start", "", `{"mode":"live","params":{"trade_amount":"10"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status = %d body = %s", rec.Code, rec.Body)
	}
	if ts.engine.starts != 1 {
		t.Fatalf("starts = %d", ts.engine.starts)
	}
	if got := ts.engine.Snapshot().Params.TradeAmount.String(); got != "10" {
		t.Fatalf("trade amount = %s", got)
	}

	rec = ts.do(t, http.MethodPost, "/stop", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: status = %d", rec.Code)
	}

	// Stopping a stopped engine is a client error.
	rec = ts.do(t, http.MethodPost, "/stop", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("double stop: status = %d", rec.Code)
	}
}

func TestConfigMergesParams(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, "/config", "", `{"slippage":"0.01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("config: status = %d body = %s", rec.Code, rec.Body)
	}
	if ts.engine.updated == nil || ts.engine.updated.Slippage.String() != "0.01" {
		t.Fatalf("update not applied: %+v", ts.engine.updated)
	}
}

func TestWithdrawValidation(t *testing.T) {
	ts := newTestServer(t, "")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"token":"USDT","to":"0x1111111111111111111111111111111111111111","amount":"5"}`, http.StatusOK},
		{"bad address", `{"token":"USDT","to":"nope","amount":"5"}`, http.StatusBadRequest},
		{"unknown token", `{"token":"DOGE","to":"0x1111111111111111111111111111111111111111","amount":"5"}`, http.StatusNotFound},
		{"bad amount", `{"token":"USDT","to":"0x1111111111111111111111111111111111111111","amount":"five"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/withdraw", "", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	if ts.treasury.transfers != 1 {
		t.Fatalf("transfers = %d, want 1", ts.treasury.transfers)
	}
}

func TestLiquidateAndRecharge(t *testing.T) {
	ts := newTestServer(t, "")

	if rec := ts.do(t, http.MethodPost, "/liquidate", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("liquidate: status = %d", rec.Code)
	}
	if !ts.treasury.liquidated {
		t.Fatal("liquidation not invoked")
	}

	if rec := ts.do(t, http.MethodPost, "/recharge", "", `{"amount":"25"}`); rec.Code != http.StatusOK {
		t.Fatalf("recharge: status = %d", rec.Code)
	}
	if ts.treasury.recharges != 1 {
		t.Fatalf("recharges = %d", ts.treasury.recharges)
	}
}

func TestWatchdogRestartsSilentEngine(t *testing.T) {
	engine := &fakeEngine{
		snapshot: engineDomain.Snapshot{State: engineDomain.StateScanning, Mode: "live"},
		activity: time.Now().Add(-time.Hour),
	}
	w := NewWatchdog(engine, time.Minute, testutil.NopLogger())

	w.check(context.Background())

	if engine.stops != 1 || engine.starts != 1 {
		t.Fatalf("stops = %d starts = %d, want 1/1", engine.stops, engine.starts)
	}
	if engine.Snapshot().Mode != "live" {
		t.Fatal("restart must keep the previous mode")
	}
}

func TestWatchdogLeavesHealthyEngineAlone(t *testing.T) {
	engine := &fakeEngine{
		snapshot: engineDomain.Snapshot{State: engineDomain.StateScanning},
		activity: time.Now(),
	}
	w := NewWatchdog(engine, time.Minute, testutil.NopLogger())

	w.check(context.Background())

	if engine.stops != 0 || engine.starts != 0 {
		t.Fatalf("stops = %d starts = %d, want 0/0", engine.stops, engine.starts)
	}
}

func TestWatchdogIgnoresStoppedEngine(t *testing.T) {
	engine := &fakeEngine{
		snapshot: engineDomain.Snapshot{State: engineDomain.StateStopped},
		activity: time.Now().Add(-time.Hour),
	}
	w := NewWatchdog(engine, time.Minute, testutil.NopLogger())

	w.check(context.Background())

	if engine.stops != 0 || engine.starts != 0 {
		t.Fatal("stopped engine must not be restarted")
	}
}
