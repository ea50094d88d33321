package restapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vault_aggregator/internal/app/service"
	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/domain/rollout"
	"vault_aggregator/internal/infrastructure/vaultstore/memory"
	"vault_aggregator/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	treasury = common.HexToAddress("0xAC00000000000000000000000000000000000B08")
	ops      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type recordingAggregator struct {
	mu       sync.Mutex
	loads    int
	retries  int
	currency string
	timeout  time.Duration
	down     bool
	retried  *entity.AggregationResult
}

func (a *recordingAggregator) LoadAggregatedBalances(_ context.Context, v entity.MultichainVault, cur string, timeout time.Duration) (*entity.AggregationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loads++
	a.currency = cur
	a.timeout = timeout
	if a.down {
		return &entity.AggregationResult{
			RunID:           "run-down",
			VaultAddress:    v.Address,
			FiatCurrency:    cur,
			TotalFiatAmount: decimal.Zero,
			SucceededChains: []uint64{},
			FailedChains: map[uint64]entity.ChainFetchFailure{
				84532:    {ChainID: 84532, ChainName: "Base Sepolia", Reason: "rpc down"},
				11155111: {ChainID: 11155111, ChainName: "Sepolia", Reason: "rpc down"},
			},
			Snapshots: map[uint64]entity.BalanceSnapshot{},
		}, nil
	}
	return &entity.AggregationResult{
		RunID:           "run-1",
		VaultAddress:    v.Address,
		FiatCurrency:    cur,
		TotalFiatAmount: decimal.RequireFromString("3750.15"),
		SucceededChains: []uint64{84532},
		FailedChains: map[uint64]entity.ChainFetchFailure{
			11155111: {ChainID: 11155111, ChainName: "Sepolia", Reason: "timeout", TimedOut: true},
		},
	}, nil
}

func (a *recordingAggregator) LoadBalanceForSingleChain(context.Context, entity.PerChainVault, string) (*entity.BalanceSnapshot, error) {
	return nil, nil
}

func (a *recordingAggregator) RetryFailedChains(_ context.Context, v entity.MultichainVault, previous *entity.AggregationResult, _ time.Duration) (*entity.AggregationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.retries++
	a.retried = previous
	return &entity.AggregationResult{
		RunID:           "run-2",
		VaultAddress:    v.Address,
		FiatCurrency:    previous.FiatCurrency,
		TotalFiatAmount: decimal.RequireFromString("4000"),
		SucceededChains: []uint64{84532, 11155111},
		FailedChains:    map[uint64]entity.ChainFetchFailure{},
	}, nil
}

type apiFixture struct {
	router *gin.Engine
	agg    *recordingAggregator
	store  *memory.Store
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewZapAdapter(zap.NewNop())

	store := memory.NewStore(
		entity.PerChainVault{Address: treasury, ChainID: 11155111, DisplayName: "Treasury"},
		entity.PerChainVault{Address: treasury, ChainID: 84532, DisplayName: "Treasury"},
		entity.PerChainVault{Address: ops, ChainID: 10, DisplayName: "Ops"},
	)
	repo := service.NewVaultRepository(store, log)
	coordinator := service.NewMigrationCoordinator(store, repo, true, nil, log)
	agg := &recordingAggregator{}
	cached := service.NewCachedAggregator(agg, time.Minute, time.Minute, log)

	h := NewVaultHandler(repo, coordinator, cached, FeatureSettings{
		Gate:          rollout.Gate{UserToggle: true, RolloutPercent: 100},
		BuildKind:     rollout.BuildRelease,
		StabilityFlag: true,
		DefaultSeed:   "install-1",
	}, HandlerOptions{FiatCurrency: "USD", ChainTimeout: 15 * time.Second, MaxTimeout: time.Minute}, log)

	return &apiFixture{
		router: SetupRouter(h, RouterOptions{Gatherer: prometheus.NewRegistry()}),
		agg:    agg,
		store:  store,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestListVaults(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, http.MethodGet, "/api/v1/vaults", "")
	require.Equal(t, http.StatusOK, w.Code)

	vaults := body["data"].([]any)
	require.Len(t, vaults, 2)
	names := []string{
		vaults[0].(map[string]any)["displayName"].(string),
		vaults[1].(map[string]any)["displayName"].(string),
	}
	assert.ElementsMatch(t, []string{"Ops", "Treasury"}, names)
}

func TestSelectVaultSynchronizesPointers(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPut, "/api/v1/vaults/active", `{"address":"`+treasury.Hex()+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	legacy, err := f.store.GetLegacyPointer(context.Background())
	require.NoError(t, err)
	require.NotNil(t, legacy)
	assert.Equal(t, treasury, legacy.Address)
	assert.EqualValues(t, 84532, legacy.ChainID)

	w, body := f.do(t, http.MethodGet, "/api/v1/vaults/active", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{84532.0, 11155111.0}, body["data"].(map[string]any)["chainIds"])

	w, body = f.do(t, http.MethodGet, "/api/v1/migration/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["pointersSynchronized"])
}

func TestSelectVaultRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPut, "/api/v1/vaults/active", `{"address":"not-an-address"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/v1/vaults/active", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/v1/vaults/active", `{"address":"0x7a00000000000000000000000000000000000003"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLegacySelectionReportsDivergence(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPut, "/api/v1/vaults/active", `{"address":"`+treasury.Hex()+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/v1/vaults/legacy-active", `{"address":"`+ops.Hex()+`","chainId":137}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/v1/vaults/legacy-active", `{"address":"`+ops.Hex()+`","chainId":10}`)
	require.Equal(t, http.StatusOK, w.Code)

	_, body := f.do(t, http.MethodGet, "/api/v1/migration/status", "")
	status := body["data"].(map[string]any)
	assert.Equal(t, false, status["pointersSynchronized"])
	div := status["divergence"].(map[string]any)
	assert.Equal(t, ops, common.HexToAddress(div["legacyAddress"].(string)))
	assert.Equal(t, treasury, common.HexToAddress(div["multichainAddress"].(string)))
}

func TestGetBalances(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/api/v1/vaults/"+treasury.Hex()+"/balances?currency=eur&timeoutMs=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.agg.loads)
	assert.Equal(t, "EUR", f.agg.currency)
	assert.Equal(t, 500*time.Millisecond, f.agg.timeout)

	data := body["data"].(map[string]any)
	assert.Equal(t, "3750.15", data["totalFiatAmount"])
	assert.Contains(t, body["status_message"], "can be retried")
}

func TestGetBalancesValidation(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodGet, "/api/v1/vaults/"+treasury.Hex()+"/balances?timeoutMs=-3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/v1/vaults/"+treasury.Hex()+"/balances?timeoutMs=3600000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Minute, f.agg.timeout)

	w, _ = f.do(t, http.MethodGet, "/api/v1/vaults/0xzz/balances", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetryBalances(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/vaults/" + treasury.Hex() + "/balances/retry"

	w, _ := f.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.agg.loads)
	assert.Equal(t, 0, f.agg.retries)

	w, body := f.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.agg.retries)
	assert.Equal(t, "run-2", body["data"].(map[string]any)["runId"])
}

func TestSetMode(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/v1/migration/mode", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := f.do(t, http.MethodPost, "/api/v1/migration/mode", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["data"].(map[string]any)["multichainModeEnabled"])
}

func TestMultichainFeature(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, http.MethodGet, "/api/v1/features/multichain?seed=abc", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["visible"])
	assert.EqualValues(t, rollout.Bucket("abc"), data["bucket"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStreamActiveVault(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/vaults/active/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	nextData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data:") {
				return line
			}
		}
	}

	assert.Contains(t, nextData(), `"vault":null`)

	w, _ := f.do(t, http.MethodPut, "/api/v1/vaults/active", `{"address":"`+treasury.Hex()+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, strings.ToLower(nextData()), strings.ToLower(treasury.Hex()))
}

func TestRetryAfterOutageStartsFromFailedRun(t *testing.T) {
	f := newFixture(t)
	balances := "/api/v1/vaults/" + treasury.Hex() + "/balances"

	w, _ := f.do(t, http.MethodGet, balances, "")
	require.Equal(t, http.StatusOK, w.Code)

	f.agg.down = true
	w, body := f.do(t, http.MethodGet, balances, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["stale"])
	assert.Equal(t, "run-down", data["runId"])
	assert.Equal(t, "run-1", data["staleRunId"])
	assert.Empty(t, data["succeededChains"])
	assert.Len(t, data["failedChains"], 2)

	f.agg.down = false
	w, _ = f.do(t, http.MethodPost, balances+"/retry", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, f.agg.retries)
	require.NotNil(t, f.agg.retried)
	assert.True(t, f.agg.retried.Stale)
	assert.Equal(t, "run-down", f.agg.retried.RunID)
	assert.Empty(t, f.agg.retried.Snapshots)
}
