package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/api"
	dexapp "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/infra/demo"
	engagementapp "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/app"
	engagementdomain "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/infra/memory"
	pricingapp "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/app"
	pricingdomain "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/config"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const testChainID = 5031

// fakeExchange is a scriptable pricing source for the HTTP tests.
type fakeExchange struct {
	mu      sync.Mutex
	name    pricingdomain.Source
	price   decimal.Decimal
	err     error
	candles []pricingdomain.Candle
}

func (f *fakeExchange) Name() pricingdomain.Source { return f.name }

func (f *fakeExchange) GetPrice(_ context.Context, symbol string) (pricingdomain.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pricingdomain.PriceQuote{}, f.err
	}
	return pricingdomain.NewQuote(symbol, f.price, f.name), nil
}

func (f *fakeExchange) GetCandles(_ context.Context, _ string, _ string, _ int) ([]pricingdomain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeExchange) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type testEnv struct {
	server   *httptest.Server
	exchange *fakeExchange
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	exchange := &fakeExchange{
		name:  pricingdomain.SourceBinance,
		price: decimal.RequireFromString("100"),
	}
	prices := pricingapp.NewService(
		pricingapp.ServiceConfig{CacheTTL: time.Millisecond, SourceTimeout: time.Second},
		log, pricingapp.WithExchange(exchange))

	manager, err := dexapp.NewManager(context.Background(), dexapp.ManagerConfig{},
		log, dexapp.WithBackend(demo.NewBackend(log)))
	require.NoError(t, err)

	engagement := engagementapp.NewService(
		engagementapp.ServiceConfig{ChainID: testChainID, ViewDedupeTTL: time.Hour},
		memory.NewStore(), log)

	srv := api.NewServer(config.ServerConfig{}, prices, manager, engagement, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, exchange: exchange}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp, decodeEnvelope(t, resp)
}

func (e *testEnv) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp, decodeEnvelope(t, resp)
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestAPI_DexStatus(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/dex")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "demo", body["mode"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "simulated", data["execution"])
}

func TestAPI_DexPool(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/dex?action=pool&token0=WSOMI&token1=USDC")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Equal(t, "USDC", data["token0"])
	assert.Equal(t, "WSOMI", data["token1"])
}

func TestAPI_DexPool_MissingTokens(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/dex?action=pool")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "REQUIRED_FIELD", body["code"])
}

func TestAPI_DexUnknownAction(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/dex?action=garbage")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DexSwap(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, "/api/dex", map[string]any{
		"action": "swap",
		"params": map[string]any{
			"tokenIn":   "WSOMI",
			"tokenOut":  "USDC",
			"amountIn":  "100",
			"recipient": "0xdddddddddddddddddddddddddddddddddddddddd",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	execution := data["execution"].(map[string]any)
	assert.Equal(t, "simulated", execution["kind"])
	assert.NotEmpty(t, execution["refId"])
	assert.Empty(t, execution["txData"])
}

func TestAPI_GetAggregatedPrice(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/prices?symbol=SOMI")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Equal(t, "SOMI", data["symbol"])
	assert.Equal(t, "100", data["price"])
}

func TestAPI_GetPrice_MissingSymbol(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/prices")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "REQUIRED_FIELD", body["code"])
}

func TestAPI_GetPrice_StaleFallback(t *testing.T) {
	env := newTestEnv(t)

	// Seed the last-known price, then kill the upstream.
	resp, _ := env.get(t, "/api/prices?symbol=SOMI")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.exchange.fail(assert.AnError)

	// Past the tiny cache TTL, aggregation fails and the stale copy
	// is served instead.
	time.Sleep(5 * time.Millisecond)
	resp, body := env.get(t, "/api/prices?symbol=SOMI")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["stale"])
	assert.Equal(t, "100", data["price"])
}

func TestAPI_Arbitrage(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, "/api/prices", map[string]any{
		"symbol":           "SOMI",
		"dexPrice":         "105",
		"minProfitPercent": "2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	opp := data["opportunity"].(map[string]any)
	assert.Equal(t, true, opp["profitable"])
	assert.Equal(t, "5", opp["spreadPercent"])
}

func TestAPI_History(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.exchange.candles = []pricingdomain.Candle{
		{
			OpenTime: now.Add(-2 * time.Hour), CloseTime: now.Add(-time.Hour),
			Open: decimal.RequireFromString("99"), High: decimal.RequireFromString("101"),
			Low: decimal.RequireFromString("98"), Close: decimal.RequireFromString("100"),
		},
		{
			OpenTime: now.Add(-time.Hour), CloseTime: now,
			Open: decimal.RequireFromString("100"), High: decimal.RequireFromString("102"),
			Low: decimal.RequireFromString("99"), Close: decimal.RequireFromString("101"),
		},
	}

	resp, body := env.get(t, "/api/prices/history?symbol=SOMI&timeframe=1h&limit=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	candles := data["candles"].([]any)
	assert.Len(t, candles, 2)
	summary := data["summary"].(map[string]any)
	assert.Equal(t, "102", summary["high"])
}

func signedLike(t *testing.T, listingID string) (addr, message, signature string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	message = engagementdomain.LikeMessage(listingID, testChainID)
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[64] += 27
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), message, hexutil.Encode(sig)
}

func TestAPI_EngagementLike(t *testing.T) {
	env := newTestEnv(t)
	addr, message, sig := signedLike(t, "listing-1")

	resp, body := env.post(t, "/api/engagement/like", map[string]any{
		"listingId": "listing-1",
		"address":   addr,
		"message":   message,
		"signature": sig,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["hasLiked"])
	assert.Equal(t, float64(1), data["likes"])
}

func TestAPI_EngagementLike_BadSignature(t *testing.T) {
	env := newTestEnv(t)
	addr, message, _ := signedLike(t, "listing-1")

	resp, body := env.post(t, "/api/engagement/like", map[string]any{
		"listingId": "listing-1",
		"address":   addr,
		"message":   message,
		"signature": "0x1234",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "SIGNATURE_INVALID", body["code"])

	// The rejected like must not register.
	_, check := env.get(t, "/api/engagement/listing-1")
	data := check["data"].(map[string]any)
	assert.Equal(t, float64(0), data["likes"])
}

func TestAPI_EngagementViewAndTrending(t *testing.T) {
	env := newTestEnv(t)

	// Two views with the same hash dedupe to one.
	for i := 0; i < 2; i++ {
		resp, _ := env.post(t, "/api/engagement/view", map[string]any{
			"listingId": "listing-1",
			"ipHash":    "hash-a",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	_, body := env.get(t, "/api/engagement/listing-1")
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["views"])

	resp, body := env.get(t, "/api/engagement/trending?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	top := entries[0].(map[string]any)
	assert.Equal(t, "listing-1", top["listingId"])
	assert.Equal(t, float64(1), top["score"])
}
