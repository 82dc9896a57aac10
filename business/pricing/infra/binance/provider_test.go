package binance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func newTestProvider(t *testing.T, serverURL string) *Provider {
	t.Helper()

	cfg := DefaultProviderConfig(nil)
	cfg.HTTPURL = serverURL
	cfg.EnableStream = false

	p, err := NewProvider(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestProvider_GetPrice_REST(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("path = %s, want /api/v3/ticker/price", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "SOMIUSDT" {
			t.Errorf("symbol = %s, want SOMIUSDT", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TickerPriceResponse{Symbol: "SOMIUSDT", Price: "0.5123"})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	quote, err := p.GetPrice(context.Background(), "SOMI")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !quote.Price.Equal(decimal.RequireFromString("0.5123")) {
		t.Errorf("Price = %s, want 0.5123", quote.Price)
	}
	if quote.Source != domain.SourceBinance {
		t.Errorf("Source = %s, want binance", quote.Source)
	}
	if quote.Symbol != "SOMI" {
		t.Errorf("Symbol = %s, want SOMI", quote.Symbol)
	}
}

func TestProvider_GetPrice_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.GetPrice(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("expected error for upstream 400")
	}
	if apperror.GetCode(err) != apperror.CodeExchangeAPIError {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeExchangeAPIError)
	}
}

func TestProvider_GetCandles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("path = %s, want /api/v3/klines", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "1h" {
			t.Errorf("interval = %s, want 1h", got)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %s, want 2", got)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			[1700000000000,"0.50","0.53","0.49","0.52","120000",1700003599999,"0",0,"0","0","0"],
			[1700003600000,"0.52","0.55","0.51","0.54","98000",1700007199999,"0",0,"0","0","0"]
		]`)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	candles, err := p.GetCandles(context.Background(), "SOMI", "1h", 2)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("candles = %d, want 2", len(candles))
	}
	if !candles[0].Open.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("Open = %s, want 0.50", candles[0].Open)
	}
	if !candles[1].Close.Equal(decimal.RequireFromString("0.54")) {
		t.Errorf("Close = %s, want 0.54", candles[1].Close)
	}
	if candles[0].OpenTime.UnixMilli() != 1700000000000 {
		t.Errorf("OpenTime = %d, want 1700000000000", candles[0].OpenTime.UnixMilli())
	}
}

func TestProvider_GetCandles_BadTimeframe(t *testing.T) {
	p := newTestProvider(t, "http://127.0.0.1:0")

	_, err := p.GetCandles(context.Background(), "SOMI", "7h", 10)
	if apperror.GetCode(err) != apperror.CodeInvalidInput {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidInput)
	}
}

func TestMapTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1h", "1h", false},
		{"1d", "1d", false},
		{"", "1h", false},
		{"2h", "", true},
		{"monthly", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := mapTimeframe(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("mapTimeframe(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
