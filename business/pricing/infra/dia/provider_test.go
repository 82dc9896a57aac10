package dia

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/shopspring/decimal"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const testOracleAddr = "0xbA0A2d0b8bE7E116F5dbb8E1ae1BF04F31fa8c61"

// fakeCaller returns canned CallContract responses.
type fakeCaller struct {
	response []byte
	err      error
	calls    int
}

func (f *fakeCaller) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	return f.response, f.err
}

// encodeGetValue packs a (value, timestamp) pair the way the contract would.
func encodeGetValue(t *testing.T, value *big.Int, timestamp int64) []byte {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(OracleABI))
	if err != nil {
		t.Fatalf("parse ABI: %v", err)
	}
	out, err := parsed.Methods["getValue"].Outputs.Pack(value, big.NewInt(timestamp))
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}
	return out
}

func newTestProvider(t *testing.T, caller ContractCaller, maxStaleness time.Duration) *Provider {
	t.Helper()

	cfg := ProviderConfig{
		OracleAddress: testOracleAddr,
		Keys:          map[string]string{"SOMI": "SOMI/USD"},
		MaxStaleness:  maxStaleness,
	}
	p, err := NewProvider(caller, cfg, logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestProvider_GetPrice(t *testing.T) {
	// 0.51230000 at 8 decimals
	caller := &fakeCaller{response: encodeGetValue(t, big.NewInt(51_230_000), time.Now().Unix())}
	p := newTestProvider(t, caller, 0)

	quote, err := p.GetPrice(context.Background(), "SOMI")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !quote.Price.Equal(decimal.RequireFromString("0.5123")) {
		t.Errorf("Price = %s, want 0.5123", quote.Price)
	}
	if quote.Source != domain.SourceDIAOracle {
		t.Errorf("Source = %s, want dia-oracle", quote.Source)
	}
	if caller.calls != 1 {
		t.Errorf("calls = %d, want 1", caller.calls)
	}
}

func TestProvider_GetPrice_UnconfiguredSymbol(t *testing.T) {
	p := newTestProvider(t, &fakeCaller{}, 0)

	_, err := p.GetPrice(context.Background(), "DOGE")
	if apperror.GetCode(err) != apperror.CodeInvalidSymbol {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidSymbol)
	}
}

func TestProvider_GetPrice_RPCError(t *testing.T) {
	p := newTestProvider(t, &fakeCaller{err: errors.New("connection refused")}, 0)

	_, err := p.GetPrice(context.Background(), "SOMI")
	if apperror.GetCode(err) != apperror.CodeOracleReadFailed {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeOracleReadFailed)
	}
}

func TestProvider_GetPrice_ZeroValueRejected(t *testing.T) {
	caller := &fakeCaller{response: encodeGetValue(t, big.NewInt(0), time.Now().Unix())}
	p := newTestProvider(t, caller, 0)

	if _, err := p.GetPrice(context.Background(), "SOMI"); err == nil {
		t.Fatal("zero oracle value must be rejected")
	}
}

func TestProvider_GetPrice_StaleValueRejected(t *testing.T) {
	old := time.Now().Add(-2 * time.Hour).Unix()
	caller := &fakeCaller{response: encodeGetValue(t, big.NewInt(51_230_000), old)}
	p := newTestProvider(t, caller, time.Hour)

	if _, err := p.GetPrice(context.Background(), "SOMI"); err == nil {
		t.Fatal("stale oracle value must be rejected")
	}
}

func TestNewProvider_InvalidAddress(t *testing.T) {
	cfg := ProviderConfig{OracleAddress: "not-an-address"}
	if _, err := NewProvider(&fakeCaller{}, cfg, logger.New(io.Discard, logger.LevelError, "test", nil)); err == nil {
		t.Fatal("invalid oracle address must be rejected")
	}
}
