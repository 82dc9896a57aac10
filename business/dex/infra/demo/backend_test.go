package demo

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const testRecipient = "0xdddddddddddddddddddddddddddddddddddddddd"

func newTestBackend() *Backend {
	return NewBackend(logger.New(io.Discard, logger.LevelError, "test", nil))
}

func TestBackend_ProbeAlwaysHealthy(t *testing.T) {
	if err := newTestBackend().Probe(context.Background()); err != nil {
		t.Errorf("Probe: %v", err)
	}
}

func TestBackend_GetPool(t *testing.T) {
	b := newTestBackend()

	pool, err := b.GetPool(context.Background(), "wsomi", "usdc")
	if err != nil {
		t.Fatalf("GetPool: %v", err)
	}

	if pool.Token0 != "USDC" || pool.Token1 != "WSOMI" {
		t.Errorf("pair = %s/%s, want alphabetical USDC/WSOMI", pool.Token0, pool.Token1)
	}
	// USDC in WSOMI terms at the book prices: 1 / 0.52.
	want := decimal.NewFromInt(1).Div(decimal.RequireFromString("0.52"))
	if !pool.Token0Price.Equal(want) {
		t.Errorf("Token0Price = %s, want %s", pool.Token0Price, want)
	}

	again, err := b.GetPool(context.Background(), "USDC", "WSOMI")
	if err != nil {
		t.Fatalf("GetPool reversed: %v", err)
	}
	if again.Address != pool.Address {
		t.Errorf("pool address not stable across argument order: %s vs %s", again.Address, pool.Address)
	}
}

func TestBackend_GetPool_UnknownToken(t *testing.T) {
	_, err := newTestBackend().GetPool(context.Background(), "WSOMI", "DOGE")
	if apperror.GetCode(err) != apperror.CodePoolNotFound {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodePoolNotFound)
	}
}

func TestBackend_GetUserPositions_Deterministic(t *testing.T) {
	b := newTestBackend()

	first, err := b.GetUserPositions(context.Background(), testRecipient)
	if err != nil {
		t.Fatalf("GetUserPositions: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("positions = %d, want 2", len(first))
	}

	second, err := b.GetUserPositions(context.Background(), testRecipient)
	if err != nil {
		t.Fatalf("GetUserPositions repeat: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("position %d ID changed between calls: %d vs %d", i, first[i].ID, second[i].ID)
		}
	}
	for _, pos := range first {
		if !pos.InRange {
			t.Errorf("position %d not in range", pos.ID)
		}
	}

	_, err = b.GetUserPositions(context.Background(), "not-an-address")
	if apperror.GetCode(err) != apperror.CodeInvalidAddress {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidAddress)
	}
}

func TestBackend_AddLiquidity_Simulated(t *testing.T) {
	b := newTestBackend()

	res, err := b.AddLiquidity(context.Background(), domain.LiquidityParams{
		Token0:    "WSOMI",
		Token1:    "USDC",
		Amount0:   decimal.NewFromInt(100),
		Amount1:   decimal.NewFromInt(52),
		Recipient: testRecipient,
	})
	if err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}

	if res.Execution.Kind != domain.ExecutionSimulated {
		t.Errorf("Kind = %s, want simulated", res.Execution.Kind)
	}
	if res.Execution.RefID == "" {
		t.Error("simulated result must carry a RefID")
	}
	if res.Execution.TxData != "" {
		t.Error("simulated result must not carry calldata")
	}
	if res.FeeTier != 3000 {
		t.Errorf("FeeTier = %d, want default 3000", res.FeeTier)
	}
}

func TestBackend_Swap(t *testing.T) {
	b := newTestBackend()

	res, err := b.Swap(context.Background(), domain.SwapParams{
		TokenIn:   "WSOMI",
		TokenOut:  "USDC",
		AmountIn:  decimal.NewFromInt(100),
		Recipient: testRecipient,
	})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	// 100 WSOMI at 0.52 USD into USDC at 1.00.
	want := decimal.RequireFromString("52")
	if !res.AmountOut.Equal(want) {
		t.Errorf("AmountOut = %s, want %s", res.AmountOut, want)
	}
	if res.Execution.Kind != domain.ExecutionSimulated {
		t.Errorf("Kind = %s, want simulated", res.Execution.Kind)
	}
	if res.Execution.Mode != domain.ModeDemo {
		t.Errorf("Mode = %s, want demo", res.Execution.Mode)
	}
}

func TestBackend_Swap_MinimumNotMet(t *testing.T) {
	b := newTestBackend()

	_, err := b.Swap(context.Background(), domain.SwapParams{
		TokenIn:      "WSOMI",
		TokenOut:     "USDC",
		AmountIn:     decimal.NewFromInt(100),
		MinAmountOut: decimal.NewFromInt(60),
		Recipient:    testRecipient,
	})
	if apperror.GetCode(err) != apperror.CodeInvalidInput {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidInput)
	}
}

func TestBackend_RefIDsAdvance(t *testing.T) {
	b := newTestBackend()

	params := domain.SwapParams{
		TokenIn: "WSOMI", TokenOut: "USDC",
		AmountIn: decimal.NewFromInt(1), Recipient: testRecipient,
	}
	first, err := b.Swap(context.Background(), params)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	second, err := b.Swap(context.Background(), params)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if first.Execution.RefID == second.Execution.RefID {
		t.Errorf("RefID %s reused across fills", first.Execution.RefID)
	}
}
