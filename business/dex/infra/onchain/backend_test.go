package onchain

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/config"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

var testNetwork = config.NetworkConfig{
	RPCURL:          "http://localhost:8545",
	ChainID:         5031,
	FactoryAddress:  "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	PositionManager: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	RouterAddress:   "0xcccccccccccccccccccccccccccccccccccccccc",
}

const testPoolAddr = "0x1234123412341234123412341234123412341234"

// sqrtPriceX96For builds the Q64.96 sqrt price encoding rawRatio.
func sqrtPriceX96For(rawRatio float64) *big.Int {
	f := new(big.Float).SetPrec(200).SetFloat64(rawRatio)
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetPrec(200).SetInt(q96))
	i, _ := f.Int(nil)
	return i
}

// fakeChain scripts contract responses by target and method selector.
type fakeChain struct {
	t *testing.T

	factoryABI abi.ABI
	poolABI    abi.ABI
	pmABI      abi.ABI

	err error

	// factory: fee tier -> pool address ("" = no pool)
	pools map[int64]string
	// pool state keyed by lower-case pool address
	sqrt map[string]*big.Int
	liq  map[string]*big.Int

	// position manager
	balance     int64
	tokenIDs    []int64
	positionOut []byte
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()

	factoryABI, _ := abi.JSON(strings.NewReader(FactoryABI))
	poolABI, _ := abi.JSON(strings.NewReader(PoolABI))
	pmABI, _ := abi.JSON(strings.NewReader(PositionManagerABI))

	return &fakeChain{
		t:          t,
		factoryABI: factoryABI,
		poolABI:    poolABI,
		pmABI:      pmABI,
		pools:      make(map[int64]string),
		sqrt:       make(map[string]*big.Int),
		liq:        make(map[string]*big.Int),
	}
}

func (f *fakeChain) setPool(fee int64, addr string, sqrtP, liq *big.Int) {
	f.pools[fee] = addr
	f.sqrt[strings.ToLower(addr)] = sqrtP
	f.liq[strings.ToLower(addr)] = liq
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}

	switch {
	case bytes.HasPrefix(msg.Data, f.factoryABI.Methods["getPool"].ID):
		args, err := f.factoryABI.Methods["getPool"].Inputs.Unpack(msg.Data[4:])
		if err != nil {
			f.t.Fatalf("decode getPool args: %v", err)
		}
		fee := args[2].(*big.Int).Int64()
		addr, ok := f.pools[fee]
		if !ok {
			addr = zeroAddress
		}
		return f.factoryABI.Methods["getPool"].Outputs.Pack(common.HexToAddress(addr))

	case bytes.HasPrefix(msg.Data, f.poolABI.Methods["slot0"].ID):
		key := strings.ToLower(msg.To.Hex())
		return f.poolABI.Methods["slot0"].Outputs.Pack(
			f.sqrt[key], big.NewInt(0),
			uint16(0), uint16(1), uint16(1), uint8(0), true,
		)

	case bytes.HasPrefix(msg.Data, f.poolABI.Methods["liquidity"].ID):
		key := strings.ToLower(msg.To.Hex())
		return f.poolABI.Methods["liquidity"].Outputs.Pack(f.liq[key])

	case bytes.HasPrefix(msg.Data, f.pmABI.Methods["balanceOf"].ID):
		return f.pmABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(f.balance))

	case bytes.HasPrefix(msg.Data, f.pmABI.Methods["tokenOfOwnerByIndex"].ID):
		args, err := f.pmABI.Methods["tokenOfOwnerByIndex"].Inputs.Unpack(msg.Data[4:])
		if err != nil {
			f.t.Fatalf("decode tokenOfOwnerByIndex args: %v", err)
		}
		idx := args[1].(*big.Int).Int64()
		return f.pmABI.Methods["tokenOfOwnerByIndex"].Outputs.Pack(big.NewInt(f.tokenIDs[idx]))

	case bytes.HasPrefix(msg.Data, f.pmABI.Methods["positions"].ID):
		return f.positionOut, nil
	}

	return nil, ethereum.NotFound
}

func newTestBackend(t *testing.T, chain ContractCaller) *Backend {
	t.Helper()
	b, err := NewBackend(chain, domain.ModeMainnetDEX, testNetwork,
		logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func TestBackend_Probe(t *testing.T) {
	chain := newFakeChain(t)
	b := newTestBackend(t, chain)

	if err := b.Probe(context.Background()); err != nil {
		t.Errorf("Probe with answering factory: %v", err)
	}

	chain.err = errors.New("connection refused")
	if err := b.Probe(context.Background()); err == nil {
		t.Error("Probe with dead RPC must fail")
	}
}

func TestBackend_GetPool_DeepestTierWins(t *testing.T) {
	chain := newFakeChain(t)
	// Raw ratios chosen per pool token ordering resolved below.
	b := newTestBackend(t, chain)

	a0, a1, err := b.resolvePair("WSOMI", "USDC")
	if err != nil {
		t.Fatalf("resolvePair: %v", err)
	}
	wsomiIsToken0 := strings.ToLower(a0.Address().Hex()) < strings.ToLower(a1.Address().Hex())
	// WSOMI at 0.50 USDC either way.
	ratio := 0.5e-12
	if !wsomiIsToken0 {
		ratio = 2e12
	}

	chain.setPool(500, testPoolAddr, sqrtPriceX96For(ratio), big.NewInt(1_000_000))
	chain.setPool(3000, "0x9999999999999999999999999999999999999999", sqrtPriceX96For(ratio*1.2), big.NewInt(10))

	pool, err := b.GetPool(context.Background(), "WSOMI", "USDC")
	if err != nil {
		t.Fatalf("GetPool: %v", err)
	}
	if pool.FeeTier != 500 {
		t.Errorf("FeeTier = %d, want deepest tier 500", pool.FeeTier)
	}

	wsomiPrice := pool.Token0Price
	if pool.Token0 != "WSOMI" {
		wsomiPrice = pool.Token1Price
	}
	diff := wsomiPrice.Sub(decimal.RequireFromString("0.5")).Abs()
	if diff.GreaterThan(decimal.RequireFromString("0.0000001")) {
		t.Errorf("WSOMI price = %s, want ~0.5", wsomiPrice)
	}
}

func TestBackend_GetPool_NotFound(t *testing.T) {
	b := newTestBackend(t, newFakeChain(t))

	_, err := b.GetPool(context.Background(), "WSOMI", "USDC")
	if apperror.GetCode(err) != apperror.CodePoolNotFound {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodePoolNotFound)
	}
}

func TestBackend_AddLiquidity_PreparesCalldata(t *testing.T) {
	b := newTestBackend(t, newFakeChain(t))

	res, err := b.AddLiquidity(context.Background(), domain.LiquidityParams{
		Token0:    "WSOMI",
		Token1:    "USDC",
		Amount0:   decimal.NewFromInt(100),
		Amount1:   decimal.NewFromInt(50),
		FeeTier:   3000,
		Recipient: "0xdddddddddddddddddddddddddddddddddddddddd",
	})
	if err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}

	if res.Execution.Kind != domain.ExecutionOnChain {
		t.Errorf("Kind = %s, want on-chain", res.Execution.Kind)
	}
	if res.Execution.To != testNetwork.PositionManager {
		t.Errorf("To = %s, want position manager", res.Execution.To)
	}
	if !strings.HasPrefix(res.Execution.TxData, "0x") || len(res.Execution.TxData) < 10 {
		t.Errorf("TxData = %q, want hex calldata", res.Execution.TxData)
	}
	if res.Execution.RefID != "" {
		t.Error("on-chain result must not carry a simulated RefID")
	}
}

func TestBackend_AddLiquidity_BadRecipient(t *testing.T) {
	b := newTestBackend(t, newFakeChain(t))

	_, err := b.AddLiquidity(context.Background(), domain.LiquidityParams{
		Token0: "WSOMI", Token1: "USDC",
		Amount0: decimal.NewFromInt(1), Amount1: decimal.NewFromInt(1),
		Recipient: "somewhere",
	})
	if apperror.GetCode(err) != apperror.CodeInvalidAddress {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidAddress)
	}
}

func TestBackend_Swap_EstimatesOutput(t *testing.T) {
	chain := newFakeChain(t)
	b := newTestBackend(t, chain)

	a0, a1, err := b.resolvePair("WSOMI", "USDC")
	if err != nil {
		t.Fatalf("resolvePair: %v", err)
	}
	wsomiIsToken0 := strings.ToLower(a0.Address().Hex()) < strings.ToLower(a1.Address().Hex())
	ratio := 0.5e-12
	if !wsomiIsToken0 {
		ratio = 2e12
	}
	chain.setPool(3000, testPoolAddr, sqrtPriceX96For(ratio), big.NewInt(1_000_000))

	res, err := b.Swap(context.Background(), domain.SwapParams{
		TokenIn:   "WSOMI",
		TokenOut:  "USDC",
		AmountIn:  decimal.NewFromInt(10),
		Recipient: "0xdddddddddddddddddddddddddddddddddddddddd",
	})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	// 10 WSOMI at 0.50 -> ~5 USDC.
	diff := res.AmountOut.Sub(decimal.NewFromInt(5)).Abs()
	if diff.GreaterThan(decimal.RequireFromString("0.000001")) {
		t.Errorf("AmountOut = %s, want ~5", res.AmountOut)
	}
	if res.Execution.Kind != domain.ExecutionOnChain {
		t.Errorf("Kind = %s, want on-chain", res.Execution.Kind)
	}
	if res.Execution.To != testNetwork.RouterAddress {
		t.Errorf("To = %s, want router", res.Execution.To)
	}
}

func TestBackend_GetUserPositions(t *testing.T) {
	chain := newFakeChain(t)
	b := newTestBackend(t, chain)

	a0, a1, err := b.resolvePair("WSOMI", "USDC")
	if err != nil {
		t.Fatalf("resolvePair: %v", err)
	}
	if strings.ToLower(a0.Address().Hex()) > strings.ToLower(a1.Address().Hex()) {
		a0, a1 = a1, a0
	}

	lower, upper := fullRangeTicks(3000)
	out, err := chain.pmABI.Methods["positions"].Outputs.Pack(
		big.NewInt(0), common.HexToAddress(zeroAddress),
		a0.Address(), a1.Address(), big.NewInt(3000),
		big.NewInt(int64(lower)), big.NewInt(int64(upper)),
		big.NewInt(1_000_000_000_000),
		big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("pack positions: %v", err)
	}

	chain.balance = 1
	chain.tokenIDs = []int64{7}
	chain.positionOut = out
	chain.setPool(3000, testPoolAddr, sqrtPriceX96For(1e-12), big.NewInt(1_000_000))

	positions, err := b.GetUserPositions(context.Background(), "0xdddddddddddddddddddddddddddddddddddddddd")
	if err != nil {
		t.Fatalf("GetUserPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}

	pos := positions[0]
	if pos.ID != 7 {
		t.Errorf("ID = %d, want 7", pos.ID)
	}
	if !pos.InRange {
		t.Error("full-range position must be in range")
	}
	if pos.Token0 == pos.Token1 {
		t.Error("position tokens not resolved")
	}
}

func TestBackend_GetUserPositions_BadAddress(t *testing.T) {
	b := newTestBackend(t, newFakeChain(t))

	_, err := b.GetUserPositions(context.Background(), "nobody")
	if apperror.GetCode(err) != apperror.CodeInvalidAddress {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidAddress)
	}
}

func TestFullRangeTicks(t *testing.T) {
	tests := []struct {
		fee     int
		spacing int32
	}{
		{500, 10},
		{3000, 60},
		{10000, 200},
	}
	for _, tt := range tests {
		lower, upper := fullRangeTicks(tt.fee)
		if lower != -upper {
			t.Errorf("fee %d: ticks %d/%d not symmetric", tt.fee, lower, upper)
		}
		if upper%tt.spacing != 0 {
			t.Errorf("fee %d: upper tick %d not aligned to spacing %d", tt.fee, upper, tt.spacing)
		}
		if upper > 887272 {
			t.Errorf("fee %d: upper tick %d exceeds max", tt.fee, upper)
		}
	}
}
