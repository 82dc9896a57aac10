package asset

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Somnia chain IDs.
const (
	ChainIDSomniaMainnet = 5031
	ChainIDSomniaTestnet = 50312
)

// Well-known token addresses on Somnia mainnet.
var (
	AddrWSOMI = common.HexToAddress("0x046EDe9564A72571df6F5e44d0405360c0f4dCab")
	AddrUSDC  = common.HexToAddress("0x28bec7e30e6faee657a03e19bf1128aad7632a00")
	AddrUSDT  = common.HexToAddress("0x67B302E35Aef5EB8db32C51d3AaA959a07dcD4Ae")
	AddrWETH  = common.HexToAddress("0x936Ab8C674bcb567CD5dEB85D8A216494704E9D8")
)

// Registry maps symbols and addresses to Assets.
type Registry struct {
	mu        sync.RWMutex
	bySymbol  map[string]*Asset
	byAddress map[common.Address]*Asset
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		bySymbol:  make(map[string]*Asset),
		byAddress: make(map[common.Address]*Asset),
	}
}

// Register adds an asset. Later registrations win the symbol slot, so
// testnet overrides can shadow mainnet entries.
func (r *Registry) Register(a *Asset) {
	r.mu.Lock()
	r.bySymbol[strings.ToUpper(a.Symbol())] = a
	r.byAddress[a.Address()] = a
	r.mu.Unlock()
}

// BySymbol looks an asset up by ticker symbol, case-insensitive.
func (r *Registry) BySymbol(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

// ByAddress looks an asset up by contract address.
func (r *Registry) ByAddress(addr common.Address) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byAddress[addr]
	return a, ok
}

// Symbols returns all registered symbols.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bySymbol))
	for s := range r.bySymbol {
		out = append(out, s)
	}
	return out
}

// DefaultRegistry returns a registry pre-populated with Somnia mainnet tokens.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(New("WSOMI", "Wrapped Somnia", ChainIDSomniaMainnet, AddrWSOMI, 18))
	r.Register(New("USDC", "USD Coin", ChainIDSomniaMainnet, AddrUSDC, 6))
	r.Register(New("USDT", "Tether USD", ChainIDSomniaMainnet, AddrUSDT, 6))
	r.Register(New("WETH", "Wrapped Ether", ChainIDSomniaMainnet, AddrWETH, 18))
	return r
}
