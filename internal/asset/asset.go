// Package asset holds token metadata for the Somnia networks.
package asset

import "github.com/ethereum/go-ethereum/common"

// Asset represents the metadata of a token on a Somnia network.
// The symbol is display metadata; identity is (chainID, address).
type Asset struct {
	symbol   string
	name     string
	chainID  uint64
	address  common.Address
	decimals uint8
}

// New creates a new Asset.
func New(symbol, name string, chainID uint64, address common.Address, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}
	return &Asset{
		symbol:   symbol,
		name:     name,
		chainID:  chainID,
		address:  address,
		decimals: decimals,
	}
}

// Symbol returns the ticker symbol (e.g. "SOMI", "USDC").
func (a *Asset) Symbol() string { return a.symbol }

// Name returns the human-readable name.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// ChainID returns the chain the token lives on.
func (a *Asset) ChainID() uint64 { return a.chainID }

// Address returns the token contract address.
func (a *Asset) Address() common.Address { return a.address }

// Decimals returns the number of decimal places.
func (a *Asset) Decimals() uint8 { return a.decimals }

// Equals compares two assets by chain and address.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.chainID == other.chainID && a.address == other.address
}

// String returns the symbol.
func (a *Asset) String() string { return a.symbol }
