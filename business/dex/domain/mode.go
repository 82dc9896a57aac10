// Package domain contains the core domain types for the dex context.
package domain

// Mode selects which backend serves DEX data.
type Mode string

const (
	ModeMainnetDEX Mode = "mainnet-dex"
	ModeTestnetDEX Mode = "testnet-dex"
	ModeDemo       Mode = "demo"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeMainnetDEX, ModeTestnetDEX, ModeDemo:
		return true
	}
	return false
}

// ExecutionKind marks how a write operation was carried out. Demo writes
// succeed but are simulated; the kind keeps that structurally visible
// rather than hidden in a success flag.
type ExecutionKind string

const (
	ExecutionOnChain   ExecutionKind = "on-chain"
	ExecutionSimulated ExecutionKind = "simulated"
)

// Status reports the manager's current serving state.
type Status struct {
	Mode      Mode          `json:"mode"`
	Execution ExecutionKind `json:"execution"`
	ChainID   uint64        `json:"chainId,omitempty"`
}
