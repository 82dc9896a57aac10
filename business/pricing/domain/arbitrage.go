package domain

import "github.com/shopspring/decimal"

// Direction indicates the profitable trade direction.
type Direction string

const (
	DirectionBuyDEXSellCEX Direction = "BUY_DEX_SELL_CEX" // DEX cheaper
	DirectionBuyCEXSellDEX Direction = "BUY_CEX_SELL_DEX" // CEX cheaper
	DirectionNone          Direction = "NONE"
)

// ArbitrageOpportunity is a computed spread between a DEX price and a CEX
// price. It is never stored; callers recompute per request.
//
// Profitability here is gross of trade size and gas: the caller applies
// cost-aware thresholds separately.
type ArbitrageOpportunity struct {
	Symbol        string          `json:"symbol"`
	DEXPrice      decimal.Decimal `json:"dexPrice"`
	CEXPrice      decimal.Decimal `json:"cexPrice"`
	SpreadPercent decimal.Decimal `json:"spreadPercent"`
	Profitable    bool            `json:"profitable"`
	Direction     Direction       `json:"direction"`
}

// FindOpportunity computes spread = |dex - cex| / cex * 100 and marks the
// opportunity profitable iff spread >= minProfitPercent.
func FindOpportunity(symbol string, dexPrice, cexPrice, minProfitPercent decimal.Decimal) ArbitrageOpportunity {
	opp := ArbitrageOpportunity{
		Symbol:    symbol,
		DEXPrice:  dexPrice,
		CEXPrice:  cexPrice,
		Direction: DirectionNone,
	}

	if cexPrice.IsZero() {
		return opp
	}

	diff := dexPrice.Sub(cexPrice)
	opp.SpreadPercent = diff.Abs().Div(cexPrice).Mul(decimal.NewFromInt(100))

	switch {
	case diff.IsPositive():
		opp.Direction = DirectionBuyCEXSellDEX
	case diff.IsNegative():
		opp.Direction = DirectionBuyDEXSellCEX
	}

	// Profitable iff spread >= threshold. A zero threshold marks even a
	// flat spread profitable; callers wanting a floor pass one.
	opp.Profitable = opp.SpreadPercent.GreaterThanOrEqual(minProfitPercent)

	return opp
}
