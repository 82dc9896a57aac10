package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime  time.Time       `json:"openTime"`
	CloseTime time.Time       `json:"closeTime"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// HistorySummary aggregates a candle series for dashboard display.
type HistorySummary struct {
	Symbol        string          `json:"symbol"`
	Timeframe     string          `json:"timeframe"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Mean          decimal.Decimal `json:"mean"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// Summarize computes a HistorySummary over candles. Returns nil for an
// empty series.
func Summarize(symbol, timeframe string, candles []Candle) *HistorySummary {
	if len(candles) == 0 {
		return nil
	}

	high := candles[0].High
	low := candles[0].Low
	sum := decimal.Zero
	for _, c := range candles {
		if c.High.GreaterThan(high) {
			high = c.High
		}
		if c.Low.LessThan(low) {
			low = c.Low
		}
		sum = sum.Add(c.Close)
	}

	first := candles[0].Open
	last := candles[len(candles)-1].Close
	change := decimal.Zero
	if !first.IsZero() {
		change = last.Sub(first).Div(first).Mul(decimal.NewFromInt(100))
	}

	return &HistorySummary{
		Symbol:        symbol,
		Timeframe:     timeframe,
		High:          high,
		Low:           low,
		Mean:          sum.Div(decimal.NewFromInt(int64(len(candles)))),
		ChangePercent: change,
	}
}

// VolatilityBucket classifies annualized-window volatility for display.
type VolatilityBucket string

const (
	VolatilityLow    VolatilityBucket = "low"    // < 20%
	VolatilityMedium VolatilityBucket = "medium" // < 50%
	VolatilityHigh   VolatilityBucket = "high"
)

// Volatility is the stddev/mean ratio over a window, as a percentage.
type Volatility struct {
	Symbol      string           `json:"symbol"`
	WindowHours int              `json:"windowHours"`
	Percent     decimal.Decimal  `json:"percent"`
	Bucket      VolatilityBucket `json:"bucket"`
}

// BucketFor maps a volatility percentage to its bucket.
func BucketFor(percent decimal.Decimal) VolatilityBucket {
	switch {
	case percent.LessThan(decimal.NewFromInt(20)):
		return VolatilityLow
	case percent.LessThan(decimal.NewFromInt(50)):
		return VolatilityMedium
	default:
		return VolatilityHigh
	}
}

// VolatilityOf computes stddev(closes)/mean(closes) as a percentage.
// Returns zero volatility for fewer than two closes.
func VolatilityOf(symbol string, windowHours int, closes []decimal.Decimal) Volatility {
	v := Volatility{Symbol: symbol, WindowHours: windowHours, Percent: decimal.Zero, Bucket: VolatilityLow}
	if len(closes) < 2 {
		return v
	}

	n := decimal.NewFromInt(int64(len(closes)))
	sum := decimal.Zero
	for _, c := range closes {
		sum = sum.Add(c)
	}
	mean := sum.Div(n)
	if mean.IsZero() {
		return v
	}

	variance := decimal.Zero
	for _, c := range closes {
		d := c.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.Div(n)

	// decimal has no Sqrt; go through float64. Precision loss is
	// acceptable for a display percentage.
	stddev := decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))

	v.Percent = stddev.Div(mean).Mul(decimal.NewFromInt(100)).Round(4)
	v.Bucket = BucketFor(v.Percent)
	return v
}
