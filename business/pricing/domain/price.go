// Package domain contains the core domain types for the pricing context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies where a price quote came from.
type Source string

const (
	SourceBinance     Source = "binance"
	SourceCoinbase    Source = "coinbase"
	SourceDIAOracle   Source = "dia-oracle"
	SourcePoolDerived Source = "pool-derived"
)

// PriceQuote is a single price observation. Quotes are immutable once
// produced; a newer quote supersedes an older one, never mutates it.
type PriceQuote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Source    Source          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Stale     bool            `json:"stale,omitempty"`
}

// NewQuote creates a quote stamped now.
func NewQuote(symbol string, price decimal.Decimal, source Source) PriceQuote {
	return PriceQuote{
		Symbol:    symbol,
		Price:     price,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// Age returns how old this quote is.
func (q PriceQuote) Age() time.Duration {
	return time.Since(q.Timestamp)
}

// AggregationMethod names the statistic used to combine quotes.
type AggregationMethod string

const (
	// MethodMedian is the aggregation statistic: robust to a single bad
	// feed, matching the behavior of the oracle aggregators this service
	// fronts.
	MethodMedian AggregationMethod = "median"
)

// AggregatedPrice combines quotes from multiple surviving sources.
type AggregatedPrice struct {
	Symbol    string            `json:"symbol"`
	Price     decimal.Decimal   `json:"price"`
	Method    AggregationMethod `json:"method"`
	Sources   []PriceQuote      `json:"sources"`
	Timestamp time.Time         `json:"timestamp"`
	Stale     bool              `json:"stale,omitempty"`
}

// Median returns the median of the given prices. Panics on empty input;
// callers guard against zero surviving sources.
func Median(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		panic("pricing: median of empty slice")
	}

	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].LessThan(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// Aggregate combines surviving quotes into an AggregatedPrice.
func Aggregate(symbol string, quotes []PriceQuote) *AggregatedPrice {
	if len(quotes) == 0 {
		return nil
	}

	prices := make([]decimal.Decimal, len(quotes))
	for i, q := range quotes {
		prices[i] = q.Price
	}

	return &AggregatedPrice{
		Symbol:    symbol,
		Price:     Median(prices),
		Method:    MethodMedian,
		Sources:   quotes,
		Timestamp: time.Now(),
	}
}
