// Package binance implements the ExchangeProvider interface for Binance.
package binance

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
)

// REST messages

// TickerPriceResponse is GET /api/v3/ticker/price.
type TickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// ParsePrice parses the price as decimal.
func (r *TickerPriceResponse) ParsePrice() (decimal.Decimal, error) {
	return decimal.NewFromString(r.Price)
}

// KlineRow is one row of GET /api/v3/klines. Binance encodes each bar as a
// positional JSON array:
// [openTime, open, high, low, close, volume, closeTime, ...ignored].
type KlineRow struct {
	OpenTime  int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
	CloseTime int64
}

// UnmarshalJSON decodes the positional array form.
func (k *KlineRow) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 7 {
		return &json.UnmarshalTypeError{Value: "short kline row", Type: nil}
	}

	if err := json.Unmarshal(raw[0], &k.OpenTime); err != nil {
		return err
	}
	for i, dst := range []*string{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume} {
		if err := json.Unmarshal(raw[i+1], dst); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw[6], &k.CloseTime)
}

// ToCandle converts the row to a domain candle.
func (k *KlineRow) ToCandle() (domain.Candle, error) {
	var (
		c   domain.Candle
		err error
	)
	c.OpenTime = time.UnixMilli(k.OpenTime)
	c.CloseTime = time.UnixMilli(k.CloseTime)

	if c.Open, err = decimal.NewFromString(k.Open); err != nil {
		return c, err
	}
	if c.High, err = decimal.NewFromString(k.High); err != nil {
		return c, err
	}
	if c.Low, err = decimal.NewFromString(k.Low); err != nil {
		return c, err
	}
	if c.Close, err = decimal.NewFromString(k.Close); err != nil {
		return c, err
	}
	c.Volume, err = decimal.NewFromString(k.Volume)
	return c, err
}

// WebSocket messages

// StreamEvent is the combined-stream wrapper.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTickerEvent represents a best bid/ask update.
// Stream: <symbol>@bookTicker
type BookTickerEvent struct {
	UpdateID int64  `json:"u"` // order book updateId
	Symbol   string `json:"s"` // symbol
	BidPrice string `json:"b"` // best bid price
	BidQty   string `json:"B"` // best bid qty
	AskPrice string `json:"a"` // best ask price
	AskQty   string `json:"A"` // best ask qty
}

// MidPrice returns the bid/ask midpoint.
func (e *BookTickerEvent) MidPrice() (decimal.Decimal, error) {
	bid, err := decimal.NewFromString(e.BidPrice)
	if err != nil {
		return decimal.Zero, err
	}
	ask, err := decimal.NewFromString(e.AskPrice)
	if err != nil {
		return decimal.Zero, err
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), nil
}
