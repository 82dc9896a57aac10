package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRow is one row of the watcher table.
type PriceRow struct {
	Symbol  string
	Price   decimal.Decimal
	Sources int
	Stale   bool
	Err     error
}

// Client polls the liquidity hub API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the watcher.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type priceEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Symbol  string            `json:"symbol"`
		Price   decimal.Decimal   `json:"price"`
		Stale   bool              `json:"stale"`
		Sources []json.RawMessage `json:"sources"`
	} `json:"data"`
}

// FetchPrice reads the aggregated price for one symbol.
func (c *Client) FetchPrice(symbol string) PriceRow {
	row := PriceRow{Symbol: symbol}

	resp, err := c.http.Get(c.baseURL + "/api/prices?symbol=" + url.QueryEscape(symbol))
	if err != nil {
		row.Err = err
		return row
	}
	defer resp.Body.Close()

	var body priceEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		row.Err = err
		return row
	}
	if !body.Success {
		row.Err = fmt.Errorf("%s", body.Error)
		return row
	}

	row.Price = body.Data.Price
	row.Stale = body.Data.Stale
	row.Sources = len(body.Data.Sources)
	return row
}

// OpportunityRow summarizes one DEX-vs-CEX spread check.
type OpportunityRow struct {
	Symbol        string
	Pair          string
	DEXPrice      decimal.Decimal
	CEXPrice      decimal.Decimal
	SpreadPercent decimal.Decimal
	Profitable    bool
	Direction     string
	Err           error
}

type poolEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Token0Price decimal.Decimal `json:"token0Price"`
	} `json:"data"`
}

type arbEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Opportunity struct {
			SpreadPercent decimal.Decimal `json:"spreadPercent"`
			Profitable    bool            `json:"profitable"`
			Direction     string          `json:"direction"`
		} `json:"opportunity"`
		CEXPrice decimal.Decimal `json:"cexPrice"`
	} `json:"data"`
}

// FetchOpportunity reads the active pool price for the pair and asks the
// arbitrage endpoint to compare it against the aggregated CEX price.
func (c *Client) FetchOpportunity(symbol, token0, token1 string) OpportunityRow {
	row := OpportunityRow{Symbol: symbol, Pair: token0 + "/" + token1}

	resp, err := c.http.Get(c.baseURL + "/api/dex?action=pool&token0=" +
		url.QueryEscape(token0) + "&token1=" + url.QueryEscape(token1))
	if err != nil {
		row.Err = err
		return row
	}
	defer resp.Body.Close()

	var pool poolEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&pool); err != nil {
		row.Err = err
		return row
	}
	if !pool.Success {
		row.Err = fmt.Errorf("%s", pool.Error)
		return row
	}
	row.DEXPrice = pool.Data.Token0Price

	payload, err := json.Marshal(map[string]any{
		"symbol":   symbol,
		"dexPrice": row.DEXPrice,
	})
	if err != nil {
		row.Err = err
		return row
	}
	arbResp, err := c.http.Post(c.baseURL+"/api/prices", "application/json", bytes.NewReader(payload))
	if err != nil {
		row.Err = err
		return row
	}
	defer arbResp.Body.Close()

	var arb arbEnvelope
	if err := json.NewDecoder(arbResp.Body).Decode(&arb); err != nil {
		row.Err = err
		return row
	}
	if !arb.Success {
		row.Err = fmt.Errorf("%s", arb.Error)
		return row
	}

	row.CEXPrice = arb.Data.CEXPrice
	row.SpreadPercent = arb.Data.Opportunity.SpreadPercent
	row.Profitable = arb.Data.Opportunity.Profitable
	row.Direction = arb.Data.Opportunity.Direction
	return row
}

type statusEnvelope struct {
	Success bool   `json:"success"`
	Mode    string `json:"mode"`
}

// FetchMode reads the active DEX mode.
func (c *Client) FetchMode() (string, error) {
	resp, err := c.http.Get(c.baseURL + "/api/dex")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body statusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Mode, nil
}
