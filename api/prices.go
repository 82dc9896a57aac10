package api

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	pricingdomain "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
)

const defaultHistoryExchange = pricingdomain.SourceBinance

// handleGetPrices serves single-exchange or aggregated prices. When
// aggregation fails outright, the last known price is served marked
// stale rather than erroring the dashboard.
func (s *Server) handleGetPrices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			s.respondError(w, apperror.Validation(apperror.CodeRequiredField, "symbol is required"))
			return
		}

		if exchange := r.URL.Query().Get("exchange"); exchange != "" {
			quote, err := s.prices.GetPriceFromExchange(r.Context(), pricingdomain.Source(exchange), symbol)
			if err != nil {
				s.respondError(w, err)
				return
			}
			s.respond(w, http.StatusOK, quote)
			return
		}

		agg, err := s.prices.GetAggregatedPrice(r.Context(), symbol)
		if err != nil {
			if stale, ok := s.prices.StalePrice(symbol); ok {
				s.logger.Warn(r.Context(), "serving stale price", "symbol", symbol, "error", err)
				s.respond(w, http.StatusOK, stale)
				return
			}
			s.respondError(w, err)
			return
		}
		s.respond(w, http.StatusOK, agg)
	}
}

// arbitrageRequest is the POST /api/prices body: the caller supplies
// the DEX-side price and we compare it against the aggregated CEX view.
type arbitrageRequest struct {
	Symbol           string          `json:"symbol"`
	DEXPrice         decimal.Decimal `json:"dexPrice"`
	MinProfitPercent decimal.Decimal `json:"minProfitPercent"`
}

// handleArbitrage evaluates an arbitrage opportunity plus current
// market conditions for the symbol.
func (s *Server) handleArbitrage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req arbitrageRequest
		if err := decodeBody(r, &req); err != nil {
			s.respondError(w, err)
			return
		}
		if req.Symbol == "" {
			s.respondError(w, apperror.Validation(apperror.CodeRequiredField, "symbol is required"))
			return
		}
		if !req.DEXPrice.IsPositive() {
			s.respondError(w, apperror.Validation(apperror.CodeInvalidInput, "dexPrice must be positive"))
			return
		}
		minProfit := req.MinProfitPercent
		if minProfit.IsZero() {
			minProfit = decimal.RequireFromString("0.5")
		}

		agg, err := s.prices.GetAggregatedPrice(r.Context(), req.Symbol)
		if err != nil {
			s.respondError(w, err)
			return
		}

		opp := s.prices.FindArbitrage(req.Symbol, req.DEXPrice, agg.Price, minProfit)

		body := map[string]any{
			"opportunity": opp,
			"cexPrice":    agg.Price,
		}
		// Market conditions are best-effort; a history failure should
		// not mask the arbitrage answer.
		if vol, err := s.prices.CalculateVolatility(r.Context(), req.Symbol, 24, defaultHistoryExchange); err == nil {
			body["conditions"] = vol
		} else {
			s.logger.Warn(r.Context(), "volatility unavailable", "symbol", req.Symbol, "error", err)
		}

		s.respond(w, http.StatusOK, body)
	}
}

// handleHistory serves candle history with a summary, optionally with
// the volatility bucket for the same window.
func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			s.respondError(w, apperror.Validation(apperror.CodeRequiredField, "symbol is required"))
			return
		}
		timeframe := r.URL.Query().Get("timeframe")

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				s.respondError(w, apperror.Validation(apperror.CodeInvalidInput, "limit must be an integer"))
				return
			}
			limit = parsed
		}

		exchange := defaultHistoryExchange
		if raw := r.URL.Query().Get("exchange"); raw != "" {
			exchange = pricingdomain.Source(raw)
		}

		candles, summary, err := s.prices.GetHistory(r.Context(), symbol, timeframe, limit, exchange)
		if err != nil {
			s.respondError(w, err)
			return
		}

		body := map[string]any{
			"candles": candles,
			"summary": summary,
		}
		if r.URL.Query().Get("volatility") == "true" {
			if vol, err := s.prices.CalculateVolatility(r.Context(), symbol, 24, exchange); err == nil {
				body["volatility"] = vol
			}
		}

		s.respond(w, http.StatusOK, body)
	}
}
