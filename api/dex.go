package api

import (
	"encoding/json"
	"net/http"

	dexdomain "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
)

// handleDexRead dispatches GET /api/dex on the action query parameter.
func (s *Server) handleDexRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := string(s.dex.Mode())

		switch action := r.URL.Query().Get("action"); action {
		case "", "status":
			s.respondMode(w, http.StatusOK, mode, s.dex.Status())

		case "pool":
			token0 := r.URL.Query().Get("token0")
			token1 := r.URL.Query().Get("token1")
			if token0 == "" || token1 == "" {
				s.respondError(w, apperror.Validation(apperror.CodeRequiredField, "token0 and token1 are required"))
				return
			}
			pool, err := s.dex.GetPool(r.Context(), token0, token1)
			if err != nil {
				s.respondError(w, err)
				return
			}
			s.respondMode(w, http.StatusOK, mode, pool)

		case "positions":
			address := r.URL.Query().Get("address")
			if address == "" {
				s.respondError(w, apperror.Validation(apperror.CodeRequiredField, "address is required"))
				return
			}
			positions, err := s.dex.GetUserPositions(r.Context(), address)
			if err != nil {
				s.respondError(w, err)
				return
			}
			s.respondMode(w, http.StatusOK, mode, positions)

		case "switch-mode":
			requested := dexdomain.Mode(r.URL.Query().Get("mode"))
			switched := s.dex.SetMode(r.Context(), requested)
			s.respondMode(w, http.StatusOK, string(s.dex.Mode()), map[string]any{
				"switched": switched,
				"mode":     s.dex.Mode(),
			})

		default:
			s.respondError(w, apperror.Validation(apperror.CodeInvalidInput, "unknown action "+action))
		}
	}
}

// dexWriteRequest is the POST /api/dex body.
type dexWriteRequest struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// handleDexWrite prepares liquidity and swap transactions.
func (s *Server) handleDexWrite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dexWriteRequest
		if err := decodeBody(r, &req); err != nil {
			s.respondError(w, err)
			return
		}

		switch req.Action {
		case "add-liquidity":
			var params dexdomain.LiquidityParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				s.respondError(w, apperror.Validation(apperror.CodeInvalidInput, "malformed liquidity params"))
				return
			}
			result, err := s.dex.AddLiquidity(r.Context(), params)
			if err != nil {
				s.respondError(w, err)
				return
			}
			s.respondMode(w, http.StatusOK, string(result.Execution.Mode), result)

		case "swap":
			var params dexdomain.SwapParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				s.respondError(w, apperror.Validation(apperror.CodeInvalidInput, "malformed swap params"))
				return
			}
			result, err := s.dex.Swap(r.Context(), params)
			if err != nil {
				s.respondError(w, err)
				return
			}
			s.respondMode(w, http.StatusOK, string(result.Execution.Mode), result)

		default:
			s.respondError(w, apperror.Validation(apperror.CodeInvalidInput, "unknown action "+req.Action))
		}
	}
}
