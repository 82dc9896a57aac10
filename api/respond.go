package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
)

// envelope is the uniform response shape. Mode is populated on DEX
// responses so clients always know which backend served them.
type envelope struct {
	Success bool   `json:"success"`
	Mode    string `json:"mode,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	s.write(w, status, envelope{Success: true, Data: data})
}

func (s *Server) respondMode(w http.ResponseWriter, status int, mode string, data any) {
	s.write(w, status, envelope{Success: true, Mode: mode, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	s.write(w, apperror.StatusOf(err), envelope{
		Success: false,
		Error:   err.Error(),
		Code:    string(apperror.GetCode(err)),
	})
}

func (s *Server) write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(context.Background(), "failed to encode response", "error", err)
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.Validation(apperror.CodeInvalidInput, "malformed request body")
	}
	return nil
}
