package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
)

// likeRequest is the POST /api/engagement/like body.
type likeRequest struct {
	ListingID string `json:"listingId"`
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

func (s *Server) handleLike() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req likeRequest
		if err := decodeBody(r, &req); err != nil {
			s.respondError(w, err)
			return
		}

		eng, err := s.engagement.ToggleLike(r.Context(), req.ListingID, req.Address, req.Message, req.Signature)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respond(w, http.StatusOK, eng)
	}
}

// viewRequest is the POST /api/engagement/view body. IPHash is optional;
// when absent the server hashes the caller's IP so anonymous views still
// deduplicate.
type viewRequest struct {
	ListingID string `json:"listingId"`
	Viewer    string `json:"viewer"`
	IPHash    string `json:"ipHash"`
}

func (s *Server) handleView() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req viewRequest
		if err := decodeBody(r, &req); err != nil {
			s.respondError(w, err)
			return
		}

		ipHash := req.IPHash
		if ipHash == "" {
			ipHash = hashRemoteIP(r)
		}

		eng, err := s.engagement.TrackView(r.Context(), req.ListingID, req.Viewer, ipHash)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respond(w, http.StatusOK, eng)
	}
}

func (s *Server) handleTrending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				s.respondError(w, apperror.Validation(apperror.CodeInvalidInput, "limit must be an integer"))
				return
			}
			limit = parsed
		}

		entries, err := s.engagement.Trending(r.Context(), limit)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respond(w, http.StatusOK, entries)
	}
}

func (s *Server) handleGetEngagement() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID := mux.Vars(r)["listingId"]
		viewer := r.URL.Query().Get("viewer")

		eng, err := s.engagement.Engagement(r.Context(), listingID, viewer)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respond(w, http.StatusOK, eng)
	}
}

// hashRemoteIP derives a stable dedupe key from the caller's IP without
// storing the IP itself.
func hashRemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(host))
	return hex.EncodeToString(sum[:])
}
