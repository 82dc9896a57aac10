// Package api exposes the dashboard's JSON HTTP surface: price
// aggregation, DEX pool and position reads, prepared writes, and the
// engagement endpoints.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	dexapp "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/dex/app"
	engagementapp "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/app"
	pricingapp "github.com/Blockchain-Oracle/somnia-liquidity-hub/business/pricing/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/config"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

// Server wires the business services into HTTP handlers.
type Server struct {
	router     *mux.Router
	prices     *pricingapp.Service
	dex        *dexapp.Manager
	engagement *engagementapp.Service
	logger     logger.LoggerInterface
	cors       *cors.Cors
}

// NewServer builds the API server over the given services.
func NewServer(cfg config.ServerConfig, prices *pricingapp.Service, dex *dexapp.Manager, engagement *engagementapp.Service, log logger.LoggerInterface) *Server {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		router:     mux.NewRouter(),
		prices:     prices,
		dex:        dex,
		engagement: engagement,
		logger:     log,
		cors: cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/dex", s.handleDexRead()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/dex", s.handleDexWrite()).Methods(http.MethodPost)

	s.router.HandleFunc("/api/prices", s.handleGetPrices()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/prices", s.handleArbitrage()).Methods(http.MethodPost)
	s.router.HandleFunc("/api/prices/history", s.handleHistory()).Methods(http.MethodGet)

	s.router.HandleFunc("/api/engagement/like", s.handleLike()).Methods(http.MethodPost)
	s.router.HandleFunc("/api/engagement/view", s.handleView()).Methods(http.MethodPost)
	s.router.HandleFunc("/api/engagement/trending", s.handleTrending()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/engagement/{listingId}", s.handleGetEngagement()).Methods(http.MethodGet)
}

// Handler returns the CORS-wrapped route tree.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}
