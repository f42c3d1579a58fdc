// Package http exposes the engine's read-only surface: health, metrics,
// the performance summary, and the latest aggregate decision. No
// decision logic lives here.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tradepulse/internal/domain"
	"github.com/sawpanic/tradepulse/internal/perf"
)

// DecisionReader serves the most recent aggregate decision.
type DecisionReader interface {
	LatestDecision() *domain.AggregateDecision
}

// PriceReader supplies current prices for unrealized P&L.
type PriceReader interface {
	GetSnapshot(ctx context.Context, instrument string) (domain.MarketSnapshot, error)
}

// Server is the read-only HTTP listener.
type Server struct {
	addr        string
	engine      DecisionReader
	perf        *perf.Aggregator
	prices      PriceReader
	instruments []string
}

// NewServer builds the router over the given readers.
func NewServer(addr string, engine DecisionReader, aggregator *perf.Aggregator, prices PriceReader, instruments []string) *Server {
	return &Server{
		addr:        addr,
		engine:      engine,
		perf:        aggregator,
		prices:      prices,
		instruments: instruments,
	}
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/performance", s.handlePerformance).Methods(http.MethodGet)
	r.HandleFunc("/decision/latest", s.handleLatestDecision).Methods(http.MethodGet)
	return r
}

// Run serves until the context ends.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	prices := make(map[string]float64, len(s.instruments))
	for _, instrument := range s.instruments {
		snap, err := s.prices.GetSnapshot(r.Context(), instrument)
		if err != nil {
			continue
		}
		prices[instrument] = snap.Price
	}

	summary, err := s.perf.Summary(r.Context(), prices)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLatestDecision(w http.ResponseWriter, _ *http.Request) {
	dec := s.engine.LatestDecision()
	if dec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no decision yet"})
		return
	}
	writeJSON(w, http.StatusOK, dec)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
