// Package server exposes the decision engine over HTTP: a decide endpoint
// for the surrounding simulation, health and Prometheus metrics endpoints,
// and a websocket feed broadcasting completed decisions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/marchfell/caravan/engine"
	"github.com/marchfell/caravan/game"
	"github.com/marchfell/caravan/store"
)

// Decider runs one coordinated search per request. Satisfied by
// *engine.Engine.
type Decider interface {
	ParallelSearch(ctx context.Context, root engine.State) (engine.Decision, error)
	Config() engine.Config
}

// Archiver receives completed decision rows. Satisfied by
// *store.BatchWriter; nil disables archiving.
type Archiver interface {
	WriteRows(rows []store.DecisionRow) error
}

type Server struct {
	decider Decider
	archive Archiver
	hub     *Hub
}

func New(decider Decider, archive Archiver) *Server {
	return &Server{
		decider: decider,
		archive: archive,
		hub:     NewHub(),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/decide", s.handleDecide)
	r.Get("/ws", s.hub.HandleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// DecideResponse is the wire form of one decision.
type DecideResponse struct {
	DecisionID string            `json:"decision_id"`
	TraderID   string            `json:"trader_id"`
	Action     *game.TraderAction `json:"action,omitempty"`
	ActionKey  string            `json:"action_key,omitempty"`
	NoDecision bool              `json:"no_decision"`
	Stats      engine.Stats      `json:"stats"`
	ElapsedMs  float64           `json:"elapsed_ms"`
}

// handleDecide accepts a trader state snapshot and returns the chosen
// action plus merged statistics.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var state game.TraderState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dec, err := s.decider.ParallelSearch(r.Context(), &state)
	elapsed := time.Since(start)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrInvalidState) {
			status = http.StatusBadRequest
		}
		decisionsTotal.WithLabelValues("error").Inc()
		http.Error(w, err.Error(), status)
		return
	}

	resp := DecideResponse{
		DecisionID: uuid.NewString(),
		TraderID:   state.TraderID,
		NoDecision: dec.NoAction(),
		Stats:      dec.Stats,
		ElapsedMs:  float64(elapsed.Microseconds()) / 1000.0,
	}
	outcome := "no_decision"
	if !dec.NoAction() {
		act := dec.Action.(game.TraderAction)
		resp.Action = &act
		resp.ActionKey = act.Key()
		outcome = "decided"
	}

	decisionsTotal.WithLabelValues(outcome).Inc()
	decisionDuration.Observe(elapsed.Seconds())
	simulationsEvaluated.Add(float64(dec.Stats.SimulationsEvaluated))

	log.Info().
		Str("trader", state.TraderID).
		Str("action", resp.ActionKey).
		Int("simulations", dec.Stats.SimulationsEvaluated).
		Dur("elapsed", elapsed).
		Msg("decision")

	s.archiveDecision(resp, &state, dec, elapsed)
	s.hub.Broadcast(resp)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn().Err(err).Msg("write decide response")
	}
}

func (s *Server) archiveDecision(resp DecideResponse, state *game.TraderState, dec engine.Decision, elapsed time.Duration) {
	if s.archive == nil {
		return
	}

	worldID := ""
	if state.World != nil {
		worldID = state.World.ID
	}
	snapshot, err := game.EncodeState(state)
	if err != nil {
		log.Warn().Err(err).Msg("encode snapshot for archive")
		snapshot = nil
	}

	row := store.NewDecisionRow(resp.DecisionID, state.TraderID, worldID,
		s.decider.Config().Workers, dec, snapshot, elapsed)
	if err := s.archive.WriteRows([]store.DecisionRow{row}); err != nil {
		log.Warn().Err(err).Msg("archive decision")
	}
}
