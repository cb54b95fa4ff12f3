// Package api serves the read-only HTTP surface over the published rating
// set.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prodigyranking/ratingengine/internal/adapters/repository"
	service "github.com/prodigyranking/ratingengine/internal/app"
	"github.com/prodigyranking/ratingengine/internal/domain/audit"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	RankDependencies
	RatingDependencies
	AuditDependencies
	StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = repository.Entry

// Server wires HTTP routes for the rating API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	ratingHandler      *RatingHandler
	auditHandler       *AuditHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		ratingHandler:      NewRatingHandler(deps),
		auditHandler:       NewAuditHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /rank/{entity_id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("GET /ratings/{entity_id}", MetricsMiddleware(s.ratingHandler.HandleGetRating, "ratings"))
	mux.HandleFunc("GET /audit", MetricsMiddleware(s.auditHandler.HandleGetAudit, "audit"))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) (service.Stats, error)
}

// RatingDependencies reads full published records.
type RatingDependencies interface {
	Record(ctx context.Context, entityID int64) (model.RatingRecord, error)
}

// AuditDependencies reads the latest audit report.
type AuditDependencies interface {
	LatestAudit(ctx context.Context) (*audit.Report, error)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeLookupError maps store errors to 404 or 500.
func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrNoPublishedRun) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}

// entityID parses the {entity_id} path value.
func entityID(r *http.Request) (int64, error) {
	raw := r.PathValue("entity_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: entity id %q", ErrBadRequest, raw)
	}
	return id, nil
}
