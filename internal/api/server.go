package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

// Registry exposes live connection counts
type Registry interface {
	GetStats() map[string]int
}

// Server serves the read-only operational endpoints. Chat traffic never
// passes through here.
type Server struct {
	stats          interfaces.StatsStore
	registry       Registry
	allowedOrigins []string
	logger         *zap.Logger
	router         *http.ServeMux
	started        time.Time
}

// NewServer creates the API server. stats may be nil when the statistics
// store is disabled.
func NewServer(stats interfaces.StatsStore, registry Registry, allowedOrigins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		stats:          stats,
		registry:       registry,
		allowedOrigins: allowedOrigins,
		logger:         logger,
		router:         http.NewServeMux(),
		started:        time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/api/stats", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleStats))))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status        string         `json:"status"`
	Timestamp     time.Time      `json:"timestamp"`
	Database      string         `json:"database"`
	Connections   map[string]int `json:"connections"`
	UptimeSeconds int64          `json:"uptime_seconds"`
}

// StatsResponse is the body of GET /api/stats. Persisted aggregates are
// present only when the statistics store is enabled.
type StatsResponse struct {
	Connections            map[string]int        `json:"connections"`
	TotalSessions          *int64                `json:"total_sessions,omitempty"`
	EndedSessions          *int64                `json:"ended_sessions,omitempty"`
	AverageDurationSeconds *float64              `json:"average_duration_seconds,omitempty"`
	TopInterests           []types.InterestCount `json:"top_interests,omitempty"`
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "disabled"
	if s.stats != nil {
		dbStatus = "healthy"
		if err := s.stats.HealthCheck(ctx); err != nil {
			s.logger.Warn("statistics store unhealthy", zap.Error(err))
			status = "unhealthy"
			dbStatus = "error: " + err.Error()
		}
	}

	response := HealthResponse{
		Status:        status,
		Timestamp:     time.Now(),
		Database:      dbStatus,
		Connections:   s.registry.GetStats(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	s.encode(w, response)
}

// GET /api/stats[?top=N]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			s.sendError(w, "top must be an integer between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	response := StatsResponse{Connections: s.registry.GetStats()}

	if s.stats != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		summary, err := s.stats.SessionSummary(ctx)
		if err != nil {
			s.logger.Error("failed to load session summary", zap.Error(err))
			s.sendError(w, "Failed to load statistics", http.StatusInternalServerError)
			return
		}
		top, err := s.stats.TopInterests(ctx, limit)
		if err != nil {
			s.logger.Error("failed to load top interests", zap.Error(err))
			s.sendError(w, "Failed to load statistics", http.StatusInternalServerError)
			return
		}
		response.TotalSessions = &summary.TotalSessions
		response.EndedSessions = &summary.EndedSessions
		response.AverageDurationSeconds = &summary.AverageDurationSeconds
		response.TopInterests = top
	}

	w.WriteHeader(http.StatusOK)
	s.encode(w, response)
}

func (s *Server) encode(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	s.encode(w, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// allowOrigin picks the Access-Control-Allow-Origin value for a request
func (s *Server) allowOrigin(origin string) string {
	if len(s.allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && allowed == origin {
			return origin
		}
	}
	return s.allowedOrigins[0]
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
