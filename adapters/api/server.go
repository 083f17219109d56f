package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"loopscan/app"
	"loopscan/domain/core"
	apperrors "loopscan/internal/errors"
	"loopscan/internal/metrics"
	"loopscan/ports"
)

const (
	defaultRunLimit = 50
	maxLimit        = 1000
)

// Server is a read-only HTTP API over stored run reports.
type Server struct {
	router          *chi.Mux
	repo            ports.ResultRepository
	logger          *zap.Logger
	strongThreshold float64
	topN            int
}

// Options configure a Server.
type Options struct {
	Metrics         *metrics.Recorder
	Gatherer        prometheus.Gatherer
	StrongThreshold float64
	TopN            int
}

// NewServer creates the API and its routes.
func NewServer(repo ports.ResultRepository, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:          chi.NewRouter(),
		repo:            repo,
		logger:          logger,
		strongThreshold: opts.StrongThreshold,
		topN:            opts.TopN,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(opts.Metrics.Middleware())
	s.router.Use(s.requestLogger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/runs", s.handleListRuns)
	s.router.Get("/runs/{runID}", s.handleGetRun)
	s.router.Get("/runs/{runID}/matches", s.handleListMatches)
	s.router.Get("/runs/{runID}/summary", s.handleSummary)
	if opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultRunLimit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	runs, err := s.repo.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeErr(w, apperrors.InvalidInput(err.Error()))
		return
	}
	report, err := s.repo.GetReport(r.Context(), runID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeErr(w, apperrors.InvalidInput(err.Error()))
		return
	}

	q := r.URL.Query()
	var filters ports.MatchFilters
	if v := q.Get("bin"); v != "" {
		bin, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeErr(w, apperrors.InvalidInput("bin must be a number"))
			return
		}
		filters.Bin = &bin
	}
	if v := q.Get("min_score"); v != "" {
		minScore, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeErr(w, apperrors.InvalidInput("min_score must be a number"))
			return
		}
		filters.MinScore = &minScore
	}
	if filters.Limit, err = parseLimit(q.Get("limit"), 0); err != nil {
		s.writeErr(w, err)
		return
	}

	// distinguish an unknown run from an empty listing
	if _, err := s.repo.GetReport(r.Context(), runID); err != nil {
		s.writeErr(w, err)
		return
	}
	matches, err := s.repo.ListMatches(r.Context(), runID, filters)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": runID, "matches": matches, "count": len(matches)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeErr(w, apperrors.InvalidInput(err.Error()))
		return
	}
	report, err := s.repo.GetReport(r.Context(), runID)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(app.ResearchSummary(report, s.strongThreshold, s.topN)))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(app.ResearchSummaryHTML(report, s.strongThreshold, s.topN))
}

func parseLimit(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxLimit {
		return 0, apperrors.InvalidInput("limit must be an integer in [1, " + strconv.Itoa(maxLimit) + "]")
	}
	return n, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	code := apperrors.Classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
