// Package server exposes the analyzer and dashboard over a local JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/mailcheck/internal/analyzer"
	"github.com/sells-group/mailcheck/internal/dashboard"
	"github.com/sells-group/mailcheck/internal/eventloop"
	"github.com/sells-group/mailcheck/internal/outcome"
)

// maxBodyBytes bounds the analyze request body.
const maxBodyBytes = 1 << 20

// Analyzer is the subset of *analyzer.Analyzer the server uses.
type Analyzer interface {
	TrySubmit(ctx context.Context, text string) (analyzer.State, bool, error)
	State(ctx context.Context) (analyzer.State, error)
}

// Dashboard is the subset of *dashboard.Dashboard the server uses.
type Dashboard interface {
	Snapshot(ctx context.Context) (dashboard.Snapshot, error)
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves g on /metrics. Without it /metrics is not mounted.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithAllowedOrigins sets the CORS allow list.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// Server routes HTTP requests onto the orchestrators.
type Server struct {
	analyzer Analyzer
	dash     Dashboard
	gatherer prometheus.Gatherer
	origins  []string
}

// New creates a Server.
func New(a Analyzer, d Dashboard, opts ...Option) *Server {
	s := &Server{
		analyzer: a,
		dash:     d,
		origins:  []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/analyze", s.getAnalysis)
		r.Post("/analyze", s.postAnalysis)
		r.Get("/dashboard", s.getDashboard)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// analysisView is the JSON form of the analyzer state.
type analysisView struct {
	analyzer.State
	Pending  bool               `json:"pending"`
	Severity *analyzer.Severity `json:"severity,omitempty"`
}

func newAnalysisView(st analyzer.State) analysisView {
	v := analysisView{State: st, Pending: st.Pending()}
	if sev, ok := st.Severity(); ok {
		v.Severity = &sev
	}
	return v
}

type analyzeRequest struct {
	EmailText string `json:"emailText"`
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	st, err := s.analyzer.State(r.Context())
	if err != nil {
		writeLoopError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisView(st))
}

func (s *Server) postAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, accepted, err := s.analyzer.TrySubmit(r.Context(), req.EmailText)
	if err != nil {
		writeLoopError(w, err)
		return
	}

	status := http.StatusAccepted
	switch {
	case !accepted:
		status = http.StatusConflict
	case st.Outcome.IsFailed() && st.Outcome.Err().Kind == outcome.KindValidation:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, newAnalysisView(st))
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dash.Snapshot(r.Context())
	if err != nil {
		writeLoopError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeLoopError(w http.ResponseWriter, err error) {
	if errors.Is(err, eventloop.ErrStopped) {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	zap.L().Warn("server: loop call failed", zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "unavailable")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: write response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
