// Package api exposes the HTTP interface for the profiling service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/profile"
	"github.com/browsint/browsint/internal/store"
	"github.com/browsint/browsint/internal/webtech"
)

// Profiler is the slice of the profile service the handlers need.
type Profiler interface {
	ProfileDomain(ctx context.Context, domain string) (*profile.Profile, error)
	ProfileEmail(ctx context.Context, email string) (*profile.Profile, error)
	ProfileUsername(ctx context.Context, username string) (*profile.Profile, error)
	Summaries(ctx context.Context) ([]profile.Summary, error)
	ByID(ctx context.Context, id int64) (*profile.Profile, error)
	ByIdentifier(ctx context.Context, identifier string) (*profile.Profile, error)
}

// SiteAnalyzer runs the web technology fingerprint.
type SiteAnalyzer interface {
	Analyze(ctx context.Context, target string) (*webtech.Report, error)
}

// StoreAdmin covers the maintenance operations exposed under /v1/admin.
type StoreAdmin interface {
	Backup(name string) (string, error)
	Size(name string) (int64, error)
}

// Server wires HTTP handlers to the profile service, the analyzer and the
// store admin surface.
type Server struct {
	router   chi.Router
	profiles Profiler
	analyzer SiteAnalyzer
	admin    StoreAdmin
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(profiles Profiler, analyzer SiteAnalyzer, admin StoreAdmin, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		profiles: profiles,
		analyzer: analyzer,
		admin:    admin,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/profiles", func(r chi.Router) {
			r.Post("/domain", s.profileDomain)
			r.Post("/email", s.profileEmail)
			r.Post("/username", s.profileUsername)
			r.Get("/", s.listProfiles)
			r.Get("/lookup", s.lookupProfile)
			r.Get("/{id}", s.getProfile)
		})
		r.Post("/analyze", s.analyzeSite)
		r.Route("/admin", func(r chi.Router) {
			r.Post("/backup/{store}", s.backupStore)
			r.Get("/stores", s.storeSizes)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.admin != nil {
		for _, name := range store.Names() {
			if _, err := s.admin.Size(name); err != nil {
				s.writeError(w, http.StatusServiceUnavailable, "store unavailable: "+name)
				return
			}
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type targetRequest struct {
	Target string `json:"target"`
}

func (s *Server) profileDomain(w http.ResponseWriter, r *http.Request) {
	s.runProfile(w, r, s.profiles.ProfileDomain)
}

func (s *Server) profileEmail(w http.ResponseWriter, r *http.Request) {
	s.runProfile(w, r, s.profiles.ProfileEmail)
}

func (s *Server) profileUsername(w http.ResponseWriter, r *http.Request) {
	s.runProfile(w, r, s.profiles.ProfileUsername)
}

func (s *Server) runProfile(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*profile.Profile, error)) {
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == "" {
		s.writeError(w, http.StatusBadRequest, "missing target")
		return
	}
	prof, err := op(r.Context(), req.Target)
	if err != nil {
		s.writeProfileError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prof)
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.profiles.Summaries(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"profiles": summaries, "count": len(summaries)})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}
	prof, err := s.profiles.ByID(r.Context(), id)
	if err != nil {
		s.writeProfileError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prof)
}

func (s *Server) lookupProfile(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		s.writeError(w, http.StatusBadRequest, "missing identifier")
		return
	}
	prof, err := s.profiles.ByIdentifier(r.Context(), identifier)
	if err != nil {
		s.writeProfileError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prof)
}

func (s *Server) analyzeSite(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == "" {
		s.writeError(w, http.StatusBadRequest, "missing target")
		return
	}
	report, err := s.analyzer.Analyze(r.Context(), req.Target)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) backupStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "store")
	path, err := s.admin.Backup(name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"store": name, "backup": path})
}

func (s *Server) storeSizes(w http.ResponseWriter, _ *http.Request) {
	sizes := map[string]int64{}
	for _, name := range store.Names() {
		size, err := s.admin.Size(name)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		sizes[name] = size
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sizes_bytes": sizes})
}

// writeProfileError maps the profile service's sentinels onto statuses.
func (s *Server) writeProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, profile.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
