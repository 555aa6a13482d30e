// Package server exposes the reconciled parcel data as a small read-only
// HTTP API serving the same collections the export command writes.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cranland/parcel-cli/internal/export"
)

// Server serves bed and farm-point feature collections over HTTP.
type Server struct {
	exporter *export.Exporter
	router   chi.Router
}

// New creates a Server over the given exporter.
func New(exporter *export.Exporter) *Server {
	s := &Server{exporter: exporter}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/collections/beds", s.handleBeds)
	r.Get("/collections/farms/{slug}", s.handleFarm)
	r.Get("/collections/points", s.handlePoints)

	s.router = r
	return s
}

// Router returns the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting collections server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleBeds(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	stats, err := s.exporter.ExportAll(r.Context(), w)
	if err != nil {
		serveError(w, err)
		return
	}
	zap.L().Debug("served bed collection", zap.Int("features", stats.Features), zap.Int("skipped", stats.Skipped))
}

func (s *Server) handleFarm(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var buf bytes.Buffer
	stats, err := s.exporter.ExportFarm(r.Context(), &buf, slug)
	switch {
	case eris.Is(err, export.ErrFarmNotFound):
		http.Error(w, `{"error":"farm not found"}`, http.StatusNotFound)
		return
	case err != nil:
		serveError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = buf.WriteTo(w)
	zap.L().Debug("served farm collection", zap.String("slug", slug), zap.Int("features", stats.Features))
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	stats, err := s.exporter.ExportPoints(r.Context(), w)
	if err != nil {
		serveError(w, err)
		return
	}
	zap.L().Debug("served farm points", zap.Int("features", stats.Features))
}

func serveError(w http.ResponseWriter, err error) {
	zap.L().Error("collection request failed", zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
