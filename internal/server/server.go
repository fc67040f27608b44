// Package server exposes formbot over HTTP: the Slack events endpoint,
// health and status probes, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/internal/core/logging"
	"github.com/colonyops/formbot/pkg/iojson"
)

// StatusFunc reports the bot's current figures.
type StatusFunc func(ctx context.Context) (any, error)

// Server is the formbot HTTP server.
type Server struct {
	cfg      config.ServerConfig
	events   http.Handler
	status   StatusFunc
	gatherer prometheus.Gatherer
	now      func() time.Time
	log      zerolog.Logger
}

// New creates a Server. A nil gatherer disables /metrics.
func New(cfg config.ServerConfig, events http.Handler, status StatusFunc, gatherer prometheus.Gatherer) *Server {
	return &Server{
		cfg:      cfg,
		events:   events,
		status:   status,
		gatherer: gatherer,
		now:      time.Now,
		log:      logging.Component("server"),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer,
		middleware.RealIP,
		middleware.CleanPath,
		hlog.NewHandler(s.log),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		newIPLimiter(s.cfg.RateLimit, s.cfg.RateBurst).Middleware,
	)

	r.Get("/", s.handleRoot)
	r.Get("/test", s.handleTest)
	r.Get("/status", s.handleStatus)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.events != nil {
		r.Post("/slack/events", s.events.ServeHTTP)
	}

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down within the
// configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("formbot is running"))
}

func (s *Server) handleTest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	info, err := s.status(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("status failed")
		writeJSON(w, http.StatusInternalServerError, iojson.Error{Message: "status unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, obj any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = iojson.WriteLine(w, obj)
}
