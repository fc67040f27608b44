// Package profiler serves net/http/pprof on a separate, private listener.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/colonyops/formbot/internal/core/logging"
)

// Handler returns a mux with the pprof endpoints under /debug/pprof/.
func Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}

// Serve listens on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	log := logging.Component("profiler")

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("profiler listen: %w", err)
	}

	srv := &http.Server{Handler: Handler(), ReadHeaderTimeout: 10 * time.Second}
	log.Info().Str("addr", listener.Addr().String()).Msg("starting profiler server")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	log.Info().Msg("shutting down profiler server")
	return srv.Shutdown(shutdownCtx)
}
