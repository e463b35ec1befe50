package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"nodeagent/internal/logger"
)

// Server exposes the latest snapshot as JSON on GET /metrics.
type Server struct {
	sampler    *Sampler
	ln         net.Listener
	httpServer *http.Server
	done       chan struct{}
}

// Start binds addr and serves until Stop. Sampling runs every interval.
func Start(ctx context.Context, addr string, clk clock.Clock, interval time.Duration) (*Server, error) {
	source, err := NewProcessSource(clk)
	if err != nil {
		return nil, fmt.Errorf("failed to open process for metrics: %w", err)
	}
	return StartWithSource(ctx, addr, source, clk, interval)
}

// StartWithSource is Start with an explicit Source.
func StartWithSource(ctx context.Context, addr string, source Source, clk clock.Clock, interval time.Duration) (*Server, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind metrics server %s: %w", addr, err)
	}

	s := &Server{
		sampler: NewSampler(source, clk, interval),
		ln:      ln,
		done:    make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.sampler.Start(context.WithoutCancel(ctx))

	log := logger.WithComponent("metrics")
	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("metrics server listening")
	return s, nil
}

// Handler serves GET /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := s.sampler.Latest()
		if !ok {
			http.Error(w, "no sample yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})
	return mux
}

// Addr is the bound address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Stop aborts the server without waiting for in-flight requests.
func (s *Server) Stop() {
	_ = s.httpServer.Close()
	<-s.done
	s.sampler.Stop()
}
