// Package api is the engine's boundary adapter: HTTP order entry and
// queries plus WebSocket event streams. Matching semantics live in the
// engine; this package only speaks the wire protocol.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"kestrel/internal/config"
	"kestrel/internal/engine"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
	cancel     context.CancelFunc
	log        zerolog.Logger
}

func New(cfg config.ServerConfig, eng *engine.Engine, log zerolog.Logger) *Server {
	handlers := NewHandlers(eng, log)
	streams := NewStreams(eng, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/orders", handlers.HandleSubmit)
	mux.HandleFunc("/orders/cancel", handlers.HandleCancel)
	mux.HandleFunc("/bbo", handlers.HandleBBO)
	mux.HandleFunc("/depth", handlers.HandleDepth)
	mux.HandleFunc("/ws/trades", streams.HandleTrades)
	mux.HandleFunc("/ws/market-data", streams.HandleMarketData)

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Handler:     mux,
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		log: log.With().Str("component", "server").Logger(),
	}
}

// Shutdown asks a running server to stop.
func (s *Server) Shutdown() {
	s.log.Info().Msg("server shutting down")
	s.cancel()
}

// Run serves until the context is cancelled. Always returns the reason
// the serving loop ended.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}

	t.Go(func() error {
		if err := s.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	t.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(sctx)
	})

	s.log.Info().
		Str("address", s.cfg.Address).
		Int("port", s.cfg.Port).
		Msg("server running")

	return t.Wait()
}
