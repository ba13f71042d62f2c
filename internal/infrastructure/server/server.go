// Package server exposes the webhook and REST surface over net/http.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/chatwork/internal/application/relay"
	"github.com/doeshing/chatwork/internal/ports"
)

// SignatureVerifier checks webhook request signatures.
type SignatureVerifier interface {
	VerifySignature(timestamp, nonce, body, signature string) bool
}

// Server hosts the webhook and REST endpoints.
type Server struct {
	relay    *relay.Service
	verifier SignatureVerifier
	dedup    ports.DedupRegistry
	logger   ports.Logger
	addr     string
}

// New builds a Server.
func New(addr string, relaySvc *relay.Service, verifier SignatureVerifier, dedup ports.DedupRegistry, log ports.Logger) *Server {
	return &Server{
		relay:    relaySvc,
		verifier: verifier,
		dedup:    dedup,
		logger:   log,
		addr:     addr,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/feishu", s.handleWebhook)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/execute", s.handleExecute)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Run serves until the context is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", map[string]interface{}{"addr": s.addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
