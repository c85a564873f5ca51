// Package api provides the HTTP surface for atendebot: the WhatsApp Cloud
// API webhook (verification handshake plus inbound message delivery) and a
// health check endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jzfdigital/atendebot/internal/messaging"
	"github.com/jzfdigital/atendebot/internal/models"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":3000"

	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

// EventProcessor runs one conversation turn for an inbound event.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, participantID string, ev models.InboundEvent) error
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	VerifyToken string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// Server hosts the webhook endpoints and dispatches decoded events to the
// turn engine.
type Server struct {
	addr        string
	verifyToken string
	engine      EventProcessor
	msgService  messaging.Service
	httpServer  *http.Server
}

// NewServer creates the API server. The verification token falls back to
// the VERIFY_TOKEN environment variable when not provided via options.
func NewServer(engine EventProcessor, msgService messaging.Service, opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.VerifyToken == "" {
		cfg.VerifyToken = os.Getenv("VERIFY_TOKEN")
	}
	if cfg.VerifyToken == "" {
		return nil, fmt.Errorf("webhook verify token must be provided")
	}
	if engine == nil {
		return nil, fmt.Errorf("event processor must be provided")
	}

	s := &Server{
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
		engine:      engine,
		msgService:  msgService,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	return s, nil
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
