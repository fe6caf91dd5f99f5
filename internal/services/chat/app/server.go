// Package server hosts the chat HTTP/WebSocket process.
//
// It delegates identity resolution to the identity provider and message
// durability to the chat store so the transport layer owns only session
// lifecycle, room fan-out, and read-state choreography.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/duochat/duochat/internal/platform/timeouts"
	"github.com/duochat/duochat/internal/services/chat/identity"
	"github.com/duochat/duochat/internal/services/chat/storage/sqlite"
)

// Config defines the inputs for the chat transport boundary.
type Config struct {
	HTTPAddr          string
	StoragePath       string
	TokenSecret       string
	TokenIssuer       string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the chat HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
}

// NewServer builds a configured chat server backed by the SQLite store.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.StoragePath) == "" {
		return nil, errors.New("storage path is required")
	}
	if strings.TrimSpace(config.TokenSecret) == "" {
		return nil, errors.New("token secret is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := sqlite.Open(config.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}

	provider, err := identity.NewTokenProvider(identity.Config{
		Secret: config.TokenSecret,
		Issuer: config.TokenIssuer,
	}, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init identity provider: %w", err)
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           NewHandler(store, provider),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
	}, nil
}

// Run creates and serves a chat server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("chat server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("chat server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close chat store: %v", err)
		}
	}
}

// storageCtx derives a bounded context for one persistence call so a
// stalled store never pins a connection goroutine forever.
func storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeouts.StorageOp)
}
