// Package server exposes a ledger over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap-incubator/tinyledger/ledger/config"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// Server serves the HTTP API until Stop is called.
type Server struct {
	cfg    *config.ServerConfig
	ledger *ledger.Ledger

	mu  sync.Mutex
	srv *http.Server
}

func NewServer(cfg *config.ServerConfig, l *ledger.Ledger) *Server {
	return &Server{
		cfg:    cfg,
		ledger: l,
	}
}

// addr returns the bound address of ln, falling back to the configured one.
func (s *Server) addr(ln net.Listener) string {
	if ln != nil {
		return ln.Addr().String()
	}
	return s.cfg.Addr
}

// ListenAndServe listens on the configured address and serves until Stop.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.WithStack(err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop. It returns nil after a clean stop.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server already started")
	}
	s.srv = &http.Server{Handler: NewHandler(s.ledger, s.cfg.TransferRetries)}
	srv := s.srv
	s.mu.Unlock()

	log.Info("http server listening", zap.String("addr", s.addr(ln)))
	err := srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return errors.WithStack(err)
}

// Stop waits up to the shutdown timeout for in-flight requests, then closes the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown timed out", zap.Error(err))
		return errors.WithStack(srv.Close())
	}
	log.Info("http server stopped")
	return nil
}
