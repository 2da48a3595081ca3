package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/xcelerator/pkg/config"
	"github.com/wonny/xcelerator/pkg/logger"
)

// Server serves the read-only plan API
// ⭐ SSOT: API server settings live only in this file
type Server struct {
	http   *http.Server
	env    string
	logger *logger.Logger
}

// New creates an API server listening on cfg.Port
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		env:    cfg.Env,
		logger: log.WithComponent("api"),
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start blocks serving requests until Shutdown; a clean shutdown returns nil
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"addr": s.http.Addr,
		"env":  s.env,
	}).Info("Starting API server")

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown API server: %w", err)
	}
	return nil
}
