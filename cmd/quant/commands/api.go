package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/xcelerator/internal/api"
	"github.com/wonny/xcelerator/internal/api/handlers"
	"github.com/wonny/xcelerator/internal/live"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only API server",
	Long: `Serves the latest stored plan and ranking over HTTP.

Endpoints:
  GET  /health                - database and circuit breaker status
  GET  /metrics               - Prometheus metrics
  GET  /api/plan/latest       - latest live report
  GET  /api/rankings/latest   - ranking behind the latest report

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default API_PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	server := a.apiServer(a.planStore())
	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Fprintln(cmd.OutOrStdout(), "\nPress Ctrl+C to stop")

	waitForSignal()
	return a.shutdown(server)
}

// apiServer builds the HTTP server over store
func (a *app) apiServer(store live.Store) *api.Server {
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	var db handlers.DatabaseChecker
	if a.db != nil {
		db = a.db
	}
	health := handlers.NewHealthHandler("xcelerator", db, map[string]handlers.BreakerReporter{
		"yahoo": a.yahooHTTP,
		"nse":   a.nseHTTP,
		"kite":  a.kiteHTTP,
	})
	router := api.NewRouter(handlers.NewPlanHandler(store, a.log), health, a.metrics, a.log)

	a.log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")
	return api.New(a.cfg, a.log, router)
}

// shutdown stops the server with a timeout
func (a *app) shutdown(server *api.Server) error {
	a.log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.log.Info("Server stopped")
	return nil
}

// waitForSignal blocks until SIGINT or SIGTERM
func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
}
