package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/auth"
	"github.com/rememberme/rememberme/internal/calendar"
	"github.com/rememberme/rememberme/internal/engine"
	"github.com/rememberme/rememberme/internal/metrics"
	"github.com/rememberme/rememberme/internal/server"
	"github.com/rememberme/rememberme/internal/telemetry"
)

var serveAppURL string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAppURL, "app-url", "", "frontend URL the calendar callback redirects to (default: first allowed origin)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	shutdownTracing, err := telemetry.Setup(cmd.Context(), cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(ctx)
	}()

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}

	m := metrics.New()
	eng := a.newEngine()
	eng.Metrics = m
	if cfg.Rescue.Enabled {
		eng.StartRescueTimer()
		logger.Info("weekly rescue timer started", zap.Duration("period", engine.RescuePeriod))
	}
	defer eng.Stop()

	cal, err := calendar.NewService(a.db, cfg.Calendar, cfg.Server.PublicURL, logger)
	if err != nil {
		logger.Warn("calendar integration disabled", zap.Error(err))
		cal = nil
	} else {
		cal.Metrics = m
		logger.Info("calendar integration enabled", zap.Any("providers", cal.Providers()))
	}

	appURL := serveAppURL
	if appURL == "" && len(cfg.Server.AllowedOrigins) > 0 {
		appURL = cfg.Server.AllowedOrigins[0]
	}

	srv := server.New(server.Options{
		DB:             a.db,
		Engine:         eng,
		Calendar:       cal,
		Verifier:       verifier,
		Metrics:        m,
		Logger:         logger,
		Version:        VersionString(),
		CronSecret:     cfg.Auth.CronSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AppURL:         appURL,
	})
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rememberme serving", zap.String("addr", addr), zap.String("version", VersionString()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
