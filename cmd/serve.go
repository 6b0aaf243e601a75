package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/david8712403/lec-dashboard-sub000/internal/api"
	"github.com/david8712403/lec-dashboard-sub000/internal/config"
	"github.com/david8712403/lec-dashboard-sub000/internal/database"
	"github.com/david8712403/lec-dashboard-sub000/internal/log"
	"github.com/david8712403/lec-dashboard-sub000/internal/model"
	"github.com/david8712403/lec-dashboard-sub000/internal/orchestrator"
	"github.com/david8712403/lec-dashboard-sub000/internal/skill"
	"github.com/david8712403/lec-dashboard-sub000/internal/thread"
	"github.com/david8712403/lec-dashboard-sub000/internal/tutor"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs longer timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{Level: logLevel(cfg), JSON: cfg.LogJSON})
	slog.SetDefault(logger)
	logger.Info("starting HTTP API server", "version", AppVersion)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := database.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	client, err := model.NewGenkitClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing model client: %w", err)
	}

	tutorStore := tutor.NewStore(pool, logger)
	threadStore := thread.NewStore(pool, logger)

	registry, err := skill.NewCatalog(tutorStore)
	if err != nil {
		return fmt.Errorf("building action catalog: %w", err)
	}

	runner := orchestrator.New(client, registry, logger)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:     logger,
		Threads:    threadStore,
		Runner:     runner,
		Pool:       pool,
		TrustProxy: cfg.TrustProxy,
		RateBurst:  cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"api", "/api/v1/threads/ops",
		"health", "/healthz, /readyz",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.LogDebug || os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
