package main

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
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/vision-guard-go/internal/api"
	"github.com/MJE43/vision-guard-go/internal/config"
	"github.com/MJE43/vision-guard-go/internal/diagnosis"
	"github.com/MJE43/vision-guard-go/internal/logging"
	"github.com/MJE43/vision-guard-go/internal/medication"
	"github.com/MJE43/vision-guard-go/internal/schedule"
	"github.com/MJE43/vision-guard-go/internal/secrets"
	"github.com/MJE43/vision-guard-go/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	loader, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, level, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("config_file", loader.File()),
		zap.String("engine_version", api.EngineVersion),
		zap.String("git_commit", api.GitCommit))

	// The log level follows the config file. Other keys need a restart.
	loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			logger.Warn("config_reload_failed", zap.Error(err))
			return
		}
		if err := logging.SetLevel(level, next.Logging.Level); err != nil {
			logger.Warn("config_reload_failed", zap.Error(err))
			return
		}
		logger.Info("config_reloaded", zap.String("log_level", next.Logging.Level))
	})

	store, err := medication.NewStore()
	if err != nil {
		return fmt.Errorf("open medication store: %w", err)
	}
	defer store.Close()

	metrics := api.NewMetrics()
	sessions := session.NewManager(session.Config{
		MaxSessions:  cfg.Sessions.Max,
		IdleTTL:      cfg.Sessions.IdleTTL,
		ReapInterval: cfg.Sessions.ReapInterval,
	}, schedule.NewTicker(), store, logger.Named("session"), metrics)

	keys := secrets.NewStore(cfg.Secrets.Service, cfg.Secrets.FallbackPath)
	gemini := diagnosis.NewGemini(diagnosis.GeminiConfig{
		Model:   cfg.Diagnosis.Model,
		BaseURL: cfg.Diagnosis.BaseURL,
		Timeout: cfg.Diagnosis.Timeout,
	}, secrets.Resolver(cfg.Diagnosis.APIKey, keys, secrets.Gemini))
	logger.Info("diagnosis_configured", zap.String("model", gemini.Model()))

	srv := api.NewServer(api.Options{
		Sessions:       sessions,
		Store:          store,
		Diagnosis:      diagnosis.NewService(gemini, logger.Named("diagnosis")),
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxSessions:    cfg.Sessions.Max,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		// Sessions go first so open event streams see their channels close.
		sessErr := sessions.Shutdown(shutdownCtx)
		return errors.Join(sessErr, httpServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Error("server_stopped", zap.Error(err))
		return err
	}
	logger.Info("server_stopped")
	return nil
}
