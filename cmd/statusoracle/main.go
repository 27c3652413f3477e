// statusoracle - Development completion tracker for settlement negotiations.
// Serves GET /status, PUT /reset and POST /notify. With SCRIPTED_SETTLEMENT=true
// it also hosts a scripted settlement tool at /sse that notifies the tracker
// when a payment is confirmed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zen7-console/internal/config"
	"zen7-console/internal/mcptool"
	"zen7-console/internal/oracle"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := initLogger()

	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Bool("scripted_settlement", cfg.ScriptedSettlement),
	)

	tracker := oracle.NewServer(logger)

	var mount func(mux *http.ServeMux)
	if cfg.ScriptedSettlement {
		settle := mcptool.ScriptedSettlement(func(ctx context.Context, args mcptool.ToolArguments) {
			tracker.MarkFinished()
			logger.InfoContext(ctx, "scripted payment confirmed",
				slog.String("context_id", args.ContextID),
				slog.String("user_id", args.UserID),
			)
		})
		sse := mcptool.NewSettlementServer(cfg.Tool, settle, logger).SSEHandler()
		mount = func(mux *http.ServeMux) { mux.Handle("/sse", sse) }
	}
	httpHandler := tracker.HandlerWith(mount)

	// No WriteTimeout: the SSE stream stays open for the whole session
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     httpHandler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for Cloud Logging; development uses text.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
