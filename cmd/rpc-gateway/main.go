package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rpc-gateway/internal/config"
	"rpc-gateway/internal/gateway"
	"rpc-gateway/internal/httpserver"
	"rpc-gateway/internal/metrics"
)

type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	err := runGateway(os.Args[1:], logger)
	if err == nil {
		return
	}

	logger.Error("command failed", "error", err)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	os.Exit(1)
}

func runGateway(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("rpc-gateway", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfgPath := fs.String("c", "", "path to yaml config file")
	envPath := fs.String("env", ".env", "optional dotenv file loaded before the config")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse args: %w", err)
	}

	if strings.TrimSpace(*cfgPath) == "" {
		return fmt.Errorf("missing required -c <config.yaml>")
	}

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	router, err := gateway.NewRouter(cfg)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	service := gateway.NewService(cfg, router, m, logger)
	opts := httpserver.Options{
		Endpoint:  cfg.Endpoint,
		RateLimit: cfg.RateLimit,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	var srv server
	switch cfg.Platform {
	case config.PlatformFastHTTP:
		srv = httpserver.NewFast(cfg.Listen, logger, service, opts)
	default:
		srv = httpserver.New(cfg.Listen, logger, service, opts)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "listen", cfg.Listen, "platform", cfg.Platform, "endpoint", cfg.Endpoint, "procedures", len(cfg.Procedures))
		errCh <- srv.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited unexpectedly: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("gateway stopped")
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
