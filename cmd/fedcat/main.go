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

	"github.com/joho/godotenv"

	"github.com/openshelf/fedcat/api"
	"github.com/openshelf/fedcat/browser"
	"github.com/openshelf/fedcat/config"
	"github.com/openshelf/fedcat/extract"
	"github.com/openshelf/fedcat/fusion"
	"github.com/openshelf/fedcat/legacy"
	"github.com/openshelf/fedcat/session"
	"github.com/openshelf/fedcat/transport"
	"github.com/openshelf/fedcat/ycl"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	_ = godotenv.Load()
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	log := newLogger(cfg.Log)
	slog.SetDefault(log)
	log.Info("fedcat starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"legacy", cfg.LegacyConfigured(),
		"ycl", cfg.YCLConfigured(),
	)

	// ── 3. Browser (legacy search and ycl session capture both need it)
	var br *browser.Browser
	if cfg.LegacyConfigured() || cfg.YCLConfigured() {
		var err error
		br, err = browser.New(cfg.Browser, log.With("component", "browser"))
		if err != nil {
			log.Error("failed to initialise browser", "error", err)
			os.Exit(1)
		}
		defer br.Close()
	}

	// ── 4. Source adapters ──────────────────────────────────────────
	var (
		legacyAdapter  fusion.LegacySearcher
		digitalAdapter fusion.DigitalSearcher
		sessions       fusion.SessionSource
		pages          fusion.PageProvider
	)
	if cfg.LegacyConfigured() {
		extractor := extract.New(log.With("component", "extract"))
		legacyAdapter = legacy.NewAdapter(cfg.Legacy, extractor, nil, log.With("component", "legacy"))
		pages = br
	}
	if cfg.YCLConfigured() {
		wire := transport.NewClient(cfg.Transport, cfg.YCL.Host, cfg.YCL.Scheme,
			cfg.YCL.SessionCookie, log.With("component", "transport"))
		digitalAdapter = ycl.NewClient(wire, cfg.YCL.Slug, log.With("component", "ycl"))
		sessions = session.NewAcquirer(br.Rod(), cfg.YCL.SessionCookie, cfg.Session,
			log.With("component", "session"))
	}

	// ── 5. Fusion engine ────────────────────────────────────────────
	engine := fusion.NewEngine(pages, legacyAdapter, digitalAdapter, sessions,
		cfg.YCL.AuthURL, cfg.Fusion, log.With("component", "fusion"))

	// ── 6. Router + HTTP server ─────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(engine, cfg, log.With("component", "api"), startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP server forced shutdown", "error", err)
	} else {
		log.Info("HTTP server drained gracefully")
	}

	// br.Close() runs via defer: drains the tab pool and kills Chrome.
	log.Info("fedcat stopped")
}

// newLogger configures slog based on the LogConfig.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
