/*
Package main is the entry point for the mediamatch server.

It loads configuration, initializes logging, picks the catalog source
(Postgres table, Plex server, or none yet), builds the room registry, and runs
the HTTP server with graceful shutdown on SIGINT/SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediamatch/internal/app/i18n"
	"mediamatch/internal/app/match"
	"mediamatch/internal/app/media"
	"mediamatch/internal/configs"
	"mediamatch/internal/handler"
	"mediamatch/internal/infra/pgcatalog"
	"mediamatch/internal/infra/plex"
	"mediamatch/internal/pkg/auth/roomkey"
	"mediamatch/internal/pkg/logx"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.Init(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("requires_configuration", cfg.RequiresConfiguration()).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, cleanup, err := buildCatalog(cfg)
	if err != nil {
		logx.Fatal(err, "Failed to initialize the media catalog")
	}
	defer cleanup()

	translator, err := i18n.NewTranslator()
	if err != nil {
		logx.Fatal(err, "Failed to load translations")
	}

	registry := match.NewRegistry(catalog, roomkey.NewIssuer(cfg.RoomKeySecret))

	deps := &handler.AppDeps{
		Config:     cfg,
		Registry:   registry,
		Identity:   plex.NewTV(""),
		Translator: translator,
		Sessions:   handler.NewSessionTracker(),
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     handler.Router(deps),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("mediamatch server starting on http://localhost%s", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	// Shutdown does not cover hijacked WebSocket connections.
	deps.Sessions.Shutdown(shutdownCtx)

	logx.Info("Server gracefully stopped.")
}

// buildCatalog selects the catalog provider: Postgres when a DSN is set, a
// Plex server when configured, otherwise an empty static catalog so the
// process can come up unconfigured and tell clients to finish setup.
func buildCatalog(cfg *configs.AppConfig) (media.CatalogProvider, func(), error) {
	noop := func() {}

	if cfg.DatabaseDSN != "" {
		pool, err := pgcatalog.NewPool(cfg.DatabaseDSN)
		if err != nil {
			return nil, noop, err
		}
		logx.Info("Using the Postgres media catalog")
		return pgcatalog.NewCatalog(pool), pool.Close, nil
	}

	if cfg.PlexServerURL != "" {
		logx.Info("Using the Plex media catalog", "server", cfg.PlexServerURL, "section", cfg.PlexSectionID)
		return plex.NewServer(cfg.PlexServerURL, cfg.PlexServerToken, cfg.PlexSectionID), noop, nil
	}

	logx.Warn("No catalog source configured; rooms will start with an empty candidate list")
	return &media.StaticCatalog{}, noop, nil
}
