package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/agents"
	"github.com/wincvex/console/internal/config"
	"github.com/wincvex/console/internal/database"
	"github.com/wincvex/console/internal/handlers"
	"github.com/wincvex/console/internal/logging"
)

func main() {
	config.Load()
	logging.Init()
	defer logging.Close()

	if err := database.Init(); err != nil {
		log.Fatal().Err(err).Msg("database init")
	}
	defer database.Close()

	inv, err := agents.LoadInventory(config.Cfg.InventoryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("inventory")
	}
	registry, err := agents.NewRegistry(inv)
	if err != nil {
		log.Fatal().Err(err).Msg("agent registry")
	}
	handlers.Agents = registry
	log.Info().Strs("agents", registry.IDs()).Msg("agent registry initialized")

	feed := agents.NewLogFeed(config.Cfg.LogInterval)
	if err := feed.Start(); err != nil {
		log.Fatal().Err(err).Msg("log feed")
	}
	handlers.LogFeed = feed
	handlers.CommandDelay = config.Cfg.CommandDelay

	// Graceful shutdown
	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: handlers.NewRouter(),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", config.Cfg.ListenAddr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-sigCtx.Done()
	log.Info().Msg("shutting down")

	feed.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
