package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/prophunt/prophunt-backend/internal/config"
	"github.com/prophunt/prophunt-backend/internal/engine"
	"github.com/prophunt/prophunt-backend/internal/httpapi"
	"github.com/prophunt/prophunt-backend/internal/hub"
	"github.com/prophunt/prophunt-backend/internal/observability"
)

func main() {
	// Local dev convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	h := hub.NewHub(ctx, hub.Options{
		Rules: engine.Rules{
			MinPlayers: cfg.MinPlayers,
			MaxPlayers: cfg.MaxPlayers,
		},
		Countdown: cfg.Countdown(),
		Logger:    logger,
	})

	handler := httpapi.SetupRoutes(h, logger)

	logger.Info("listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.Int("min_players", cfg.MinPlayers),
		zap.Int("max_players", cfg.MaxPlayers),
	)
	if err := http.ListenAndServe(cfg.HTTPAddr, handler); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
