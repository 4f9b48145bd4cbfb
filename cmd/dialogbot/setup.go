package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/joho/godotenv"

	"github.com/sandevgo/dialogbot/internal/config"
	"github.com/sandevgo/dialogbot/internal/providers/llm"
	"github.com/sandevgo/dialogbot/internal/providers/search"
	"github.com/sandevgo/dialogbot/internal/service/agent"
	"github.com/sandevgo/dialogbot/internal/service/dialogue"
	"github.com/sandevgo/dialogbot/internal/storage/sqlite"
	"github.com/sandevgo/dialogbot/internal/transport/telegram"
	"github.com/sandevgo/dialogbot/pkg/log"
	"github.com/sandevgo/dialogbot/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	if err := initEnv(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	completionCfg := config.NewCompletionConfig(ctx)
	searchCfg := config.NewSearchConfig(ctx)

	// 2. Storage
	db, repo, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	store := dialogue.NewStore(appCfg.HistorySize, repo)

	// 3. Completion client
	client := llm.NewClient(completionCfg)

	// 4. Web search (optional)
	var searcher agent.Searcher
	if searchCfg.Enabled() {
		searcher = search.NewExa(searchCfg)
		logger.Info().Msg("web search enabled")
	}

	// 5. Agent
	ag := agent.NewAgent(store, client, searcher, appCfg.EventInfoPath)

	// 6. Telegram transport
	bot, err := telegram.NewBot(ctx, config.NewTelegramConfig(ctx), ag)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telegram bot")
	}
	services = append(services, bot)

	return services
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*sql.DB, *sqlite.HistoryRepo, error) {
	db, err := sqlite.NewDB(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return db, sqlite.NewHistoryRepo(db), nil
}

func initEnv(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	if _, err := os.Stat(".env"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Msg("loaded .env file")
	return nil
}
