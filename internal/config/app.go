package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/dialogbot/pkg/log"
)

type AppConfig struct {
	DatabasePath string `env:"DIALOGUE_DB_PATH" envDefault:"data/dialogue.db"`

	// Bounded per-user context window.
	HistorySize int `env:"HISTORY_SIZE" envDefault:"12"`

	// Optional markdown briefing injected when event keywords match.
	EventInfoPath string `env:"EVENT_INFO_PATH"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	return c
}
