package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/dialogbot/pkg/log"
)

// SearchConfig is optional: without a key, web search is disabled.
type SearchConfig struct {
	ExaAPIKey string `env:"EXA_API_KEY"`
}

func NewSearchConfig(ctx context.Context) *SearchConfig {
	c := &SearchConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse search config")
	}
	return c
}

func (c *SearchConfig) Enabled() bool {
	return c.ExaAPIKey != ""
}
