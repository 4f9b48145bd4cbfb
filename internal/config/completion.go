package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/dialogbot/pkg/log"
)

type CompletionConfig struct {
	// One or many credentials; the client rotates through them on
	// rate-limit failures.
	APIKeys []string `env:"API_KEYS,required,notEmpty" envSeparator:","`

	BaseURL   string `env:"BASE_URL" envDefault:"https://api.mapleai.de/v1"`
	ModelName string `env:"MODEL_NAME" envDefault:"gpt-4o"`

	Temperature float64 `env:"TEMPERATURE" envDefault:"0.6"`
	MaxTokens   int     `env:"MAX_COMPLETION_TOKENS" envDefault:"1024"`
}

func NewCompletionConfig(ctx context.Context) *CompletionConfig {
	c := &CompletionConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse completion config")
	}
	keys := c.APIKeys[:0]
	seen := map[string]bool{}
	for _, k := range c.APIKeys {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	c.APIKeys = keys
	if len(c.APIKeys) == 0 {
		log.FromCtx(ctx).Fatal().Msg("API_KEYS contains no usable credentials")
	}
	return c
}
