package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/dialogbot/internal/config"
	"github.com/sandevgo/dialogbot/internal/core"
	"github.com/sandevgo/dialogbot/internal/providers/llm"
	"github.com/sandevgo/dialogbot/test"
)

func liveClient(t *testing.T) *llm.Client {
	cfg := &config.CompletionConfig{
		APIKeys:     test.APIKeys(t),
		BaseURL:     "https://api.mapleai.de/v1",
		ModelName:   "gpt-4o",
		Temperature: 0,
		MaxTokens:   64,
	}
	return llm.NewClient(cfg)
}

func TestGenerateReply_Live(t *testing.T) {
	client := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	reply, err := client.GenerateReply(ctx, []core.Message{
		core.NewMessage(core.RoleUser, core.TextContent("Reply with the single word OK.")),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}

func TestGenerateReplyStream_Live(t *testing.T) {
	client := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var sb strings.Builder
	err := client.GenerateReplyStream(ctx, []core.Message{
		core.NewMessage(core.RoleUser, core.TextContent("Count from 1 to 5, digits only.")),
	}, func(delta string) error {
		sb.WriteString(delta)
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sb.String())
}
