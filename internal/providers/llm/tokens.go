package llm

import (
	"context"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
	"github.com/sandevgo/dialogbot/internal/core"
	"github.com/sandevgo/dialogbot/pkg/log"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

func getTokenizer() *tiktoken.Tiktoken {
	tokenizerOnce.Do(func() {
		tk, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Token accounting is best-effort; run without it.
			return
		}
		tokenizer = tk
	})
	return tokenizer
}

// logPromptSize logs an estimated prompt token count at debug level.
func (c *Client) logPromptSize(ctx context.Context, messages []core.Message) {
	logger := log.FromCtx(ctx)
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	tk := getTokenizer()
	if tk == nil {
		return
	}

	total := 0
	for _, msg := range messages {
		total += len(tk.Encode(msg.Content.Text(), nil, nil))
	}
	logger.Debug().Int("prompt_tokens", total).Int("messages", len(messages)).Msg("estimated prompt size")
}
