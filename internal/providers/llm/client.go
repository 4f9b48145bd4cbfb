// Package llm talks to an OpenAI-compatible chat-completions endpoint with
// bounded retry and API-key rotation on rate-limit failures.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sandevgo/dialogbot/internal/config"
	"github.com/sandevgo/dialogbot/internal/core"
	"github.com/sandevgo/dialogbot/pkg/log"
	"github.com/sandevgo/dialogbot/pkg/retry"
)

const requestTimeout = 120 * time.Second

type Client struct {
	cfg     *config.CompletionConfig
	retrier *retry.Retrier

	// Credential rotation mutates shared state: guarded so concurrent
	// exchanges cannot rotate past each other.
	mu    sync.Mutex
	keys  []string
	index int
	httpc *http.Client
}

func NewClient(cfg *config.CompletionConfig) *Client {
	return &Client{
		cfg:     cfg,
		retrier: retry.NewDefaultRetrier(),
		keys:    cfg.APIKeys,
		httpc:   newHTTPClient(),
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []core.Message `json:"messages"`
	Temperature         float64        `json:"temperature"`
	MaxCompletionTokens int            `json:"max_completion_tokens"`
	Stream              bool           `json:"stream,omitempty"`
}

// normalizeMessages validates role membership before any network activity.
func normalizeMessages(messages []core.Message) ([]core.Message, error) {
	normalized := make([]core.Message, 0, len(messages))
	for _, msg := range messages {
		if !core.ValidRole(msg.Role) {
			return nil, fmt.Errorf("unsupported role: %q", msg.Role)
		}
		normalized = append(normalized, msg)
	}
	return normalized, nil
}

func (c *Client) buildRequest(messages []core.Message, stream bool) (*chatRequest, error) {
	normalized, err := normalizeMessages(messages)
	if err != nil {
		return nil, err
	}

	return &chatRequest{
		Model:               c.cfg.ModelName,
		Messages:            normalized,
		Temperature:         c.cfg.Temperature,
		MaxCompletionTokens: c.cfg.MaxTokens,
		Stream:              stream,
	}, nil
}

func (c *Client) currentKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[c.index]
}

// CurrentKey exposes the active credential for observability and tests.
func (c *Client) CurrentKey() string {
	return c.currentKey()
}

// rotateKey advances to the next credential (wrapping around) and rebinds
// the transport to it.
func (c *Client) rotateKey(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.keys) <= 1 {
		return false
	}
	c.index = (c.index + 1) % len(c.keys)
	c.httpc = newHTTPClient()
	log.FromCtx(ctx).Warn().Int("key_index", c.index).Msg("switched to next api key")
	return true
}

// maybeRotate runs inside the failed attempt: rotation consumes no retry
// budget of its own, and stops once every credential has been tried.
func (c *Client) maybeRotate(ctx context.Context, err error, rotated *int) {
	if !shouldRotateKey(err) {
		return
	}
	if *rotated >= len(c.keys) {
		log.FromCtx(ctx).Warn().Int("keys", len(c.keys)).Err(err).Msg("all api keys exhausted, error persists")
		return
	}
	if c.rotateKey(ctx) {
		*rotated++
	}
}

func (c *Client) send(ctx context.Context, payload *chatRequest) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.currentKey())

	c.mu.Lock()
	httpc := c.httpc
	c.mu.Unlock()

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		resp.Body.Close()
		return nil, newAPIError(resp.StatusCode, body)
	}
	return resp, nil
}

// GenerateReply issues a non-streaming completion request and returns the
// reply text.
func (c *Client) GenerateReply(ctx context.Context, messages []core.Message) (string, error) {
	payload, err := c.buildRequest(messages, false)
	if err != nil {
		return "", err
	}
	c.logPromptSize(ctx, payload.Messages)

	var result string
	rotated := 0
	err = c.retrier.Do(ctx, func() error {
		resp, err := c.send(ctx, payload)
		if err != nil {
			c.maybeRotate(ctx, err, &rotated)
			return err
		}
		defer resp.Body.Close()

		text, err := parseCompletion(resp.Body)
		if err != nil {
			return err
		}
		result = text
		return nil
	})
	return result, err
}

// GenerateReplyStream issues a streaming completion request and invokes
// onDelta for every non-empty text fragment, in arrival order. The stream
// is not restartable: retry and rotation guard establishing it, and a read
// failure after deltas started flowing propagates to the caller.
func (c *Client) GenerateReplyStream(ctx context.Context, messages []core.Message, onDelta func(string) error) error {
	payload, err := c.buildRequest(messages, true)
	if err != nil {
		return err
	}
	c.logPromptSize(ctx, payload.Messages)

	var resp *http.Response
	rotated := 0
	err = c.retrier.Do(ctx, func() error {
		r, err := c.send(ctx, payload)
		if err != nil {
			c.maybeRotate(ctx, err, &rotated)
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return consumeStream(resp.Body, onDelta)
}

func parseCompletion(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty choices: %s", string(data))
	}
	return result.Choices[0].Message.Content, nil
}
