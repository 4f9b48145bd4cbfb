package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/dialogbot/internal/config"
	"github.com/sandevgo/dialogbot/internal/core"
	"github.com/sandevgo/dialogbot/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(cfg *config.CompletionConfig) *Client {
	c := NewClient(cfg)
	c.retrier = retry.NewRetrier(&retry.Config{
		Attempts: 3,
		MinDelay: time.Millisecond,
		MaxDelay: 5 * time.Millisecond,
	})
	return c
}

func testConfig(url string, keys ...string) *config.CompletionConfig {
	return &config.CompletionConfig{
		APIKeys:     keys,
		BaseURL:     url,
		ModelName:   "gpt-4o",
		Temperature: 0.6,
		MaxTokens:   256,
	}
}

func TestGenerateReply_ReturnsModelAnswer(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"answer"}}]}`)
	}))
	defer srv.Close()

	client := fastClient(testConfig(srv.URL, "sk-test"))
	reply, err := client.GenerateReply(context.Background(),
		[]core.Message{{Role: core.RoleUser, Content: core.TextContent("ping")}})

	require.NoError(t, err)
	assert.Equal(t, "answer", reply)
	assert.Equal(t, "gpt-4o", gotBody.Model)
	assert.Equal(t, 0.6, gotBody.Temperature)
	assert.Equal(t, 256, gotBody.MaxCompletionTokens)
	assert.False(t, gotBody.Stream)
}

func TestGenerateReply_RotatesKeyOnRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer sk-a" {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"Too Many Requests"}}`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"rotated"}}]}`)
	}))
	defer srv.Close()

	client := fastClient(testConfig(srv.URL, "sk-a", "sk-b"))
	reply, err := client.GenerateReply(context.Background(),
		[]core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}})

	require.NoError(t, err)
	assert.Equal(t, "rotated", reply)
	assert.Equal(t, "sk-b", client.CurrentKey())
}

func TestGenerateReply_RejectsUnknownRole(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := fastClient(testConfig(srv.URL, "sk-test"))
	_, err := client.GenerateReply(context.Background(),
		[]core.Message{{Role: "narrator", Content: core.TextContent("hi")}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported role")
	assert.Zero(t, calls.Load(), "validation must fail before any network activity")
}

func TestGenerateReply_PropagatesLastErrorAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"upstream exploded"}}`)
	}))
	defer srv.Close()

	client := fastClient(testConfig(srv.URL, "sk-test"))
	_, err := client.GenerateReply(context.Background(),
		[]core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}})

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateReplyStream_YieldsFragmentsInOrder(t *testing.T) {
	var calls atomic.Int32
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hello", " ", "World"} {
			chunk, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]string{"content": delta}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := fastClient(testConfig(srv.URL, "sk-test"))
	var fragments []string
	err := client.GenerateReplyStream(context.Background(),
		[]core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}},
		func(delta string) error {
			fragments = append(fragments, delta)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " ", "World"}, fragments)
	assert.True(t, gotBody.Stream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateReplyStream_SkipsEmptyDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := fastClient(testConfig(srv.URL, "sk-test"))
	var fragments []string
	err := client.GenerateReplyStream(context.Background(),
		[]core.Message{{Role: core.RoleUser, Content: core.TextContent("hi")}},
		func(delta string) error {
			fragments = append(fragments, delta)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, fragments)
}

func TestShouldRotateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit status", &APIError{Status: 429, Message: "slow down"}, true},
		{"bad request with marker", &APIError{Status: 400, Message: "Too Many Requests"}, true},
		{"bad request without marker", &APIError{Status: 400, Message: "invalid payload"}, false},
		{"server error", &APIError{Status: 500, Message: "boom"}, false},
		{"plain error", errors.New("dial tcp: timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRotateKey(tt.err))
		})
	}
}
