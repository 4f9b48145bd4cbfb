// Package search looks up fresh information through the Exa search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inbucket/html2text"
	"github.com/sandevgo/dialogbot/internal/config"
	"github.com/sandevgo/dialogbot/internal/service/keywords"
	"github.com/sandevgo/dialogbot/pkg/log"
)

const (
	exaEndpoint   = "https://api.exa.ai/search"
	searchTimeout = 10 * time.Second
	maxResults    = 5
	maxTextLength = 500
)

type Exa struct {
	apiKey string
	client *http.Client
}

func NewExa(cfg *config.SearchConfig) *Exa {
	return &Exa{
		apiKey: cfg.ExaAPIKey,
		client: &http.Client{Timeout: searchTimeout},
	}
}

type exaRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
	Contents   struct {
		Text struct {
			MaxCharacters int `json:"max_characters"`
		} `json:"text"`
	} `json:"contents"`
}

type exaResponse struct {
	Results []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Text  string `json:"text"`
	} `json:"results"`
}

// Search returns a numbered digest of the top results, or "" when nothing
// was found or no API key is configured.
func (e *Exa) Search(ctx context.Context, query string) (string, error) {
	if e.apiKey == "" {
		log.FromCtx(ctx).Debug().Msg("web search disabled: no api key")
		return "", nil
	}

	payload := exaRequest{Query: query, NumResults: maxResults}
	payload.Contents.Text.MaxCharacters = maxTextLength

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, exaEndpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search http %d: %s", resp.StatusCode, string(body))
	}

	var parsed exaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	return formatResults(parsed), nil
}

func formatResults(parsed exaResponse) string {
	var sb strings.Builder
	for i, item := range parsed.Results {
		if i >= maxResults {
			break
		}
		text := item.Text
		if len(text) > maxTextLength {
			text = text[:maxTextLength]
		}
		fmt.Fprintf(&sb, "%d. %s\nURL: %s\n%s\n\n", i+1, item.Title, item.URL, cleanSnippet(text))
	}
	return strings.TrimSpace(sb.String())
}

// cleanSnippet strips stray HTML that some sources leak into result text.
func cleanSnippet(text string) string {
	if !strings.Contains(text, "<") {
		return text
	}
	plain, err := html2text.FromString(text)
	if err != nil {
		return text
	}
	return plain
}

// BuildQuery sharpens date-style questions with the current date; other
// questions pass through unchanged.
func BuildQuery(text string) string {
	if keywords.MentionsDate(text) {
		lowered := strings.ToLower(text)
		if strings.Contains(lowered, "today") || strings.Contains(lowered, "now") {
			return fmt.Sprintf("what is today's date %s", time.Now().Format("2006-01-02"))
		}
		return "current information " + text
	}
	return text
}
