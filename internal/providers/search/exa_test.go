package search

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/dialogbot/internal/config"
)

func TestSearch_DisabledWithoutKey(t *testing.T) {
	e := NewExa(&config.SearchConfig{})

	result, err := e.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestFormatResults(t *testing.T) {
	var parsed exaResponse
	parsed.Results = []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Text  string `json:"text"`
	}{
		{Title: "Go 1.25 released", URL: "https://go.dev/blog", Text: "The release adds..."},
		{Title: "Changelog", URL: "https://example.com", Text: "<p>HTML <b>leaked</b> here</p>"},
	}

	digest := formatResults(parsed)
	assert.True(t, strings.HasPrefix(digest, "1. Go 1.25 released"))
	assert.Contains(t, digest, "URL: https://go.dev/blog")
	assert.Contains(t, digest, "2. Changelog")
	assert.NotContains(t, digest, "<b>")
	assert.Contains(t, digest, "leaked")
}

func TestFormatResults_Empty(t *testing.T) {
	assert.Empty(t, formatResults(exaResponse{}))
}

func TestBuildQuery(t *testing.T) {
	t.Run("plain question passes through", func(t *testing.T) {
		assert.Equal(t, "weather in Berlin", BuildQuery("weather in Berlin"))
	})

	t.Run("date question about today uses the current date", func(t *testing.T) {
		got := BuildQuery("what day is it today")
		assert.Contains(t, got, time.Now().Format("2006-01-02"))
	})

	t.Run("other date questions get a currency prefix", func(t *testing.T) {
		got := BuildQuery("what year did Go 1.0 ship")
		assert.Equal(t, "current information what year did Go 1.0 ship", got)
	})
}
