package test

import (
	"os"
	"strings"
	"testing"
)

// APIKeys returns the completion API keys from the environment, skipping
// the test when none are configured.
func APIKeys(t *testing.T) []string {
	raw := os.Getenv("API_KEYS")
	if strings.TrimSpace(raw) == "" {
		t.Skip("API_KEYS not set, skipping live completion test")
	}

	var keys []string
	for _, key := range strings.Split(raw, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
