package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the completion API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion api: http %d: %s", e.Status, e.Message)
}

// newAPIError extracts the OpenAI-style error envelope, falling back to the
// raw body.
func newAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}
	return &APIError{Status: status, Message: msg}
}

// shouldRotateKey classifies a failure as credential-rotation-worthy:
// a rate limit (429), or a 400/429 rejection whose message carries a
// "too many"-style marker.
func shouldRotateKey(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == 429 {
		return true
	}
	if apiErr.Status == 400 {
		return strings.Contains(strings.ToLower(apiErr.Message), "too many")
	}
	return false
}
