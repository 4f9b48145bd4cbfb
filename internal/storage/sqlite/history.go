package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/dialogbot/internal/core"
	"github.com/sandevgo/dialogbot/pkg/log"
)

// HistoryRepo persists per-user dialogue turns. Plain text is stored as-is;
// structured content is stored as a JSON part array.
type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (h *HistoryRepo) LoadHistory(ctx context.Context, userID int64, limit int) ([]core.Message, error) {
	// Fetch the last 'limit' records by ordering DESC, then reverse back
	// to insertion order.
	query := `SELECT role, content FROM dialogue_messages WHERE user_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := h.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var role string
		var content sql.NullString
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		messages = append(messages, core.Message{
			Role:    role,
			Content: decodeContent(content.String),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Int64("user_id", userID).Int("count", len(messages)).Msg("loaded dialogue history")
	return messages, nil
}

func (h *HistoryRepo) Append(ctx context.Context, userID int64, role string, content core.Content) error {
	encoded, err := encodeContent(content)
	if err != nil {
		return err
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO dialogue_messages (user_id, role, content) VALUES (?, ?, ?)`,
		userID, role, encoded,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dialogue message: %w", err)
	}
	return nil
}

// ReplaceHistory atomically rewrites all records for the user from the
// given ordered window.
func (h *HistoryRepo) ReplaceHistory(ctx context.Context, userID int64, messages []core.Message) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dialogue_messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	for _, msg := range messages {
		encoded, err := encodeContent(msg.Content)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dialogue_messages (user_id, role, content) VALUES (?, ?, ?)`,
			userID, msg.Role, encoded,
		); err != nil {
			return fmt.Errorf("failed to rewrite history: %w", err)
		}
	}

	return tx.Commit()
}

func (h *HistoryRepo) ResetUser(ctx context.Context, userID int64) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM dialogue_messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to reset user history: %w", err)
	}
	return nil
}

func encodeContent(content core.Content) (string, error) {
	if !content.IsParts() {
		return content.Text(), nil
	}
	data, err := json.Marshal(content.Parts())
	if err != nil {
		return "", fmt.Errorf("failed to marshal content parts: %w", err)
	}
	return string(data), nil
}

// decodeContent restores structured content when the stored value parses as
// a part array, and treats everything else as plain text.
func decodeContent(raw string) core.Content {
	if len(raw) > 0 && raw[0] == '[' {
		var parts []core.ContentPart
		if err := json.Unmarshal([]byte(raw), &parts); err == nil {
			return core.PartsContent(parts)
		}
	}
	return core.TextContent(raw)
}
