package core

import "context"

// HistoryRepository is the durable dialogue store contract. Records are
// scoped per user id; no other component touches the persistence layer.
type HistoryRepository interface {
	LoadHistory(ctx context.Context, userID int64, limit int) ([]Message, error)
	Append(ctx context.Context, userID int64, role string, content Content) error
	ReplaceHistory(ctx context.Context, userID int64, messages []Message) error
	ResetUser(ctx context.Context, userID int64) error
}
