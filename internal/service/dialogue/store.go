// Package dialogue keeps the bounded per-user context window. The in-memory
// state is a cache: durable storage holds the same window and is rewritten
// in full after every mutation, so context survives restarts.
package dialogue

import (
	"context"
	"sync"

	"github.com/sandevgo/dialogbot/internal/core"
	"github.com/sandevgo/dialogbot/pkg/log"
)

const DefaultHistorySize = 12

// state is one user's window. Its mutex serializes the load-modify-replace
// sequence so concurrent messages from the same user cannot interleave.
type state struct {
	mu      sync.Mutex
	history []core.Message
}

func (s *state) push(msg core.Message, max int) {
	s.history = append(s.history, msg)
	if over := len(s.history) - max; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
}

func (s *state) export() []core.Message {
	out := make([]core.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Store is the in-process context registry, keyed by user id and backed by
// the durable history repository.
type Store struct {
	mu     sync.Mutex
	states map[int64]*state
	max    int
	repo   core.HistoryRepository
}

func NewStore(maxMessages int, repo core.HistoryRepository) *Store {
	if maxMessages <= 0 {
		maxMessages = DefaultHistorySize
	}
	return &Store{
		states: make(map[int64]*state),
		max:    maxMessages,
		repo:   repo,
	}
}

// get creates the state lazily, hydrating it from durable storage.
func (s *Store) get(ctx context.Context, userID int64) *state {
	s.mu.Lock()
	st, ok := s.states[userID]
	if !ok {
		st = &state{}
		s.states[userID] = st
		st.mu.Lock()
		s.mu.Unlock()
		defer st.mu.Unlock()

		history, err := s.repo.LoadHistory(ctx, userID, s.max)
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Int64("user_id", userID).Msg("failed to hydrate dialogue state")
			return st
		}
		st.history = history
		return st
	}
	s.mu.Unlock()
	return st
}

// Export returns a snapshot of the user's window, oldest first.
func (s *Store) Export(ctx context.Context, userID int64) []core.Message {
	st := s.get(ctx, userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.export()
}

// Append adds one turn to the window, evicting the oldest turns beyond
// capacity, and rewrites durable storage with the resulting window.
func (s *Store) Append(ctx context.Context, userID int64, role string, content core.Content) error {
	st := s.get(ctx, userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.push(core.NewMessage(role, content), s.max)
	return s.repo.ReplaceHistory(ctx, userID, st.export())
}

// Reset clears the window in memory and in durable storage.
func (s *Store) Reset(ctx context.Context, userID int64) error {
	st := s.get(ctx, userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.history = nil
	return s.repo.ResetUser(ctx, userID)
}
