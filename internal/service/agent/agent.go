// Package agent drives one exchange: it pulls a fragment stream from the
// completion client, re-formats the accumulated text on a throttled tick,
// surfaces completed code blocks eagerly, and finalizes the reply.
package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/dialogbot/internal/core"
	"github.com/sandevgo/dialogbot/internal/providers/search"
	"github.com/sandevgo/dialogbot/internal/service/dialogue"
	"github.com/sandevgo/dialogbot/internal/service/keywords"
	"github.com/sandevgo/dialogbot/pkg/log"
	"github.com/sandevgo/dialogbot/pkg/markup"
)

const (
	updateInterval = 500 * time.Millisecond

	statusPlaceholder = "🤖 Thinking..."
	completionPhrase  = "Done!"
	upstreamApology   = "Oops, the service is temporarily unavailable. Please try again later."
	deliveryApology   = "Oops, something went wrong while sending the reply. Please try again later."
)

const systemPrompt = "You answer in a concise, practical style: to the point, friendly, no flourishes. " +
	"Do NOT use markdown emphasis (asterisks, bold text and so on). " +
	"When you show code, always wrap it in triple backticks ```lang ... ``` with the exact language " +
	"after the opening backticks (for example ```html, ```javascript). Put nothing extra inside code blocks. " +
	"Keep ordinary answers short, format lists with - bullets, avoid excessive emoji."

// Completer yields the reply as a lazy sequence of text fragments.
type Completer interface {
	GenerateReplyStream(ctx context.Context, messages []core.Message, onDelta func(string) error) error
}

// Searcher looks up fresh information for search-worthy questions.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Poster is the outgoing side of one exchange: a status message that gets
// live-edited, plus standalone messages for code blocks and reply parts.
// Implementations own platform-level fallbacks (plain-text retry,
// flood-wait pauses, duplicate-edit suppression).
type Poster interface {
	PostStatus(ctx context.Context, text string) error
	EditStatus(ctx context.Context, text string, markdown bool) error
	Send(ctx context.Context, text string, markdown bool) error
}

type Agent struct {
	store         *dialogue.Store
	ai            Completer
	search        Searcher
	eventInfoPath string

	mu      sync.Mutex
	botInfo string
}

func NewAgent(store *dialogue.Store, ai Completer, search Searcher, eventInfoPath string) *Agent {
	return &Agent{
		store:         store,
		ai:            ai,
		search:        search,
		eventInfoPath: eventInfoPath,
	}
}

// SetBotInfo records the bot's own identity, offered to the model as a
// system turn.
func (a *Agent) SetBotInfo(info string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botInfo = info
}

func (a *Agent) getBotInfo() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botInfo
}

func (a *Agent) Store() *dialogue.Store {
	return a.store
}

// exchange is the transient per-request state: the accumulated stream
// buffer and the set of already-emitted code blocks.
type exchange struct {
	buf        strings.Builder
	chunkCount int
	lastUpdate time.Time
	pending    bool
	sentBlocks map[string]bool
}

// Respond runs one full exchange. Failures after the user turn was recorded
// are converted into fixed user-facing apologies; the returned error is for
// logging only.
func (a *Agent) Respond(ctx context.Context, userID int64, content core.Content, text string, post Poster) error {
	logger := log.FromCtx(ctx)

	if err := a.store.Append(ctx, userID, core.RoleUser, content); err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to persist user turn")
	}

	history := a.buildHistory(ctx, userID, text)

	if err := post.PostStatus(ctx, statusPlaceholder); err != nil {
		return fmt.Errorf("failed to post status message: %w", err)
	}

	ex := &exchange{sentBlocks: make(map[string]bool)}
	streamErr := a.ai.GenerateReplyStream(ctx, history, func(delta string) error {
		ex.buf.WriteString(delta)
		ex.chunkCount++
		a.emitCodeBlocks(ctx, ex, post)
		a.updateStatus(ctx, ex, post)
		return nil
	})
	if streamErr != nil {
		logger.Error().Err(streamErr).Int64("user_id", userID).Msg("completion stream failed")
		if err := post.EditStatus(ctx, upstreamApology, false); err != nil {
			logger.Error().Err(err).Msg("failed to deliver apology")
		}
		return streamErr
	}

	return a.finalize(ctx, userID, ex, post)
}

// emitCodeBlocks sends every newly-completed fenced block as its own
// message, bypassing the throttle. Each distinct block goes out once, in
// closing-fence order.
func (a *Agent) emitCodeBlocks(ctx context.Context, ex *exchange, post Poster) {
	for _, block := range markup.CodeBlocks(ex.buf.String()) {
		if ex.sentBlocks[block.Raw] {
			continue
		}
		ex.sentBlocks[block.Raw] = true
		if block.Body == "" {
			continue
		}
		if err := post.Send(ctx, block.Render(), true); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("failed to send code block")
		}
	}
}

// updateStatus applies a throttled edit of the status message: the first
// fragment always updates, later ones only after the interval has elapsed.
// Blank formatting results are skipped without consuming the tick.
func (a *Agent) updateStatus(ctx context.Context, ex *exchange, post Poster) {
	accumulated := ex.buf.String()
	due := ex.chunkCount == 1 ||
		(time.Since(ex.lastUpdate) >= updateInterval && strings.TrimSpace(accumulated) != "")
	if !due {
		return
	}

	safe := markup.RemoveEmphasis(markup.StripCodeBlocks(accumulated))
	if strings.TrimSpace(safe) == "" {
		return
	}
	formatted := markup.FormatMessage(safe)
	if trimmed := strings.TrimSpace(formatted); trimmed == "" || trimmed == "-" {
		return
	}

	if err := post.EditStatus(ctx, formatted, true); err != nil {
		// Keep streaming; the missed update is re-applied at the end.
		log.FromCtx(ctx).Debug().Err(err).Msg("status update skipped")
		ex.pending = true
	} else {
		ex.pending = false
	}
	ex.lastUpdate = time.Now()
}

func (a *Agent) finalize(ctx context.Context, userID int64, ex *exchange, post Poster) error {
	logger := log.FromCtx(ctx)
	accumulated := ex.buf.String()

	nonCode := markup.StripCodeBlocks(accumulated)
	if ex.pending && strings.TrimSpace(nonCode) != "" {
		safe := markup.RemoveEmphasis(nonCode)
		if err := post.EditStatus(ctx, markup.FormatMessage(safe), true); err != nil {
			logger.Debug().Err(err).Msg("pending status update failed")
		}
	}

	if accumulated == "" {
		accumulated = completionPhrase
	}

	// The assistant turn becomes durable exactly once, after the full
	// response is known.
	safeReply := markup.RemoveEmphasis(accumulated)
	if err := a.store.Append(ctx, userID, core.RoleAssistant, core.TextContent(safeReply)); err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to persist assistant turn")
	}

	formatted := markup.FormatMessage(safeReply)
	chunks := markup.SplitFormattedText(formatted, markup.ChunkBodyLimit)

	if len(chunks) == 1 {
		if err := post.EditStatus(ctx, chunks[0], true); err != nil {
			logger.Error().Err(err).Msg("failed to deliver final reply")
			if apErr := post.EditStatus(ctx, deliveryApology, false); apErr != nil {
				logger.Error().Err(apErr).Msg("failed to deliver apology")
			}
			return err
		}
		return nil
	}

	if err := post.EditStatus(ctx, fmt.Sprintf("The reply is long, %d parts:", len(chunks)), false); err != nil {
		logger.Warn().Err(err).Msg("failed to edit status to part notice")
	}
	for i, chunk := range chunks {
		if err := post.Send(ctx, fmt.Sprintf("Part %d/%d", i+1, len(chunks)), false); err != nil {
			logger.Warn().Err(err).Msg("failed to send part label")
		}
		if err := post.Send(ctx, chunk, true); err != nil {
			logger.Error().Err(err).Int("part", i+1).Msg("failed to deliver reply part")
			if apErr := post.Send(ctx, deliveryApology, false); apErr != nil {
				logger.Error().Err(apErr).Msg("failed to deliver apology")
			}
			return err
		}
	}
	return nil
}

// buildHistory assembles the model payload: system prompts, optional event
// and web-search context, then the user's dialogue window.
func (a *Agent) buildHistory(ctx context.Context, userID int64, text string) []core.Message {
	logger := log.FromCtx(ctx)
	messages := []core.Message{core.SystemMessage(systemPrompt)}

	if info := a.getBotInfo(); info != "" {
		messages = append(messages, core.SystemMessage(info))
	}

	if text != "" && a.eventInfoPath != "" && keywords.IsEventQuestion(text) {
		if briefing := readEventInfo(ctx, a.eventInfoPath); briefing != "" {
			messages = append(messages, core.SystemMessage("Full event briefing:\n\n"+briefing))
		}
	}

	if text != "" && a.search != nil && keywords.NeedsWebSearch(text) {
		result, err := a.search.Search(ctx, search.BuildQuery(text))
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("web search failed")
		case result != "":
			messages = append(messages, core.SystemMessage(
				"Web search results:\n\n"+result+"\n\n"+
					"Use this information to answer the user's question. If the results "+
					"contain a current date, number or year, make sure to use it."))
			logger.Info().Int("length", len(result)).Msg("added web search context")
		default:
			logger.Warn().Str("query", truncate(text, 100)).Msg("web search returned no results")
		}
	}

	return append(messages, a.store.Export(ctx, userID)...)
}

func readEventInfo(ctx context.Context, path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.FromCtx(ctx).Warn().Err(err).Str("path", path).Msg("failed to load event briefing")
		}
		return ""
	}
	return string(content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
