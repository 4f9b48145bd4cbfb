package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/sandevgo/dialogbot/pkg/conv"
	"github.com/sandevgo/dialogbot/pkg/log"
)

// poster delivers one exchange to a single chat: a status message that gets
// edited in place plus standalone messages. Markdown delivery degrades from
// MarkdownV2 through Telegram HTML to plain text, and flood waits pause and
// retry once.
type poster struct {
	bot    *tele.Bot
	chat   *tele.Chat
	status *tele.Message
}

func newPoster(bot *tele.Bot, chat *tele.Chat) *poster {
	return &poster{bot: bot, chat: chat}
}

func (p *poster) PostStatus(ctx context.Context, text string) error {
	msg, err := p.bot.Send(p.chat, text)
	if err != nil {
		return err
	}
	p.status = msg
	return nil
}

func (p *poster) EditStatus(ctx context.Context, text string, markdown bool) error {
	if p.status == nil {
		return errors.New("no status message to edit")
	}
	return p.deliver(ctx, text, markdown, func(what string, opts ...interface{}) error {
		_, err := p.bot.Edit(p.status, what, opts...)
		return err
	})
}

func (p *poster) Send(ctx context.Context, text string, markdown bool) error {
	return p.deliver(ctx, text, markdown, func(what string, opts ...interface{}) error {
		_, err := p.bot.Send(p.chat, what, opts...)
		return err
	})
}

func (p *poster) deliver(ctx context.Context, text string, markdown bool, do func(what string, opts ...interface{}) error) error {
	attempt := func(what string, opts ...interface{}) error {
		err := do(what, opts...)
		var flood *tele.FloodError
		if errors.As(err, &flood) {
			log.FromCtx(ctx).Warn().Int("retry_after", flood.RetryAfter).Msg("flood wait from telegram")
			if werr := sleepCtx(ctx, time.Duration(flood.RetryAfter)*time.Second); werr != nil {
				return werr
			}
			err = do(what, opts...)
		}
		if isNotModified(err) {
			return nil
		}
		return err
	}

	if !markdown {
		return attempt(text)
	}

	err := attempt(text, tele.ModeMarkdownV2)
	if err == nil || !isBadRequest(err) {
		return err
	}
	log.FromCtx(ctx).Debug().Err(err).Msg("markdown delivery rejected, falling back to html")

	if html := strings.TrimSpace(conv.EscapedMarkdownToTelegramHTML(text)); html != "" {
		err = attempt(html, tele.ModeHTML)
		if err == nil || !isBadRequest(err) {
			return err
		}
		log.FromCtx(ctx).Debug().Err(err).Msg("html delivery rejected, falling back to plain text")
	}

	return attempt(conv.PlainText(text))
}

func isNotModified(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, tele.ErrSameMessageContent) ||
		strings.Contains(err.Error(), "message is not modified")
}

func isBadRequest(err error) bool {
	var terr *tele.Error
	return errors.As(err, &terr) && terr.Code == 400
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
