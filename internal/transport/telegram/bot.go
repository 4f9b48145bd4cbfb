package telegram

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/sandevgo/dialogbot/internal/config"
	"github.com/sandevgo/dialogbot/internal/core"
	"github.com/sandevgo/dialogbot/internal/service/agent"
	"github.com/sandevgo/dialogbot/internal/service/keywords"
	"github.com/sandevgo/dialogbot/pkg/log"
)

const baseContextKey = "base_context"

const (
	greeting = "Hi! I'm a conversational assistant. Ask me anything, send a photo " +
		"or a voice message, and I'll do my best to help."
	helpText = "Just write your question as a regular message. I also understand " +
		"photos and voice messages.\n\nCommands:\n/start - greeting and menu\n" +
		"/help - this message\n/about - what I am\n/reset - forget our conversation"
	profanityReply = "Let's keep it civil. Rephrase that and I'll be happy to help."
	resetReply     = "Done, I've forgotten our conversation. Clean slate!"
)

var commands = []tele.Command{
	{Text: "start", Description: "Greeting and menu"},
	{Text: "help", Description: "How to use the bot"},
	{Text: "about", Description: "What this bot is"},
	{Text: "reset", Description: "Forget the conversation"},
}

var (
	menu     = &tele.ReplyMarkup{}
	btnHelp  = menu.Data("ℹ️ Help", "help")
	btnAbout = menu.Data("🤖 About", "about")
	btnReset = menu.Data("🗑 Reset", "reset")
)

func init() {
	menu.Inline(
		menu.Row(btnHelp, btnAbout),
		menu.Row(btnReset),
	)
}

type Bot struct {
	bot   *tele.Bot
	cfg   *config.TelegramConfig
	agent *agent.Agent
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	agent *agent.Agent,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:   b,
		cfg:   cfg,
		agent: agent,
	}
	agent.SetBotInfo(bot.identity())

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	b.Handle("/start", bot.handleStart)
	b.Handle("/help", bot.handleHelp)
	b.Handle("/about", bot.handleAbout)
	b.Handle("/reset", bot.handleReset)
	b.Handle(&btnHelp, callback(bot.handleHelp))
	b.Handle(&btnAbout, callback(bot.handleAbout))
	b.Handle(&btnReset, callback(bot.handleReset))

	b.Handle(tele.OnText, bot.handleText)
	b.Handle(tele.OnPhoto, bot.handlePhoto)
	b.Handle(tele.OnAudio, bot.handleAudio)
	b.Handle(tele.OnVoice, bot.handleVoice)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	if err := b.bot.SetCommands(commands); err != nil {
		logger.Warn().Err(err).Msg("failed to register command list")
	}
	logger.Info().Str("username", b.bot.Me.Username).Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

// callback acknowledges the button press before running the shared handler,
// so the client spinner stops even if the handler fails.
func callback(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		_ = c.Respond()
		return h(c)
	}
}

func (b *Bot) reqCtx(c tele.Context) context.Context {
	if ctx, ok := c.Get(baseContextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func (b *Bot) identity() string {
	me := b.bot.Me
	return fmt.Sprintf("You are a Telegram bot named %s (@%s), running %s %s.",
		me.FirstName, me.Username, core.BotName, core.BotVersion)
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx := b.reqCtx(c)
	userID := c.Sender().ID

	// A fresh dialogue gets a system turn describing who is talking to whom.
	if len(b.agent.Store().Export(ctx, userID)) == 0 {
		if err := b.agent.Store().Append(ctx, userID, core.RoleSystem, core.TextContent(b.userProfile(c.Sender()))); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("failed to seed dialogue profile")
		}
	}
	return c.Send(greeting, menu)
}

func (b *Bot) userProfile(user *tele.User) string {
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	profile := fmt.Sprintf("The user's name is %s.", name)
	if user.Username != "" {
		profile += fmt.Sprintf(" Their Telegram username is @%s.", user.Username)
	}
	return profile + " " + b.identity()
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(helpText)
}

func (b *Bot) handleAbout(c tele.Context) error {
	return c.Send(fmt.Sprintf("%s %s: a Telegram front end for a chat model. "+
		"I keep a short memory of our conversation and can describe photos and "+
		"transcribe voice messages.", core.BotName, core.BotVersion))
}

func (b *Bot) handleReset(c tele.Context) error {
	ctx := b.reqCtx(c)
	if err := b.agent.Store().Reset(ctx, c.Sender().ID); err != nil {
		log.FromCtx(ctx).Error().Err(err).Int64("user_id", c.Sender().ID).Msg("failed to reset dialogue")
		return c.Send("Couldn't clear the history, please try again.")
	}
	return c.Send(resetReply)
}

func (b *Bot) handleText(c tele.Context) error {
	return b.respond(c, core.TextContent(c.Text()), c.Text())
}

func (b *Bot) handlePhoto(c tele.Context) error {
	ctx := b.reqCtx(c)
	content, err := b.photoContent(c.Message().Photo, c.Message().Caption)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to read photo")
		return c.Send("Couldn't read that image, please try again.")
	}
	return b.respond(c, content, c.Message().Caption)
}

func (b *Bot) handleAudio(c tele.Context) error {
	ctx := b.reqCtx(c)
	audio := c.Message().Audio
	content, err := b.audioContent(&audio.File, audio.MIME, c.Message().Caption)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to read audio")
		return c.Send("Couldn't read that audio, please try again.")
	}
	return b.respond(c, content, c.Message().Caption)
}

func (b *Bot) handleVoice(c tele.Context) error {
	ctx := b.reqCtx(c)
	voice := c.Message().Voice
	mime := voice.MIME
	if mime == "" {
		mime = "audio/ogg"
	}
	content, err := b.audioContent(&voice.File, mime, "")
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to read voice message")
		return c.Send("Couldn't read that voice message, please try again.")
	}
	return b.respond(c, content, "")
}

// respond runs one full exchange. The stop-word gate covers text and media
// captions alike and short-circuits before any model call. Delivery
// failures are already converted into user-facing apologies, so errors
// here are only logged.
func (b *Bot) respond(c tele.Context, content core.Content, text string) error {
	if keywords.ContainsStopWords(text) {
		return c.Send(profanityReply)
	}

	ctx := b.reqCtx(c)
	_ = c.Notify(tele.Typing)

	post := newPoster(b.bot, c.Chat())
	if err := b.agent.Respond(ctx, c.Sender().ID, content, text, post); err != nil {
		log.FromCtx(ctx).Error().Err(err).Int64("user_id", c.Sender().ID).Msg("exchange failed")
	}
	return nil
}
