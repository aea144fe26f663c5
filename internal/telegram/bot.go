// internal/telegram/bot.go
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot wraps the Telegram Bot API client. It is the only component that
// talks to the chat platform; the notifier and the dispatcher reach it
// through narrow interfaces.
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewBot authenticates against the Bot API with the given token.
func NewBot(token string, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("Telegram connected", "username", api.Self.UserName)
	return &Bot{api: api, logger: logger}, nil
}

// Username returns the bot's own username, used to recognize
// group-addressed commands like /start@botname.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Updates returns the long-polling update channel. The channel closes
// when ctx is cancelled.
func (b *Bot) Updates(ctx context.Context) tgbotapi.UpdatesChannel {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)
	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()
	return updates
}

// SendHTML delivers an HTML-formatted message to a chat by identifier,
// with web page previews disabled.
func (b *Bot) SendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

// SendHTMLByName delivers an HTML-formatted message to a chat addressed
// by @username, for recipients whose chat identifier is not yet known.
func (b *Bot) SendHTMLByName(username string, text string) error {
	if !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	msg := tgbotapi.NewMessageToChannel(username, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

// SendPlain delivers an unformatted reply to a chat.
func (b *Bot) SendPlain(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendList delivers an HTML list reply silently (no notification, no
// preview). When moreCallback is non-empty a single-row inline "More..."
// button carrying it as callback data is attached.
func (b *Bot) SendList(chatID int64, text string, moreCallback string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.DisableNotification = true
	if moreCallback != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("More...", moreCallback),
			),
		)
	}
	_, err := b.api.Send(msg)
	return err
}

// AnswerCallback acknowledges a callback-button press so the client
// stops showing its progress indicator.
func (b *Bot) AnswerCallback(callbackID string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}
