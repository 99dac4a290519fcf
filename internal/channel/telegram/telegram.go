// Package telegram adapts the Telegram Bot API to the channel interfaces.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vidfetch/vidfetch/internal/channel"
)

// Adapter implements channel.Sender against one bot token and dispatches
// inbound updates to a channel.Handler.
type Adapter struct {
	logger *slog.Logger
	bot    *tgbotapi.BotAPI

	mu       sync.Mutex
	lastSent map[int64]int // chat id -> message id of the last text we sent

	send func(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// New connects to the Telegram Bot API with the given token.
func New(log *slog.Logger, token string) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := newAdapter(log, bot)
	a.logger.Info("connected", slog.String("username", bot.Self.UserName))
	return a, nil
}

func newAdapter(log *slog.Logger, bot *tgbotapi.BotAPI) *Adapter {
	a := &Adapter{
		logger:   log.With(slog.String("adapter", "telegram")),
		bot:      bot,
		lastSent: make(map[int64]int),
	}
	a.send = func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		return a.bot.Send(c)
	}
	return a
}

// Poll long-polls for updates until ctx is canceled, dispatching each one
// to handler in its own goroutine.
func (a *Adapter) Poll(ctx context.Context, timeoutSeconds int, handler channel.Handler) {
	cfg := tgbotapi.NewUpdate(0)
	if timeoutSeconds > 0 {
		cfg.Timeout = timeoutSeconds
	}
	updates := a.bot.GetUpdatesChan(cfg)
	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			// Drain so the library's polling goroutine can exit; an
			// in-flight long poll would otherwise keep the getUpdates
			// session alive.
			for range updates {
			}
			return
		case update, ok := <-updates:
			if !ok {
				a.logger.Info("updates channel closed")
				return
			}
			go a.HandleUpdate(ctx, update, handler)
		}
	}
}

// HandleUpdate routes one update to the handler. Exported so the webhook
// server can feed decoded updates through the same dispatch path as
// polling.
func (a *Adapter) HandleUpdate(ctx context.Context, update tgbotapi.Update, handler channel.Handler) {
	switch {
	case update.CallbackQuery != nil:
		a.handleCallback(ctx, update.CallbackQuery, handler)
	case update.Message != nil:
		a.handleMessage(ctx, update.Message, handler)
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message, handler channel.Handler) {
	if msg.Chat == nil {
		return
	}
	s := sessionFromMessage(msg)
	var err error
	switch {
	case msg.IsCommand():
		err = handler.HandleCommand(ctx, s, msg.Command(), msg.CommandArguments())
	case strings.TrimSpace(msg.Text) != "":
		err = handler.HandleText(ctx, s, strings.TrimSpace(msg.Text))
	default:
		return
	}
	if err != nil {
		a.logger.Error("handle message failed", slog.Int64("chat_id", s.ChatID), slog.Any("error", err))
	}
}

var answerCallbackForTest func(id string) error

func (a *Adapter) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, handler channel.Handler) {
	// Acknowledge first so the client stops showing a spinner.
	if err := a.answerCallback(cb.ID); err != nil {
		a.logger.Warn("answer callback failed", slog.Any("error", err))
	}
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	s := channel.Session{ChatID: cb.Message.Chat.ID}
	if cb.From != nil {
		s.UserName = cb.From.UserName
		s.DisplayName = displayName(cb.From)
	}
	if err := handler.HandleCallback(ctx, s, []byte(cb.Data)); err != nil {
		a.logger.Error("handle callback failed", slog.Int64("chat_id", s.ChatID), slog.Any("error", err))
	}
}

func (a *Adapter) answerCallback(id string) error {
	if answerCallbackForTest != nil {
		return answerCallbackForTest(id)
	}
	_, err := a.bot.Request(tgbotapi.NewCallback(id, ""))
	return err
}

func sessionFromMessage(msg *tgbotapi.Message) channel.Session {
	s := channel.Session{ChatID: msg.Chat.ID}
	if msg.From != nil {
		s.UserName = msg.From.UserName
		s.DisplayName = displayName(msg.From)
	}
	return s
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

// SendText delivers a plain text message and remembers it for
// EditLastMessage.
func (a *Adapter) SendText(_ context.Context, s channel.Session, text string) error {
	msg := tgbotapi.NewMessage(s.ChatID, text)
	sent, err := a.send(msg)
	if err != nil {
		return err
	}
	a.rememberLast(s.ChatID, sent.MessageID)
	return nil
}

// SendChoice delivers an inline keyboard with one button per choice, each
// carrying its token as callback data.
func (a *Adapter) SendChoice(_ context.Context, s channel.Session, text string, choices []channel.Choice) error {
	if len(choices) == 0 {
		return fmt.Errorf("at least one choice is required")
	}
	msg := tgbotapi.NewMessage(s.ChatID, text)
	msg.ReplyMarkup = buildChoiceMarkup(choices)
	_, err := a.send(msg)
	return err
}

func buildChoiceMarkup(choices []channel.Choice) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, c := range choices {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Label, string(c.Token)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// SendMedia delivers a local file as a video message.
func (a *Adapter) SendMedia(_ context.Context, s channel.Session, path, caption string) error {
	video := tgbotapi.NewVideo(s.ChatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true
	_, err := a.send(video)
	return err
}

// SendDocument delivers a local file as a document message.
func (a *Adapter) SendDocument(_ context.Context, s channel.Session, path, caption string) error {
	doc := tgbotapi.NewDocument(s.ChatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	_, err := a.send(doc)
	return err
}

// EditLastMessage rewrites the last text message sent to the session, or
// sends a new one when nothing has been sent yet. "message is not modified"
// responses are tolerated.
func (a *Adapter) EditLastMessage(ctx context.Context, s channel.Session, text string) error {
	a.mu.Lock()
	messageID, ok := a.lastSent[s.ChatID]
	a.mu.Unlock()
	if !ok {
		return a.SendText(ctx, s, text)
	}
	edit := tgbotapi.NewEditMessageText(s.ChatID, messageID, text)
	if _, err := a.send(edit); err != nil && !isMessageNotModified(err) {
		return err
	}
	return nil
}

func (a *Adapter) rememberLast(chatID int64, messageID int) {
	a.mu.Lock()
	a.lastSent[chatID] = messageID
	a.mu.Unlock()
}

func isMessageNotModified(err error) bool {
	var apiErr tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "message is not modified")
	}
	return false
}

// RegisterWebhook points the bot's webhook at publicURL/<secret>.
func (a *Adapter) RegisterWebhook(publicURL, secret string) error {
	hook, err := tgbotapi.NewWebhook(strings.TrimRight(publicURL, "/") + "/telegram/webhook/" + secret)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := a.bot.Request(hook); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	return nil
}

// DeregisterWebhook removes a previously registered webhook.
func (a *Adapter) DeregisterWebhook() error {
	_, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}
