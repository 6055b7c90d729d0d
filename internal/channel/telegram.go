package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"imagebot/internal/domain"
	"imagebot/internal/provider"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const photoFileName = "image.png"

// Telegram delivers Telegram messages to a handler and implements
// domain.Messenger for the replies.
type Telegram struct {
	token       string
	allowFrom   []int64 // Allowed user IDs (empty = allow all)
	pollTimeout int
	endpoint    string
	client      tgbotapi.HTTPClient

	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

type TelegramConfig struct {
	Token       string
	AllowFrom   []string // User IDs as strings
	PollTimeout int      // long-poll timeout in seconds
	APIEndpoint string   // defaults to tgbotapi.APIEndpoint
	HTTPClient  tgbotapi.HTTPClient
	Logger      *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:       cfg.Token,
		allowFrom:   allowed,
		pollTimeout: cfg.PollTimeout,
		endpoint:    cfg.APIEndpoint,
		client:      cfg.HTTPClient,
		logger:      cfg.Logger,
	}
}

// Connect authenticates the bot token (getMe). Start calls it when needed.
func (t *Telegram) Connect() error {
	client := t.client
	if client == nil {
		// Long polls and photo uploads both need headroom.
		client = provider.SharedHTTPClient(5 * time.Minute)
	}
	tgbotapi.SetLogger(botLogger{t.logger})

	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, client)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)
	return nil
}

// Username returns the bot's username once connected.
func (t *Telegram) Username() string {
	if t.bot == nil {
		return ""
	}
	return t.bot.Self.UserName
}

// Start polls for updates and hands each text message to handler, one at a
// time and in delivery order. It returns when ctx is cancelled.
func (t *Telegram) Start(ctx context.Context, handler domain.MessageHandler) error {
	if t.bot == nil {
		if err := t.Connect(); err != nil {
			return err
		}
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"message"}
	updates := t.bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			t.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, handler, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, handler domain.MessageHandler, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.Text == "" {
		t.logger.Debug("ignoring non-text message", "chat_id", msg.Chat.ID, "message_id", msg.MessageID)
		return
	}

	in := domain.IncomingMessage{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		IsCommand: msg.IsCommand(),
		Command:   msg.Command(),
		Timestamp: msg.Time(),
	}
	if msg.From != nil {
		in.SenderID = msg.From.ID
		in.Username = msg.From.UserName
	}

	if !t.isAllowed(in.SenderID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", in.SenderID,
			"username", in.Username,
		)
		return
	}

	t.logger.Info("telegram message received",
		"user_id", in.SenderID,
		"chat_id", in.ChatID,
		"message_id", in.MessageID,
		"sent_at", in.Timestamp,
		"text_len", len(in.Text),
	)
	handler.Handle(ctx, in)
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// SendMessage sends a plain-text message.
func (t *Telegram) SendMessage(_ context.Context, chatID int64, text string) error {
	if t.bot == nil {
		return errNotConnected
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

// SendPhoto uploads image bytes as a photo.
func (t *Telegram) SendPhoto(_ context.Context, chatID int64, image []byte) error {
	if t.bot == nil {
		return errNotConnected
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: photoFileName, Bytes: image})
	if _, err := t.bot.Send(photo); err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	return nil
}

var errNotConnected = errors.New("telegram bot not connected")

// botLogger routes the library's own log lines (polling errors) into slog.
type botLogger struct{ logger *slog.Logger }

func (l botLogger) Println(v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintln(v...)), "component", "telegram-bot-api")
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "telegram-bot-api")
}
