// Package relay turns inbound chat messages into generated images.
//
// Each message is handled on its own: the text is translated to English,
// sent to the image model, and exactly one reply (a photo or a fixed error
// text) goes back to the originating chat. Failures never leave Handle.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"imagebot/internal/domain"
	"imagebot/internal/metrics"

	"github.com/google/uuid"
)

// Default replies.
const (
	DefaultGreeting        = "Привет👏! Отправь мне текстовое описание картинки, и я сгенерирую изображение."
	DefaultGenerationError = "Извините🤖, произошла ошибка при генерации изображения."
	DefaultGenericError    = "Произошла ошибка. Пожалуйста, попробуйте позже."
)

const defaultTargetLang = "en"

// Replies holds the fixed user-facing texts. Empty fields use the defaults.
type Replies struct {
	Greeting        string
	GenerationError string
	GenericError    string
}

// Config wires the relay to its collaborators.
type Config struct {
	Translator domain.Translator
	Generator  domain.ImageGenerator
	Messenger  domain.Messenger
	TargetLang string // defaults to "en"
	Replies    Replies
	Metrics    *metrics.Collector // optional
	Logger     *slog.Logger
}

// Relay is the message relay. It holds no per-message state and is safe for
// concurrent use.
type Relay struct {
	translator domain.Translator
	generator  domain.ImageGenerator
	messenger  domain.Messenger
	targetLang string
	replies    Replies
	metrics    *metrics.RelayMetrics
	logger     *slog.Logger
}

// New creates a Relay.
func New(cfg Config) *Relay {
	if cfg.TargetLang == "" {
		cfg.TargetLang = defaultTargetLang
	}
	if cfg.Replies.Greeting == "" {
		cfg.Replies.Greeting = DefaultGreeting
	}
	if cfg.Replies.GenerationError == "" {
		cfg.Replies.GenerationError = DefaultGenerationError
	}
	if cfg.Replies.GenericError == "" {
		cfg.Replies.GenericError = DefaultGenericError
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Relay{
		translator: cfg.Translator,
		generator:  cfg.Generator,
		messenger:  cfg.Messenger,
		targetLang: cfg.TargetLang,
		replies:    cfg.Replies,
		metrics:    metrics.NewRelayMetrics(cfg.Metrics),
		logger:     cfg.Logger,
	}
}

// cycle tracks one relay cycle so the panic handler knows whether a reply
// already went out.
type cycle struct {
	chatID  int64
	logger  *slog.Logger
	replied bool
}

// Handle routes one inbound message: blank text is ignored, /start and /help
// get the greeting, everything else is treated as an image prompt.
func (r *Relay) Handle(ctx context.Context, msg domain.IncomingMessage) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	c := &cycle{
		chatID: msg.ChatID,
		logger: r.logger.With(
			"request_id", uuid.NewString(),
			"chat_id", msg.ChatID,
			"message_id", msg.MessageID,
		),
	}

	r.metrics.InFlight.Inc()
	defer r.metrics.InFlight.Dec()
	defer r.recoverPanic(ctx, c)

	switch {
	case msg.IsCommand && isGreetingCommand(msg.Command):
		r.handleStart(ctx, c)
	default:
		r.handleText(ctx, c, text)
	}
}

func isGreetingCommand(cmd string) bool {
	switch strings.ToLower(cmd) {
	case "start", "help":
		return true
	}
	return false
}

// HandleStart sends the usage greeting to chatID.
func (r *Relay) HandleStart(ctx context.Context, chatID int64) {
	r.Handle(ctx, domain.IncomingMessage{ChatID: chatID, Text: "/start", IsCommand: true, Command: "start"})
}

// HandleText runs a full relay cycle for a plain-text prompt.
func (r *Relay) HandleText(ctx context.Context, chatID int64, text string) {
	r.Handle(ctx, domain.IncomingMessage{ChatID: chatID, Text: text})
}

func (r *Relay) handleStart(ctx context.Context, c *cycle) {
	r.metrics.Outcome(metrics.OutcomeGreeting)
	r.reply(ctx, c, r.replies.Greeting)
}

func (r *Relay) handleText(ctx context.Context, c *cycle, prompt string) {
	c.logger.Info("prompt received", "prompt", prompt)

	image, err := r.generate(ctx, c, prompt)
	if err != nil {
		r.fail(ctx, c, err)
		return
	}

	start := time.Now()
	err = r.messenger.SendPhoto(ctx, c.chatID, image)
	r.metrics.Stage("send_photo").ObserveSince(start)
	if err != nil {
		r.fail(ctx, c, fmt.Errorf("send photo: %w", err))
		return
	}
	c.replied = true
	r.metrics.Outcome(metrics.OutcomePhoto)
	c.logger.Info("image sent", "bytes", len(image))
}

// generate translates the prompt and calls the image model.
func (r *Relay) generate(ctx context.Context, c *cycle, prompt string) ([]byte, error) {
	start := time.Now()
	tr, err := r.translator.Translate(ctx, prompt, r.targetLang)
	r.metrics.Stage("translate").ObserveSince(start)
	if err != nil {
		return nil, asKind(err, domain.ErrTranslation)
	}
	translated := strings.TrimSpace(tr.Text)
	if translated == "" {
		return nil, fmt.Errorf("%w: empty translation", domain.ErrTranslation)
	}
	c.logger.Info("prompt translated", "source_lang", tr.SourceLang, "translated", translated)

	start = time.Now()
	resp, err := r.generator.Generate(ctx, domain.InferenceRequest{Inputs: translated})
	r.metrics.Stage("inference").ObserveSince(start)
	if err != nil {
		return nil, asKind(err, domain.ErrInference)
	}
	if len(resp.Image) == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrInference)
	}
	return resp.Image, nil
}

// asKind makes sure a collaborator error carries its failure kind even when
// the implementation did not wrap one.
func asKind(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// fail logs the cause and sends the matching fixed error text.
func (r *Relay) fail(ctx context.Context, c *cycle, err error) {
	text := r.replies.GenericError
	switch {
	case errors.Is(err, domain.ErrTranslation):
		r.metrics.Outcome(metrics.OutcomeTranslationError)
		c.logger.Error("translation failed", "err", err)
	case errors.Is(err, domain.ErrInference):
		r.metrics.Outcome(metrics.OutcomeInferenceError)
		c.logger.Error("image generation failed", "err", err)
		text = r.replies.GenerationError
	default:
		r.metrics.Outcome(metrics.OutcomeSendError)
		c.logger.Error("relay failed", "err", err)
	}
	r.reply(ctx, c, text)
}

func (r *Relay) reply(ctx context.Context, c *cycle, text string) {
	if err := r.messenger.SendMessage(ctx, c.chatID, text); err != nil {
		c.logger.Error("cannot deliver reply", "err", err)
		return
	}
	c.replied = true
}

func (r *Relay) recoverPanic(ctx context.Context, c *cycle) {
	rec := recover()
	if rec == nil {
		return
	}
	r.metrics.Outcome(metrics.OutcomePanic)
	c.logger.Error("panic while handling message",
		"err", fmt.Errorf("%w: %v", domain.ErrUnhandled, rec),
		"stack", string(debug.Stack()),
	)
	if c.replied {
		return
	}
	// The messenger itself may be what panicked.
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("panic while sending error reply", "err", rec)
		}
	}()
	r.reply(ctx, c, r.replies.GenericError)
}
