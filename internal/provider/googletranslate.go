package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"imagebot/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// GoogleTranslateConfig configures the translation client.
type GoogleTranslateConfig struct {
	URL     string // e.g. https://translate.googleapis.com/translate_a/single
	Timeout time.Duration
	Client  *http.Client // optional
	Logger  *slog.Logger
}

// GoogleTranslate calls the public Google Translate web endpoint
// (client=gtx), the same one used by browser extensions.
type GoogleTranslate struct {
	url    string
	http   *resty.Client
	logger *slog.Logger
}

// NewGoogleTranslate creates a new translation client.
func NewGoogleTranslate(cfg GoogleTranslateConfig) *GoogleTranslate {
	client := cfg.Client
	if client == nil {
		client = SharedHTTPClient(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rc := resty.NewWithClient(client).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; imagebot)")
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	return &GoogleTranslate{
		url:    cfg.URL,
		http:   rc,
		logger: logger,
	}
}

// Translate converts text into targetLang with automatic source detection.
func (g *GoogleTranslate) Translate(ctx context.Context, text, targetLang string) (domain.TranslationResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.TranslationResult{}, fmt.Errorf("%w: empty input", domain.ErrTranslation)
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     "auto",
			"tl":     targetLang,
			"dt":     "t",
			"ie":     "UTF-8",
			"oe":     "UTF-8",
			"q":      text,
		}).
		Get(g.url)
	if err != nil {
		return domain.TranslationResult{}, fmt.Errorf("%w: translate request: %v", domain.ErrTranslation, err)
	}
	if !resp.IsSuccess() {
		return domain.TranslationResult{}, fmt.Errorf("%w: translate API error (status %d): %s",
			domain.ErrTranslation, resp.StatusCode(), truncate(resp.String(), 200))
	}

	result, err := parseTranslation(resp.Body())
	if err != nil {
		return domain.TranslationResult{}, err
	}

	g.logger.Debug("translation complete",
		"source_lang", result.SourceLang,
		"target_lang", targetLang,
		"text_len", len(result.Text),
	)
	return result, nil
}

// parseTranslation decodes the nested array payload:
//
//	[[["a cat in a hat","кот в шляпе",null,null,10]],null,"ru",...]
//
// Element [0] holds one [translated, original, ...] entry per sentence,
// element [2] the detected source language.
func parseTranslation(body []byte) (domain.TranslationResult, error) {
	if !gjson.ValidBytes(body) {
		return domain.TranslationResult{}, fmt.Errorf("%w: malformed translate response", domain.ErrTranslation)
	}
	parsed := gjson.ParseBytes(body)
	sentences := parsed.Get("0")
	if !sentences.IsArray() {
		return domain.TranslationResult{}, fmt.Errorf("%w: unexpected translate response shape", domain.ErrTranslation)
	}

	var sb strings.Builder
	sentences.ForEach(func(_, sentence gjson.Result) bool {
		sb.WriteString(sentence.Get("0").String())
		return true
	})

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return domain.TranslationResult{}, fmt.Errorf("%w: empty translation", domain.ErrTranslation)
	}
	return domain.TranslationResult{
		Text:       text,
		SourceLang: parsed.Get("2").String(),
	}, nil
}
