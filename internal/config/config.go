package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"imagebot/internal/domain"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the root configuration for imagebot. It is read from the process
// environment once at startup and never mutated afterwards.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Inference InferenceConfig `yaml:"inference"`
	Translate TranslateConfig `yaml:"translate"`
	Log       LogConfig       `yaml:"log"`
}

type TelegramConfig struct {
	Token       string   `env:"TELEGRAM_BOT_TOKEN,required,notEmpty" yaml:"token"`
	AllowFrom   []string `env:"TELEGRAM_ALLOW_FROM" envSeparator:"," yaml:"allowFrom,omitempty"`
	PollTimeout int      `env:"TELEGRAM_POLL_TIMEOUT" yaml:"pollTimeout"` // seconds
}

type InferenceConfig struct {
	Token   string        `env:"HUGGINGFACE_API_TOKEN,required,notEmpty" yaml:"token"`
	URL     string        `env:"HUGGINGFACE_API_URL" yaml:"url"`
	Timeout time.Duration `env:"INFERENCE_TIMEOUT" yaml:"timeout"`
}

type TranslateConfig struct {
	URL        string        `env:"TRANSLATE_API_URL" yaml:"url"`
	TargetLang string        `env:"TRANSLATE_TARGET_LANG" yaml:"targetLang"`
	Timeout    time.Duration `env:"TRANSLATE_TIMEOUT" yaml:"timeout"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"` // "auto" | "text" | "json"
}

// ConfigurationError reports required variables that are unset or empty and
// any values that failed to parse or validate.
type ConfigurationError struct {
	Missing  []string
	Problems []string
}

func (e *ConfigurationError) Error() string {
	lines := make([]string, 0, len(e.Missing)+len(e.Problems))
	for _, key := range e.Missing {
		lines = append(lines, fmt.Sprintf("environment variable %s must be set", key))
	}
	lines = append(lines, e.Problems...)
	if len(lines) == 1 {
		return lines[0]
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(lines, "\n  - "))
}

func (e *ConfigurationError) Unwrap() error { return domain.ErrConfiguration }

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the environment on top of Defaults.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, toConfigurationError(err)
	}
	cfg.Translate.TargetLang = strings.ToLower(strings.TrimSpace(cfg.Translate.TargetLang))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func toConfigurationError(err error) *ConfigurationError {
	cerr := &ConfigurationError{}
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		cerr.Problems = append(cerr.Problems, err.Error())
		return cerr
	}
	for _, e := range agg.Errors {
		switch v := e.(type) {
		case env.VarIsNotSetError:
			cerr.Missing = append(cerr.Missing, v.Key)
		case env.EmptyVarError:
			cerr.Missing = append(cerr.Missing, v.Key)
		default:
			cerr.Problems = append(cerr.Problems, e.Error())
		}
	}
	return cerr
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	cerr := &ConfigurationError{}

	if cfg.Telegram.Token == "" {
		cerr.Missing = append(cerr.Missing, "TELEGRAM_BOT_TOKEN")
	}
	if cfg.Inference.Token == "" {
		cerr.Missing = append(cerr.Missing, "HUGGINGFACE_API_TOKEN")
	}

	if cfg.Telegram.PollTimeout < 0 || cfg.Telegram.PollTimeout > 600 {
		cerr.Problems = append(cerr.Problems, "TELEGRAM_POLL_TIMEOUT must be between 0 and 600")
	}
	for _, id := range cfg.Telegram.AllowFrom {
		if _, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err != nil {
			cerr.Problems = append(cerr.Problems, fmt.Sprintf("TELEGRAM_ALLOW_FROM: %q is not a numeric user ID", id))
		}
	}

	if err := validateURL(cfg.Inference.URL); err != nil {
		cerr.Problems = append(cerr.Problems, "HUGGINGFACE_API_URL: "+err.Error())
	}
	if err := validateURL(cfg.Translate.URL); err != nil {
		cerr.Problems = append(cerr.Problems, "TRANSLATE_API_URL: "+err.Error())
	}
	if cfg.Inference.Timeout <= 0 {
		cerr.Problems = append(cerr.Problems, "INFERENCE_TIMEOUT must be positive")
	}
	if cfg.Translate.Timeout <= 0 {
		cerr.Problems = append(cerr.Problems, "TRANSLATE_TIMEOUT must be positive")
	}
	if cfg.Translate.TargetLang == "" {
		cerr.Problems = append(cerr.Problems, "TRANSLATE_TARGET_LANG must not be empty")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		cerr.Problems = append(cerr.Problems, "LOG_LEVEL must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "auto", "text", "json":
	default:
		cerr.Problems = append(cerr.Problems, "LOG_FORMAT must be one of: auto, text, json")
	}

	if len(cerr.Missing) > 0 || len(cerr.Problems) > 0 {
		return cerr
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
