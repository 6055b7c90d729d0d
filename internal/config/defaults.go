package config

import "time"

const (
	DefaultInferenceURL = "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-2"
	DefaultTranslateURL = "https://translate.googleapis.com/translate_a/single"
)

// Defaults returns a Config with every optional setting filled in.
// Credentials are left empty.
func Defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: 30,
		},
		Inference: InferenceConfig{
			URL:     DefaultInferenceURL,
			Timeout: 120 * time.Second,
		},
		Translate: TranslateConfig{
			URL:        DefaultTranslateURL,
			TargetLang: "en",
			Timeout:    15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}
