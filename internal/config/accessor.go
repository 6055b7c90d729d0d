package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Sanitize returns a copy of the config with credentials masked.
func Sanitize(cfg *Config) *Config {
	copy := *cfg
	copy.Telegram.AllowFrom = append([]string(nil), cfg.Telegram.AllowFrom...)

	if copy.Telegram.Token != "" {
		copy.Telegram.Token = maskString(copy.Telegram.Token)
	}
	if copy.Inference.Token != "" {
		copy.Inference.Token = maskString(copy.Inference.Token)
	}
	return &copy
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// MarshalYAML renders the sanitized config as YAML.
func MarshalYAML(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(Sanitize(cfg))
	if err != nil {
		return nil, fmt.Errorf("cannot marshal config: %w", err)
	}
	return data, nil
}
