package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imagebot/internal/config"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWizard_WritesEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	input := strings.Join([]string{
		"123456:telegram-token",
		"hf_token",
		"", // keep default endpoint
		"111,222",
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, runWizard(strings.NewReader(input), &out, path))

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "123456:telegram-token", values["TELEGRAM_BOT_TOKEN"])
	assert.Equal(t, "hf_token", values["HUGGINGFACE_API_TOKEN"])
	assert.Equal(t, config.DefaultInferenceURL, values["HUGGINGFACE_API_URL"])
	assert.Equal(t, "111,222", values["TELEGRAM_ALLOW_FROM"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRunWizard_RequiredTokenReprompts(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	input := "\n123456:telegram-token\nhf_token\n\n\n"

	var out bytes.Buffer
	require.NoError(t, runWizard(strings.NewReader(input), &out, path))
	assert.Contains(t, out.String(), "TELEGRAM_BOT_TOKEN is required")

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "123456:telegram-token", values["TELEGRAM_BOT_TOKEN"])
	_, hasAllow := values["TELEGRAM_ALLOW_FROM"]
	assert.False(t, hasAllow)
}

func TestRunWizard_KeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, godotenv.Write(map[string]string{
		"TELEGRAM_BOT_TOKEN":    "old-telegram",
		"HUGGINGFACE_API_TOKEN": "old-hf",
		"LOG_LEVEL":             "debug",
	}, path))

	var out bytes.Buffer
	require.NoError(t, runWizard(strings.NewReader("\n\n\n\n"), &out, path))
	assert.NotContains(t, out.String(), "old-telegram", "secrets must not be echoed")

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "old-telegram", values["TELEGRAM_BOT_TOKEN"])
	assert.Equal(t, "old-hf", values["HUGGINGFACE_API_TOKEN"])
	assert.Equal(t, "debug", values["LOG_LEVEL"], "unrelated variables are preserved")
}

func TestRunWizard_InputEndsEarly(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	var out bytes.Buffer
	assert.Error(t, runWizard(strings.NewReader(""), &out, path))
}

func TestWriteEnvFile_CreatesOwnerOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, writeEnvFile(path, map[string]string{"TELEGRAM_BOT_TOKEN": "secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriteEnvFile_TightensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OLD=1\n"), 0o644))

	require.NoError(t, writeEnvFile(path, map[string]string{"HUGGINGFACE_API_TOKEN": "hf_secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"HUGGINGFACE_API_TOKEN": "hf_secret"}, values)
}
