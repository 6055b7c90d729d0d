package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imagebot/internal/channel"
	"imagebot/internal/config"
	"imagebot/internal/metrics"
	"imagebot/internal/provider"
	"imagebot/internal/relay"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	logger  *slog.Logger
)

// envFile is loaded from the working directory before the environment is read.
const envFile = ".env"

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := newRootCmd().Execute(); err != nil {
		var cerr *config.ConfigurationError
		if errors.As(err, &cerr) {
			fmt.Fprintln(os.Stderr, cerr.Error())
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "imagebot",
		Short:         "Telegram bot that turns text descriptions into images",
		Long:          "imagebot translates each chat message to English, sends it to a Hugging Face text-to-image model and replies with the picture.",
		RunE:          runRelay,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(initCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())
	root.AddCommand(serviceCmd())
	root.AddCommand(versionCmd())
	return root
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (default when no command is given)",
		RunE:  runRelay,
	}
}

// loadConfig reads .env and the environment, then switches the global logger
// to the configured level and format.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		logger.Warn("ignoring .env file", "err", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger = newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, nil
}

func newTranslator(cfg *config.Config) *provider.GoogleTranslate {
	return provider.NewGoogleTranslate(provider.GoogleTranslateConfig{
		URL:     cfg.Translate.URL,
		Timeout: cfg.Translate.Timeout,
		Logger:  logger,
	})
}

func newGenerator(cfg *config.Config) *provider.HuggingFace {
	return provider.NewHuggingFace(provider.HuggingFaceConfig{
		URL:     cfg.Inference.URL,
		Token:   cfg.Inference.Token,
		Timeout: cfg.Inference.Timeout,
		Logger:  logger,
	})
}

func newTelegram(cfg *config.Config) *channel.Telegram {
	return channel.NewTelegram(channel.TelegramConfig{
		Token:       cfg.Telegram.Token,
		AllowFrom:   cfg.Telegram.AllowFrom,
		PollTimeout: cfg.Telegram.PollTimeout,
		Logger:      logger,
	})
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegram := newTelegram(cfg)
	if err := telegram.Connect(); err != nil {
		return err
	}

	collector := metrics.NewCollector()
	r := relay.New(relay.Config{
		Translator: newTranslator(cfg),
		Generator:  newGenerator(cfg),
		Messenger:  telegram,
		TargetLang: cfg.Translate.TargetLang,
		Metrics:    collector,
		Logger:     logger,
	})

	logger.Info("imagebot started. Press Ctrl+C to stop.",
		"version", version,
		"bot", telegram.Username(),
		"model", cfg.Inference.URL,
	)

	err = telegram.Start(ctx, r)

	logger.Info("shutdown complete",
		"uptime", collector.Uptime().Round(time.Second).String(),
		"metrics", collector.Snapshot(),
	)
	if logger.Enabled(ctx, slog.LevelDebug) {
		collector.WriteText(os.Stderr)
	}
	return err
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := config.MarshalYAML(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "imagebot v%s\n", version)
		},
	}
}
