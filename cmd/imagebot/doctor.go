package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"imagebot/internal/config"

	"github.com/spf13/cobra"
)

const doctorSample = "кот в шляпе"

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks against the configured services",
		Long: `Verifies that the environment is complete, the Telegram token is
accepted, the inference endpoint is reachable and the translation service
answers. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imagebot doctor v%s\n", version)
			fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0

			// 1. Environment
			cfg, err := loadConfig()
			if err != nil {
				var cerr *config.ConfigurationError
				if errors.As(err, &cerr) {
					for _, key := range cerr.Missing {
						printFail(out, key, "not set")
					}
					for _, p := range cerr.Problems {
						printFail(out, "Config", p)
					}
				} else {
					printFail(out, "Config", err.Error())
				}
				fmt.Fprintf(out, "\nSet the variables above (or put them in %s) and run again.\n", envFile)
				return fmt.Errorf("configuration incomplete")
			}
			printPass(out, "Config", "environment complete")
			passed++

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			// 2. Telegram token
			telegram := newTelegram(cfg)
			if err := telegram.Connect(); err != nil {
				printFail(out, "Telegram", err.Error())
				failed++
			} else {
				printPass(out, "Telegram", "@"+telegram.Username())
				passed++
			}

			// 3. Translation
			tr, err := newTranslator(cfg).Translate(ctx, doctorSample, cfg.Translate.TargetLang)
			if err != nil {
				printFail(out, "Translation", err.Error())
				failed++
			} else {
				printPass(out, "Translation", fmt.Sprintf("%q -> %q", doctorSample, tr.Text))
				passed++
			}

			// 4. Inference endpoint
			if err := newGenerator(cfg).Ping(ctx); err != nil {
				printFail(out, "Inference", err.Error())
				failed++
			} else {
				printPass(out, "Inference", cfg.Inference.URL)
				passed++
			}

			fmt.Fprintf(out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Fprintf(out, "Results: %d passed, %d failed\n", passed, failed)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			fmt.Fprintf(out, "\nAll checks passed! imagebot is ready to run.\n")
			return nil
		},
	}
}

func printPass(w io.Writer, check, detail string) {
	fmt.Fprintf(w, "  [PASS] %-24s %s\n", check, detail)
}

func printFail(w io.Writer, check, detail string) {
	fmt.Fprintf(w, "  [FAIL] %-24s %s\n", check, detail)
}
