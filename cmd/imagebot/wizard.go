package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"imagebot/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// wizardStep is one variable the wizard asks for.
type wizardStep struct {
	Key      string
	Prompt   string
	Default  string
	Required bool
	Secret   bool
}

var wizardSteps = []wizardStep{
	{Key: "TELEGRAM_BOT_TOKEN", Prompt: "Telegram bot token (from @BotFather)", Required: true, Secret: true},
	{Key: "HUGGINGFACE_API_TOKEN", Prompt: "Hugging Face access token", Required: true, Secret: true},
	{Key: "HUGGINGFACE_API_URL", Prompt: "Model endpoint", Default: config.DefaultInferenceURL},
	{Key: "TELEGRAM_ALLOW_FROM", Prompt: "Allowed Telegram user IDs, comma separated (empty = everyone)"},
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive setup: write tokens and model endpoint to .env",
		Long:  "Asks for the Telegram and Hugging Face tokens and the model endpoint and writes them to .env in the current directory. Existing values are offered as defaults.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runWizard(cmd.InOrStdin(), cmd.OutOrStdout(), envFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSaved %s. Run 'imagebot doctor' to verify the setup.\n", envFile)
			return nil
		},
	}
}

func runWizard(in io.Reader, out io.Writer, path string) error {
	existing, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		existing = map[string]string{}
	}

	reader := bufio.NewReader(in)
	prompt := func(label, def string, masked bool) (string, error) {
		shown := def
		if masked && def != "" {
			shown = "keep current"
		}
		if shown != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, shown)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" {
			return def, nil
		}
		return s, nil
	}

	values := make(map[string]string, len(existing)+len(wizardSteps))
	for k, v := range existing {
		values[k] = v
	}

	for _, step := range wizardSteps {
		def := existing[step.Key]
		if def == "" {
			def = step.Default
		}
		for {
			v, err := prompt(step.Prompt, def, step.Secret)
			if err != nil {
				return fmt.Errorf("read %s: %w", step.Key, err)
			}
			if v == "" && step.Required {
				fmt.Fprintf(out, "  %s is required.\n", step.Key)
				continue
			}
			if v == "" {
				delete(values, step.Key)
			} else {
				values[step.Key] = v
			}
			break
		}
	}

	return writeEnvFile(path, values)
}

// writeEnvFile writes values to path, creating it readable by the owner only.
func writeEnvFile(path string, values map[string]string) error {
	content, err := godotenv.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// O_CREATE leaves the mode of an existing file alone.
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if _, err := f.WriteString(content + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
