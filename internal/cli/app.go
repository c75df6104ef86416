package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forPelevin/roughcut/internal/config"
	"github.com/forPelevin/roughcut/internal/logx"
	"github.com/forPelevin/roughcut/internal/pipeline"
)

// loadApp reads the config file, applies persistent flag overrides and wires
// the pipeline. Logs go to stderr so stdout stays JSON.
func loadApp(cmd *cobra.Command) (*pipeline.App, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.LoadOrDefault(path, !flags.Changed("config"))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	applyEnv(cfg)
	if v, _ := flags.GetString("data-dir"); v != "" {
		cfg.Project.DataDir = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.App.LogLevel = logx.ParseLevel(v)
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.App.LogFormat = strings.ToLower(v)
	}

	log := logx.New(cfg.App.LogLevel, cfg.App.LogFormat, cmd.ErrOrStderr())
	app, err := pipeline.New(cfg, log, pipeline.Env{})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log.Debug("config loaded", slog.String("file", path), slog.String("dataDir", cfg.Project.DataDir))
	return app, nil
}

// applyEnv lets the OpenRouter endpoint be set from the environment. Extra
// allowed hosts extend the configured list.
func applyEnv(cfg *config.Config) {
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL")); v != "" {
		cfg.LLM.OpenRouterBaseURL = v
	}
	for _, h := range strings.Split(os.Getenv("OPENROUTER_ALLOWED_HOSTS"), ",") {
		if h = strings.TrimSpace(h); h != "" {
			cfg.LLM.OpenRouterAllowedHosts = append(cfg.LLM.OpenRouterAllowedHosts, h)
		}
	}
}

func llmFlags(cmd *cobra.Command) (provider, model string) {
	provider, _ = cmd.Flags().GetString("provider")
	model, _ = cmd.Flags().GetString("model")
	return strings.TrimSpace(provider), strings.TrimSpace(model)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
