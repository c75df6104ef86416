package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/llm"
)

func newLLMCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Inspect and exercise LLM providers",
	}
	cmd.AddCommand(newLLMDetectCommand(), newLLMAskCommand())
	return cmd
}

type providerStatus struct {
	Provider     string `json:"provider"`
	Available    bool   `json:"available"`
	DefaultModel string `json:"defaultModel"`
}

type detectResult struct {
	Best      providerStatus   `json:"best"`
	Model     string           `json:"model"`
	Providers []providerStatus `json:"providers"`
	ClaudeCLI string           `json:"claudeCli,omitempty"`
}

func newLLMDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Show which providers are usable and which one would be picked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			caps := app.Runner.Capabilities()
			provider, model := llmFlags(cmd)
			p, m, err := app.Runner.Resolve(app.LLMConfig(provider, model))
			if err != nil {
				return apperr.Inputf("%v", err)
			}

			res := detectResult{
				Best:      providerStatus{Provider: string(p), Available: caps.IsAvailable(p), DefaultModel: llm.DefaultModel(p)},
				Model:     m,
				ClaudeCLI: caps.ClaudeCLIPath,
			}
			for _, known := range llm.Providers {
				res.Providers = append(res.Providers, providerStatus{
					Provider:     string(known),
					Available:    caps.IsAvailable(known),
					DefaultModel: llm.DefaultModel(known),
				})
			}
			return printJSON(cmd, res)
		},
	}
}

func newLLMAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a prompt (argument or stdin) through the provider layer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			prompt := ""
			if len(args) == 1 {
				prompt = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				prompt = string(b)
			}
			if strings.TrimSpace(prompt) == "" {
				return apperr.Inputf("prompt is empty")
			}
			provider, model := llmFlags(cmd)
			out, err := app.Runner.Run(cmd.Context(), app.LLMConfig(provider, model), prompt, app.Cfg.LLM.Timeout)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), strings.TrimSpace(out)+"\n")
			return err
		},
	}
	return cmd
}
