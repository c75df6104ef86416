package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "roughcut.yaml"

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "roughcut",
		Short:         "Plan rough cuts and overlays from a transcript",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", defaultConfigFile, "Config file (YAML)")
	pf.String("data-dir", "", "Project data directory")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.String("provider", "", "LLM provider: ollama, claude-cli, openai, groq, openrouter")
	pf.String("model", "", "LLM model")

	root.AddCommand(
		newCutsCommand(),
		newTimelineCommand(),
		newOverlaysCommand(),
		newLLMCommand(),
	)
	return root
}
