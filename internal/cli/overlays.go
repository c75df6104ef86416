package cli

import (
	"github.com/spf13/cobra"

	"github.com/forPelevin/roughcut/internal/ports/adapters/localassets"
	"github.com/forPelevin/roughcut/internal/usecase"
)

func newOverlaysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlays",
		Short: "Plan template overlays per transcript chunk",
		Args:  cobra.NoArgs,
		RunE:  runOverlays,
	}
	f := cmd.Flags()
	f.String("project", "", "Project id")
	f.String("transcript", "", "Transcript JSON (defaults to <data-dir>/<project>/transcript.json)")
	f.Int64("duration-us", 0, "Source duration in microseconds (derived from the transcript when 0)")
	f.String("catalog", "", "Template manifest YAML/JSON (built-in catalog when empty)")
	f.String("mode", "", "heuristic, llm or hybrid")
	f.Duration("max-chunk", 0, "Maximum chunk duration, e.g. 45s")
	f.Int("max-sentences", 0, "Maximum segments per chunk")
	f.Int("concurrency", 0, "Chunks planned in parallel")
	f.String("assets-dir", "", "Directory searched for stock media")
	f.String("asset-kind", "", "image or video")
	return cmd
}

func runOverlays(cmd *cobra.Command, _ []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	f := cmd.Flags()
	trPath, _ := f.GetString("transcript")
	durationUs, _ := f.GetInt64("duration-us")
	catalogPath, _ := f.GetString("catalog")

	projectID, err := resolveProject(cmd, "", trPath)
	if err != nil {
		return err
	}
	tr, err := app.Transcript(ctx, projectID, trPath)
	if err != nil {
		return err
	}
	entries, err := app.Catalog(catalogPath)
	if err != nil {
		return err
	}

	uc := app.UC
	if dir, _ := f.GetString("assets-dir"); dir != "" {
		uc = uc.WithAssets(localassets.New(dir))
	}
	maxChunk := app.Cfg.Overlays.MaxChunkDuration
	if v, _ := f.GetDuration("max-chunk"); v > 0 {
		maxChunk = v
	}
	provider, model := llmFlags(cmd)
	res, err := uc.PlanOverlays(ctx, usecase.OverlaysInput{
		ProjectID:        projectID,
		DurationUs:       durationUs,
		Transcript:       tr,
		Catalog:          entries,
		Mode:             stringFlag(cmd, "mode", app.Cfg.Overlays.Mode),
		LLM:              app.LLMConfig(provider, model),
		MaxChunkDuration: maxChunk,
		MaxSentences:     intFlag(cmd, "max-sentences", app.Cfg.Overlays.MaxSentences),
		Concurrency:      intFlag(cmd, "concurrency", app.Cfg.Overlays.Concurrency),
		AssetKind:        stringFlag(cmd, "asset-kind", app.Cfg.Overlays.AssetKind),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
