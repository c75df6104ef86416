package cli

import (
	"github.com/spf13/cobra"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/domain/cuts"
	"github.com/forPelevin/roughcut/internal/pipeline"
	"github.com/forPelevin/roughcut/internal/project"
	"github.com/forPelevin/roughcut/internal/types"
	"github.com/forPelevin/roughcut/internal/usecase"
)

func newCutsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cuts",
		Short: "Plan spans to remove from the source video",
		Args:  cobra.NoArgs,
		RunE:  runCuts,
	}
	f := cmd.Flags()
	f.String("project", "", "Project id (derived from --media when empty)")
	f.String("transcript", "", "Transcript JSON (defaults to <data-dir>/<project>/transcript.json)")
	f.Int64("duration-us", 0, "Source duration in microseconds (probed from --media or read from the transcript when 0)")
	f.String("media", "", "Source media file for ffprobe and silencedetect")
	f.String("silence-log", "", "ffmpeg silencedetect log to read silences from")
	f.Bool("detect-silence", false, "Run ffmpeg silencedetect over --media")
	f.String("mode", "", "heuristic, llm or hybrid")
	f.String("fallback-policy", "", "Recorded fallback policy")
	f.String("source-ref", "", "Source reference written into the plan")
	f.Int("min-fingerprint-len", 0, "Minimum fingerprint length for repetition detection")
	return cmd
}

func runCuts(cmd *cobra.Command, _ []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	f := cmd.Flags()
	trPath, _ := f.GetString("transcript")
	media, _ := f.GetString("media")
	silenceLog, _ := f.GetString("silence-log")
	detect, _ := f.GetBool("detect-silence")
	durationUs, _ := f.GetInt64("duration-us")

	projectID, err := resolveProject(cmd, media, trPath)
	if err != nil {
		return err
	}
	tr, err := app.Transcript(ctx, projectID, trPath)
	if err != nil {
		return err
	}
	if durationUs, err = app.Duration(ctx, durationUs, media, tr); err != nil {
		return err
	}

	var silences []types.TimeRange
	if silenceLog != "" || detect {
		if detect && media == "" {
			return apperr.Inputf("--detect-silence needs --media")
		}
		mediaForSilence := ""
		if detect {
			mediaForSilence = media
		}
		if silences, err = app.Silences(ctx, silenceLog, mediaForSilence, durationUs); err != nil {
			return err
		}
	}

	opts := cuts.DefaultOptions()
	opts.MinFingerprintLen = app.Cfg.Cuts.MinFingerprintLen
	if v, _ := f.GetInt("min-fingerprint-len"); v > 0 {
		opts.MinFingerprintLen = v
	}
	provider, model := llmFlags(cmd)
	res, err := app.UC.PlanCuts(ctx, usecase.CutInput{
		ProjectID:      projectID,
		DurationUs:     durationUs,
		Transcript:     tr,
		Silences:       silences,
		Mode:           stringFlag(cmd, "mode", app.Cfg.Cuts.Mode),
		FallbackPolicy: stringFlag(cmd, "fallback-policy", app.Cfg.Cuts.FallbackPolicy),
		SourceRef:      stringFlag(cmd, "source-ref", app.Cfg.Cuts.SourceRef),
		LLM:            app.LLMConfig(provider, model),
		Options:        opts,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

// resolveProject takes --project, then a name derived from the media path,
// then the project id recorded in the transcript file.
func resolveProject(cmd *cobra.Command, media, trPath string) (string, error) {
	if id, _ := cmd.Flags().GetString("project"); id != "" {
		return id, nil
	}
	if media != "" {
		return pipeline.DeriveProjectID(media), nil
	}
	if trPath != "" {
		var tr types.Transcript
		if err := project.ReadJSON(trPath, &tr); err == nil && tr.ProjectID != "" {
			return tr.ProjectID, nil
		}
	}
	return "", apperr.Inputf("--project is required (or pass --media)")
}

func stringFlag(cmd *cobra.Command, name, def string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return def
}

func intFlag(cmd *cobra.Command, name string, def int) int {
	if v, _ := cmd.Flags().GetInt(name); v > 0 {
		return v
	}
	return def
}
