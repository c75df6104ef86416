package cli

import (
	"github.com/spf13/cobra"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/project"
	"github.com/forPelevin/roughcut/internal/types"
	"github.com/forPelevin/roughcut/internal/usecase"
)

func newTimelineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Build the rough-cut timeline from a cut plan",
		Args:  cobra.NoArgs,
		RunE:  runTimeline,
	}
	f := cmd.Flags()
	f.String("project", "", "Project id")
	f.String("plan", "", "Cut plan JSON (defaults to <data-dir>/<project>/cut-plan.json)")
	f.Int64("duration-us", 0, "Source duration in microseconds (defaults to the plan's)")
	f.Int("fps", 0, "Timeline frame rate")
	f.String("source-ref", "", "Source reference for clips (defaults to the plan's)")
	return cmd
}

func runTimeline(cmd *cobra.Command, _ []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	planPath, _ := f.GetString("plan")
	durationUs, _ := f.GetInt64("duration-us")

	in := usecase.TimelineInput{
		DurationUs: durationUs,
		FPS:        intFlag(cmd, "fps", app.Cfg.Cuts.FPS),
		SourceRef:  stringFlag(cmd, "source-ref", ""),
	}
	in.ProjectID, _ = f.GetString("project")
	if planPath != "" {
		var plan types.CutPlan
		if err := project.ReadJSON(planPath, &plan); err != nil {
			return apperr.Inputf("read cut plan: %v", err)
		}
		in.Plan = &plan
		if in.ProjectID == "" {
			in.ProjectID = plan.ProjectID
		}
	}
	if in.ProjectID == "" {
		return apperr.Inputf("--project is required")
	}

	res, err := app.UC.BuildTimeline(cmd.Context(), in)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
