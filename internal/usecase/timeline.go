package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/domain/ranges"
	"github.com/forPelevin/roughcut/internal/domain/timeline"
	"github.com/forPelevin/roughcut/internal/schema"
	"github.com/forPelevin/roughcut/internal/types"
)

// TimelineInput describes a rough cut. When Plan is nil the stored cut plan of
// the project is used.
type TimelineInput struct {
	ProjectID  string
	DurationUs int64
	FPS        int
	SourceRef  string
	Plan       *types.CutPlan
}

type TimelineResult struct {
	OK       bool           `json:"ok"`
	Timeline types.Timeline `json:"timeline"`
	Path     string         `json:"path,omitempty"`
	Message  string         `json:"message"`
}

// BuildTimeline turns a cut plan into a gapless rough-cut timeline and saves
// it.
func (u Usecase) BuildTimeline(ctx context.Context, in TimelineInput) (TimelineResult, error) {
	if strings.TrimSpace(in.ProjectID) == "" {
		return TimelineResult{}, apperr.Inputf("project id is required")
	}
	plan := in.Plan
	if plan == nil {
		if u.d.Store == nil {
			return TimelineResult{}, apperr.Inputf("no cut plan given and no project store configured")
		}
		p, err := u.d.Store.LoadCutPlan(ctx, in.ProjectID)
		if err != nil {
			return TimelineResult{}, fmt.Errorf("%w: load cut plan: %v", apperr.ErrInput, err)
		}
		plan = &p
	}
	durationUs := in.DurationUs
	if durationUs <= 0 {
		durationUs = plan.Analysis.DurationUs
	}
	if durationUs <= 0 {
		return TimelineResult{}, apperr.Inputf("durationUs must be positive, got %d", durationUs)
	}
	if err := schema.ValidateCutPlan(*plan, durationUs); err != nil {
		return TimelineResult{}, err
	}
	sourceRef := in.SourceRef
	if sourceRef == "" {
		sourceRef = plan.SourceRef
	}

	remove := ranges.TimeRanges(plan.RemoveRanges)
	t := timeline.BuildRoughCut(timeline.Input{
		ProjectID:    in.ProjectID,
		DurationUs:   durationUs,
		FPS:          in.FPS,
		SourceRef:    sourceRef,
		RemoveRanges: remove,
		Now:          u.d.Now(),
	})
	if err := timeline.CheckContiguous(t); err != nil {
		return TimelineResult{}, fmt.Errorf("rough cut: %w", err)
	}

	res := TimelineResult{OK: true, Timeline: t}
	if u.d.Store != nil {
		saved, path, err := u.d.Store.SaveTimeline(ctx, t)
		if err != nil {
			return TimelineResult{}, fmt.Errorf("persist timeline: %w", err)
		}
		res.Timeline, res.Path = saved, path
		u.d.Log.Info("timeline saved",
			slog.String("project", in.ProjectID),
			slog.Int("version", saved.Version),
			slog.String("path", path))
	}
	kept := ranges.Total(ranges.Invert(ranges.Normalize(remove, durationUs), durationUs))
	res.Message = fmt.Sprintf("%d clips, %.1fs of %.1fs kept", len(res.Timeline.Clips), float64(kept)/1e6, float64(durationUs)/1e6)
	return res, nil
}
