package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/domain/cuts"
	"github.com/forPelevin/roughcut/internal/domain/ranges"
	"github.com/forPelevin/roughcut/internal/domain/timeline"
	"github.com/forPelevin/roughcut/internal/jsonx"
	"github.com/forPelevin/roughcut/internal/schema"
	"github.com/forPelevin/roughcut/internal/types"
)

const (
	HeuristicModel = "heuristic-v1"

	ReasonLLM         = "llm"
	defaultLLMCutConf = 0.6
	maxCutPromptText  = 200
)

type CutInput struct {
	ProjectID      string
	DurationUs     int64
	Transcript     types.Transcript
	Silences       []types.TimeRange
	Mode           string
	FallbackPolicy string
	SourceRef      string
	LLM            types.LLMConfig
	Options        cuts.Options
}

type CutResult struct {
	OK      bool          `json:"ok"`
	Plan    types.CutPlan `json:"plan"`
	Path    string        `json:"path,omitempty"`
	Message string        `json:"message"`
}

type llmCuts struct {
	cuts     []types.CutRange
	sections []types.Section
}

// PlanCuts produces a validated cut plan. Only input and validation problems
// are returned as errors; LLM failures degrade to the heuristic plan.
func (u Usecase) PlanCuts(ctx context.Context, in CutInput) (CutResult, error) {
	if strings.TrimSpace(in.ProjectID) == "" {
		return CutResult{}, apperr.Inputf("project id is required")
	}
	if in.DurationUs <= 0 {
		return CutResult{}, apperr.Inputf("durationUs must be positive, got %d", in.DurationUs)
	}
	mode, ok := normalizeMode(in.Mode)
	if !ok {
		return CutResult{}, apperr.Inputf("unknown cut mode %q", in.Mode)
	}
	if err := schema.ValidateTranscript(in.Transcript); err != nil {
		return CutResult{}, err
	}

	merged, raw := cuts.Plan(in.Transcript, in.DurationUs, in.Silences, in.Options)
	plan := types.CutPlan{
		PlanID:         u.d.NewID(),
		ProjectID:      in.ProjectID,
		CreatedAt:      u.stamp(),
		Mode:           mode,
		FallbackPolicy: in.FallbackPolicy,
		SourceRef:      in.SourceRef,
		Planner:        types.Planner{Model: HeuristicModel, Strategy: StrategyHeuristic},
		Analysis:       types.Analysis{DurationUs: in.DurationUs, CandidateCount: len(raw)},
		RemoveRanges:   merged,
		Rationale:      raw,
	}
	if plan.SourceRef == "" {
		plan.SourceRef = timeline.DefaultSourceRef
	}

	if mode != ModeHeuristic {
		res, err := u.planCutsLLM(ctx, in)
		if err != nil {
			plan.Planner = types.Planner{Model: HeuristicModel, Strategy: StrategyHeuristicFallback}
			plan.Analysis.Note = "LLM cut planning unavailable, heuristic plan used: " + err.Error()
			u.d.Log.Warn("cut planning fell back to heuristics",
				slog.String("project", in.ProjectID),
				slog.String("mode", mode),
				slog.String("error", err.Error()))
		} else {
			plan.Planner = types.Planner{Model: plannerModel(in.LLM), Strategy: StrategyLLM}
			plan.Analysis.Sections = res.sections
			plan.RemoveRanges = ranges.MergeCuts(res.cuts, in.DurationUs)
			plan.Rationale = res.cuts
			if mode == ModeHybrid {
				plan.Planner.Strategy = StrategyHybrid
				plan.Rationale = append(append([]types.CutRange{}, res.cuts...), raw...)
				plan.RemoveRanges = ranges.MergeCuts(plan.Rationale, in.DurationUs)
			}
		}
	}
	if plan.RemoveRanges == nil {
		plan.RemoveRanges = []types.CutRange{}
	}
	if plan.Rationale == nil {
		plan.Rationale = []types.CutRange{}
	}

	if err := schema.ValidateCutPlan(plan, in.DurationUs); err != nil {
		return CutResult{}, err
	}

	res := CutResult{
		OK:   true,
		Plan: plan,
		Message: fmt.Sprintf("%d remove ranges (%s), %.1fs removed",
			len(plan.RemoveRanges), plan.Planner.Strategy,
			float64(ranges.Total(ranges.TimeRanges(plan.RemoveRanges)))/1e6),
	}
	if u.d.Store != nil {
		path, err := u.d.Store.SaveCutPlan(ctx, plan)
		if err != nil {
			return CutResult{}, fmt.Errorf("persist cut plan: %w", err)
		}
		res.Path = path
		u.d.Log.Info("cut plan saved", slog.String("project", in.ProjectID), slog.String("path", path))
	}
	return res, nil
}

func (u Usecase) planCutsLLM(ctx context.Context, in CutInput) (llmCuts, error) {
	if u.d.LLM == nil {
		return llmCuts{}, fmt.Errorf("no LLM provider configured: %w", apperr.ErrProviderUnavailable)
	}
	prompt, err := buildCutPrompt(in.Transcript, in.DurationUs)
	if err != nil {
		return llmCuts{}, err
	}
	var out llmCuts
	err = u.complete(ctx, in.LLM, prompt, "cut planning", func(text string) error {
		parsed, err := parseCutResponse(text, in.DurationUs)
		if err != nil {
			return err
		}
		out = parsed
		return nil
	})
	return out, err
}

func buildCutPrompt(tr types.Transcript, durationUs int64) (string, error) {
	type seg struct {
		ID      string `json:"id"`
		StartUs int64  `json:"startUs"`
		EndUs   int64  `json:"endUs"`
		Text    string `json:"text"`
	}
	segs := make([]seg, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		text := []rune(strings.TrimSpace(s.Text))
		if len(text) > maxCutPromptText {
			text = text[:maxCutPromptText]
		}
		segs = append(segs, seg{ID: s.ID, StartUs: s.StartUs, EndUs: s.EndUs, Text: string(text)})
	}
	payload, err := json.Marshal(map[string]any{
		"durationUs": durationUs,
		"language":   tr.Language,
		"segments":   segs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal cut prompt: %w", err)
	}
	return "You are a video editor preparing a rough cut of a talking-head recording.\n" +
		"Task 1: find spans to remove: dead air, false starts, repeated takes, filler.\n" +
		"Task 2: label the main sections of the talk.\n" +
		"Return strictly valid JSON (no markdown) shaped as " +
		`{"removeRanges":[{"startUs":0,"endUs":0,"reason":"...","confidence":0.0}],"sections":[{"startUs":0,"endUs":0,"label":"..."}]}. ` +
		"Times are microseconds within [0, durationUs].\n\nTranscript JSON:\n" + string(payload), nil
}

// parseCutResponse accepts model output and clamps everything into
// [0, durationUs]. A response without removeRanges is an empty cut list.
func parseCutResponse(text string, durationUs int64) (llmCuts, error) {
	var resp struct {
		RemoveRanges []struct {
			StartUs    float64  `json:"startUs"`
			EndUs      float64  `json:"endUs"`
			Reason     string   `json:"reason"`
			Confidence *float64 `json:"confidence"`
		} `json:"removeRanges"`
		Sections []struct {
			StartUs float64 `json:"startUs"`
			EndUs   float64 `json:"endUs"`
			Label   string  `json:"label"`
		} `json:"sections"`
	}
	if err := jsonx.ExtractInto(text, &resp); err != nil {
		return llmCuts{}, err
	}

	out := llmCuts{cuts: []types.CutRange{}}
	for _, r := range resp.RemoveRanges {
		start, end := clampUs(r.StartUs, durationUs), clampUs(r.EndUs, durationUs)
		if end <= start {
			continue
		}
		c := types.CutRange{StartUs: start, EndUs: end, Reason: strings.TrimSpace(r.Reason), Confidence: defaultLLMCutConf}
		if c.Reason == "" {
			c.Reason = ReasonLLM
		}
		if r.Confidence != nil {
			c.Confidence = math.Min(math.Max(*r.Confidence, 0), 1)
		}
		out.cuts = append(out.cuts, c)
	}
	for _, s := range resp.Sections {
		start, end := clampUs(s.StartUs, durationUs), clampUs(s.EndUs, durationUs)
		label := strings.TrimSpace(s.Label)
		if end <= start || label == "" {
			continue
		}
		out.sections = append(out.sections, types.Section{StartUs: start, EndUs: end, Label: label})
	}
	return out, nil
}

func clampUs(v float64, durationUs int64) int64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= float64(durationUs) {
		return durationUs
	}
	return int64(math.Round(v))
}
