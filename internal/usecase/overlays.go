package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/domain/overlays"
	"github.com/forPelevin/roughcut/internal/schema"
	"github.com/forPelevin/roughcut/internal/types"
)

const (
	MaxOverlaysPerChunk = 3
	DefaultConcurrency  = 4

	// UnresolvedAssetProvider marks suggestions made without an asset provider.
	UnresolvedAssetProvider = "unresolved"
)

var errNoOverlays = errors.New("response held no usable overlays")

type ChunkInput struct {
	Index   int
	StartUs int64
	EndUs   int64
	// Segments may be the whole transcript; only segments overlapping the
	// window are planned.
	Segments []types.Segment
	Catalog  []types.CatalogEntry
	Mode     string
	LLM      types.LLMConfig
}

// PlanOverlayChunk plans overlays for one transcript window. It never fails:
// problems are reported through OK and Message.
func (u Usecase) PlanOverlayChunk(ctx context.Context, in ChunkInput) types.OverlayPlan {
	plan := types.OverlayPlan{
		ChunkIndex:   in.Index,
		ChunkStartUs: in.StartUs,
		ChunkEndUs:   in.EndUs,
		Overlays:     []types.TemplatePlacement{},
	}
	if in.EndUs <= in.StartUs {
		plan.Message = fmt.Sprintf("chunk window [%d, %d) is empty", in.StartUs, in.EndUs)
		return plan
	}
	ch := overlays.Chunk{
		Index:    in.Index,
		StartUs:  in.StartUs,
		EndUs:    in.EndUs,
		Segments: overlays.SegmentsIn(in.Segments, in.StartUs, in.EndUs),
	}
	if len(ch.Segments) == 0 {
		plan.OK, plan.Strategy = true, StrategyEmpty
		plan.Message = "no transcript segments in chunk"
		return plan
	}
	if len(in.Catalog) == 0 {
		plan.Message = "template catalog is empty"
		return plan
	}

	mode, ok := normalizeMode(in.Mode)
	if !ok {
		plan.Message = fmt.Sprintf("unknown overlay mode %q", in.Mode)
		return plan
	}
	newID := overlays.IDFunc(u.d.NewID)

	plan.Strategy = StrategyHeuristic
	if mode != ModeHeuristic {
		got, err := u.planChunkLLM(ctx, ch, in)
		if err == nil {
			plan.Overlays, plan.Strategy, plan.OK = got, StrategyLLM, true
			plan.Message = fmt.Sprintf("%d overlays", len(got))
			return plan
		}
		plan.Strategy = StrategyHeuristicFallback
		plan.Message = "LLM overlay planning unavailable, heuristic used: " + err.Error()
		u.d.Log.Warn("overlay planning fell back to heuristics",
			slog.Int("chunk", in.Index),
			slog.String("error", err.Error()))
	}

	if got := overlays.Heuristic(ch, in.Catalog, newID); got != nil {
		plan.Overlays = got
	}
	if err := schema.ValidateOverlayPlan(plan); err != nil {
		plan.Overlays = []types.TemplatePlacement{}
		plan.Message = err.Error()
		return plan
	}
	plan.OK = true
	if plan.Message == "" {
		plan.Message = fmt.Sprintf("%d overlays", len(plan.Overlays))
	}
	return plan
}

func (u Usecase) planChunkLLM(ctx context.Context, ch overlays.Chunk, in ChunkInput) ([]types.TemplatePlacement, error) {
	if u.d.LLM == nil {
		return nil, fmt.Errorf("no LLM provider configured: %w", apperr.ErrProviderUnavailable)
	}
	prompt, err := overlays.BuildPrompt(ch, in.Catalog)
	if err != nil {
		return nil, err
	}
	var out []types.TemplatePlacement
	err = u.complete(ctx, in.LLM, prompt, "overlay planning", func(text string) error {
		parsed, err := overlays.ParseResponse(text)
		if err != nil {
			return err
		}
		got := overlays.Finalize(parsed, ch, in.Catalog, overlays.IDFunc(u.d.NewID))
		if len(got) > MaxOverlaysPerChunk {
			got = got[:MaxOverlaysPerChunk]
		}
		if len(got) == 0 {
			return errNoOverlays
		}
		candidate := types.OverlayPlan{ChunkIndex: ch.Index, ChunkStartUs: ch.StartUs, ChunkEndUs: ch.EndUs, Overlays: got}
		if err := schema.ValidateOverlayPlan(candidate); err != nil {
			return err
		}
		out = got
		return nil
	})
	return out, err
}

type OverlaysInput struct {
	ProjectID string
	// DurationUs bounds the template plan; zero derives it from the transcript.
	DurationUs       int64
	Transcript       types.Transcript
	Catalog          []types.CatalogEntry
	Mode             string
	LLM              types.LLMConfig
	MaxChunkDuration time.Duration
	MaxSentences     int
	Concurrency      int
	AssetKind        string
}

type OverlaysResult struct {
	OK       bool                `json:"ok"`
	Plan     types.TemplatePlan  `json:"plan"`
	Chunks   []types.OverlayPlan `json:"chunks"`
	Path     string              `json:"path,omitempty"`
	Message  string              `json:"message"`
	Fallback int                 `json:"fallbackChunks"`
}

type chunkOutcome struct {
	plan   types.OverlayPlan
	assets []types.AssetSuggestion
}

// PlanOverlays splits the transcript into chunks, plans them concurrently and
// assembles a validated template plan.
func (u Usecase) PlanOverlays(ctx context.Context, in OverlaysInput) (OverlaysResult, error) {
	if strings.TrimSpace(in.ProjectID) == "" {
		return OverlaysResult{}, apperr.Inputf("project id is required")
	}
	if in.DurationUs < 0 {
		return OverlaysResult{}, apperr.Inputf("durationUs must not be negative, got %d", in.DurationUs)
	}
	if len(in.Catalog) == 0 {
		return OverlaysResult{}, apperr.Inputf("template catalog is empty")
	}
	if err := schema.ValidateTranscript(in.Transcript); err != nil {
		return OverlaysResult{}, err
	}
	if _, ok := normalizeMode(in.Mode); !ok {
		return OverlaysResult{}, apperr.Inputf("unknown overlay mode %q", in.Mode)
	}
	durationUs := in.DurationUs
	if durationUs == 0 {
		durationUs = transcriptEnd(in.Transcript)
	}
	maxChunk := in.MaxChunkDuration
	if maxChunk <= 0 {
		maxChunk = overlays.DefaultMaxChunkDuration
	}
	maxSentences := in.MaxSentences
	if maxSentences <= 0 {
		maxSentences = overlays.DefaultMaxSentences
	}
	concurrency := in.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	kind := in.AssetKind
	switch kind {
	case "":
		kind = types.AssetKindImage
	case types.AssetKindImage, types.AssetKindVideo:
	default:
		return OverlaysResult{}, apperr.Inputf("unknown asset kind %q", in.AssetKind)
	}

	chunks := overlays.SplitChunks(in.Transcript.Segments, maxChunk.Microseconds(), maxSentences)
	outcomes := make([]chunkOutcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, ch := range chunks {
		g.Go(func() error {
			p := u.PlanOverlayChunk(gctx, ChunkInput{
				Index:    ch.Index,
				StartUs:  ch.StartUs,
				EndUs:    min(ch.EndUs, durationUs),
				Segments: ch.Segments,
				Catalog:  in.Catalog,
				Mode:     in.Mode,
				LLM:      in.LLM,
			})
			outcomes[i] = chunkOutcome{plan: p, assets: u.suggestAssets(gctx, p.Overlays, kind)}
			if u.d.Store == nil {
				return nil
			}
			if _, err := u.d.Store.SaveOverlayPlan(gctx, in.ProjectID, p); err != nil {
				return fmt.Errorf("persist chunk %d: %w", ch.Index, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return OverlaysResult{}, err
	}

	res := OverlaysResult{Chunks: make([]types.OverlayPlan, 0, len(outcomes))}
	tp := types.TemplatePlan{
		PlanID:             u.d.NewID(),
		ProjectID:          in.ProjectID,
		CreatedAt:          u.stamp(),
		TemplatePlacements: []types.TemplatePlacement{},
		AssetSuggestions:   []types.AssetSuggestion{},
	}
	for _, o := range outcomes {
		res.Chunks = append(res.Chunks, o.plan)
		if o.plan.Strategy == StrategyHeuristicFallback {
			res.Fallback++
		}
		tp.TemplatePlacements = append(tp.TemplatePlacements, o.plan.Overlays...)
		tp.AssetSuggestions = append(tp.AssetSuggestions, o.assets...)
	}
	tp.TemplateCount = len(tp.TemplatePlacements)
	tp.AssetCount = len(tp.AssetSuggestions)
	if err := schema.ValidateTemplatePlan(tp, durationUs); err != nil {
		return OverlaysResult{}, err
	}

	res.OK, res.Plan = true, tp
	res.Message = fmt.Sprintf("%d overlays and %d asset suggestions across %d chunks", tp.TemplateCount, tp.AssetCount, len(chunks))
	if u.d.Store != nil {
		path, err := u.d.Store.SaveTemplatePlan(ctx, tp)
		if err != nil {
			return OverlaysResult{}, fmt.Errorf("persist template plan: %w", err)
		}
		res.Path = path
		u.d.Log.Info("template plan saved",
			slog.String("project", in.ProjectID),
			slog.Int("overlays", tp.TemplateCount),
			slog.Int("fallbackChunks", res.Fallback),
			slog.String("path", path))
	}
	return res, nil
}

// suggestAssets derives one suggestion per overlay that carries a query.
// Provider failures leave the suggestion without media.
func (u Usecase) suggestAssets(ctx context.Context, placements []types.TemplatePlacement, kind string) []types.AssetSuggestion {
	var out []types.AssetSuggestion
	for _, p := range placements {
		query := strings.TrimSpace(p.AssetQuery)
		if query == "" {
			continue
		}
		a := types.AssetSuggestion{
			ID:       u.d.NewID(),
			Provider: UnresolvedAssetProvider,
			Kind:     kind,
			Query:    query,
			StartUs:  p.StartUs,
			EndUs:    p.EndUs,
		}
		if u.d.Assets != nil {
			a.Provider = u.d.Assets.Name()
			media, err := u.d.Assets.Search(ctx, query, kind)
			if err != nil {
				u.d.Log.Warn("asset search failed",
					slog.String("provider", a.Provider),
					slog.String("query", query),
					slog.String("error", err.Error()))
			}
			a.Media = media
		}
		out = append(out, a)
	}
	return out
}

func transcriptEnd(tr types.Transcript) int64 {
	end := tr.Source.DurationUs
	for _, s := range tr.Segments {
		end = max(end, s.EndUs)
	}
	for _, w := range tr.Words {
		end = max(end, w.EndUs)
	}
	return end
}
