package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/project"
	"github.com/forPelevin/roughcut/internal/types"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	replies []string
	err     error
}

func (f *fakeRunner) Run(_ context.Context, _ types.LLMConfig, _ string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r, nil
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAssets struct{}

func (fakeAssets) Name() string { return "fake" }

func (fakeAssets) Search(_ context.Context, query, _ string) (*types.AssetMedia, error) {
	return &types.AssetMedia{URL: "file:///media/" + strings.ReplaceAll(query, " ", "-") + ".jpg"}, nil
}

func seqIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func fixedNow() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }

func newTestUsecase(r *fakeRunner, store *project.Store) Usecase {
	d := Deps{NewID: seqIDs(), Now: fixedNow}
	if r != nil {
		d.LLM = r
	}
	if store != nil {
		d.Store = store
	}
	return New(d)
}

const testDurationUs = 12_000_000

func testTranscript() types.Transcript {
	words := []types.Word{
		{ID: "w1", Text: "Hello", StartUs: 1_000_000, EndUs: 1_300_000},
		{ID: "w2", Text: "um", StartUs: 1_300_000, EndUs: 1_500_000},
		{ID: "w3", Text: "everyone", StartUs: 1_500_000, EndUs: 2_000_000},
		{ID: "w4", Text: "Today", StartUs: 4_000_000, EndUs: 4_500_000},
		{ID: "w5", Text: "pipelines", StartUs: 6_000_000, EndUs: 7_000_000},
	}
	return types.Transcript{
		TranscriptID: "tr-1",
		ProjectID:    "demo",
		Language:     "en",
		Source:       types.TranscriptSource{DurationUs: testDurationUs},
		Words:        words,
		WordCount:    len(words),
		Segments: []types.Segment{
			{ID: "s1", Text: "Hello um everyone welcome back", StartUs: 1_000_000, EndUs: 3_000_000, WordIDs: []string{"w1", "w2", "w3"}},
			{ID: "s2", Text: "Today we talk about building reliable pipelines", StartUs: 4_000_000, EndUs: 7_000_000, WordIDs: []string{"w4", "w5"}},
		},
	}
}

func testCatalog() []types.CatalogEntry {
	return []types.CatalogEntry{
		{ID: "title-card", Name: "Title", Category: "title"},
		{ID: "lower-third-basic", Name: "Lower third", Category: "lower-third"},
		{ID: "callout-bubble", Name: "Callout", Category: "callout"},
	}
}

func TestPlanCuts_InputErrors(t *testing.T) {
	bad := testTranscript()
	bad.Segments[1].WordIDs = append(bad.Segments[1].WordIDs, "w9")

	tests := []struct {
		name    string
		in      CutInput
		wantErr error
		want    string
	}{
		{"missing project", CutInput{DurationUs: testDurationUs, Transcript: testTranscript()}, apperr.ErrInput, "project"},
		{"zero duration", CutInput{ProjectID: "demo", Transcript: testTranscript()}, apperr.ErrInput, "durationUs"},
		{"unknown mode", CutInput{ProjectID: "demo", DurationUs: testDurationUs, Mode: "magic", Transcript: testTranscript()}, apperr.ErrInput, "magic"},
		{"bad word ref", CutInput{ProjectID: "demo", DurationUs: testDurationUs, Transcript: bad}, apperr.ErrValidation, "w9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestUsecase(nil, nil).PlanCuts(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("PlanCuts error = %v, want %v mentioning %q", err, tt.wantErr, tt.want)
			}
		})
	}
}

func TestPlanCuts_HeuristicModeSkipsLLM(t *testing.T) {
	r := &fakeRunner{err: errors.New("must not be called")}
	store := project.NewStore(t.TempDir())
	res, err := newTestUsecase(r, store).PlanCuts(context.Background(), CutInput{
		ProjectID:  "demo",
		DurationUs: testDurationUs,
		Transcript: testTranscript(),
		Mode:       ModeHeuristic,
	})
	if err != nil {
		t.Fatalf("PlanCuts: %v", err)
	}
	if r.Calls() != 0 {
		t.Fatalf("expected no LLM calls, got %d", r.Calls())
	}
	p := res.Plan
	if !res.OK || p.Planner.Strategy != StrategyHeuristic || p.PlanID != "id-1" || p.CreatedAt != "2026-05-04T10:00:00Z" {
		t.Fatalf("unexpected plan header %+v", p)
	}
	if len(p.RemoveRanges) == 0 || p.RemoveRanges[0].StartUs != 0 || !strings.Contains(p.RemoveRanges[0].Reason, "intro-silence") {
		t.Fatalf("expected intro silence first, got %+v", p.RemoveRanges)
	}
	if p.Analysis.CandidateCount != len(p.Rationale) || p.SourceRef != "source-video" {
		t.Fatalf("unexpected analysis %+v / sourceRef %q", p.Analysis, p.SourceRef)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Fatalf("cut plan not persisted: %v", err)
	}
}

func TestPlanCuts_LLMFailureFallsBackToHeuristics(t *testing.T) {
	r := &fakeRunner{err: &apperr.ProviderError{Provider: "openai", Kind: apperr.KindTransport, Detail: "boom"}}
	res, err := newTestUsecase(r, nil).PlanCuts(context.Background(), CutInput{
		ProjectID:  "demo",
		DurationUs: testDurationUs,
		Transcript: testTranscript(),
		Mode:       ModeHybrid,
	})
	if err != nil {
		t.Fatalf("LLM failures must not escape: %v", err)
	}
	if r.Calls() != DefaultAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultAttempts, r.Calls())
	}
	p := res.Plan
	if p.Planner.Strategy != StrategyHeuristicFallback || !strings.Contains(p.Analysis.Note, "heuristic") {
		t.Fatalf("expected fallback note, got planner=%+v note=%q", p.Planner, p.Analysis.Note)
	}
	if len(p.RemoveRanges) == 0 {
		t.Fatalf("heuristic rules fire on this transcript, removeRanges must not be empty")
	}
}

func TestPlanCuts_NoRunnerFallsBack(t *testing.T) {
	res, err := newTestUsecase(nil, nil).PlanCuts(context.Background(), CutInput{
		ProjectID:  "demo",
		DurationUs: testDurationUs,
		Transcript: testTranscript(),
		Mode:       ModeLLM,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Plan.Planner.Strategy != StrategyHeuristicFallback {
		t.Fatalf("expected fallback, got %+v", res.Plan.Planner)
	}
}

func TestPlanCuts_HybridMergesModelCuts(t *testing.T) {
	reply := "Sure, here it is:\n```json\n" +
		`{"removeRanges":[{"startUs":8000000,"endUs":9000000,"reason":"off-topic","confidence":0.9},{"startUs":5000,"endUs":5000}],` +
		`"sections":[{"startUs":0,"endUs":6000000,"label":"Intro"},{"startUs":7,"endUs":3,"label":"bad"}]}` + "\n```"
	r := &fakeRunner{replies: []string{reply}}
	res, err := newTestUsecase(r, nil).PlanCuts(context.Background(), CutInput{
		ProjectID:  "demo",
		DurationUs: testDurationUs,
		Transcript: testTranscript(),
		LLM:        types.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
	})
	if err != nil {
		t.Fatal(err)
	}
	p := res.Plan
	if p.Mode != ModeHybrid || p.Planner.Strategy != StrategyHybrid || p.Planner.Model != "openai/gpt-4o-mini" {
		t.Fatalf("unexpected planner %+v mode %q", p.Planner, p.Mode)
	}
	var found bool
	for _, c := range p.RemoveRanges {
		if c.StartUs == 8_000_000 && c.EndUs == 9_000_000 && c.Reason == "off-topic" && c.Confidence == 0.9 {
			found = true
		}
	}
	if !found {
		t.Fatalf("model cut missing from %+v", p.RemoveRanges)
	}
	if p.RemoveRanges[0].StartUs != 0 {
		t.Fatalf("heuristic intro cut missing from %+v", p.RemoveRanges)
	}
	if len(p.Analysis.Sections) != 1 || p.Analysis.Sections[0].Label != "Intro" {
		t.Fatalf("unexpected sections %+v", p.Analysis.Sections)
	}
}

func TestPlanCuts_LLMModeRetriesUnparseableOutput(t *testing.T) {
	r := &fakeRunner{replies: []string{"I cannot help with that", `{"removeRanges":[{"startUs":2000000,"endUs":2500000}]}`}}
	res, err := newTestUsecase(r, nil).PlanCuts(context.Background(), CutInput{
		ProjectID:  "demo",
		DurationUs: testDurationUs,
		Transcript: testTranscript(),
		Mode:       ModeLLM,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.Calls() != 2 || res.Plan.Planner.Strategy != StrategyLLM {
		t.Fatalf("calls=%d planner=%+v", r.Calls(), res.Plan.Planner)
	}
	want := types.CutRange{StartUs: 2_000_000, EndUs: 2_500_000, Reason: ReasonLLM, Confidence: 0.6}
	if len(res.Plan.RemoveRanges) != 1 || res.Plan.RemoveRanges[0] != want {
		t.Fatalf("removeRanges = %+v, want [%+v]", res.Plan.RemoveRanges, want)
	}
}

func TestPlanCuts_MissingRemoveRangesIsEmpty(t *testing.T) {
	r := &fakeRunner{replies: []string{`{"sections":[]}`}}
	res, err := newTestUsecase(r, nil).PlanCuts(context.Background(), CutInput{
		ProjectID:  "demo",
		DurationUs: testDurationUs,
		Transcript: testTranscript(),
		Mode:       ModeLLM,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Plan.RemoveRanges == nil || len(res.Plan.RemoveRanges) != 0 {
		t.Fatalf("expected empty removeRanges, got %#v", res.Plan.RemoveRanges)
	}
}

func TestBuildTimeline_SingleCut(t *testing.T) {
	res, err := newTestUsecase(nil, nil).BuildTimeline(context.Background(), TimelineInput{
		ProjectID:  "demo",
		DurationUs: 5_000_000,
		Plan: testCutPlan([]types.CutRange{
			{StartUs: 1_000_000, EndUs: 2_000_000, Reason: "silence", Confidence: 0.8},
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	clips := res.Timeline.Clips
	if len(clips) != 2 || clips[1].StartUs != 1_000_000 || clips[1].EndUs != 4_000_000 {
		t.Fatalf("unexpected clips %+v", clips)
	}
	if clips[1].SourceStartUs != 2_000_000 || clips[1].SourceEndUs != 5_000_000 {
		t.Fatalf("unexpected source mapping %+v", clips[1])
	}
}

func TestBuildTimeline_FromStoredPlanBumpsVersion(t *testing.T) {
	store := project.NewStore(t.TempDir())
	uc := newTestUsecase(nil, store)
	ctx := context.Background()
	if _, err := uc.PlanCuts(ctx, CutInput{ProjectID: "demo", DurationUs: testDurationUs, Transcript: testTranscript(), Mode: ModeHeuristic}); err != nil {
		t.Fatal(err)
	}

	first, err := uc.BuildTimeline(ctx, TimelineInput{ProjectID: "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Timeline.Version != 1 || first.Timeline.DurationUs != testDurationUs || len(first.Timeline.Clips) == 0 {
		t.Fatalf("unexpected first timeline %+v", first.Timeline)
	}
	second, err := uc.BuildTimeline(ctx, TimelineInput{ProjectID: "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Timeline.Version != 2 || filepath.Base(second.Path) != project.TimelineFile {
		t.Fatalf("expected version 2 at timeline.json, got v%d at %s", second.Timeline.Version, second.Path)
	}
}

func testCutPlan(remove []types.CutRange) *types.CutPlan {
	return &types.CutPlan{
		PlanID:       "plan-1",
		ProjectID:    "demo",
		CreatedAt:    "2026-05-04T10:00:00Z",
		Mode:         ModeHeuristic,
		Planner:      types.Planner{Model: HeuristicModel, Strategy: StrategyHeuristic},
		RemoveRanges: remove,
		Rationale:    remove,
	}
}

func TestBuildTimeline_RejectsInvalidPlan(t *testing.T) {
	cases := []struct {
		name string
		plan *types.CutPlan
	}{
		{"range past duration", testCutPlan([]types.CutRange{{StartUs: 1_000_000, EndUs: 9_000_000, Reason: "silence", Confidence: 0.8}})},
		{"inverted range", testCutPlan([]types.CutRange{{StartUs: 3_000_000, EndUs: 2_000_000, Reason: "silence", Confidence: 0.8}})},
		{"missing plan id", func() *types.CutPlan { p := testCutPlan(nil); p.PlanID = ""; return p }()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestUsecase(nil, nil).BuildTimeline(context.Background(), TimelineInput{
				ProjectID:  "demo",
				DurationUs: 5_000_000,
				Plan:       tc.plan,
			})
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestBuildTimeline_NoPlan(t *testing.T) {
	_, err := newTestUsecase(nil, nil).BuildTimeline(context.Background(), TimelineInput{ProjectID: "demo", DurationUs: 1})
	if !errors.Is(err, apperr.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	_, err = newTestUsecase(nil, project.NewStore(t.TempDir())).BuildTimeline(context.Background(), TimelineInput{ProjectID: "demo"})
	if !errors.Is(err, apperr.ErrInput) {
		t.Fatalf("expected input error for missing stored plan, got %v", err)
	}
}

func TestPlanOverlayChunk_EmptyWindowSkipsLLM(t *testing.T) {
	r := &fakeRunner{replies: []string{`{"overlays":[]}`}}
	plan := newTestUsecase(r, nil).PlanOverlayChunk(context.Background(), ChunkInput{
		Index:    3,
		StartUs:  20_000_000,
		EndUs:    30_000_000,
		Segments: testTranscript().Segments,
		Catalog:  testCatalog(),
		Mode:     ModeLLM,
	})
	if r.Calls() != 0 {
		t.Fatalf("LLM must not be called, got %d calls", r.Calls())
	}
	if !plan.OK || plan.Overlays == nil || len(plan.Overlays) != 0 || plan.ChunkIndex != 3 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestPlanOverlayChunk_PostProcessesModelOutput(t *testing.T) {
	reply := `{"overlays":[
		{"templateId":"lower-third-basic","startUs":500000,"endUs":2500000,"headline":"Welcome back","subline":"intro","assetQuery":"welcome studio","confidence":0.8},
		{"templateId":"nope","startUs":4000000,"endUs":9000000,"headline":"Reliable pipelines"},
		{"templateId":"title-card","startUs":100,"endUs":50,"headline":"dropped"},
		{"templateId":"callout-bubble","startUs":5000000,"endUs":6000000,"headline":"  "}
	]}`
	r := &fakeRunner{replies: []string{reply}}
	plan := newTestUsecase(r, nil).PlanOverlayChunk(context.Background(), ChunkInput{
		StartUs:  0,
		EndUs:    7_000_000,
		Segments: testTranscript().Segments,
		Catalog:  testCatalog(),
	})
	if !plan.OK || plan.Strategy != StrategyLLM || len(plan.Overlays) != 2 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	first, second := plan.Overlays[0], plan.Overlays[1]
	if first.Category != "lower-third" || first.Confidence != 0.8 || first.AssetQuery != "welcome studio" {
		t.Fatalf("unexpected first overlay %+v", first)
	}
	if second.TemplateID != "lower-third-basic" || second.EndUs != 7_000_000 || second.Confidence <= 0 {
		t.Fatalf("unknown template should be remapped and clamped, got %+v", second)
	}
	if first.ID == second.ID || !strings.HasPrefix(first.ID, "id-") {
		t.Fatalf("expected fresh distinct ids, got %q and %q", first.ID, second.ID)
	}
}

func TestPlanOverlayChunk_HeuristicLongUnspacedSegment(t *testing.T) {
	plan := newTestUsecase(nil, nil).PlanOverlayChunk(context.Background(), ChunkInput{
		StartUs:  0,
		EndUs:    5_000_000,
		Segments: []types.Segment{{ID: "s1", Text: strings.Repeat("字幕测试", 50), StartUs: 0, EndUs: 5_000_000}},
		Catalog:  []types.CatalogEntry{{ID: "lt", Name: "Lower Third", Category: "lower-third"}},
		Mode:     ModeHeuristic,
	})
	if !plan.OK || len(plan.Overlays) != 1 {
		t.Fatalf("expected one heuristic overlay, got %+v", plan)
	}
}

func TestPlanOverlayChunk_CapsOverlays(t *testing.T) {
	var items []string
	for i := range 5 {
		items = append(items, fmt.Sprintf(`{"templateId":"title-card","startUs":%d,"endUs":%d,"headline":"h%d"}`, i*1_000_000, i*1_000_000+500_000, i))
	}
	r := &fakeRunner{replies: []string{"[" + strings.Join(items, ",") + "]"}}
	plan := newTestUsecase(r, nil).PlanOverlayChunk(context.Background(), ChunkInput{
		EndUs:    7_000_000,
		Segments: testTranscript().Segments,
		Catalog:  testCatalog(),
	})
	if len(plan.Overlays) != MaxOverlaysPerChunk {
		t.Fatalf("expected %d overlays, got %d", MaxOverlaysPerChunk, len(plan.Overlays))
	}
}

func TestPlanOverlayChunk_FallsBackToHeuristic(t *testing.T) {
	r := &fakeRunner{err: &apperr.TimeoutError{Provider: "ollama", Model: "llama3.1", After: time.Second}}
	plan := newTestUsecase(r, nil).PlanOverlayChunk(context.Background(), ChunkInput{
		StartUs:  0,
		EndUs:    7_000_000,
		Segments: testTranscript().Segments,
		Catalog:  testCatalog(),
		Mode:     ModeHybrid,
	})
	if r.Calls() != DefaultAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultAttempts, r.Calls())
	}
	if !plan.OK || plan.Strategy != StrategyHeuristicFallback || len(plan.Overlays) != 1 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	o := plan.Overlays[0]
	if o.TemplateID != "title-card" || o.StartUs != 4_000_000 || o.EndUs != 7_000_000 {
		t.Fatalf("heuristic should use the longest segment and the first preferred template, got %+v", o)
	}
	if !strings.Contains(plan.Message, "timed out") {
		t.Fatalf("message should carry the failure, got %q", plan.Message)
	}
}

func TestPlanOverlays_AssemblesAndPersists(t *testing.T) {
	dir := t.TempDir()
	store := project.NewStore(dir)
	uc := New(Deps{Store: store, Assets: fakeAssets{}, NewID: seqIDs(), Now: fixedNow})

	res, err := uc.PlanOverlays(context.Background(), OverlaysInput{
		ProjectID:    "demo",
		Transcript:   testTranscript(),
		Catalog:      testCatalog(),
		Mode:         ModeHeuristic,
		MaxSentences: 1,
		Concurrency:  2,
	})
	if err != nil {
		t.Fatalf("PlanOverlays: %v", err)
	}
	if !res.OK || len(res.Chunks) != 2 || res.Plan.TemplateCount != 2 || res.Plan.AssetCount != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Chunks[0].ChunkIndex != 0 || res.Chunks[1].ChunkIndex != 1 {
		t.Fatalf("chunks out of order: %+v", res.Chunks)
	}
	a := res.Plan.AssetSuggestions[0]
	if a.Provider != "fake" || a.Kind != types.AssetKindImage || a.Media == nil || a.StartUs != 1_000_000 {
		t.Fatalf("unexpected asset suggestion %+v", a)
	}
	for _, name := range []string{"overlays/chunk-000.json", "overlays/chunk-001.json", project.TemplatePlanFile} {
		if _, err := os.Stat(filepath.Join(dir, "demo", name)); err != nil {
			t.Fatalf("%s not persisted: %v", name, err)
		}
	}
}

func TestPlanOverlays_InputErrors(t *testing.T) {
	uc := newTestUsecase(nil, nil)
	if _, err := uc.PlanOverlays(context.Background(), OverlaysInput{ProjectID: "demo", Transcript: testTranscript()}); !errors.Is(err, apperr.ErrInput) {
		t.Fatalf("empty catalog: got %v", err)
	}
	if _, err := uc.PlanOverlays(context.Background(), OverlaysInput{Transcript: testTranscript(), Catalog: testCatalog()}); !errors.Is(err, apperr.ErrInput) {
		t.Fatalf("missing project: got %v", err)
	}
}
