package ports

import (
	"context"
	"time"

	"github.com/forPelevin/roughcut/internal/types"
)

// Completer is one LLM backend. Adapters classify their own failures into
// *apperr.ProviderError.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// PromptRunner executes a prompt against a provider with a per-call timeout.
type PromptRunner interface {
	Run(ctx context.Context, cfg types.LLMConfig, prompt string, timeout time.Duration) (string, error)
}

type MediaProbe interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
	DetectSilence(ctx context.Context, path string) ([]types.TimeRange, error)
}

// AssetProvider resolves stock media for an asset query.
type AssetProvider interface {
	Name() string
	Search(ctx context.Context, query string, kind string) (*types.AssetMedia, error)
}

// Store persists project artifacts. Writes replace the whole file.
type Store interface {
	LoadTranscript(ctx context.Context, projectID string) (types.Transcript, error)
	SaveCutPlan(ctx context.Context, p types.CutPlan) (string, error)
	LoadCutPlan(ctx context.Context, projectID string) (types.CutPlan, error)
	SaveTimeline(ctx context.Context, t types.Timeline) (types.Timeline, string, error)
	LoadTimeline(ctx context.Context, projectID string) (types.Timeline, error)
	SaveOverlayPlan(ctx context.Context, projectID string, p types.OverlayPlan) (string, error)
	SaveTemplatePlan(ctx context.Context, p types.TemplatePlan) (string, error)
}
