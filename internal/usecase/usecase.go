package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/roughcut/internal/llm"
	"github.com/forPelevin/roughcut/internal/logx"
	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/types"
)

// Planning modes.
const (
	ModeHeuristic = "heuristic"
	ModeLLM       = "llm"
	ModeHybrid    = "hybrid"
)

// Planner strategies recorded on produced artifacts.
const (
	StrategyHeuristic         = "heuristic"
	StrategyHeuristicFallback = "heuristic-fallback"
	StrategyLLM               = "llm"
	StrategyHybrid            = "hybrid"
	StrategyEmpty             = "empty"
)

const DefaultAttempts = 2

// Deps are the collaborators of every planning call. LLM, Store and Assets
// may be nil: planning then stays heuristic, nothing is persisted and asset
// suggestions carry no media.
type Deps struct {
	LLM    ports.PromptRunner
	Store  ports.Store
	Assets ports.AssetProvider
	Log    *slog.Logger

	LLMTimeout time.Duration
	Attempts   int

	NewID func() string
	Now   func() time.Time
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = logx.Discard()
	}
	if d.LLMTimeout <= 0 {
		d.LLMTimeout = llm.DefaultTimeout
	}
	if d.Attempts <= 0 {
		d.Attempts = DefaultAttempts
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return Usecase{d: d}
}

// WithAssets returns a copy that resolves asset suggestions through p.
func (u Usecase) WithAssets(p ports.AssetProvider) Usecase {
	u.d.Assets = p
	return u
}

func (u Usecase) stamp() string {
	return u.d.Now().UTC().Format(time.RFC3339)
}

func normalizeMode(mode string) (string, bool) {
	switch mode {
	case "":
		return ModeHybrid, true
	case ModeHeuristic, ModeLLM, ModeHybrid:
		return mode, true
	}
	return mode, false
}

// complete runs prompt up to Attempts times and hands each response to
// accept. The last failure is returned when no attempt is accepted.
func (u Usecase) complete(ctx context.Context, cfg types.LLMConfig, prompt, what string, accept func(string) error) error {
	var last error
	for attempt := 1; attempt <= u.d.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := u.d.LLM.Run(ctx, cfg, prompt, u.d.LLMTimeout)
		if err == nil {
			err = accept(text)
		}
		if err == nil {
			return nil
		}
		last = err
		u.d.Log.Warn("llm attempt failed",
			slog.String("task", what),
			slog.Int("attempt", attempt),
			slog.String("provider", cfg.Provider),
			slog.String("model", cfg.Model),
			slog.String("error", err.Error()))
	}
	return fmt.Errorf("%s failed after %d attempts: %w", what, u.d.Attempts, last)
}

func plannerModel(cfg types.LLMConfig) string {
	switch {
	case cfg.Provider != "" && cfg.Model != "":
		return cfg.Provider + "/" + cfg.Model
	case cfg.Provider != "":
		return cfg.Provider
	case cfg.Model != "":
		return cfg.Model
	}
	return "auto"
}
