package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/types"
)

const DefaultTimeout = 120 * time.Second

// Factory builds the completer for a provider from the current capabilities.
type Factory func(p Provider, caps Capabilities) (ports.Completer, error)

// Runner runs prompts against the provider picked per call.
type Runner struct {
	mu    sync.RWMutex
	caps  Capabilities
	probe func() Capabilities
	build Factory
	log   *slog.Logger
}

var _ ports.PromptRunner = (*Runner)(nil)

// NewRunner takes an explicit probe result. probe is what Reprobe calls.
func NewRunner(caps Capabilities, probe func() Capabilities, build Factory, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{caps: caps, probe: probe, build: build, log: log}
}

// Capabilities returns the probe result in use.
func (r *Runner) Capabilities() Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps
}

// Reprobe refreshes availability.
func (r *Runner) Reprobe() Capabilities {
	if r.probe == nil {
		return r.Capabilities()
	}
	caps := r.probe()
	r.mu.Lock()
	r.caps = caps
	r.mu.Unlock()
	return caps
}

// Resolve fills in provider and model, detecting the best provider when none
// is given.
func (r *Runner) Resolve(cfg types.LLMConfig) (Provider, string, error) {
	caps := r.Capabilities()
	if cfg.Provider == "" {
		best := caps.DetectBest()
		if cfg.Model == "" {
			cfg.Model = best.Model
		}
		cfg.Provider = best.Provider
	}
	p, err := ParseProvider(cfg.Provider)
	if err != nil {
		return "", "", err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(p)
	}
	return p, cfg.Model, nil
}

// Run executes prompt. The timeout applies to each provider call; expiry is
// reported as *apperr.TimeoutError. For claude-cli, a model-unavailable
// failure moves on to the next model of ClaudeModelChain.
func (r *Runner) Run(ctx context.Context, cfg types.LLMConfig, prompt string, timeout time.Duration) (string, error) {
	p, model, err := r.Resolve(cfg)
	if err != nil {
		return "", err
	}
	caps := r.Capabilities()
	if !caps.IsAvailable(p) {
		return "", fmt.Errorf("%s: %w", p, apperr.ErrProviderUnavailable)
	}
	if r.build == nil {
		return "", fmt.Errorf("%s: no completer factory: %w", p, apperr.ErrProviderUnavailable)
	}
	c, err := r.build(p, caps)
	if err != nil {
		return "", fmt.Errorf("build %s completer: %w", p, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	models := []string{model}
	if p == ProviderClaudeCLI {
		models = FallbackChain(model)
	}

	var lastErr error
	for i, m := range models {
		out, err := r.call(ctx, c, p, m, prompt, timeout)
		if err == nil {
			if i > 0 {
				r.log.Info("llm fallback model succeeded",
					slog.String("provider", string(p)),
					slog.String("model", m),
					slog.String("requested", model))
			}
			return out, nil
		}
		lastErr = err
		if !apperr.IsModelUnavailable(err) {
			return "", err
		}
		r.log.Warn("llm model unavailable",
			slog.String("provider", string(p)),
			slog.String("model", m),
			slog.String("error", err.Error()))
	}
	return "", lastErr
}

func (r *Runner) call(ctx context.Context, c ports.Completer, p Provider, model, prompt string, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := c.Complete(callCtx, model, prompt)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", &apperr.TimeoutError{Provider: string(p), Model: model, After: timeout}
		}
		return "", err
	}
	r.log.Debug("llm call done",
		slog.String("provider", string(p)),
		slog.String("model", model),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return out, nil
}

// FallbackChain returns the requested model followed by the rest of
// ClaudeModelChain.
func FallbackChain(requested string) []string {
	out := []string{requested}
	for _, m := range ClaudeModelChain {
		if m != requested {
			out = append(out, m)
		}
	}
	return out
}
