package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/catalog"
	"github.com/forPelevin/roughcut/internal/config"
	"github.com/forPelevin/roughcut/internal/domain/cuts"
	"github.com/forPelevin/roughcut/internal/llm"
	"github.com/forPelevin/roughcut/internal/logx"
	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/ports/adapters/claudecli"
	"github.com/forPelevin/roughcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/roughcut/internal/ports/adapters/localassets"
	"github.com/forPelevin/roughcut/internal/ports/adapters/ollama"
	"github.com/forPelevin/roughcut/internal/ports/adapters/openaicompat"
	"github.com/forPelevin/roughcut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/roughcut/internal/project"
	"github.com/forPelevin/roughcut/internal/types"
	"github.com/forPelevin/roughcut/internal/usecase"
)

// Env is the process environment seen by provider probing.
type Env struct {
	LookPath func(string) (string, error)
	Getenv   func(string) string
}

// App holds the adapters wired from a config.
type App struct {
	Cfg    *config.Config
	Log    *slog.Logger
	Runner *llm.Runner
	Store  *project.Store
	Media  *ffmpeg.Adapter
	Assets ports.AssetProvider
	UC     usecase.Usecase
}

// Validate checks the parts of cfg that only matter once adapters are built.
func Validate(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return openrouter.ValidateBaseURL(cfg.LLM.OpenRouterBaseURL, cfg.LLM.OpenRouterAllowedHosts)
}

// New wires adapters. A zero Env uses exec.LookPath and os.Getenv.
func New(cfg *config.Config, log *slog.Logger, env Env) (*App, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if log == nil {
		log = logx.Discard()
	}
	if env.LookPath == nil {
		env.LookPath = exec.LookPath
	}
	if env.Getenv == nil {
		env.Getenv = os.Getenv
	}
	lookPath := env.LookPath
	if bin := strings.TrimSpace(cfg.LLM.ClaudeBin); bin != "" {
		lookPath = func(name string) (string, error) {
			if name == llm.ClaudeBinary {
				return env.LookPath(bin)
			}
			return env.LookPath(name)
		}
	}
	probe := func() llm.Capabilities { return llm.Probe(lookPath, env.Getenv) }

	client := &http.Client{Timeout: cfg.LLM.Timeout + 10*time.Second}
	runner := llm.NewRunner(probe(), probe, Completers(cfg.LLM, client), log)

	media := ffmpeg.New(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	if cfg.Media.NoiseDB != 0 {
		media.NoiseDB = cfg.Media.NoiseDB
	}

	app := &App{
		Cfg:    cfg,
		Log:    log,
		Runner: runner,
		Store:  project.NewStore(cfg.Project.DataDir),
		Media:  media,
	}
	if dir := strings.TrimSpace(cfg.Overlays.AssetsDir); dir != "" {
		app.Assets = localassets.New(dir)
	}
	app.UC = usecase.New(usecase.Deps{
		LLM:        runner,
		Store:      app.Store,
		Assets:     app.Assets,
		Log:        log,
		LLMTimeout: cfg.LLM.Timeout,
		Attempts:   cfg.LLM.Attempts,
	})
	return app, nil
}

// Completers builds provider adapters on demand from the probed capabilities.
func Completers(cfg config.LLMConfig, client *http.Client) llm.Factory {
	return func(p llm.Provider, caps llm.Capabilities) (ports.Completer, error) {
		switch p {
		case llm.ProviderOllama:
			return ollama.New(cfg.OllamaURL, client), nil
		case llm.ProviderClaudeCLI:
			return claudecli.New(caps.ClaudeCLIPath, nil), nil
		case llm.ProviderOpenAI:
			return openaicompat.New(string(p), caps.Key(p), openaicompat.Options{HTTPClient: client}), nil
		case llm.ProviderGroq:
			return openaicompat.New(string(p), caps.Key(p), openaicompat.Options{BaseURL: openaicompat.GroqBaseURL, HTTPClient: client}), nil
		case llm.ProviderOpenRouter:
			return openrouter.New(caps.Key(p), openrouter.Options{
				BaseURL: cfg.OpenRouterBaseURL,
				Title:   "roughcut",
				Client:  client,
			}), nil
		}
		return nil, fmt.Errorf("no adapter for provider %q", p)
	}
}

// LLMConfig resolves the provider/model pair for a call: explicit values win
// over the config file, which wins over detection inside the runner.
func (a *App) LLMConfig(provider, model string) types.LLMConfig {
	cfg := types.LLMConfig{Provider: a.Cfg.LLM.Provider, Model: a.Cfg.LLM.Model}
	if provider != "" {
		cfg.Provider = provider
		if model == "" {
			cfg.Model = ""
		}
	}
	if model != "" {
		cfg.Model = model
	}
	return cfg
}

// Catalog loads the configured template manifest or the built-in one.
func (a *App) Catalog(path string) ([]types.CatalogEntry, error) {
	if path == "" {
		path = a.Cfg.Overlays.CatalogPath
	}
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

// Transcript reads a transcript from path or, when path is empty, from the
// project directory.
func (a *App) Transcript(ctx context.Context, projectID, path string) (types.Transcript, error) {
	if path == "" {
		tr, err := a.Store.LoadTranscript(ctx, projectID)
		if err != nil {
			return tr, fmt.Errorf("%w: load transcript: %v", apperr.ErrInput, err)
		}
		return tr, nil
	}
	var tr types.Transcript
	if err := project.ReadJSON(path, &tr); err != nil {
		return tr, fmt.Errorf("%w: %v", apperr.ErrInput, err)
	}
	return tr, nil
}

// Silences returns silence ranges from a silencedetect log file or, when only
// media is given, by running ffmpeg over it.
func (a *App) Silences(ctx context.Context, logPath, mediaPath string, durationUs int64) ([]types.TimeRange, error) {
	switch {
	case logPath != "":
		b, err := os.ReadFile(logPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read silence log: %v", apperr.ErrInput, err)
		}
		parse := a.Media.Parse
		if parse == nil {
			parse = cuts.ParseSilenceLog
		}
		return parse(string(b), durationUs), nil
	case mediaPath != "":
		return a.Media.DetectSilence(ctx, mediaPath)
	}
	return nil, nil
}

// Duration picks the media duration: an explicit value, then ffprobe, then
// the transcript source.
func (a *App) Duration(ctx context.Context, explicitUs int64, mediaPath string, tr types.Transcript) (int64, error) {
	if explicitUs > 0 {
		return explicitUs, nil
	}
	if mediaPath != "" {
		d, err := a.Media.ProbeDuration(ctx, mediaPath)
		if err != nil {
			return 0, err
		}
		return d.Microseconds(), nil
	}
	return tr.Source.DurationUs, nil
}

// DeriveProjectID names a project after a media file, made unique by a short
// hash of its absolute path.
func DeriveProjectID(mediaPath string) string {
	name := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	name = project.NormalizeID(name)
	if name == "" {
		name = "project"
	}
	abs, err := filepath.Abs(mediaPath)
	if err != nil {
		abs = mediaPath
	}
	return name + "-" + hash(abs)[:6]
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var (
	_ ports.Completer     = (*ollama.Adapter)(nil)
	_ ports.Completer     = (*claudecli.Adapter)(nil)
	_ ports.Completer     = (*openaicompat.Adapter)(nil)
	_ ports.Completer     = (*openrouter.Adapter)(nil)
	_ ports.PromptRunner  = (*llm.Runner)(nil)
	_ ports.MediaProbe    = (*ffmpeg.Adapter)(nil)
	_ ports.AssetProvider = (*localassets.Adapter)(nil)
	_ ports.Store         = (*project.Store)(nil)
)
