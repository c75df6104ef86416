// Package config loads roughcut settings from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Planning modes.
const (
	ModeHeuristic = "heuristic"
	ModeLLM       = "llm"
	ModeHybrid    = "hybrid"
)

// Validator is implemented by configs that check themselves after loading.
type Validator interface {
	Validate() error
}

// Load reads a YAML file, expands ${ENV} references and validates the result
// when target implements Validator.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// LoadOrDefault loads filename over NewDefaultConfig. A missing file is not an
// error when optional is set.
func LoadOrDefault(filename string, optional bool) (*Config, error) {
	cfg := NewDefaultConfig()
	if filename == "" {
		return cfg, cfg.Validate()
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) && optional {
		return cfg, cfg.Validate()
	}
	if err := Load(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Project  ProjectConfig  `yaml:"project"`
	LLM      LLMConfig      `yaml:"llm"`
	Cuts     CutsConfig     `yaml:"cuts"`
	Overlays OverlaysConfig `yaml:"overlays"`
	Media    MediaConfig    `yaml:"media"`
}

func (c *Config) Validate() error {
	for _, v := range []Validator{&c.App, &c.Project, &c.LLM, &c.Cuts, &c.Overlays} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type AppConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In("text", "json")),
	)
}

type ProjectConfig struct {
	// DataDir holds one directory per project id.
	DataDir string `yaml:"data_dir"`
}

func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
	)
}

type LLMConfig struct {
	// Provider and Model pin the backend; empty means auto-detect.
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	Attempts int           `yaml:"attempts"`

	OllamaURL string `yaml:"ollama_url"`
	ClaudeBin string `yaml:"claude_bin"`

	OpenRouterBaseURL      string   `yaml:"openrouter_base_url"`
	OpenRouterAllowedHosts []string `yaml:"openrouter_allowed_hosts"`
}

func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In("ollama", "claude-cli", "openai", "groq", "openrouter")),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Attempts, validation.Required, validation.Min(1), validation.Max(5)),
	)
}

type CutsConfig struct {
	Mode              string `yaml:"mode"`
	FallbackPolicy    string `yaml:"fallback_policy"`
	FPS               int    `yaml:"fps"`
	SourceRef         string `yaml:"source_ref"`
	MinFingerprintLen int    `yaml:"min_fingerprint_len"`
}

func (c *CutsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModeHeuristic, ModeLLM, ModeHybrid)),
		validation.Field(&c.FPS, validation.Required, validation.Min(1), validation.Max(240)),
		validation.Field(&c.MinFingerprintLen, validation.Min(1)),
	)
}

type OverlaysConfig struct {
	Mode             string        `yaml:"mode"`
	CatalogPath      string        `yaml:"catalog"`
	MaxChunkDuration time.Duration `yaml:"max_chunk_duration"`
	MaxSentences     int           `yaml:"max_sentences"`
	Concurrency      int           `yaml:"concurrency"`

	// AssetsDir is searched for stock media; empty leaves suggestions unresolved.
	AssetsDir string `yaml:"assets_dir"`
	AssetKind string `yaml:"asset_kind"`
}

func (c *OverlaysConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModeHeuristic, ModeLLM, ModeHybrid)),
		validation.Field(&c.MaxChunkDuration, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MaxSentences, validation.Required, validation.Min(1)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(32)),
		validation.Field(&c.AssetKind, validation.In("image", "video")),
	)
}

type MediaConfig struct {
	FFmpegPath  string  `yaml:"ffmpeg"`
	FFprobePath string  `yaml:"ffprobe"`
	NoiseDB     float64 `yaml:"noise_db"`
}

func NewDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: "text",
		},
		Project: ProjectConfig{
			DataDir: "./data/projects",
		},
		LLM: LLMConfig{
			Timeout:  120 * time.Second,
			Attempts: 2,
		},
		Cuts: CutsConfig{
			Mode:              ModeHybrid,
			FallbackPolicy:    "heuristic",
			FPS:               30,
			SourceRef:         "source-video",
			MinFingerprintLen: 14,
		},
		Overlays: OverlaysConfig{
			Mode:             ModeHybrid,
			MaxChunkDuration: 45 * time.Second,
			MaxSentences:     6,
			Concurrency:      4,
			AssetKind:        "image",
		},
		Media: MediaConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			NoiseDB:     -35,
		},
	}
}
