package pipeline

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/config"
	"github.com/forPelevin/roughcut/internal/llm"
	"github.com/forPelevin/roughcut/internal/ports/adapters/claudecli"
	"github.com/forPelevin/roughcut/internal/ports/adapters/ollama"
	"github.com/forPelevin/roughcut/internal/ports/adapters/openaicompat"
	"github.com/forPelevin/roughcut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/roughcut/internal/types"
)

func testEnv(vars map[string]string, bins ...string) Env {
	return Env{
		LookPath: func(name string) (string, error) {
			for _, b := range bins {
				if b == name {
					return "/usr/local/bin/" + name, nil
				}
			}
			return "", errors.New("not found")
		},
		Getenv: func(k string) string { return vars[k] },
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Project.DataDir = t.TempDir()
	return cfg
}

func TestDeriveProjectID(t *testing.T) {
	got := DeriveProjectID("/tmp/My Cool.Video.mp4")
	if !strings.HasPrefix(got, "my-cool-video-") || len(got) != len("my-cool-video-")+6 {
		t.Fatalf("unexpected project id %q", got)
	}
	if got != DeriveProjectID("/tmp/My Cool.Video.mp4") {
		t.Fatalf("project id must be stable")
	}
	if DeriveProjectID("/a/clip.mp4") == DeriveProjectID("/b/clip.mp4") {
		t.Fatalf("different paths must not collide")
	}
	if got := DeriveProjectID("/tmp/Привет.mp4"); !strings.HasPrefix(got, "project-") {
		t.Fatalf("expected fallback name, got %q", got)
	}
}

func TestValidate_RejectsOpenRouterBaseURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.OpenRouterBaseURL = "http://evil.example.com/api"
	if _, err := New(cfg, nil, testEnv(nil)); !errors.Is(err, openrouter.ErrBaseURL) {
		t.Fatalf("expected base URL rejection, got %v", err)
	}
}

func TestNew_ProbesEnvironment(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.ClaudeBin = "claude-nightly"
	app, err := New(cfg, nil, testEnv(map[string]string{"GROQ_API_KEY": "gsk"}, "claude-nightly"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	caps := app.Runner.Capabilities()
	if caps.ClaudeCLIPath != "/usr/local/bin/claude-nightly" {
		t.Fatalf("claude bin override not honoured: %+v", caps)
	}
	if best := caps.DetectBest(); best.Provider != string(llm.ProviderGroq) {
		t.Fatalf("expected groq to win, got %+v", best)
	}
	if app.Assets != nil {
		t.Fatalf("no assets dir configured, provider must stay nil")
	}
}

func TestCompleters(t *testing.T) {
	build := Completers(config.NewDefaultConfig().LLM, &http.Client{})
	caps := llm.Capabilities{ClaudeCLIPath: "/bin/claude", Keys: map[llm.Provider]string{llm.ProviderOpenAI: "k"}}
	tests := []struct {
		p    llm.Provider
		want any
	}{
		{llm.ProviderOllama, &ollama.Adapter{}},
		{llm.ProviderClaudeCLI, &claudecli.Adapter{}},
		{llm.ProviderOpenAI, &openaicompat.Adapter{}},
		{llm.ProviderGroq, &openaicompat.Adapter{}},
		{llm.ProviderOpenRouter, &openrouter.Adapter{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.p), func(t *testing.T) {
			c, err := build(tt.p, caps)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			switch tt.want.(type) {
			case *ollama.Adapter:
				_, ok := c.(*ollama.Adapter)
				assertOK(t, ok, c)
			case *claudecli.Adapter:
				_, ok := c.(*claudecli.Adapter)
				assertOK(t, ok, c)
			case *openaicompat.Adapter:
				_, ok := c.(*openaicompat.Adapter)
				assertOK(t, ok, c)
			case *openrouter.Adapter:
				_, ok := c.(*openrouter.Adapter)
				assertOK(t, ok, c)
			}
		})
	}
	if _, err := build("skynet", caps); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func assertOK(t *testing.T, ok bool, got any) {
	t.Helper()
	if !ok {
		t.Fatalf("unexpected completer type %T", got)
	}
}

func TestApp_LLMConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider, cfg.LLM.Model = "openai", "gpt-4o"
	app, err := New(cfg, nil, testEnv(nil))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		provider, model string
		want            types.LLMConfig
	}{
		{"", "", types.LLMConfig{Provider: "openai", Model: "gpt-4o"}},
		{"", "gpt-4.1", types.LLMConfig{Provider: "openai", Model: "gpt-4.1"}},
		{"groq", "", types.LLMConfig{Provider: "groq"}},
		{"ollama", "qwen2.5", types.LLMConfig{Provider: "ollama", Model: "qwen2.5"}},
	}
	for _, tt := range tests {
		if got := app.LLMConfig(tt.provider, tt.model); got != tt.want {
			t.Fatalf("LLMConfig(%q, %q) = %+v, want %+v", tt.provider, tt.model, got, tt.want)
		}
	}
}

func TestApp_InputsFromDisk(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg, nil, testEnv(nil))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := app.Transcript(ctx, "demo", ""); !errors.Is(err, apperr.ErrInput) {
		t.Fatalf("missing transcript should be an input error, got %v", err)
	}
	trPath := filepath.Join(cfg.Project.DataDir, "demo", "transcript.json")
	if err := os.MkdirAll(filepath.Dir(trPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(trPath, []byte(`{"transcriptId":"t1","source":{"durationUs":9000000}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	tr, err := app.Transcript(ctx, "demo", "")
	if err != nil || tr.TranscriptID != "t1" {
		t.Fatalf("Transcript = %+v, %v", tr, err)
	}
	if d, err := app.Duration(ctx, 0, "", tr); err != nil || d != 9_000_000 {
		t.Fatalf("Duration = %d, %v", d, err)
	}

	logPath := filepath.Join(t.TempDir(), "silence.log")
	log := "[silencedetect @ 0x1] silence_start: 1.5\n[silencedetect @ 0x1] silence_end: 3 | silence_duration: 1.5\n"
	if err := os.WriteFile(logPath, []byte(log), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := app.Silences(ctx, logPath, "", 9_000_000)
	if err != nil || len(got) != 1 || got[0] != (types.TimeRange{StartUs: 1_500_000, EndUs: 3_000_000}) {
		t.Fatalf("Silences = %+v, %v", got, err)
	}

	entries, err := app.Catalog("")
	if err != nil || len(entries) == 0 {
		t.Fatalf("default catalog: %+v, %v", entries, err)
	}
}
