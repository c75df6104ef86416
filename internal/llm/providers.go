// Package llm selects and runs LLM providers.
package llm

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/forPelevin/roughcut/internal/types"
)

type Provider string

const (
	ProviderOllama     Provider = "ollama"
	ProviderClaudeCLI  Provider = "claude-cli"
	ProviderOpenAI     Provider = "openai"
	ProviderGroq       Provider = "groq"
	ProviderOpenRouter Provider = "openrouter"
)

const (
	EnvProviderOverride = "ROUGHCUT_LLM_PROVIDER"
	EnvModelOverride    = "ROUGHCUT_LLM_MODEL"

	ClaudeBinary = "claude"
)

// Providers lists every known provider.
var Providers = []Provider{ProviderOpenAI, ProviderOpenRouter, ProviderGroq, ProviderClaudeCLI, ProviderOllama}

// cloudPriority is the order cloud providers are considered by DetectBest.
var cloudPriority = []Provider{ProviderOpenAI, ProviderOpenRouter, ProviderGroq}

// EnvKeys maps cloud providers to their credential variable.
var EnvKeys = map[Provider]string{
	ProviderOpenAI:     "OPENAI_API_KEY",
	ProviderGroq:       "GROQ_API_KEY",
	ProviderOpenRouter: "OPENROUTER_API_KEY",
}

var DefaultModels = map[Provider]string{
	ProviderOllama:     "llama3.1",
	ProviderClaudeCLI:  "sonnet",
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderGroq:       "llama-3.3-70b-versatile",
	ProviderOpenRouter: "anthropic/claude-3.5-sonnet",
}

// ClaudeModelChain is the curated fallback order for the CLI provider.
var ClaudeModelChain = []string{"sonnet", "opus", "haiku"}

// ParseProvider accepts a provider name, case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown llm provider %q", s)
}

// DefaultModel returns the default model for p.
func DefaultModel(p Provider) string { return DefaultModels[p] }

// Capabilities is the result of one availability probe.
type Capabilities struct {
	ClaudeCLIPath string
	Keys          map[Provider]string
	Override      types.LLMConfig
}

// Probe inspects the environment. lookPath and getenv default to
// exec.LookPath and os.Getenv.
func Probe(lookPath func(string) (string, error), getenv func(string) string) Capabilities {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	c := Capabilities{Keys: map[Provider]string{}}
	if p, err := lookPath(ClaudeBinary); err == nil {
		c.ClaudeCLIPath = p
	}
	for p, env := range EnvKeys {
		if v := strings.TrimSpace(getenv(env)); v != "" {
			c.Keys[p] = v
		}
	}
	c.Override = types.LLMConfig{
		Provider: strings.TrimSpace(getenv(EnvProviderOverride)),
		Model:    strings.TrimSpace(getenv(EnvModelOverride)),
	}
	return c
}

// IsAvailable: ollama always, claude-cli when the binary was found, cloud
// providers when their key is set.
func (c Capabilities) IsAvailable(p Provider) bool {
	switch p {
	case ProviderOllama:
		return true
	case ProviderClaudeCLI:
		return c.ClaudeCLIPath != ""
	default:
		return c.Keys[p] != ""
	}
}

// Key returns the credential for a cloud provider.
func (c Capabilities) Key(p Provider) string { return c.Keys[p] }

// DetectBest picks a provider: the explicit override wins, then cloud
// providers with a key, then the CLI, then ollama.
func (c Capabilities) DetectBest() types.LLMConfig {
	if c.Override.Provider != "" {
		if p, err := ParseProvider(c.Override.Provider); err == nil {
			model := c.Override.Model
			if model == "" {
				model = DefaultModel(p)
			}
			return types.LLMConfig{Provider: string(p), Model: model}
		}
	}
	pick := func(p Provider) types.LLMConfig {
		model := DefaultModel(p)
		if c.Override.Model != "" {
			model = c.Override.Model
		}
		return types.LLMConfig{Provider: string(p), Model: model}
	}
	for _, p := range cloudPriority {
		if c.IsAvailable(p) {
			return pick(p)
		}
	}
	if c.IsAvailable(ProviderClaudeCLI) {
		return pick(ProviderClaudeCLI)
	}
	return pick(ProviderOllama)
}
