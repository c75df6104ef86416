// Package ollama talks to a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/ports/adapters/httpx"
)

const (
	providerName   = "ollama"
	DefaultBaseURL = "http://127.0.0.1:11434"
)

type Adapter struct {
	baseURL string
	client  *http.Client
}

var _ ports.Completer = (*Adapter)(nil)

// New builds the adapter. Requests carry no timeout of their own; the caller's
// context bounds them.
func New(baseURL string, client *http.Client) *Adapter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Adapter{baseURL: baseURL, client: client}
}

func (a *Adapter) Complete(ctx context.Context, model, prompt string) (string, error) {
	body, err := httpx.PostJSON(ctx, a.client, httpx.Call{
		Provider: providerName,
		Model:    model,
		URL:      a.baseURL + "/api/generate",
		Payload: map[string]any{
			"model":  model,
			"prompt": prompt,
			"stream": false,
		},
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", httpx.BadResponse(providerName, model, fmt.Errorf("decode response: %w", err), body)
	}
	if out.Error != "" {
		return "", httpx.BadResponse(providerName, model, fmt.Errorf("server error: %s", out.Error), body)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", httpx.BadResponse(providerName, model, httpx.ErrEmptyContent, body)
	}
	return out.Response, nil
}
