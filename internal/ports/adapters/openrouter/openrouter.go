package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/ports/adapters/httpx"
)

const providerName = "openrouter"

type Adapter struct {
	key     string
	baseURL string
	referer string
	title   string
	client  *http.Client
}

var _ ports.Completer = (*Adapter)(nil)

type Options struct {
	BaseURL string
	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string
	Title   string
	Client  *http.Client
}

// New builds the adapter. The base URL is expected to have passed
// ValidateBaseURL already.
func New(apiKey string, opts Options) *Adapter {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Adapter{
		key:     apiKey,
		baseURL: normalizeBaseURL(opts.BaseURL),
		referer: opts.Referer,
		title:   opts.Title,
		client:  client,
	}
}

func (a *Adapter) Complete(ctx context.Context, model, prompt string) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + a.key}
	if a.referer != "" {
		headers["HTTP-Referer"] = a.referer
	}
	if a.title != "" {
		headers["X-Title"] = a.title
	}
	body, err := httpx.PostJSON(ctx, a.client, httpx.Call{
		Provider: providerName,
		Model:    model,
		URL:      a.baseURL + "/api/v1/chat/completions",
		Headers:  headers,
		Secret:   a.key,
		Payload: map[string]any{
			"model":  model,
			"stream": false,
			"messages": []map[string]any{
				{"role": "user", "content": prompt},
			},
		},
	})
	if err != nil {
		return "", err
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", httpx.BadResponse(providerName, model, fmt.Errorf("decode response: %w", err), body)
	}
	if len(raw.Choices) == 0 {
		return "", httpx.BadResponse(providerName, model, fmt.Errorf("no choices: %w", httpx.ErrEmptyContent), body)
	}
	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return "", httpx.BadResponse(providerName, model, err, body)
	}
	return content, nil
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "", httpx.ErrEmptyContent
		}
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", httpx.ErrEmptyContent
		}
		return s, nil
	default:
		return "", fmt.Errorf("unexpected content type %T", v)
	}
}
