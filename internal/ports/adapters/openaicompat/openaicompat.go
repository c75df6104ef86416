// Package openaicompat serves OpenAI and OpenAI-compatible chat APIs (Groq)
// through the official SDK.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/ports/adapters/httpx"
)

const GroqBaseURL = "https://api.groq.com/openai/v1"

type Adapter struct {
	name   string
	key    string
	client openai.Client
}

var _ ports.Completer = (*Adapter)(nil)

type Options struct {
	// BaseURL overrides the SDK default; empty means api.openai.com.
	BaseURL    string
	HTTPClient *http.Client
}

// New builds an adapter reported under name ("openai", "groq"). SDK retries
// are disabled; the runner owns timeouts and the call sites own retries.
func New(name, apiKey string, opts Options) *Adapter {
	ro := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(opts.BaseURL) != "" {
		ro = append(ro, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		ro = append(ro, option.WithHTTPClient(opts.HTTPClient))
	}
	return &Adapter{name: name, key: apiKey, client: openai.NewClient(ro...)}
}

// NewOpenAI targets api.openai.com.
func NewOpenAI(apiKey string) *Adapter { return New("openai", apiKey, Options{}) }

// NewGroq targets Groq's OpenAI-compatible endpoint.
func NewGroq(apiKey string) *Adapter { return New("groq", apiKey, Options{BaseURL: GroqBaseURL}) }

func (a *Adapter) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: model,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", a.classify(model, err)
	}
	if len(resp.Choices) == 0 {
		return "", &apperr.ProviderError{Provider: a.name, Model: model, Kind: apperr.KindBadResponse, Err: fmt.Errorf("no choices: %w", httpx.ErrEmptyContent)}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &apperr.ProviderError{Provider: a.name, Model: model, Kind: apperr.KindBadResponse, Err: httpx.ErrEmptyContent}
	}
	return content, nil
}

// classify maps SDK errors using the HTTP status and the API error code.
func (a *Adapter) classify(model string, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return &apperr.ProviderError{Provider: a.name, Model: model, Kind: apperr.KindTransport, Err: err}
	}
	kind := httpx.ClassifyStatus(apiErr.StatusCode)
	if apiErr.Code == "model_not_found" || apiErr.Code == "model_decommissioned" {
		kind = apperr.KindModelUnavailable
	}
	return &apperr.ProviderError{
		Provider: a.name,
		Model:    model,
		Kind:     kind,
		Status:   apiErr.StatusCode,
		Detail:   httpx.Truncate(httpx.Redact(apiErr.Message, a.key), httpx.MaxDetail),
	}
}
