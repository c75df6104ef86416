// Package httpx holds the plumbing shared by the HTTP provider adapters.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/forPelevin/roughcut/internal/apperr"
)

// MaxDetail caps the response body kept on a ProviderError.
const MaxDetail = 400

// Call describes one JSON POST to a provider.
type Call struct {
	Provider string
	Model    string
	URL      string
	Headers  map[string]string
	Payload  any
	// Secret is redacted from any body attached to an error.
	Secret string
}

// PostJSON sends c and returns the 2xx response body. Non-2xx responses become
// *apperr.ProviderError classified by status code.
func PostJSON(ctx context.Context, client *http.Client, c Call) ([]byte, error) {
	body, err := json.Marshal(c.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &apperr.ProviderError{Provider: c.Provider, Model: c.Model, Kind: apperr.KindTransport, Err: err}
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &apperr.ProviderError{Provider: c.Provider, Model: c.Model, Kind: apperr.KindTransport, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperr.ProviderError{
			Provider: c.Provider,
			Model:    c.Model,
			Kind:     ClassifyStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Detail:   Truncate(Redact(string(rb), c.Secret), MaxDetail),
		}
	}
	return rb, nil
}

// ClassifyStatus maps an HTTP status to a failure kind. 404 from a
// completion endpoint means the model is not served.
func ClassifyStatus(status int) apperr.ProviderKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusPaymentRequired:
		return apperr.KindAuth
	case status == http.StatusNotFound:
		return apperr.KindModelUnavailable
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return apperr.KindTransport
	default:
		return apperr.KindBadResponse
	}
}

// BadResponse reports a 2xx reply that could not be used.
func BadResponse(provider, model string, err error, body []byte) error {
	return &apperr.ProviderError{
		Provider: provider,
		Model:    model,
		Kind:     apperr.KindBadResponse,
		Err:      err,
		Detail:   Truncate(string(body), MaxDetail),
	}
}

// ErrEmptyContent is wrapped when a provider answers without text.
var ErrEmptyContent = errors.New("empty completion content")

func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

// Redact masks bearer tokens, authorization headers, api_key fields and the
// literal secret.
func Redact(s, secret string) string {
	if s == "" {
		return s
	}
	out := s
	if secret != "" {
		out = strings.ReplaceAll(out, secret, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
