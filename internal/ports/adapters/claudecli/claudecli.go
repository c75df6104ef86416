// Package claudecli drives the locally authenticated claude CLI as a
// completion backend.
package claudecli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/ports/adapters/httpx"
)

const providerName = "claude-cli"

// RunFunc executes name with args, feeding stdin. It must kill the process
// when ctx is done.
type RunFunc func(ctx context.Context, name string, args []string, stdin string) (stdout, stderr []byte, err error)

type Adapter struct {
	bin string
	run RunFunc
}

var _ ports.Completer = (*Adapter)(nil)

// New uses bin (default "claude") and run (default exec.CommandContext).
func New(bin string, run RunFunc) *Adapter {
	if strings.TrimSpace(bin) == "" {
		bin = "claude"
	}
	if run == nil {
		run = execRun
	}
	return &Adapter{bin: bin, run: run}
}

func execRun(ctx context.Context, name string, args []string, stdin string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

func (a *Adapter) Complete(ctx context.Context, model, prompt string) (string, error) {
	args := []string{"-p", "--output-format", "json", "--model", model}
	stdout, stderr, err := a.run(ctx, a.bin, args, prompt)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	env, envErr := parseEnvelope(stdout)
	if envErr == nil && !env.IsError && err == nil {
		if strings.TrimSpace(env.Result) == "" {
			return "", &apperr.ProviderError{Provider: providerName, Model: model, Kind: apperr.KindBadResponse, Err: httpx.ErrEmptyContent}
		}
		return env.Result, nil
	}

	detail := strings.TrimSpace(string(stderr))
	if envErr == nil && env.Result != "" {
		detail = strings.TrimSpace(env.Result + "\n" + detail)
	}
	pe := &apperr.ProviderError{
		Provider: providerName,
		Model:    model,
		Kind:     apperr.KindTransport,
		Detail:   httpx.Truncate(detail, httpx.MaxDetail),
		Err:      err,
	}
	var exitErr *exec.ExitError
	switch {
	case envErr != nil && err == nil:
		pe.Kind = apperr.KindBadResponse
		pe.Err = envErr
	case err != nil && !errors.As(err, &exitErr):
		// binary missing or not executable
		pe.Err = fmt.Errorf("%w: %v", apperr.ErrProviderUnavailable, err)
	default:
		pe.Kind, pe.Status = classify(env, stdout, stderr)
	}
	return "", pe
}

type envelope struct {
	IsError bool
	Subtype string
	Result  string
}

// parseEnvelope reads the --output-format json result object.
func parseEnvelope(stdout []byte) (envelope, error) {
	s := strings.TrimSpace(string(stdout))
	if s == "" {
		return envelope{}, errors.New("empty CLI output")
	}
	if !gjson.Valid(s) {
		return envelope{}, fmt.Errorf("CLI output is not a JSON envelope: %q", httpx.Truncate(s, 120))
	}
	root := gjson.Parse(s)
	// Newer CLI builds may stream an array of events; the result is the last one.
	if root.IsArray() {
		arr := root.Array()
		root = gjson.Result{}
		for i := len(arr) - 1; i >= 0; i-- {
			if arr[i].Get("type").String() == "result" {
				root = arr[i]
				break
			}
		}
		if !root.Exists() {
			return envelope{}, errors.New("CLI output has no result event")
		}
	}
	if !root.Get("result").Exists() && !root.Get("is_error").Exists() {
		return envelope{}, errors.New("CLI output has no result field")
	}
	return envelope{
		IsError: root.Get("is_error").Bool(),
		Subtype: root.Get("subtype").String(),
		Result:  root.Get("result").String(),
	}, nil
}

// classify reads the API error embedded in the CLI output. The CLI relays the
// upstream error object, e.g. `API Error: 404 {"type":"error","error":{"type":"not_found_error",...}}`.
func classify(env envelope, stdout, stderr []byte) (apperr.ProviderKind, int) {
	for _, src := range []string{env.Result, string(stderr), string(stdout)} {
		obj, ok := embeddedError(src)
		if !ok {
			continue
		}
		switch obj.Get("error.type").String() {
		case "not_found_error":
			return apperr.KindModelUnavailable, 404
		case "authentication_error", "permission_error":
			return apperr.KindAuth, 401
		case "overloaded_error", "rate_limit_error", "api_error":
			return apperr.KindTransport, 0
		case "invalid_request_error":
			return apperr.KindBadResponse, 400
		}
	}
	return apperr.KindTransport, 0
}

func embeddedError(s string) (gjson.Result, bool) {
	for i := strings.IndexByte(s, '{'); i >= 0; {
		r := gjson.Parse(s[i:])
		if r.IsObject() && r.Get("error.type").Exists() {
			return r, true
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return gjson.Result{}, false
}
