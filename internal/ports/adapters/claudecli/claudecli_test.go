package claudecli

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"

	"github.com/forPelevin/roughcut/internal/apperr"
)

type call struct {
	name  string
	args  []string
	stdin string
}

func fakeRun(stdout, stderr string, err error, got *call) RunFunc {
	return func(_ context.Context, name string, args []string, stdin string) ([]byte, []byte, error) {
		*got = call{name: name, args: args, stdin: stdin}
		return []byte(stdout), []byte(stderr), err
	}
}

// exitErr produces a real *exec.ExitError.
func exitErr(t *testing.T) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit 1").Run()
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		t.Skipf("sh unavailable: %v", err)
	}
	return err
}

func TestComplete_Success(t *testing.T) {
	var got call
	a := New("/opt/claude", fakeRun(`{"type":"result","subtype":"success","is_error":false,"result":"{\"removeRanges\":[]}"}`, "", nil, &got))
	out, err := a.Complete(context.Background(), "opus", "plan please")
	if err != nil || out != `{"removeRanges":[]}` {
		t.Fatalf("Complete = %q, %v", out, err)
	}
	wantArgs := []string{"-p", "--output-format", "json", "--model", "opus"}
	if got.name != "/opt/claude" || !reflect.DeepEqual(got.args, wantArgs) || got.stdin != "plan please" {
		t.Fatalf("unexpected invocation %+v", got)
	}
}

func TestComplete_EventArray(t *testing.T) {
	var got call
	stdout := `[{"type":"system","subtype":"init"},{"type":"result","subtype":"success","is_error":false,"result":"hello"}]`
	out, err := New("", fakeRun(stdout, "", nil, &got)).Complete(context.Background(), "sonnet", "x")
	if err != nil || out != "hello" || got.name != "claude" {
		t.Fatalf("Complete = %q, %v (%+v)", out, err, got)
	}
}

func TestComplete_Classification(t *testing.T) {
	ee := exitErr(t)
	tests := []struct {
		name   string
		stdout string
		stderr string
		err    error
		want   apperr.ProviderKind
	}{
		{
			name:   "unknown model in envelope",
			stdout: `{"type":"result","is_error":true,"result":"API Error: 404 {\"type\":\"error\",\"error\":{\"type\":\"not_found_error\",\"message\":\"model: claude-nope\"}}"}`,
			err:    ee,
			want:   apperr.KindModelUnavailable,
		},
		{
			name:   "unknown model on stderr",
			stderr: `API Error: 404 {"type":"error","error":{"type":"not_found_error","message":"model: claude-nope"}}`,
			err:    ee,
			want:   apperr.KindModelUnavailable,
		},
		{
			name:   "auth",
			stdout: `{"type":"result","is_error":true,"result":"API Error: 401 {\"type\":\"error\",\"error\":{\"type\":\"authentication_error\",\"message\":\"invalid x-api-key\"}}"}`,
			err:    ee,
			want:   apperr.KindAuth,
		},
		{
			name:   "plain failure",
			stderr: "something broke",
			err:    ee,
			want:   apperr.KindTransport,
		},
		{
			name:   "garbage stdout",
			stdout: "not json at all",
			want:   apperr.KindBadResponse,
		},
		{
			name:   "error flag without exit code",
			stdout: `{"type":"result","is_error":true,"result":"Credit balance is too low"}`,
			want:   apperr.KindTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got call
			_, err := New("", fakeRun(tt.stdout, tt.stderr, tt.err, &got)).Complete(context.Background(), "sonnet", "x")
			var pe *apperr.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected provider error, got %v", err)
			}
			if pe.Kind != tt.want {
				t.Fatalf("kind = %s, want %s (%v)", pe.Kind, tt.want, err)
			}
			if (tt.want == apperr.KindModelUnavailable) != apperr.IsModelUnavailable(err) {
				t.Fatalf("IsModelUnavailable mismatch for %v", err)
			}
		})
	}
}

func TestComplete_MissingBinary(t *testing.T) {
	var got call
	_, err := New("", fakeRun("", "", exec.ErrNotFound, &got)).Complete(context.Background(), "sonnet", "x")
	if !errors.Is(err, apperr.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
}

func TestComplete_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var got call
	_, err := New("", fakeRun("", "", errors.New("signal: killed"), &got)).Complete(ctx, "sonnet", "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
