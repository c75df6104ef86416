package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/roughcut/internal/domain/cuts"
	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/types"
)

// RunFunc runs a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Adapter struct {
	ffmpeg  string
	ffprobe string

	// NoiseDB and MinSilence configure the silencedetect filter.
	NoiseDB    float64
	MinSilence time.Duration
	Parse      cuts.SilenceParser

	run RunFunc
}

var _ ports.MediaProbe = (*Adapter)(nil)

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{
		ffmpeg:     ffmpegPath,
		ffprobe:    ffprobePath,
		NoiseDB:    -35,
		MinSilence: cuts.MinSilence,
		Parse:      cuts.ParseSilenceLog,
		run:        combinedOutput,
	}
}

// WithRunner swaps the command runner.
func (a *Adapter) WithRunner(run RunFunc) *Adapter {
	a.run = run
	return a
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (a *Adapter) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	b, err := a.run(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

// DetectSilence runs the silencedetect audio filter over path and parses its
// log into ranges.
func (a *Adapter) DetectSilence(ctx context.Context, path string) ([]types.TimeRange, error) {
	dur, err := a.ProbeDuration(ctx, path)
	if err != nil {
		return nil, err
	}
	filter := fmt.Sprintf("silencedetect=noise=%sdB:d=%s",
		strconv.FormatFloat(a.NoiseDB, 'f', -1, 64),
		fmtSeconds(a.MinSilence),
	)
	b, err := a.run(ctx, a.ffmpeg,
		"-hide_banner",
		"-nostats",
		"-i", path,
		"-af", filter,
		"-f", "null",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg silencedetect: %w\n%s", err, tail(string(b), 2000))
	}
	return a.Parse(string(b), dur.Microseconds()), nil
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
