//go:build integration

package itest

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// probeDurationSeconds asks ffprobe (or $FFPROBE) for the container duration.
func probeDurationSeconds(path string) (float64, error) {
	bin := os.Getenv("FFPROBE")
	if bin == "" {
		bin = "ffprobe"
	}
	out, err := exec.Command(bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w\n%s", bin, path, err, out)
	}
	sec, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", out, err)
	}
	return sec, nil
}
