package cuts

import (
	"bufio"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/roughcut/internal/types"
)

// MinSilence is the shortest detected silence kept by ParseSilenceLog.
const MinSilence = 220 * time.Millisecond

// SilenceParser turns the audio analysis output into silence ranges.
type SilenceParser func(log string, durationUs int64) []types.TimeRange

var _ SilenceParser = ParseSilenceLog

// ParseSilenceLog reads ffmpeg silencedetect output. silence_start and
// silence_end markers are paired in order; a trailing unterminated start runs
// to durationUs. Ranges shorter than MinSilence are dropped.
func ParseSilenceLog(log string, durationUs int64) []types.TimeRange {
	var (
		out     []types.TimeRange
		open    bool
		startUs int64
	)
	emit := func(s, e int64) {
		if durationUs > 0 && e > durationUs {
			e = durationUs
		}
		if e-s < MinSilence.Microseconds() {
			return
		}
		out = append(out, types.TimeRange{StartUs: s, EndUs: e})
	}

	sc := bufio.NewScanner(strings.NewReader(log))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if v, ok := markerValue(line, "silence_start:"); ok {
			open = true
			startUs = v
			continue
		}
		if v, ok := markerValue(line, "silence_end:"); ok && open {
			open = false
			emit(startUs, v)
		}
	}
	if open && durationUs > startUs {
		emit(startUs, durationUs)
	}
	return out
}

// markerValue parses the seconds value following marker, e.g.
// "[silencedetect @ 0x1] silence_end: 3.5 | silence_duration: 1.2".
func markerValue(line, marker string) (int64, bool) {
	i := strings.Index(line, marker)
	if i < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[i+len(marker):])
	if j := strings.IndexAny(rest, " |\t"); j >= 0 {
		rest = rest[:j]
	}
	sec, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	// silencedetect may report a slightly negative start for leading silence.
	if sec < 0 {
		sec = 0
	}
	return int64(math.Round(sec * 1e6)), true
}
