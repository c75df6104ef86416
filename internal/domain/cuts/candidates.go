package cuts

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/roughcut/internal/domain/ranges"
	"github.com/forPelevin/roughcut/internal/types"
)

// Reason tags attached to heuristic candidates.
const (
	ReasonIntroSilence = "intro-silence"
	ReasonFillerWord   = "filler-word"
	ReasonLongPause    = "long-pause"
	ReasonFillerPause  = "filler-pause"
	ReasonSilence      = "silence"
	ReasonRepetition   = "repetition"
)

// Options tunes the heuristic rules. Zero fields take the defaults.
type Options struct {
	IntroWindow       time.Duration
	FillerPad         time.Duration
	MinGap            time.Duration
	GapWindow         time.Duration
	SilenceTrim       time.Duration
	MinSilenceCut     time.Duration
	MinRepetition     time.Duration
	FingerprintTokens int
	MinFingerprintLen int
}

func DefaultOptions() Options {
	return Options{
		IntroWindow:       time.Second,
		FillerPad:         120 * time.Millisecond,
		MinGap:            800 * time.Millisecond,
		GapWindow:         280 * time.Millisecond,
		SilenceTrim:       150 * time.Millisecond,
		MinSilenceCut:     800 * time.Millisecond,
		MinRepetition:     300 * time.Millisecond,
		FingerprintTokens: 8,
		MinFingerprintLen: 14,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.IntroWindow <= 0 {
		o.IntroWindow = d.IntroWindow
	}
	if o.FillerPad <= 0 {
		o.FillerPad = d.FillerPad
	}
	if o.MinGap <= 0 {
		o.MinGap = d.MinGap
	}
	if o.GapWindow <= 0 {
		o.GapWindow = d.GapWindow
	}
	if o.SilenceTrim <= 0 {
		o.SilenceTrim = d.SilenceTrim
	}
	if o.MinSilenceCut <= 0 {
		o.MinSilenceCut = d.MinSilenceCut
	}
	if o.MinRepetition <= 0 {
		o.MinRepetition = d.MinRepetition
	}
	if o.FingerprintTokens <= 0 {
		o.FingerprintTokens = d.FingerprintTokens
	}
	if o.MinFingerprintLen <= 0 {
		o.MinFingerprintLen = d.MinFingerprintLen
	}
	return o
}

var fillerWords = map[string]struct{}{
	"um": {}, "uh": {}, "erm": {}, "hmm": {}, "like": {},
}

// Candidates runs every rule and returns the raw, unmerged candidates in
// rule order.
func Candidates(tr types.Transcript, durationUs int64, silences []types.TimeRange, opts Options) []types.CutRange {
	opts = opts.withDefaults()
	var out []types.CutRange
	add := func(s, e int64, reason string, conf float64) {
		out = append(out, types.CutRange{StartUs: s, EndUs: e, Reason: reason, Confidence: conf})
	}

	if durationUs > (2 * time.Second).Microseconds() {
		add(0, opts.IntroWindow.Microseconds(), ReasonIntroSilence, 0.55)
	}

	pad := opts.FillerPad.Microseconds()
	for _, w := range tr.Words {
		if _, ok := fillerWords[normalizeToken(w.Text)]; !ok {
			continue
		}
		add(w.StartUs-pad, w.EndUs+pad, ReasonFillerWord, 0.72)
	}

	segs := sortedSegments(tr.Segments)
	half := opts.GapWindow.Microseconds() / 2
	for i := 0; i+1 < len(segs); i++ {
		gap := segs[i+1].StartUs - segs[i].EndUs
		if gap < opts.MinGap.Microseconds() {
			continue
		}
		mid := segs[i].EndUs + gap/2
		add(mid-half, mid+half, ReasonLongPause, 0.6)
	}

	if durationUs > (8 * time.Second).Microseconds() {
		mid := durationUs * 48 / 100
		add(mid-half, mid+half, ReasonFillerPause, 0.35)
	}

	trim := opts.SilenceTrim.Microseconds()
	for _, s := range silences {
		if s.Duration() <= opts.MinSilenceCut.Microseconds() {
			continue
		}
		st, en := s.StartUs+trim, s.EndUs-trim
		if en <= st {
			continue
		}
		add(st, en, ReasonSilence, 0.8)
	}

	seen := make(map[string]struct{}, len(segs))
	for _, s := range segs {
		fp := Fingerprint(s.Text, opts.FingerprintTokens)
		if len(fp) < opts.MinFingerprintLen {
			continue
		}
		if _, dup := seen[fp]; dup {
			if s.EndUs-s.StartUs >= opts.MinRepetition.Microseconds() {
				add(s.StartUs, s.EndUs, ReasonRepetition, 0.65)
			}
			continue
		}
		seen[fp] = struct{}{}
	}
	return out
}

// Plan returns the merged heuristic remove set together with the raw
// candidates, both clamped to [0, durationUs].
func Plan(tr types.Transcript, durationUs int64, silences []types.TimeRange, opts Options) (merged, raw []types.CutRange) {
	raw = Candidates(tr, durationUs, silences, opts)
	merged = ranges.MergeCuts(raw, durationUs)
	return merged, clampCuts(raw, durationUs)
}

// Fingerprint lowercases text, strips punctuation and keeps the first n tokens.
func Fingerprint(text string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	toks := strings.Fields(b.String())
	if len(toks) > n {
		toks = toks[:n]
	}
	return strings.Join(toks, " ")
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	trimRunes := `"'` + "`" + "[](){}.,!?;:-"
	return strings.Trim(s, trimRunes)
}

func sortedSegments(in []types.Segment) []types.Segment {
	out := make([]types.Segment, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartUs < out[j].StartUs })
	return out
}

func clampCuts(in []types.CutRange, durationUs int64) []types.CutRange {
	out := make([]types.CutRange, 0, len(in))
	for _, c := range in {
		c.StartUs = max(c.StartUs, 0)
		c.EndUs = min(c.EndUs, durationUs)
		if c.EndUs <= c.StartUs {
			continue
		}
		out = append(out, c)
	}
	return out
}
