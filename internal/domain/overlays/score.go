package overlays

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reFigure = regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\b`)
	reCue    = regexp.MustCompile(`(?i)\b(important|key|secret|mistake|never|always|here\s+is\s+why|remember|tip|warning)\b`)
	reHowTo  = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|finally|do\s+this)\b`)
	reStep   = regexp.MustCompile(`(?i)\bstep\s+\d+\b`)
)

// Signals are text cues that make a segment worth an overlay. Both values
// are in [0, 10].
type Signals struct {
	Info float64
	Hook float64
}

func (s Signals) Total() float64 { return s.Info + s.Hook }

// Score measures figures and how-to phrasing as Info, and emphasis words,
// step numbers and punctuation as Hook.
func Score(text string) Signals {
	t := strings.TrimSpace(text)
	if t == "" {
		return Signals{}
	}

	info := float64(len(reFigure.FindAllStringIndex(t, -1))) * 0.4
	if reHowTo.MatchString(t) {
		info += 1.2
	}
	// long segments make cramped cards
	info -= 0.0006 * float64(utf8.RuneCountInString(t))

	hook := float64(len(reCue.FindAllStringIndex(t, -1))) * 0.9
	hook += float64(len(reStep.FindAllStringIndex(t, -1))) * 0.4
	hook += float64(strings.Count(t, "?")) * 0.7
	hook += float64(strings.Count(t, "!")) * 0.3

	return Signals{Info: clamp(info, 0, 10), Hook: clamp(hook, 0, 10)}
}

// Confidence maps the text signals onto a placement confidence in [0.3, 0.9].
func Confidence(text string) float64 {
	return clamp(0.45+Score(text).Total()/20, 0.3, 0.9)
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
