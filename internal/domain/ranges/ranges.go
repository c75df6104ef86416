package ranges

import (
	"sort"
	"strings"

	"github.com/forPelevin/roughcut/internal/types"
)

// Normalize clamps ranges to [0, durationUs], drops empty ones and merges
// overlapping or touching ranges. The result is sorted and non-overlapping.
func Normalize(in []types.TimeRange, durationUs int64) []types.TimeRange {
	rs := make([]types.TimeRange, 0, len(in))
	for _, r := range in {
		r.StartUs = clamp(r.StartUs, 0, durationUs)
		r.EndUs = clamp(r.EndUs, 0, durationUs)
		if r.EndUs <= r.StartUs {
			continue
		}
		rs = append(rs, r)
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].StartUs < rs[j].StartUs })

	out := make([]types.TimeRange, 0, len(rs))
	for _, r := range rs {
		if n := len(out); n > 0 && r.StartUs <= out[n-1].EndUs {
			if r.EndUs > out[n-1].EndUs {
				out[n-1].EndUs = r.EndUs
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// Invert returns the keep set for sorted, merged remove ranges within
// [0, durationUs].
func Invert(remove []types.TimeRange, durationUs int64) []types.TimeRange {
	if durationUs <= 0 {
		return nil
	}
	var keep []types.TimeRange
	var cursor int64
	for _, r := range remove {
		if r.StartUs > cursor {
			keep = append(keep, types.TimeRange{StartUs: cursor, EndUs: min(r.StartUs, durationUs)})
		}
		cursor = max(cursor, r.EndUs)
	}
	if cursor < durationUs {
		keep = append(keep, types.TimeRange{StartUs: cursor, EndUs: durationUs})
	}
	return keep
}

// MergeCuts is Normalize over cut ranges: merged ranges join their reason
// tags and keep the highest confidence.
func MergeCuts(in []types.CutRange, durationUs int64) []types.CutRange {
	cs := make([]types.CutRange, 0, len(in))
	for _, c := range in {
		c.StartUs = clamp(c.StartUs, 0, durationUs)
		c.EndUs = clamp(c.EndUs, 0, durationUs)
		if c.EndUs <= c.StartUs {
			continue
		}
		cs = append(cs, c)
	}
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].StartUs < cs[j].StartUs })

	out := make([]types.CutRange, 0, len(cs))
	for _, c := range cs {
		n := len(out)
		if n == 0 || c.StartUs > out[n-1].EndUs {
			c.Reason = joinReasons("", c.Reason)
			out = append(out, c)
			continue
		}
		last := &out[n-1]
		if c.EndUs > last.EndUs {
			last.EndUs = c.EndUs
		}
		if c.Confidence > last.Confidence {
			last.Confidence = c.Confidence
		}
		last.Reason = joinReasons(last.Reason, c.Reason)
	}
	return out
}

// TimeRanges drops the cut metadata.
func TimeRanges(cs []types.CutRange) []types.TimeRange {
	out := make([]types.TimeRange, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Range())
	}
	return out
}

// Total sums range durations.
func Total(rs []types.TimeRange) int64 {
	var sum int64
	for _, r := range rs {
		sum += r.Duration()
	}
	return sum
}

func joinReasons(have, add string) string {
	seen := map[string]bool{}
	var tags []string
	for _, s := range []string{have, add} {
		for _, t := range strings.Split(s, ",") {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			tags = append(tags, t)
		}
	}
	return strings.Join(tags, ",")
}

func clamp(v, lo, hi int64) int64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
