// Package overlays holds the deterministic parts of overlay planning:
// chunking, the fallback heuristic and post-processing of model output.
package overlays

import (
	"sort"
	"time"

	"github.com/forPelevin/roughcut/internal/types"
)

const (
	DefaultMaxChunkDuration = 45 * time.Second
	DefaultMaxSentences     = 6
)

// Chunk is a window of consecutive transcript segments planned as one unit.
type Chunk struct {
	Index    int
	StartUs  int64
	EndUs    int64
	Segments []types.Segment
}

// SplitChunks greedily groups segments (ordered by start) into chunks. A
// chunk closes once it holds maxSentences segments or spans at least
// maxChunkDurationUs; the trailing partial chunk is always emitted.
func SplitChunks(segments []types.Segment, maxChunkDurationUs int64, maxSentences int) []Chunk {
	if maxChunkDurationUs <= 0 {
		maxChunkDurationUs = DefaultMaxChunkDuration.Microseconds()
	}
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	segs := make([]types.Segment, 0, len(segments))
	for _, s := range segments {
		if s.EndUs > s.StartUs {
			segs = append(segs, s)
		}
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].StartUs < segs[j].StartUs })

	var (
		out []Chunk
		cur *Chunk
	)
	for _, s := range segs {
		if cur == nil {
			cur = &Chunk{Index: len(out), StartUs: s.StartUs, EndUs: s.EndUs}
		}
		cur.Segments = append(cur.Segments, s)
		cur.EndUs = max(cur.EndUs, s.EndUs)
		if len(cur.Segments) >= maxSentences || cur.EndUs-cur.StartUs >= maxChunkDurationUs {
			out = append(out, *cur)
			cur = nil
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// SegmentsIn returns the segments overlapping [startUs, endUs).
func SegmentsIn(segments []types.Segment, startUs, endUs int64) []types.Segment {
	var out []types.Segment
	for _, s := range segments {
		if s.EndUs > startUs && s.StartUs < endUs {
			out = append(out, s)
		}
	}
	return out
}
