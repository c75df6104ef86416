// Package timeline derives the gapless rough-cut timeline from a cut plan.
package timeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/roughcut/internal/domain/ranges"
	"github.com/forPelevin/roughcut/internal/types"
)

const (
	TrackVideoMain = "track-video-main"
	TrackCaptions  = "track-captions"

	StatusRoughCutReady = "ROUGH_CUT_READY"
	ClipTypeSource      = "source_clip"
	GeneratedBy         = "ai-rough-cut"

	DefaultFPS       = 30
	DefaultSourceRef = "source-video"
)

// Input describes one rough-cut build.
type Input struct {
	ProjectID    string
	DurationUs   int64
	FPS          int
	SourceRef    string
	RemoveRanges []types.TimeRange
	Now          time.Time
}

// BuildRoughCut normalizes the remove set, inverts it and lays one source clip
// per keep range back to back on the main video track.
func BuildRoughCut(in Input) types.Timeline {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	stamp := now.UTC().Format(time.RFC3339)
	sourceRef := in.SourceRef
	if sourceRef == "" {
		sourceRef = DefaultSourceRef
	}

	remove := ranges.Normalize(in.RemoveRanges, in.DurationUs)
	keep := ranges.Invert(remove, in.DurationUs)

	clips := make([]types.Clip, 0, len(keep))
	var cursor int64
	for i, k := range keep {
		d := k.Duration()
		clips = append(clips, types.Clip{
			ClipID:        fmt.Sprintf("clip-%d", i+1),
			TrackID:       TrackVideoMain,
			ClipType:      ClipTypeSource,
			StartUs:       cursor,
			EndUs:         cursor + d,
			SourceStartUs: k.StartUs,
			SourceEndUs:   k.EndUs,
			SourceRef:     sourceRef,
			Meta: map[string]any{
				"generatedBy":         GeneratedBy,
				"removeRangesApplied": remove,
			},
		})
		cursor += d
	}

	return types.Timeline{
		ID:         "timeline-" + uuid.NewString(),
		ProjectID:  in.ProjectID,
		Version:    1,
		Status:     StatusRoughCutReady,
		FPS:        max(in.FPS, 1),
		DurationUs: cursor,
		CreatedAt:  stamp,
		UpdatedAt:  stamp,
		Tracks: []types.Track{
			{ID: TrackVideoMain, Name: "Main Video", Kind: "video", Order: 0},
			{ID: TrackCaptions, Name: "Captions", Kind: "caption", Order: 1},
		},
		Clips: clips,
	}
}

// Touch applies save semantics: the version is bumped and updatedAt refreshed.
func Touch(t types.Timeline, now time.Time) types.Timeline {
	t.Version++
	t.UpdatedAt = now.UTC().Format(time.RFC3339)
	return t
}

// CheckContiguous reports the first clip that does not start where the
// previous one ended.
func CheckContiguous(t types.Timeline) error {
	var cursor int64
	for i, c := range t.Clips {
		if c.StartUs != cursor {
			return fmt.Errorf("clip %d (%s) starts at %d, want %d", i, c.ClipID, c.StartUs, cursor)
		}
		if c.EndUs <= c.StartUs {
			return fmt.Errorf("clip %d (%s) is empty", i, c.ClipID)
		}
		cursor = c.EndUs
	}
	if cursor != t.DurationUs {
		return fmt.Errorf("clips end at %d, timeline duration is %d", cursor, t.DurationUs)
	}
	return nil
}
