package audio

import (
	"fmt"
	"sort"

	"github.com/dubsync/dubsync-be/internal/dubjob"
)

// Segment is one user-recorded dub line positioned on the same absolute
// timeline as the background and original-vocal tracks (clip start offset
// already subtracted by the caller).
type Segment struct {
	Start float64
	End   float64
	Audio *Clip
}

// Mix builds the final dub track:
//
//  1. the canvas starts as a copy of the background track;
//  2. each segment's interval is erased and the user take overlaid, so the
//     take fully replaces whatever the base had there;
//  3. the gaps between segments (and the tail after the last one) are filled
//     with the matching slices of the original vocal, reinstating the
//     counterpart's voice between the user's lines.
//
// With zero segments the whole original vocal lands on the background
// unchanged. Overlapping segments are rejected; for segments that merely
// touch, the later overlay wins on the shared boundary sample.
func Mix(background, vocal *Clip, segments []Segment) (*Clip, error) {
	if background.SampleRate != vocal.SampleRate {
		return nil, fmt.Errorf("sample rate mismatch: background %d Hz, vocal %d Hz",
			background.SampleRate, vocal.SampleRate)
	}

	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i, seg := range sorted {
		if seg.End < seg.Start {
			return nil, fmt.Errorf("segment %d ends (%.3fs) before it starts (%.3fs)", i, seg.End, seg.Start)
		}
		if i > 0 && seg.Start < sorted[i-1].End {
			return nil, fmt.Errorf("%w: [%.3f, %.3f] and [%.3f, %.3f]",
				dubjob.ErrOverlappingSegments,
				sorted[i-1].Start, sorted[i-1].End, seg.Start, seg.End)
		}
	}

	canvas := background.Clone()

	// User takes replace the base at their intervals.
	for _, seg := range sorted {
		canvas.Erase(seg.Start, seg.End)
		if err := canvas.Overlay(seg.Audio, seg.Start); err != nil {
			return nil, err
		}
	}

	// Original vocal fills the space between takes.
	cursor := 0.0
	for _, seg := range sorted {
		if cursor < seg.Start {
			if err := canvas.Overlay(vocal.Slice(cursor, seg.Start), cursor); err != nil {
				return nil, err
			}
		}
		cursor = seg.End
	}

	if cursor < vocal.Duration() {
		if err := canvas.Overlay(vocal.Slice(cursor, vocal.Duration()), cursor); err != nil {
			return nil, err
		}
	}

	return canvas, nil
}
