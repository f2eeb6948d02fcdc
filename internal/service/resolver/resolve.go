// Package resolver maps a playback time to the segment and word being spoken.
package resolver

import (
	"sort"

	"transcript-editor-service/internal/models"
)

// Resolve returns the location of the word playing at time.
//
// The segment is the last one starting at or before time, so a time exactly on
// a boundary belongs to the segment that starts there. The word is chosen the
// same way using the time relative to the segment. Times before the first
// segment clamp to (0, 0); times after the last clamp to its last word. A time
// inside a gap, or inside a segment without words, resolves to the nearest
// preceding word, or the first following one when nothing precedes it. Only a
// transcript without any words yields the zero location with no word behind it.
func Resolve(time float64, segments []models.Segment) models.Location {
	if len(segments) == 0 {
		return models.Location{}
	}

	si := sort.Search(len(segments), func(i int) bool {
		return segments[i].Start > time
	}) - 1
	if si < 0 {
		return models.Location{}
	}

	seg := segments[si]
	if len(seg.WordAlignments) == 0 {
		return nearestWord(si, segments)
	}
	rel := time - seg.Start
	wi := sort.Search(len(seg.WordAlignments), func(i int) bool {
		return seg.WordAlignments[i].Start > rel
	}) - 1
	if wi < 0 {
		wi = 0
	}

	return models.Location{SegmentIndex: si, WordIndex: wi}
}

// nearestWord finds a word around the wordless segment si.
func nearestWord(si int, segments []models.Segment) models.Location {
	for i := si - 1; i >= 0; i-- {
		if n := len(segments[i].WordAlignments); n > 0 {
			return models.Location{SegmentIndex: i, WordIndex: n - 1}
		}
	}
	for i := si + 1; i < len(segments); i++ {
		if len(segments[i].WordAlignments) > 0 {
			return models.Location{SegmentIndex: i}
		}
	}
	return models.Location{}
}
