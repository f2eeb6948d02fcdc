package transcript

import (
	"fmt"
	"unicode/utf8"

	"transcript-editor-service/internal/models"
)

// NextWord returns the word after loc, crossing into following segments and
// skipping segments without words.
func (t *Transcript) NextWord(loc models.Location) (models.Location, bool) {
	if loc.SegmentIndex < 0 || loc.SegmentIndex >= t.Len() {
		return loc, false
	}
	if loc.WordIndex+1 < len(t.segments[loc.SegmentIndex].WordAlignments) {
		return models.Location{SegmentIndex: loc.SegmentIndex, WordIndex: loc.WordIndex + 1}, true
	}
	for i := loc.SegmentIndex + 1; i < t.Len(); i++ {
		if len(t.segments[i].WordAlignments) > 0 {
			return models.Location{SegmentIndex: i, WordIndex: 0}, true
		}
	}
	return loc, false
}

// PrevWord returns the word before loc, crossing into preceding segments.
func (t *Transcript) PrevWord(loc models.Location) (models.Location, bool) {
	if loc.SegmentIndex < 0 || loc.SegmentIndex >= t.Len() {
		return loc, false
	}
	if loc.WordIndex > 0 {
		return models.Location{SegmentIndex: loc.SegmentIndex, WordIndex: loc.WordIndex - 1}, true
	}
	for i := loc.SegmentIndex - 1; i >= 0; i-- {
		if last, ok := t.LastWordIndex(i); ok {
			return models.Location{SegmentIndex: i, WordIndex: last}, true
		}
	}
	return loc, false
}

// LastWordIndex returns the index of the last word in a segment.
func (t *Transcript) LastWordIndex(segmentIndex int) (int, bool) {
	if segmentIndex < 0 || segmentIndex >= t.Len() {
		return 0, false
	}
	n := len(t.segments[segmentIndex].WordAlignments)
	if n == 0 {
		return 0, false
	}
	return n - 1, true
}

// WordIndexAtOffset returns the word of a segment whose characters cover
// offset, counting in runes over the words joined by single spaces. Offsets
// past the end resolve to the last word. Used to keep the caret column when
// moving between segments.
func (t *Transcript) WordIndexAtOffset(segmentIndex, offset int) (int, error) {
	seg, err := t.Get(segmentIndex)
	if err != nil {
		return 0, err
	}
	if len(seg.WordAlignments) == 0 {
		return 0, fmt.Errorf("segment %d has no words: %w", segmentIndex, ErrIndexOutOfRange)
	}
	if offset < 0 {
		offset = 0
	}
	pos := 0
	for i, w := range seg.WordAlignments {
		end := pos + utf8.RuneCountInString(w.Word)
		if offset <= end {
			return i, nil
		}
		pos = end + 1
	}
	return len(seg.WordAlignments) - 1, nil
}

// LengthBefore returns the rune count of the words preceding wordIndex in a
// segment, including the joining spaces.
func (t *Transcript) LengthBefore(loc models.Location) int {
	if !t.ValidLocation(loc) {
		return 0
	}
	n := 0
	for _, w := range t.segments[loc.SegmentIndex].WordAlignments[:loc.WordIndex] {
		n += utf8.RuneCountInString(w.Word) + 1
	}
	return n
}
