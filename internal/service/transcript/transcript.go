// Package transcript holds the ordered segment list of an editor session.
//
// A Transcript is immutable once built: Replace and Splice return a new
// version and leave the receiver untouched, so a reference held by an async
// callback keeps describing the version it was taken from.
package transcript

import (
	"errors"
	"fmt"
	"math"

	"transcript-editor-service/internal/models"
)

// Epsilon absorbs float noise when comparing time boundaries.
const Epsilon = 1e-6

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidSegment  = errors.New("invalid segment")
	ErrOverlap         = errors.New("segments overlap")
	ErrOutOfOrder      = errors.New("segments out of order")
)

// Transcript is one version of the segment list.
type Transcript struct {
	segments []models.Segment
}

// New builds a transcript from segments, checking ordering and per-segment invariants.
func New(segments []models.Segment) (*Transcript, error) {
	segs := make([]models.Segment, len(segments))
	for i, s := range segments {
		if err := ValidateSegment(s); err != nil {
			return nil, fmt.Errorf("segment %d (%s): %w", i, s.ID, err)
		}
		if i > 0 {
			prev := segments[i-1]
			if s.Start < prev.Start {
				return nil, fmt.Errorf("segment %d (%s): %w", i, s.ID, ErrOutOfOrder)
			}
			if prev.End() > s.Start+Epsilon {
				return nil, fmt.Errorf("segment %d (%s): %w", i, s.ID, ErrOverlap)
			}
		}
		segs[i] = s.Clone()
	}
	return &Transcript{segments: segs}, nil
}

// Empty returns a transcript with no segments.
func Empty() *Transcript {
	return &Transcript{}
}

// ValidateSegment checks a segment's own invariants: positive length and word
// windows ordered and inside [0, Length].
func ValidateSegment(s models.Segment) error {
	if !(s.Length > 0) {
		return fmt.Errorf("%w: length %v must be > 0", ErrInvalidSegment, s.Length)
	}
	if s.Start < 0 {
		return fmt.Errorf("%w: start %v must be >= 0", ErrInvalidSegment, s.Start)
	}
	for i, w := range s.WordAlignments {
		if !(w.Length > 0) {
			return fmt.Errorf("%w: word %d length %v must be > 0", ErrInvalidSegment, i, w.Length)
		}
		if w.Start < -Epsilon || w.End() > s.Length+Epsilon {
			return fmt.Errorf("%w: word %d window [%v, %v] outside [0, %v]",
				ErrInvalidSegment, i, w.Start, w.End(), s.Length)
		}
		if i > 0 && w.Start < s.WordAlignments[i-1].Start {
			return fmt.Errorf("%w: word %d out of order", ErrInvalidSegment, i)
		}
	}
	return nil
}

// Len returns the number of segments.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.segments)
}

// Segments returns the segment list of this version. Callers must not modify it.
func (t *Transcript) Segments() []models.Segment {
	if t == nil {
		return nil
	}
	return t.segments
}

// Get returns the segment at index i.
func (t *Transcript) Get(i int) (models.Segment, error) {
	if i < 0 || i >= t.Len() {
		return models.Segment{}, fmt.Errorf("segment %d of %d: %w", i, t.Len(), ErrIndexOutOfRange)
	}
	return t.segments[i], nil
}

// IndexOf returns the index of the segment with the given id, or -1.
func (t *Transcript) IndexOf(id string) int {
	for i, s := range t.Segments() {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Replace returns a new version with the segment at i replaced.
func (t *Transcript) Replace(i int, seg models.Segment) (*Transcript, error) {
	return t.Splice(i, 1, seg)
}

// Splice returns a new version with removeCount segments removed at i and
// segs inserted in their place. Only the outer slice is copied; untouched
// segments are shared with the receiver.
func (t *Transcript) Splice(i, removeCount int, segs ...models.Segment) (*Transcript, error) {
	n := t.Len()
	if i < 0 || i > n || removeCount < 0 || i+removeCount > n {
		return nil, fmt.Errorf("splice at %d removing %d of %d: %w", i, removeCount, n, ErrIndexOutOfRange)
	}
	out := make([]models.Segment, 0, n-removeCount+len(segs))
	out = append(out, t.segments[:i]...)
	for _, s := range segs {
		out = append(out, s.Clone())
	}
	out = append(out, t.segments[i+removeCount:]...)
	return &Transcript{segments: out}, nil
}

// Duration returns the end time of the last segment.
func (t *Transcript) Duration() float64 {
	if t.Len() == 0 {
		return 0
	}
	return t.segments[t.Len()-1].End()
}

// ValidLocation reports whether loc points at an existing word.
func (t *Transcript) ValidLocation(loc models.Location) bool {
	if loc.SegmentIndex < 0 || loc.SegmentIndex >= t.Len() {
		return false
	}
	words := t.segments[loc.SegmentIndex].WordAlignments
	return loc.WordIndex >= 0 && loc.WordIndex < len(words)
}

// Word returns the word alignment at loc.
func (t *Transcript) Word(loc models.Location) (models.WordAlignment, error) {
	if !t.ValidLocation(loc) {
		return models.WordAlignment{}, fmt.Errorf("word %d/%d: %w", loc.SegmentIndex, loc.WordIndex, ErrIndexOutOfRange)
	}
	return t.segments[loc.SegmentIndex].WordAlignments[loc.WordIndex], nil
}

// WordTime returns the absolute start of the word at loc rounded to two
// decimals, or 0 when loc is invalid.
func (t *Transcript) WordTime(loc models.Location) float64 {
	if !t.ValidLocation(loc) {
		return 0
	}
	seg := t.segments[loc.SegmentIndex]
	total := seg.Start + seg.WordAlignments[loc.WordIndex].Start
	return math.Round(total*100) / 100
}

// HasWords reports whether any segment has at least one word.
func (t *Transcript) HasWords() bool {
	for _, s := range t.Segments() {
		if len(s.WordAlignments) > 0 {
			return true
		}
	}
	return false
}
