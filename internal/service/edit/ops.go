// Package edit implements the segment edit operations of the transcript
// editor. Every operation is a pure transform over one transcript version: it
// validates locally, builds the new version and returns the reversible delta.
// Nothing here talks to the backing store.
package edit

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/service/transcript"
)

var (
	ErrInvalidSplitPoint = errors.New("invalid split point")
	ErrNotAdjacent       = errors.New("segments are not adjacent")
	ErrMergeUnavailable  = errors.New("merge needs at least two segments")
	ErrInvalidTime       = errors.New("invalid segment time")
	ErrEmptyWord         = errors.New("word text is empty")
	ErrInvalidSpeaker    = errors.New("invalid speaker")
	ErrNoChange          = errors.New("edit changes nothing")
)

// LocalIDPrefix marks ids of segments the backing store has not assigned yet.
const LocalIDPrefix = "local-"

// NewLocalID returns an id for a segment created locally.
var NewLocalID = func() string {
	return LocalIDPrefix + uuid.NewString()
}

// ValidationError reports an edit that violates a model invariant. It is
// raised before any network call.
type ValidationError struct {
	EditType models.EditType
	Err      error
	Detail   string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s rejected: %v", e.EditType, e.Err)
	}
	return fmt.Sprintf("%s rejected: %v: %s", e.EditType, e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(t models.EditType, err error, format string, args ...any) error {
	return &ValidationError{EditType: t, Err: err, Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Result is a successful edit: the new version and the delta that produced it.
type Result struct {
	Transcript *transcript.Transcript
	Delta      models.RevertData
	base       *transcript.Transcript
}

// Segment returns the first segment produced by the edit.
func (r Result) Segment() models.Segment {
	if len(r.Delta.After) == 0 {
		return models.Segment{}
	}
	return r.Delta.After[0]
}

// WithSegments rebuilds the result around segments returned by the backing
// store in place of the locally computed ones, keeping the Before snapshot.
func (r Result) WithSegments(after []models.Segment) (Result, error) {
	if r.base == nil {
		return Result{}, errors.New("result has no base version")
	}
	if len(after) != len(r.Delta.After) {
		return Result{}, fmt.Errorf("expected %d segments, got %d", len(r.Delta.After), len(after))
	}
	for _, s := range after {
		if err := transcript.ValidateSegment(s); err != nil {
			return Result{}, fmt.Errorf("segment %s: %w", s.ID, err)
		}
	}
	delta := r.Delta
	delta.After = cloneAll(after)
	doc, err := r.base.Splice(delta.SegmentIndex, len(delta.Before), delta.After...)
	if err != nil {
		return Result{}, err
	}
	return Result{Transcript: doc, Delta: delta, base: r.base}, nil
}

func newResult(base *transcript.Transcript, t models.EditType, index int, before, after []models.Segment, loc models.TextLocation) (Result, error) {
	doc, err := base.Splice(index, len(before), after...)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Transcript: doc,
		Delta: models.RevertData{
			EditType:     t,
			SegmentIndex: index,
			Before:       cloneAll(before),
			After:        cloneAll(after),
			TextLocation: loc,
		},
		base: base,
	}, nil
}

func cloneAll(segs []models.Segment) []models.Segment {
	out := make([]models.Segment, len(segs))
	for i, s := range segs {
		out[i] = s.Clone()
	}
	return out
}

// roundTime trims float noise from derived times to microseconds.
func roundTime(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

func segmentAt(doc *transcript.Transcript, t models.EditType, i int) (models.Segment, error) {
	seg, err := doc.Get(i)
	if err != nil {
		return models.Segment{}, &ValidationError{EditType: t, Err: err}
	}
	return seg, nil
}

// EditWordText replaces the text of one word and rebuilds the segment transcript.
func EditWordText(doc *transcript.Transcript, loc models.TextLocation, text string) (Result, error) {
	word, err := doc.Word(loc.Location())
	if err != nil {
		return Result{}, &ValidationError{EditType: models.EditText, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, invalid(models.EditText, ErrEmptyWord, "segment %d word %d", loc.SegmentIndex, loc.WordIndex)
	}
	if text == word.Word {
		return Result{}, ErrNoChange
	}

	before, _ := doc.Get(loc.SegmentIndex)
	after := before.Clone()
	after.WordAlignments[loc.WordIndex].Word = text
	after.Transcript = models.BuildTranscript(after.WordAlignments)

	return newResult(doc, models.EditText, loc.SegmentIndex, []models.Segment{before}, []models.Segment{after}, loc)
}

// UpdateSegmentTime rewrites start and length of one segment. The new window
// must be positive, must not overlap either neighbour and must still contain
// every word.
func UpdateSegmentTime(doc *transcript.Transcript, i int, start, length float64) (Result, error) {
	before, err := segmentAt(doc, models.EditTime, i)
	if err != nil {
		return Result{}, err
	}
	if !(length > 0) {
		return Result{}, invalid(models.EditTime, ErrInvalidTime, "length %v must be > 0", length)
	}
	if start < 0 {
		return Result{}, invalid(models.EditTime, ErrInvalidTime, "start %v must be >= 0", start)
	}
	if i > 0 {
		prev, _ := doc.Get(i - 1)
		if prev.End() > start+transcript.Epsilon {
			return Result{}, invalid(models.EditTime, ErrInvalidTime, "overlaps previous segment ending at %v", prev.End())
		}
	}
	if i+1 < doc.Len() {
		next, _ := doc.Get(i + 1)
		if start+length > next.Start+transcript.Epsilon {
			return Result{}, invalid(models.EditTime, ErrInvalidTime, "overlaps next segment starting at %v", next.Start)
		}
	}
	for wi, w := range before.WordAlignments {
		if w.End() > length+transcript.Epsilon {
			return Result{}, invalid(models.EditTime, ErrInvalidTime, "word %d ends at %v beyond length %v", wi, w.End(), length)
		}
	}
	if start == before.Start && length == before.Length {
		return Result{}, ErrNoChange
	}

	after := before.Clone()
	after.Start = start
	after.Length = length
	loc := models.TextLocation{SegmentIndex: i}
	return newResult(doc, models.EditTime, i, []models.Segment{before}, []models.Segment{after}, loc)
}

// SplitByWord splits segment i before word k. The first half keeps the
// segment id; the second half gets a local id until the backing store assigns one.
func SplitByWord(doc *transcript.Transcript, i, k int) (Result, error) {
	seg, err := segmentAt(doc, models.EditSplit, i)
	if err != nil {
		return Result{}, err
	}
	n := len(seg.WordAlignments)
	if n == 0 {
		return Result{}, invalid(models.EditSplit, ErrInvalidSplitPoint, "segment %d has no words", i)
	}
	if k <= 0 || k >= n {
		return Result{}, invalid(models.EditSplit, ErrInvalidSplitPoint, "word index %d outside 1..%d", k, n-1)
	}
	rel := seg.WordAlignments[k].Start
	if !(rel > 0) || !(rel < seg.Length) {
		return Result{}, invalid(models.EditSplit, ErrInvalidSplitPoint, "split time %v at segment boundary", rel)
	}
	if prev := seg.WordAlignments[k-1]; prev.End() > rel+transcript.Epsilon {
		return Result{}, invalid(models.EditSplit, ErrInvalidSplitPoint, "word %d overlaps split time %v", k-1, rel)
	}

	first, second := divide(seg, rel, seg.WordAlignments[:k], seg.WordAlignments[k:], k)
	loc := models.TextLocation{SegmentIndex: i, WordIndex: k}
	return newResult(doc, models.EditSplit, i, []models.Segment{seg}, []models.Segment{first, second}, loc)
}

// SplitByTime splits segment i at absolute time at. When at falls inside a
// word, that word is divided at charOffset and the two parts share its window.
func SplitByTime(doc *transcript.Transcript, i int, at float64, charOffset int) (Result, error) {
	seg, err := segmentAt(doc, models.EditSplit, i)
	if err != nil {
		return Result{}, err
	}
	if len(seg.WordAlignments) == 0 {
		return Result{}, invalid(models.EditSplit, ErrInvalidSplitPoint, "segment %d has no words", i)
	}
	rel := roundTime(at - seg.Start)
	if !(rel > 0) || !(rel < seg.Length) {
		return Result{}, invalid(models.EditSplit, ErrInvalidSplitPoint, "time %v outside segment (%v, %v)", at, seg.Start, seg.End())
	}

	var left, right []models.WordAlignment
	k := 0
	for _, w := range seg.WordAlignments {
		switch {
		case w.Start < rel && w.End() > rel+transcript.Epsilon:
			a, b, err := divideWord(w, rel, charOffset)
			if err != nil {
				return Result{}, err
			}
			left = append(left, a)
			right = append(right, b)
			k = len(left)
		case w.Start < rel:
			left = append(left, w)
			k = len(left)
		default:
			right = append(right, w)
		}
	}

	first, second := divide(seg, rel, left, right, k)
	loc := models.TextLocation{SegmentIndex: i, WordIndex: k, Offset: charOffset}
	return newResult(doc, models.EditSplit, i, []models.Segment{seg}, []models.Segment{first, second}, loc)
}

func divideWord(w models.WordAlignment, rel float64, charOffset int) (models.WordAlignment, models.WordAlignment, error) {
	n := utf8.RuneCountInString(w.Word)
	if charOffset <= 0 || charOffset >= n {
		return w, w, invalid(models.EditSplit, ErrInvalidSplitPoint, "character offset %d outside word %q", charOffset, w.Word)
	}
	runes := []rune(w.Word)
	a := w
	a.Word = string(runes[:charOffset])
	a.Length = roundTime(rel - w.Start)
	b := w
	b.Word = string(runes[charOffset:])
	b.Start = rel
	b.Length = w.Length - a.Length
	return a, b, nil
}

// divide builds the two halves of seg around the relative time rel. Words in
// right are still relative to seg and get rebased onto the second half.
func divide(seg models.Segment, rel float64, left, right []models.WordAlignment, k int) (models.Segment, models.Segment) {
	first := seg.Clone()
	first.Length = rel
	first.WordAlignments = append([]models.WordAlignment(nil), left...)
	first.Transcript = models.BuildTranscript(first.WordAlignments)

	second := seg.Clone()
	second.ID = NewLocalID()
	second.Start = roundTime(seg.Start + rel)
	second.Length = roundTime(seg.Length - rel)
	second.WordAlignments = make([]models.WordAlignment, len(right))
	for j, w := range right {
		w.Start = roundTime(w.Start - rel)
		second.WordAlignments[j] = w
	}
	second.Transcript = models.BuildTranscript(second.WordAlignments)

	first.DecoderTranscript, second.DecoderTranscript = splitFields(seg.DecoderTranscript, k)
	return first, second
}

func splitFields(s string, k int) (string, string) {
	fields := strings.Fields(s)
	if k >= len(fields) {
		return s, ""
	}
	return strings.Join(fields[:k], " "), strings.Join(fields[k:], " ")
}

// Merge joins two index-adjacent segments into one spanning both. The merged
// segment keeps the first segment's id.
func Merge(doc *transcript.Transcript, i, j int) (Result, error) {
	if doc.Len() < 2 {
		return Result{}, invalid(models.EditMerge, ErrMergeUnavailable, "%d segments", doc.Len())
	}
	if j < i {
		i, j = j, i
	}
	if j != i+1 {
		return Result{}, invalid(models.EditMerge, ErrNotAdjacent, "segments %d and %d", i, j)
	}
	a, err := segmentAt(doc, models.EditMerge, i)
	if err != nil {
		return Result{}, err
	}
	b, err := segmentAt(doc, models.EditMerge, j)
	if err != nil {
		return Result{}, err
	}

	offset := b.Start - a.Start
	merged := a.Clone()
	merged.Length = roundTime(b.End() - a.Start)
	merged.WordAlignments = make([]models.WordAlignment, 0, len(a.WordAlignments)+len(b.WordAlignments))
	merged.WordAlignments = append(merged.WordAlignments, a.WordAlignments...)
	for _, w := range b.WordAlignments {
		w.Start = roundTime(w.Start + offset)
		merged.WordAlignments = append(merged.WordAlignments, w)
	}
	merged.Transcript = joinText(a.Transcript, b.Transcript)
	merged.DecoderTranscript = joinText(a.DecoderTranscript, b.DecoderTranscript)
	if a.Speaker != b.Speaker {
		merged.Speaker = ""
	}
	merged.HighRisk = a.HighRisk || b.HighRisk

	loc := models.TextLocation{SegmentIndex: i, WordIndex: len(a.WordAlignments)}
	return newResult(doc, models.EditMerge, i, []models.Segment{a, b}, []models.Segment{merged}, loc)
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// AssignSpeaker sets speaker on the given words of segment i, or on every
// word and the segment itself when words is empty.
func AssignSpeaker(doc *transcript.Transcript, i int, speaker string, words []int) (Result, error) {
	before, err := segmentAt(doc, models.EditSpeaker, i)
	if err != nil {
		return Result{}, err
	}
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return Result{}, invalid(models.EditSpeaker, ErrInvalidSpeaker, "speaker is empty")
	}

	after := before.Clone()
	changed := false
	if len(words) == 0 {
		changed = after.Speaker != speaker
		after.Speaker = speaker
		for wi := range after.WordAlignments {
			changed = changed || after.WordAlignments[wi].Speaker != speaker
			after.WordAlignments[wi].Speaker = speaker
		}
	} else {
		for _, wi := range words {
			if wi < 0 || wi >= len(after.WordAlignments) {
				return Result{}, invalid(models.EditSpeaker, transcript.ErrIndexOutOfRange, "word %d", wi)
			}
			changed = changed || after.WordAlignments[wi].Speaker != speaker
			after.WordAlignments[wi].Speaker = speaker
		}
	}
	if !changed {
		return Result{}, ErrNoChange
	}

	loc := models.TextLocation{SegmentIndex: i}
	if len(words) > 0 {
		loc.WordIndex = words[0]
	}
	return newResult(doc, models.EditSpeaker, i, []models.Segment{before}, []models.Segment{after}, loc)
}

// ClearHighRisk removes the high-risk flag from segment i.
func ClearHighRisk(doc *transcript.Transcript, i int) (Result, error) {
	before, err := segmentAt(doc, models.EditHighRisk, i)
	if err != nil {
		return Result{}, err
	}
	if !before.HighRisk {
		return Result{}, ErrNoChange
	}
	after := before.Clone()
	after.HighRisk = false
	loc := models.TextLocation{SegmentIndex: i}
	return newResult(doc, models.EditHighRisk, i, []models.Segment{before}, []models.Segment{after}, loc)
}
