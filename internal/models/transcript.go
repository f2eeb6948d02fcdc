// Package models defines the transcript data structures shared by the editor
// session, the persistence bridge and the page-facing event stream.
package models

import "strings"

// AlternateSeparator marks an alternate-text boundary inside a word.
const AlternateSeparator = "|"

// WordAlignment is one recognized word within a segment.
// Start is relative to the containing segment's Start.
type WordAlignment struct {
	Word       string  `json:"word" validate:"required"`
	Start      float64 `json:"start" validate:"gte=0"`
	Length     float64 `json:"length" validate:"gt=0"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Speaker    string  `json:"speaker,omitempty"`
}

// End returns the relative end time of the word.
func (w WordAlignment) End() float64 {
	return w.Start + w.Length
}

// DisplayText returns the word with alternate-text separators removed.
func (w WordAlignment) DisplayText() string {
	return strings.ReplaceAll(w.Word, AlternateSeparator, "")
}

// Segment is a contiguous transcript unit with its own time window and text.
type Segment struct {
	ID                string          `json:"id" validate:"required"`
	Start             float64         `json:"start" validate:"gte=0"`
	Length            float64         `json:"length" validate:"gt=0"`
	Transcript        string          `json:"transcript"`
	DecoderTranscript string          `json:"decoderTranscript"`
	WordAlignments    []WordAlignment `json:"wordAlignments" validate:"dive"`
	Speaker           string          `json:"speaker,omitempty"`
	HighRisk          bool            `json:"highRisk"`
}

// End returns the absolute end time of the segment.
func (s Segment) End() float64 {
	return s.Start + s.Length
}

// Clone returns a copy of the segment that shares no word storage with s.
func (s Segment) Clone() Segment {
	c := s
	if s.WordAlignments != nil {
		c.WordAlignments = make([]WordAlignment, len(s.WordAlignments))
		copy(c.WordAlignments, s.WordAlignments)
	}
	return c
}

// BuildTranscript joins the display text of the word alignments.
func BuildTranscript(words []WordAlignment) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := w.DisplayText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Location points at a word: the current play or edit cursor.
type Location struct {
	SegmentIndex int `json:"segmentIndex"`
	WordIndex    int `json:"wordIndex"`
}

// TextLocation is a Location plus the caret offset inside the word.
type TextLocation struct {
	SegmentIndex int `json:"segmentIndex"`
	WordIndex    int `json:"wordIndex"`
	Offset       int `json:"offset"`
}

// Location drops the caret offset.
func (l TextLocation) Location() Location {
	return Location{SegmentIndex: l.SegmentIndex, WordIndex: l.WordIndex}
}

// TimeWindow is an absolute [Start, End] window in seconds.
type TimeWindow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// HighlightPayload describes what the player should mark for a word or segment.
type HighlightPayload struct {
	Text string     `json:"text"`
	Time TimeWindow `json:"time"`
}
