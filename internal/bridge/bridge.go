// Package bridge talks to the backing store that owns transcripts. The editor
// keeps no durable state of its own; every persisted change goes through a
// Bridge and every failure comes back as a Problem.
package bridge

import (
	"context"

	"transcript-editor-service/internal/models"
)

// Bridge is the persistence contract consumed by the editor session.
type Bridge interface {
	GetSegments(ctx context.Context, transcriptID string) ([]models.Segment, error)
	UpdateSegmentWords(ctx context.Context, transcriptID, segmentID string, words []models.WordAlignment) (models.Segment, error)
	UpdateSegmentTime(ctx context.Context, transcriptID, segmentID string, start, length float64) (models.Segment, error)
	SplitSegment(ctx context.Context, transcriptID, segmentID string, at SplitPoint) ([]models.Segment, error)
	MergeSegments(ctx context.Context, transcriptID, firstSegmentID, secondSegmentID string) (models.Segment, error)
	ConfirmTranscript(ctx context.Context, transcriptID string) error
}

// SplitPoint identifies where a segment is split: before a word index, or at
// an absolute time with a character offset into the word under it.
type SplitPoint struct {
	ByTime     bool
	WordIndex  int
	Time       float64
	CharOffset int
}

// AtWord splits before word k.
func AtWord(k int) SplitPoint {
	return SplitPoint{WordIndex: k}
}

// AtTime splits at absolute time t, dividing the word under t at charOffset.
func AtTime(t float64, charOffset int) SplitPoint {
	return SplitPoint{ByTime: true, Time: t, CharOffset: charOffset}
}
