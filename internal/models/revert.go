package models

import "fmt"

// EditType tags the kind of committed edit a RevertData describes.
type EditType int

const (
	EditText EditType = iota
	EditTime
	EditSplit
	EditMerge
	EditSpeaker
	EditHighRisk
)

// String returns the string representation of the edit type.
func (e EditType) String() string {
	switch e {
	case EditText:
		return "text-edit"
	case EditTime:
		return "time-edit"
	case EditSplit:
		return "split"
	case EditMerge:
		return "merge"
	case EditSpeaker:
		return "speaker-assign"
	case EditHighRisk:
		return "high-risk"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(e))
	}
}

// MarshalText encodes the edit type by name.
func (e EditType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// RevertData is one undoable delta.
//
// The edit replaced the segments Before, starting at SegmentIndex, with the
// segments After. Undo splices Before back in place of After, redo does the
// reverse, so a single shape covers in-place edits (one segment each side),
// splits (one before, two after) and merges (two before, one after).
type RevertData struct {
	EditType     EditType     `json:"editType"`
	SegmentIndex int          `json:"segmentIndex"`
	Before       []Segment    `json:"before"`
	After        []Segment    `json:"after"`
	TextLocation TextLocation `json:"textLocation"`
}

// UpdatedSegment returns the first segment snapshot taken before the edit.
func (r RevertData) UpdatedSegment() Segment {
	if len(r.Before) == 0 {
		return Segment{}
	}
	return r.Before[0]
}

// SegmentIDs returns the ids touched by the edit on either side, deduplicated.
func (r RevertData) SegmentIDs() []string {
	seen := make(map[string]bool, len(r.Before)+len(r.After))
	ids := make([]string, 0, len(r.Before)+len(r.After))
	for _, list := range [][]Segment{r.Before, r.After} {
		for _, s := range list {
			if !seen[s.ID] {
				seen[s.ID] = true
				ids = append(ids, s.ID)
			}
		}
	}
	return ids
}

// EditEvent is the audit record published for every committed edit.
type EditEvent struct {
	EventType    string   `json:"eventType"`
	TranscriptID string   `json:"transcriptId"`
	EditType     string   `json:"editType"`
	SegmentIDs   []string `json:"segmentIds"`
	Persisted    bool     `json:"persisted"`
	Timestamp    int64    `json:"timestamp"`
}

// TranscriptConfirmed is published when a transcript is confirmed.
type TranscriptConfirmed struct {
	EventType    string `json:"eventType"`
	TranscriptID string `json:"transcriptId"`
	Timestamp    int64  `json:"timestamp"`
}
