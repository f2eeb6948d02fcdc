package edit

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/service/transcript"
)

func doc(t *testing.T, segs ...models.Segment) *transcript.Transcript {
	t.Helper()
	d, err := transcript.New(segs)
	if err != nil {
		t.Fatalf("transcript.New: %v", err)
	}
	return d
}

func exampleDoc(t *testing.T) *transcript.Transcript {
	return doc(t,
		models.Segment{ID: "s1", Start: 0, Length: 2, Transcript: "hi", WordAlignments: []models.WordAlignment{
			{Word: "hi", Start: 0, Length: 1},
		}},
		models.Segment{ID: "s2", Start: 2, Length: 3, Transcript: "bye", WordAlignments: []models.WordAlignment{
			{Word: "bye", Start: 0, Length: 1},
		}},
	)
}

func longSegment() models.Segment {
	return models.Segment{
		ID:                "long",
		Start:             10.25,
		Length:            4.8,
		Transcript:        "the quick brown fox jumps",
		DecoderTranscript: "the quick brown fox jumps",
		Speaker:           "A",
		WordAlignments: []models.WordAlignment{
			{Word: "the", Start: 0, Length: 0.3, Confidence: 0.9},
			{Word: "quick", Start: 0.35, Length: 0.6, Confidence: 0.8},
			{Word: "brown", Start: 1.1, Length: 0.7, Confidence: 0.7},
			{Word: "fox", Start: 2.05, Length: 0.45, Confidence: 0.95},
			{Word: "jumps", Start: 3.3, Length: 1.2, Confidence: 0.6},
		},
	}
}

func TestMerge_Example(t *testing.T) {
	res, err := Merge(exampleDoc(t), 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transcript.Len() != 1 {
		t.Fatalf("expected 1 segment, got %d", res.Transcript.Len())
	}
	got, _ := res.Transcript.Get(0)
	if got.ID != "s1" || got.Start != 0 || got.Length != 5 {
		t.Errorf("unexpected merged window %+v", got)
	}
	want := []models.WordAlignment{
		{Word: "hi", Start: 0, Length: 1},
		{Word: "bye", Start: 2, Length: 1},
	}
	if !reflect.DeepEqual(got.WordAlignments, want) {
		t.Errorf("words = %+v, want %+v", got.WordAlignments, want)
	}
	if got.Transcript != "hi bye" {
		t.Errorf("transcript = %q", got.Transcript)
	}
	if res.Delta.EditType != models.EditMerge || len(res.Delta.Before) != 2 || len(res.Delta.After) != 1 {
		t.Errorf("unexpected delta %+v", res.Delta)
	}
}

func TestMerge_Rejections(t *testing.T) {
	three := doc(t,
		models.Segment{ID: "a", Start: 0, Length: 1},
		models.Segment{ID: "b", Start: 1, Length: 1},
		models.Segment{ID: "c", Start: 2, Length: 1},
	)
	single := doc(t, models.Segment{ID: "a", Start: 0, Length: 1})

	tests := []struct {
		name string
		doc  *transcript.Transcript
		i, j int
		want error
	}{
		{"not adjacent", three, 0, 2, ErrNotAdjacent},
		{"same segment", three, 1, 1, ErrNotAdjacent},
		{"fewer than two", single, 0, 1, ErrMergeUnavailable},
		{"out of range", three, 2, 3, transcript.ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(tt.doc, tt.i, tt.j)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !IsValidation(err) {
				t.Errorf("expected a validation error, got %T", err)
			}
		})
	}

	if three.Len() != 3 {
		t.Error("rejected merge changed the transcript")
	}
}

func TestMerge_ReversedIndices(t *testing.T) {
	res, err := Merge(exampleDoc(t), 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Delta.SegmentIndex != 0 || res.Segment().ID != "s1" {
		t.Errorf("expected merge anchored at the first segment, got %+v", res.Delta)
	}
}

func TestMerge_SpeakerAndHighRisk(t *testing.T) {
	d := doc(t,
		models.Segment{ID: "a", Start: 0, Length: 1, Speaker: "A", HighRisk: true},
		models.Segment{ID: "b", Start: 1.5, Length: 1, Speaker: "B"},
	)
	res, err := Merge(d, 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := res.Segment()
	if got.Speaker != "" {
		t.Errorf("mixed speakers should clear the segment speaker, got %q", got.Speaker)
	}
	if !got.HighRisk {
		t.Error("high-risk flag should survive a merge")
	}
	if got.Length != 2.5 {
		t.Errorf("merged length should span the gap, got %v", got.Length)
	}
}

func TestSplitThenMerge_RoundTrip(t *testing.T) {
	orig := longSegment()
	for k := 1; k < len(orig.WordAlignments); k++ {
		d := doc(t, orig)

		split, err := SplitByWord(d, 0, k)
		if err != nil {
			t.Fatalf("k=%d split: %v", k, err)
		}
		if split.Transcript.Len() != 2 {
			t.Fatalf("k=%d: expected 2 segments", k)
		}
		first, _ := split.Transcript.Get(0)
		second, _ := split.Transcript.Get(1)
		if len(first.WordAlignments) != k || len(second.WordAlignments) != len(orig.WordAlignments)-k {
			t.Errorf("k=%d: words not partitioned", k)
		}
		if first.ID != orig.ID || !strings.HasPrefix(second.ID, LocalIDPrefix) {
			t.Errorf("k=%d: unexpected ids %q %q", k, first.ID, second.ID)
		}
		if math.Abs(second.Start-first.End()) > transcript.Epsilon {
			t.Errorf("k=%d: halves not contiguous: %v vs %v", k, first.End(), second.Start)
		}

		merged, err := Merge(split.Transcript, 0, 1)
		if err != nil {
			t.Fatalf("k=%d merge: %v", k, err)
		}
		got := merged.Segment()
		if !reflect.DeepEqual(got.WordAlignments, orig.WordAlignments) {
			t.Errorf("k=%d: words = %+v, want %+v", k, got.WordAlignments, orig.WordAlignments)
		}
		if got.Start != orig.Start || got.Length != orig.Length {
			t.Errorf("k=%d: window (%v, %v), want (%v, %v)", k, got.Start, got.Length, orig.Start, orig.Length)
		}
		if got.ID != orig.ID || got.DecoderTranscript != orig.DecoderTranscript || got.Speaker != orig.Speaker {
			t.Errorf("k=%d: metadata not restored: %+v", k, got)
		}
	}
}

func TestSplitByWord_Rejections(t *testing.T) {
	empty := doc(t, models.Segment{ID: "e", Start: 0, Length: 1})
	d := doc(t, longSegment())
	atZero := doc(t, models.Segment{ID: "z", Start: 0, Length: 2, WordAlignments: []models.WordAlignment{
		{Word: "a", Start: 0, Length: 0.5},
		{Word: "b", Start: 0, Length: 0.5},
	}})

	tests := []struct {
		name string
		doc  *transcript.Transcript
		k    int
	}{
		{"no words", empty, 1},
		{"before first word", d, 0},
		{"at word count", d, 5},
		{"split time at segment start", atZero, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SplitByWord(tt.doc, 0, tt.k)
			if !errors.Is(err, ErrInvalidSplitPoint) {
				t.Errorf("expected ErrInvalidSplitPoint, got %v", err)
			}
		})
	}
}

func TestSplitByWord_DecoderTranscript(t *testing.T) {
	res, err := SplitByWord(doc(t, longSegment()), 0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := res.Transcript.Get(0)
	second, _ := res.Transcript.Get(1)
	if first.DecoderTranscript != "the quick" || second.DecoderTranscript != "brown fox jumps" {
		t.Errorf("unexpected decoder split %q | %q", first.DecoderTranscript, second.DecoderTranscript)
	}
	if first.Transcript != "the quick" || second.Transcript != "brown fox jumps" {
		t.Errorf("unexpected transcript split %q | %q", first.Transcript, second.Transcript)
	}
	if res.Delta.TextLocation != (models.TextLocation{SegmentIndex: 0, WordIndex: 2}) {
		t.Errorf("unexpected caret %+v", res.Delta.TextLocation)
	}
}

func TestSplitByTime_MidWord(t *testing.T) {
	d := doc(t, models.Segment{ID: "s", Start: 1, Length: 4, WordAlignments: []models.WordAlignment{
		{Word: "hello", Start: 0, Length: 1},
		{Word: "world", Start: 1.5, Length: 2},
	}})

	res, err := SplitByTime(d, 0, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := res.Transcript.Get(0)
	second, _ := res.Transcript.Get(1)

	if first.Start != 1 || first.Length != 2 || second.Start != 3 || second.Length != 2 {
		t.Errorf("unexpected windows %v+%v, %v+%v", first.Start, first.Length, second.Start, second.Length)
	}
	if len(first.WordAlignments) != 2 || len(second.WordAlignments) != 1 {
		t.Fatalf("unexpected partition %d/%d", len(first.WordAlignments), len(second.WordAlignments))
	}
	a, b := first.WordAlignments[1], second.WordAlignments[0]
	if a.Word != "wo" || b.Word != "rld" {
		t.Errorf("unexpected word halves %q %q", a.Word, b.Word)
	}
	if a.Length+b.Length != 2 {
		t.Errorf("word halves should sum to 2, got %v", a.Length+b.Length)
	}
	if b.Start != 0 {
		t.Errorf("second half should start at 0, got %v", b.Start)
	}
}

func TestSplitByTime_Boundary(t *testing.T) {
	d := doc(t, models.Segment{ID: "s", Start: 0, Length: 4, WordAlignments: []models.WordAlignment{
		{Word: "one", Start: 0, Length: 1},
		{Word: "two", Start: 2, Length: 1},
	}})

	res, err := SplitByTime(d, 0, 1.5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := res.Transcript.Get(0)
	second, _ := res.Transcript.Get(1)
	if first.Transcript != "one" || second.Transcript != "two" {
		t.Errorf("unexpected partition %q | %q", first.Transcript, second.Transcript)
	}
	if second.WordAlignments[0].Start != 0.5 {
		t.Errorf("expected rebased start 0.5, got %v", second.WordAlignments[0].Start)
	}
}

func TestSplitByTime_Rejections(t *testing.T) {
	d := doc(t, models.Segment{ID: "s", Start: 1, Length: 4, WordAlignments: []models.WordAlignment{
		{Word: "hello", Start: 0, Length: 1},
	}})
	empty := doc(t, models.Segment{ID: "e", Start: 0, Length: 1})

	tests := []struct {
		name   string
		doc    *transcript.Transcript
		at     float64
		offset int
	}{
		{"at segment start", d, 1, 0},
		{"at segment end", d, 5, 0},
		{"beyond segment", d, 7, 0},
		{"mid-word without offset", d, 1.5, 0},
		{"mid-word offset past end", d, 1.5, 5},
		{"no words", empty, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SplitByTime(tt.doc, 0, tt.at, tt.offset)
			if !errors.Is(err, ErrInvalidSplitPoint) {
				t.Errorf("expected ErrInvalidSplitPoint, got %v", err)
			}
		})
	}
}

func TestUpdateSegmentTime(t *testing.T) {
	tests := []struct {
		name          string
		index         int
		start, length float64
		want          error
	}{
		{"valid shrink", 1, 2.5, 2, nil},
		{"zero length", 1, 2, 0, ErrInvalidTime},
		{"negative length", 1, 2, -1, ErrInvalidTime},
		{"negative start", 0, -0.5, 1, ErrInvalidTime},
		{"overlaps previous", 1, 1.5, 2, ErrInvalidTime},
		{"overlaps next", 0, 0, 2.5, ErrInvalidTime},
		{"cuts off a word", 0, 0, 0.5, ErrInvalidTime},
		{"unchanged", 0, 0, 2, ErrNoChange},
		{"out of range", 4, 0, 1, transcript.ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := exampleDoc(t)
			res, err := UpdateSegmentTime(d, tt.index, tt.start, tt.length)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, _ := res.Transcript.Get(tt.index)
			if got.Start != tt.start || got.Length != tt.length {
				t.Errorf("unexpected window %v+%v", got.Start, got.Length)
			}
			orig, _ := d.Get(tt.index)
			if orig.Start != 2 || orig.Length != 3 {
				t.Error("original version was modified")
			}
		})
	}
}

func TestEditWordText(t *testing.T) {
	d := exampleDoc(t)
	loc := models.TextLocation{SegmentIndex: 0, WordIndex: 0, Offset: 2}

	res, err := EditWordText(d, loc, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := res.Segment()
	if got.WordAlignments[0].Word != "hello" || got.Transcript != "hello" {
		t.Errorf("unexpected segment %+v", got)
	}
	if res.Delta.UpdatedSegment().WordAlignments[0].Word != "hi" {
		t.Error("delta should snapshot the previous segment")
	}
	if res.Delta.TextLocation != loc {
		t.Errorf("unexpected caret %+v", res.Delta.TextLocation)
	}
	if w, _ := d.Word(loc.Location()); w.Word != "hi" {
		t.Error("original version was modified")
	}

	if _, err := EditWordText(d, loc, "hi"); !errors.Is(err, ErrNoChange) {
		t.Errorf("expected ErrNoChange, got %v", err)
	}
	if _, err := EditWordText(d, loc, "  "); !errors.Is(err, ErrEmptyWord) {
		t.Errorf("expected ErrEmptyWord, got %v", err)
	}
	if _, err := EditWordText(d, models.TextLocation{SegmentIndex: 0, WordIndex: 3}, "x"); !errors.Is(err, transcript.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestAssignSpeaker(t *testing.T) {
	d := doc(t, longSegment())

	res, err := AssignSpeaker(d, 0, "B", []int{1, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := res.Segment()
	for i, w := range got.WordAlignments {
		want := ""
		if i == 1 || i == 3 {
			want = "B"
		}
		if w.Speaker != want {
			t.Errorf("word %d speaker = %q, want %q", i, w.Speaker, want)
		}
	}
	if got.Speaker != "A" {
		t.Error("subset assignment should keep the segment speaker")
	}

	all, err := AssignSpeaker(d, 0, "C", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all.Segment().Speaker != "C" {
		t.Error("whole-segment assignment should set the segment speaker")
	}
	if _, err := AssignSpeaker(all.Transcript, 0, "C", nil); !errors.Is(err, ErrNoChange) {
		t.Errorf("expected ErrNoChange, got %v", err)
	}
	if _, err := AssignSpeaker(d, 0, "", nil); !errors.Is(err, ErrInvalidSpeaker) {
		t.Errorf("expected ErrInvalidSpeaker, got %v", err)
	}
	if _, err := AssignSpeaker(d, 0, "B", []int{9}); !errors.Is(err, transcript.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestClearHighRisk(t *testing.T) {
	d := doc(t, models.Segment{ID: "r", Start: 0, Length: 1, HighRisk: true})

	res, err := ClearHighRisk(d, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Segment().HighRisk {
		t.Error("flag should be cleared")
	}
	if res.Delta.EditType != models.EditHighRisk {
		t.Errorf("unexpected edit type %v", res.Delta.EditType)
	}
	if _, err := ClearHighRisk(res.Transcript, 0); !errors.Is(err, ErrNoChange) {
		t.Errorf("expected ErrNoChange, got %v", err)
	}
}

func TestResult_WithSegments(t *testing.T) {
	res, err := SplitByWord(doc(t, longSegment()), 0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server := append([]models.Segment(nil), res.Delta.After...)
	server[1].ID = "server-id"

	acked, err := res.WithSegments(server)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := acked.Transcript.Get(1); got.ID != "server-id" {
		t.Errorf("expected server id, got %q", got.ID)
	}
	if acked.Delta.UpdatedSegment().ID != "long" {
		t.Error("Before snapshot should be kept")
	}

	if _, err := res.WithSegments(server[:1]); err == nil {
		t.Error("expected error for wrong segment count")
	}
}

func TestWordDraft(t *testing.T) {
	d := exampleDoc(t)
	var draft WordDraft

	if _, err := draft.Commit(d); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected ErrNoDraft, got %v", err)
	}
	if err := draft.Open(d, models.TextLocation{SegmentIndex: 1}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	draft.Update("by", 2)
	draft.Update("bye!", 4)

	res, err := draft.Commit(d)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if draft.Active() {
		t.Error("draft should close on commit")
	}
	if res.Segment().Transcript != "bye!" {
		t.Errorf("unexpected transcript %q", res.Segment().Transcript)
	}
	if res.Delta.TextLocation.Offset != 4 {
		t.Errorf("expected caret 4, got %d", res.Delta.TextLocation.Offset)
	}

	draft.Open(d, models.TextLocation{SegmentIndex: 0})
	if _, err := draft.Commit(d); !errors.Is(err, ErrNoChange) {
		t.Errorf("untouched draft should not commit, got %v", err)
	}
}
