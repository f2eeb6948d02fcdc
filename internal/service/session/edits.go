package session

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"transcript-editor-service/internal/bridge"
	"transcript-editor-service/internal/events"
	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/observability/logging"
	"transcript-editor-service/internal/service/edit"
	"transcript-editor-service/internal/service/history"
	"transcript-editor-service/internal/service/transcript"
)

const publishTimeout = 5 * time.Second

// EditWord buffers text typed into the word at loc. Nothing is committed
// until BlurWord. Typing into another word first commits the open draft, as
// if it had lost focus.
func (s *Session) EditWord(loc models.TextLocation, text string) error {
	s.mu.Lock()
	if err := s.checkEditableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	var blurred edit.Result
	committed := false
	if s.draft.Active() && s.draft.Location().Location() != loc.Location() {
		res, err := s.draft.Commit(s.doc)
		committed, err = s.applyLocalLocked(models.EditText, res, err)
		if err != nil {
			s.mu.Unlock()
			s.flush()
			return err
		}
		blurred = res
	}

	var err error
	if !s.draft.Active() {
		err = s.draft.Open(s.doc, loc)
	}
	if err == nil {
		s.draft.Update(text, loc.Offset)
	}
	id := s.transcriptID
	s.mu.Unlock()
	s.flush()
	if committed {
		s.publishEdit(events.EventEditCommitted, id, blurred.Delta, false)
	}
	return err
}

// BlurWord commits the open word draft as a local edit. The segment is
// flagged unsaved until Save persists it.
func (s *Session) BlurWord() error {
	s.mu.Lock()
	if !s.draft.Active() {
		s.mu.Unlock()
		return nil
	}
	if err := s.checkEditableLocked(); err != nil {
		s.draft.Discard()
		s.mu.Unlock()
		return err
	}
	res, err := s.draft.Commit(s.doc)
	return s.finishLocal(models.EditText, res, err)
}

// AssignSpeaker sets the speaker of a segment, or of some of its words.
func (s *Session) AssignSpeaker(segmentIndex int, speaker string, words []int) error {
	s.mu.Lock()
	if err := s.checkEditableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	res, err := edit.AssignSpeaker(s.doc, segmentIndex, speaker, words)
	return s.finishLocal(models.EditSpeaker, res, err)
}

// ClearHighRisk removes the high-risk flag of a segment. The change is
// recorded in history and can be undone.
func (s *Session) ClearHighRisk(segmentIndex int) error {
	s.mu.Lock()
	if err := s.checkEditableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	res, err := edit.ClearHighRisk(s.doc, segmentIndex)
	return s.finishLocal(models.EditHighRisk, res, err)
}

// finishLocal applies a local edit result. Called with s.mu held; releases it.
func (s *Session) finishLocal(t models.EditType, res edit.Result, err error) error {
	ok, err := s.applyLocalLocked(t, res, err)
	id := s.transcriptID
	s.mu.Unlock()
	s.flush()
	if ok {
		s.publishEdit(events.EventEditCommitted, id, res.Delta, false)
	}
	return err
}

// applyLocalLocked records a local edit. ok is false when nothing changed.
func (s *Session) applyLocalLocked(t models.EditType, res edit.Result, err error) (ok bool, _ error) {
	if err != nil {
		s.rejectLocked(t, err)
		if errors.Is(err, edit.ErrNoChange) {
			return false, nil
		}
		return false, err
	}
	s.applyLocked(res.Transcript)
	s.history.Push(res.Delta, false)
	s.emitHistoryLocked()
	s.metrics.RecordEdit(t.String())
	return true, nil
}

// UpdateSegmentTime rewrites a segment's window on the backing store.
func (s *Session) UpdateSegmentTime(ctx context.Context, segmentIndex int, start, length float64) error {
	return s.commitRemote(ctx, models.EditTime, func(doc *transcript.Transcript) (edit.Result, error) {
		return edit.UpdateSegmentTime(doc, segmentIndex, start, length)
	}, func(ctx context.Context, id string, res edit.Result) ([]models.Segment, error) {
		seg := res.Segment()
		out, err := s.bridge.UpdateSegmentTime(ctx, id, seg.ID, seg.Start, seg.Length)
		return []models.Segment{out}, err
	})
}

// SplitByWord splits a segment before word k on the backing store.
func (s *Session) SplitByWord(ctx context.Context, segmentIndex, k int) error {
	return s.commitRemote(ctx, models.EditSplit, func(doc *transcript.Transcript) (edit.Result, error) {
		return edit.SplitByWord(doc, segmentIndex, k)
	}, func(ctx context.Context, id string, res edit.Result) ([]models.Segment, error) {
		return s.bridge.SplitSegment(ctx, id, res.Delta.UpdatedSegment().ID, bridge.AtWord(k))
	})
}

// SplitByTime splits a segment at absolute time at on the backing store,
// dividing the word under at after charOffset characters.
func (s *Session) SplitByTime(ctx context.Context, segmentIndex int, at float64, charOffset int) error {
	return s.commitRemote(ctx, models.EditSplit, func(doc *transcript.Transcript) (edit.Result, error) {
		return edit.SplitByTime(doc, segmentIndex, at, charOffset)
	}, func(ctx context.Context, id string, res edit.Result) ([]models.Segment, error) {
		return s.bridge.SplitSegment(ctx, id, res.Delta.UpdatedSegment().ID, bridge.AtTime(at, charOffset))
	})
}

// Merge merges two adjacent segments on the backing store.
func (s *Session) Merge(ctx context.Context, first, second int) error {
	return s.commitRemote(ctx, models.EditMerge, func(doc *transcript.Transcript) (edit.Result, error) {
		return edit.Merge(doc, first, second)
	}, func(ctx context.Context, id string, res edit.Result) ([]models.Segment, error) {
		out, err := s.bridge.MergeSegments(ctx, id, res.Delta.Before[0].ID, res.Delta.Before[1].ID)
		return []models.Segment{out}, err
	})
}

type computeFunc func(doc *transcript.Transcript) (edit.Result, error)

type persistFunc func(ctx context.Context, transcriptID string, res edit.Result) ([]models.Segment, error)

// commitRemote validates an edit locally, persists it and applies it only
// once the backing store acknowledges. On failure the transcript and history
// are left as they were.
func (s *Session) commitRemote(ctx context.Context, t models.EditType, compute computeFunc, persist persistFunc) error {
	s.mu.Lock()
	if err := s.checkEditableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	res, err := compute(s.doc)
	if err != nil {
		s.rejectLocked(t, err)
		s.mu.Unlock()
		s.flush()
		if errors.Is(err, edit.ErrNoChange) {
			return nil
		}
		return err
	}
	flushWords := s.unsavedLocked(res.Delta.Before)
	id, epoch := s.transcriptID, s.epoch
	s.inFlight = true
	s.mu.Unlock()
	s.flush()

	ctx, cancel := s.commitContext(ctx)
	defer cancel()

	// Local word edits on the touched segments go first so the store's
	// answer already carries them.
	saved, err := s.saveWords(ctx, id, flushWords)
	var segs []models.Segment
	if err == nil {
		segs, err = persist(ctx, id, res)
	}

	s.mu.Lock()
	delta, err := s.acknowledgeLocked(t, epoch, saved, res, segs, err)
	s.mu.Unlock()
	s.flush()
	if err != nil {
		return err
	}
	s.publishEdit(events.EventEditCommitted, id, delta, true)
	return nil
}

// acknowledgeLocked applies the backing store's answer to a commit.
func (s *Session) acknowledgeLocked(t models.EditType, epoch uint64, saved []string, res edit.Result, segs []models.Segment, err error) (models.RevertData, error) {
	if s.epoch != epoch {
		return models.RevertData{}, ErrReset
	}
	s.inFlight = false
	s.history.MarkSaved(saved...)

	var acked edit.Result
	if err == nil {
		if acked, err = res.WithSegments(segs); err != nil {
			err = &bridge.Problem{Kind: bridge.KindUnknown, Message: "The server returned malformed data."}
		}
	}
	if err != nil {
		return models.RevertData{}, s.failLocked(t.String(), res.Delta.Before, err)
	}

	s.applyLocked(acked.Transcript)
	s.history.Push(acked.Delta, true)
	s.emitHistoryLocked()
	s.metrics.RecordEdit(t.String())
	return acked.Delta, nil
}

// Undo reverts the newest edit. ok is false when there was nothing to undo.
// Edits that were persisted are reverted on the backing store first.
func (s *Session) Undo(ctx context.Context) (caret models.TextLocation, ok bool, err error) {
	return s.step(ctx, true)
}

// Redo re-applies the most recently undone edit.
func (s *Session) Redo(ctx context.Context) (caret models.TextLocation, ok bool, err error) {
	return s.step(ctx, false)
}

func (s *Session) step(ctx context.Context, undo bool) (models.TextLocation, bool, error) {
	op, eventType := "redo", events.EventEditRedone
	peek, apply := s.history.PeekRedo, applyFunc(s.history.Redo)
	if undo {
		op, eventType = "undo", events.EventEditUndone
		peek, apply = s.history.PeekUndo, applyFunc(s.history.Undo)
	}

	s.mu.Lock()
	if err := s.checkEditableLocked(); err != nil {
		s.mu.Unlock()
		return models.TextLocation{}, false, err
	}
	d, ok := peek()
	if !ok {
		s.mu.Unlock()
		return models.TextLocation{}, false, nil
	}
	removed, added := d.Before, d.After
	if undo {
		removed, added = d.After, d.Before
	}

	if isLocal(d.EditType) {
		st, _, err := apply(s.doc, nil)
		if err != nil {
			s.mu.Unlock()
			return models.TextLocation{}, true, err
		}
		s.applyLocked(st.Transcript)
		s.recordStep(undo)
		s.emitHistoryLocked()
		id := s.transcriptID
		s.mu.Unlock()
		s.flush()
		s.publishEdit(eventType, id, st.Delta, false)
		return st.Caret, true, nil
	}

	flushWords := s.unsavedLocked(removed)
	id, epoch := s.transcriptID, s.epoch
	s.inFlight = true
	s.mu.Unlock()
	s.flush()

	ctx, cancel := s.commitContext(ctx)
	defer cancel()
	saved, err := s.saveWords(ctx, id, flushWords)
	var segs []models.Segment
	if err == nil {
		segs, err = s.persistReplacement(ctx, id, removed, added)
	}

	s.mu.Lock()
	st, err := s.stepAckLocked(op, undo, apply, epoch, saved, removed, segs, err)
	s.mu.Unlock()
	s.flush()
	if err != nil {
		return models.TextLocation{}, true, err
	}
	s.publishEdit(eventType, id, st.Delta, true)
	return st.Caret, true, nil
}

type applyFunc func(doc *transcript.Transcript, ack *history.Ack) (history.Step, bool, error)

// stepAckLocked applies an undo or redo the backing store acknowledged.
func (s *Session) stepAckLocked(op string, undo bool, apply applyFunc, epoch uint64, saved []string, removed, segs []models.Segment, err error) (history.Step, error) {
	if s.epoch != epoch {
		return history.Step{}, ErrReset
	}
	s.inFlight = false
	s.history.MarkSaved(saved...)
	if err != nil {
		return history.Step{}, s.failLocked(op, removed, err)
	}

	st, _, err := apply(s.doc, &history.Ack{Segments: segs})
	if err != nil {
		return history.Step{}, s.failLocked(op, removed, err)
	}
	s.applyLocked(st.Transcript)
	s.recordStep(undo)
	s.emitHistoryLocked()
	return st, nil
}

func (s *Session) recordStep(undo bool) {
	if undo {
		s.metrics.RecordUndo()
	} else {
		s.metrics.RecordRedo()
	}
}

// isLocal reports whether an edit type lives only in the session until Save.
func isLocal(t models.EditType) bool {
	switch t {
	case models.EditText, models.EditSpeaker, models.EditHighRisk:
		return true
	default:
		return false
	}
}

// persistReplacement asks the backing store to turn removed into added, the
// same structural change an undo or redo performs locally.
func (s *Session) persistReplacement(ctx context.Context, id string, removed, added []models.Segment) ([]models.Segment, error) {
	switch {
	case len(removed) == 1 && len(added) == 1:
		seg, err := s.bridge.UpdateSegmentTime(ctx, id, removed[0].ID, added[0].Start, added[0].Length)
		return []models.Segment{seg}, err
	case len(removed) == 1 && len(added) == 2:
		return s.bridge.SplitSegment(ctx, id, removed[0].ID, splitPoint(removed[0], added[0], added[1]))
	case len(removed) == 2 && len(added) == 1:
		seg, err := s.bridge.MergeSegments(ctx, id, removed[0].ID, removed[1].ID)
		return []models.Segment{seg}, err
	default:
		return nil, &bridge.Problem{Kind: bridge.KindUnknown, Message: "This change cannot be replayed."}
	}
}

// splitPoint recovers where orig was split into first and second.
func splitPoint(orig, first, second models.Segment) bridge.SplitPoint {
	k := len(first.WordAlignments)
	divided := k+len(second.WordAlignments) != len(orig.WordAlignments)
	atWordStart := len(second.WordAlignments) > 0 && second.WordAlignments[0].Start == 0
	if !divided && atWordStart {
		return bridge.AtWord(k)
	}
	offset := 0
	if divided && k > 0 {
		offset = utf8.RuneCountInString(first.WordAlignments[k-1].Word)
	}
	return bridge.AtTime(second.Start, offset)
}

// Save persists the words of every segment with unsaved local edits.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkEditableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	var pending []models.Segment
	for _, seg := range s.doc.Segments() {
		if s.history.IsUnsaved(seg.ID) {
			pending = append(pending, seg)
		}
	}
	if len(pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	id, epoch := s.transcriptID, s.epoch
	s.inFlight = true
	s.mu.Unlock()
	s.flush()

	ctx, cancel := s.commitContext(ctx)
	defer cancel()

	var saved []string
	var failures []error
	for _, seg := range pending {
		if _, err := s.bridge.UpdateSegmentWords(ctx, id, seg.ID, seg.WordAlignments); err != nil {
			failures = append(failures, err)
			s.metrics.RecordSave(err)
			continue
		}
		s.metrics.RecordSave(nil)
		saved = append(saved, seg.ID)
	}

	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrReset
	}
	s.inFlight = false
	s.history.MarkSaved(saved...)
	s.emitHistoryLocked()
	for _, err := range failures {
		s.failLocked("save", nil, err)
	}
	return errors.Join(failures...)
}

// Confirm marks the transcript as reviewed. On success an audit event is
// published and the session resets, ready for the next transcript.
func (s *Session) Confirm(ctx context.Context) error {
	s.mu.Lock()
	if s.cfg.ReadOnly {
		s.mu.Unlock()
		return ErrReadOnly
	}
	if s.confirmed {
		s.mu.Unlock()
		return ErrAlreadyConfirmed
	}
	if err := s.checkReadyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	id, epoch := s.transcriptID, s.epoch
	s.inFlight = true
	s.mu.Unlock()

	ctx, cancel := s.commitContext(ctx)
	defer cancel()
	err := s.bridge.ConfirmTranscript(ctx, id)
	s.metrics.RecordConfirm(err)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return ErrReset
	}
	s.inFlight = false
	if err != nil {
		err = s.failLocked("confirm", nil, err)
		s.mu.Unlock()
		s.flush()
		return err
	}
	log := logging.WithTranscript(id)
	log.Info().Msg("Transcript confirmed")
	s.resetLocked()
	s.confirmed = true
	s.mu.Unlock()
	s.flush()

	if s.publisher != nil {
		if err := s.publisher.PublishConfirmed(ctx, events.Confirmed(id)); err != nil {
			s.log.Warn().Err(err).Str("transcriptId", id).Msg("Failed to publish confirmation")
		}
	}
	return nil
}

// saveWords persists the word lists of segs, returning the ids that were saved.
func (s *Session) saveWords(ctx context.Context, id string, segs []models.Segment) ([]string, error) {
	var saved []string
	for _, seg := range segs {
		if _, err := s.bridge.UpdateSegmentWords(ctx, id, seg.ID, seg.WordAlignments); err != nil {
			return saved, err
		}
		saved = append(saved, seg.ID)
	}
	return saved, nil
}

func (s *Session) unsavedLocked(segs []models.Segment) []models.Segment {
	var out []models.Segment
	for _, seg := range segs {
		if s.history.IsUnsaved(seg.ID) {
			if i := s.doc.IndexOf(seg.ID); i >= 0 {
				cur, _ := s.doc.Get(i)
				out = append(out, cur)
			}
		}
	}
	return out
}

func (s *Session) commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CommitTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.CommitTimeout)
	}
	return context.WithCancel(ctx)
}

// applyLocked installs a new transcript version and re-resolves the cursor.
// An open word draft points into the previous version and is dropped.
func (s *Session) applyLocked(doc *transcript.Transcript) {
	s.draft.Discard()
	s.doc = doc
	s.controller.SetTranscript(doc)
}

// rejectLocked surfaces a local validation failure without touching state.
func (s *Session) rejectLocked(t models.EditType, err error) {
	if errors.Is(err, edit.ErrNoChange) {
		return
	}
	s.metrics.RecordEditRejected(t.String())
	p := bridge.AsProblem(err)
	s.emit(func(l Listener) { l.OnCommitError(p.Kind, p.UserMessage()) })
}

// failLocked handles a failed commit: the touched segments are flagged
// unsaved, a missing transcript forces a reload, and one error is surfaced.
func (s *Session) failLocked(op string, touched []models.Segment, err error) error {
	p := bridge.AsProblem(err)
	for _, seg := range touched {
		// Only segments still in the transcript can be saved later.
		if s.doc.IndexOf(seg.ID) >= 0 {
			s.history.MarkUnsaved(seg.ID)
		}
	}
	if p.Kind == bridge.KindNotFound {
		s.reloadRequired = true
	}
	s.metrics.RecordCommitFailure(op, string(p.Kind))
	segmentID := ""
	if len(touched) > 0 {
		segmentID = touched[0].ID
	}
	log := logging.WithSegment(s.transcriptID, segmentID)
	log.Error().
		Err(err).
		Str("operation", op).
		Str("kind", string(p.Kind)).
		Msg("Commit failed")
	s.emitHistoryLocked()
	s.emit(func(l Listener) { l.OnCommitError(p.Kind, p.UserMessage()) })
	return p
}

func (s *Session) publishEdit(eventType, id string, delta models.RevertData, persisted bool) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishEdit(ctx, events.EditEvent(eventType, id, delta, persisted)); err != nil {
		log := logging.WithEdit(id, delta.EditType.String(), delta.SegmentIDs())
		log.Warn().Err(err).Msg("Failed to publish edit event")
	}
}
