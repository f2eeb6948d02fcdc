// Package history keeps the undo and redo stacks of an editor session and
// the set of segments carrying local edits that are not yet persisted.
package history

import (
	"errors"
	"fmt"
	"sort"

	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/service/transcript"
)

var (
	// ErrStale is returned when the transcript no longer holds the segments a
	// delta expects to replace.
	ErrStale = errors.New("delta does not match transcript")
	// ErrAckMismatch is returned when acknowledged segments do not line up
	// with the delta being applied.
	ErrAckMismatch = errors.New("acknowledged segments do not match delta")
)

// Ack carries the backing store's answer for an undo or redo it persisted.
// Segments, when non-empty, replace the locally restored ones.
type Ack struct {
	Segments []models.Segment
}

// Step is the outcome of an undo or redo.
type Step struct {
	Transcript *transcript.Transcript
	Delta      models.RevertData
	// Caret is where the cursor goes after the step.
	Caret models.TextLocation
}

// Manager owns the history stacks. It is the only place a RevertData is
// applied to a transcript. Not safe for concurrent use.
type Manager struct {
	undo    []models.RevertData
	redo    []models.RevertData
	unsaved map[string]struct{}
}

// NewManager creates an empty history.
func NewManager() *Manager {
	return &Manager{unsaved: make(map[string]struct{})}
}

// Push records a committed edit and clears the redo stack. When persisted is
// false the segments the edit produced are flagged unsaved.
func (m *Manager) Push(d models.RevertData, persisted bool) {
	m.undo = append(m.undo, d)
	m.redo = nil
	m.track(d.Before, d.After, persisted)
}

// CanUndo reports whether there is anything to undo.
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether there is anything to redo.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// PeekUndo returns the delta Undo would revert.
func (m *Manager) PeekUndo() (models.RevertData, bool) {
	if len(m.undo) == 0 {
		return models.RevertData{}, false
	}
	return m.undo[len(m.undo)-1], true
}

// PeekRedo returns the delta Redo would re-apply.
func (m *Manager) PeekRedo() (models.RevertData, bool) {
	if len(m.redo) == 0 {
		return models.RevertData{}, false
	}
	return m.redo[len(m.redo)-1], true
}

// Undo reverts the newest delta on doc and moves it to the redo stack. ok is
// false when there is nothing to undo. A nil ack means the revert is local
// only and the restored segments are flagged unsaved.
func (m *Manager) Undo(doc *transcript.Transcript, ack *Ack) (step Step, ok bool, err error) {
	d, ok := m.PeekUndo()
	if !ok {
		return Step{}, false, nil
	}
	restored, err := restore(d.Before, ack)
	if err != nil {
		return Step{}, true, err
	}
	next, err := apply(doc, d.SegmentIndex, d.After, restored)
	if err != nil {
		return Step{}, true, err
	}

	m.undo = m.undo[:len(m.undo)-1]
	m.rename(d.Before, restored)
	d.Before = restored
	m.redo = append(m.redo, d)
	m.track(d.After, d.Before, ack != nil)
	return Step{Transcript: next, Delta: d, Caret: d.TextLocation}, true, nil
}

// Redo re-applies the most recently undone delta and moves it back to the
// undo stack without clearing the remaining redo entries.
func (m *Manager) Redo(doc *transcript.Transcript, ack *Ack) (step Step, ok bool, err error) {
	d, ok := m.PeekRedo()
	if !ok {
		return Step{}, false, nil
	}
	restored, err := restore(d.After, ack)
	if err != nil {
		return Step{}, true, err
	}
	next, err := apply(doc, d.SegmentIndex, d.Before, restored)
	if err != nil {
		return Step{}, true, err
	}

	m.redo = m.redo[:len(m.redo)-1]
	m.rename(d.After, restored)
	d.After = restored
	m.undo = append(m.undo, d)
	m.track(d.Before, d.After, ack != nil)
	return Step{Transcript: next, Delta: d, Caret: d.TextLocation}, true, nil
}

func restore(local []models.Segment, ack *Ack) ([]models.Segment, error) {
	if ack == nil || len(ack.Segments) == 0 {
		return local, nil
	}
	if len(ack.Segments) != len(local) {
		return nil, fmt.Errorf("%w: expected %d segments, got %d", ErrAckMismatch, len(local), len(ack.Segments))
	}
	out := make([]models.Segment, len(ack.Segments))
	for i, s := range ack.Segments {
		out[i] = s.Clone()
	}
	return out, nil
}

// apply swaps the segments in remove, which must sit at index, for insert.
func apply(doc *transcript.Transcript, index int, remove, insert []models.Segment) (*transcript.Transcript, error) {
	for i, want := range remove {
		got, err := doc.Get(index + i)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStale, err)
		}
		if got.ID != want.ID {
			return nil, fmt.Errorf("%w: segment %d is %s, expected %s", ErrStale, index+i, got.ID, want.ID)
		}
	}
	return doc.Splice(index, len(remove), insert...)
}

// rename carries ids the backing store assigned to restored segments over to
// every remaining delta. local and acked line up by position. The old ids no
// longer exist, so they leave the unsaved set.
func (m *Manager) rename(local, acked []models.Segment) {
	ids := make(map[string]string)
	for i := 0; i < len(local) && i < len(acked); i++ {
		if local[i].ID != acked[i].ID {
			ids[local[i].ID] = acked[i].ID
		}
	}
	if len(ids) == 0 {
		return
	}
	for i := range m.undo {
		m.undo[i] = renameDelta(m.undo[i], ids)
	}
	for i := range m.redo {
		m.redo[i] = renameDelta(m.redo[i], ids)
	}
	for old := range ids {
		delete(m.unsaved, old)
	}
}

func renameDelta(d models.RevertData, ids map[string]string) models.RevertData {
	d.Before = renameSegments(d.Before, ids)
	d.After = renameSegments(d.After, ids)
	return d
}

// renameSegments copies segs only when an id changes; segment snapshots are
// shared between deltas.
func renameSegments(segs []models.Segment, ids map[string]string) []models.Segment {
	var out []models.Segment
	for i, s := range segs {
		id, ok := ids[s.ID]
		if !ok {
			continue
		}
		if out == nil {
			out = append([]models.Segment(nil), segs...)
		}
		out[i].ID = id
	}
	if out == nil {
		return segs
	}
	return out
}

// track updates the unsaved set after removed was replaced by added.
func (m *Manager) track(removed, added []models.Segment, persisted bool) {
	for _, s := range removed {
		delete(m.unsaved, s.ID)
	}
	for _, s := range added {
		if persisted {
			delete(m.unsaved, s.ID)
		} else {
			m.unsaved[s.ID] = struct{}{}
		}
	}
}

// Unsaved returns the ids of segments with unpersisted local edits, sorted.
func (m *Manager) Unsaved() []string {
	ids := make([]string, 0, len(m.unsaved))
	for id := range m.unsaved {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsUnsaved reports whether segment id has unpersisted local edits.
func (m *Manager) IsUnsaved(id string) bool {
	_, ok := m.unsaved[id]
	return ok
}

// MarkUnsaved flags segments as carrying unpersisted edits.
func (m *Manager) MarkUnsaved(ids ...string) {
	for _, id := range ids {
		m.unsaved[id] = struct{}{}
	}
}

// MarkSaved clears the unsaved flag of segments.
func (m *Manager) MarkSaved(ids ...string) {
	for _, id := range ids {
		delete(m.unsaved, id)
	}
}

// Clear drops both stacks and the unsaved set.
func (m *Manager) Clear() {
	m.undo = nil
	m.redo = nil
	m.unsaved = make(map[string]struct{})
}
