package edit

import (
	"errors"

	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/service/transcript"
)

// ErrNoDraft is returned when committing without an open draft.
var ErrNoDraft = errors.New("no word is being edited")

// WordDraft buffers keystrokes for one word. Nothing reaches the transcript
// until Commit, which runs when the word loses focus.
type WordDraft struct {
	open bool
	loc  models.TextLocation
	text string
}

// Open starts editing the word at loc, replacing any previous draft.
func (d *WordDraft) Open(doc *transcript.Transcript, loc models.TextLocation) error {
	w, err := doc.Word(loc.Location())
	if err != nil {
		return err
	}
	d.open = true
	d.loc = loc
	d.text = w.Word
	return nil
}

// Update records the current text and caret offset.
func (d *WordDraft) Update(text string, caret int) {
	if !d.open {
		return
	}
	d.text = text
	d.loc.Offset = caret
}

// Active reports whether a draft is open.
func (d *WordDraft) Active() bool { return d.open }

// Location returns the word and caret being edited.
func (d *WordDraft) Location() models.TextLocation { return d.loc }

// Text returns the buffered text.
func (d *WordDraft) Text() string { return d.text }

// Commit closes the draft and turns it into a word text edit. An unchanged
// word yields ErrNoChange.
func (d *WordDraft) Commit(doc *transcript.Transcript) (Result, error) {
	if !d.open {
		return Result{}, ErrNoDraft
	}
	loc, text := d.loc, d.text
	d.Discard()
	return EditWordText(doc, loc, text)
}

// Discard drops the draft without committing.
func (d *WordDraft) Discard() {
	*d = WordDraft{}
}
