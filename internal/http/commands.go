package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"transcript-editor-service/internal/bridge"
	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/schema"
	"transcript-editor-service/internal/service/edit"
	"transcript-editor-service/internal/service/playback"
	"transcript-editor-service/internal/service/session"
)

// Command is one instruction from the page. Only the fields the named
// command uses are read.
type Command struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command" validate:"required,oneof=load reset mediaDuration play pause stop seek skip wordClicked timeUpdate end autoSeekLock playbackRate editWord blurWord updateTime splitByWord splitByTime merge assignSpeaker clearHighRisk undo redo save confirm"`

	TranscriptID string              `json:"transcriptId,omitempty" validate:"required_if=Command load"`
	Duration     float64             `json:"duration,omitempty" validate:"gte=0"`
	Time         float64             `json:"time,omitempty" validate:"gte=0"`
	Forward      bool                `json:"forward,omitempty"`
	Locked       bool                `json:"locked,omitempty"`
	Rate         float64             `json:"rate,omitempty" validate:"required_if=Command playbackRate,gte=0"`
	Location     models.TextLocation `json:"location"`
	Text         string              `json:"text,omitempty"`

	SegmentIndex      int     `json:"segmentIndex" validate:"gte=0"`
	OtherSegmentIndex int     `json:"otherSegmentIndex" validate:"gte=0"`
	WordIndex         int     `json:"wordIndex" validate:"gte=0"`
	CharOffset        int     `json:"charOffset" validate:"gte=0"`
	Start             float64 `json:"start"`
	Length            float64 `json:"length"`
	Speaker           string  `json:"speaker,omitempty"`
	Words             []int   `json:"words,omitempty" validate:"dive,gte=0"`
}

// Reply answers one command.
type Reply struct {
	ID      string      `json:"id,omitempty"`
	Command string      `json:"command"`
	OK      bool        `json:"ok"`
	Error   string      `json:"error,omitempty"`
	Kind    bridge.Kind `json:"kind,omitempty"`
	Result  any         `json:"result,omitempty"`
}

type seekResult struct {
	Time float64 `json:"time"`
}

type stepResult struct {
	Applied bool                `json:"applied"`
	Caret   models.TextLocation `json:"caret"`
}

// Dispatcher runs page commands against the editor session.
type Dispatcher struct {
	editor    *session.Session
	validator *schema.Validator
}

// NewDispatcher creates a dispatcher for editor.
func NewDispatcher(editor *session.Session) *Dispatcher {
	return &Dispatcher{editor: editor, validator: schema.New()}
}

// Execute validates and runs cmd. The reply carries the error, if any.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (Reply, error) {
	reply := Reply{ID: cmd.ID, Command: cmd.Command}
	if err := d.validator.Validate(cmd); err != nil {
		return withError(reply, err), err
	}
	result, err := d.run(ctx, cmd)
	if err != nil {
		return withError(reply, err), err
	}
	reply.OK = true
	reply.Result = result
	return reply, nil
}

func withError(r Reply, err error) Reply {
	r.Error = err.Error()
	var p *bridge.Problem
	if errors.As(err, &p) || edit.IsValidation(err) {
		r.Kind = bridge.KindOf(err)
		if p != nil {
			r.Error = p.UserMessage()
		}
	}
	return r
}

func (d *Dispatcher) run(ctx context.Context, cmd Command) (any, error) {
	s := d.editor
	switch cmd.Command {
	case "load":
		return nil, s.Load(ctx, cmd.TranscriptID, cmd.Duration)
	case "reset":
		s.Reset()
		return nil, nil
	case "mediaDuration":
		s.SetMediaDuration(cmd.Duration)
		return nil, nil

	case "play":
		return nil, s.Play()
	case "pause":
		return nil, s.Pause()
	case "stop":
		return nil, s.Stop()
	case "seek":
		return seek(s.Seek(cmd.Time))
	case "skip":
		return seek(s.Skip(cmd.Forward))
	case "wordClicked":
		return seek(s.WordClicked(cmd.Location.Location()))
	case "timeUpdate":
		s.TimeUpdate(cmd.Time)
		return nil, nil
	case "end":
		s.EndOfMedia()
		return nil, nil
	case "autoSeekLock":
		s.SetAutoSeekLock(cmd.Locked)
		return nil, nil
	case "playbackRate":
		s.SetPlaybackRate(cmd.Rate)
		return nil, nil

	case "editWord":
		return nil, s.EditWord(cmd.Location, cmd.Text)
	case "blurWord":
		return nil, s.BlurWord()
	case "updateTime":
		return nil, s.UpdateSegmentTime(ctx, cmd.SegmentIndex, cmd.Start, cmd.Length)
	case "splitByWord":
		return nil, s.SplitByWord(ctx, cmd.SegmentIndex, cmd.WordIndex)
	case "splitByTime":
		return nil, s.SplitByTime(ctx, cmd.SegmentIndex, cmd.Time, cmd.CharOffset)
	case "merge":
		return nil, s.Merge(ctx, cmd.SegmentIndex, cmd.OtherSegmentIndex)
	case "assignSpeaker":
		return nil, s.AssignSpeaker(cmd.SegmentIndex, cmd.Speaker, cmd.Words)
	case "clearHighRisk":
		return nil, s.ClearHighRisk(cmd.SegmentIndex)
	case "undo":
		return step(s.Undo(ctx))
	case "redo":
		return step(s.Redo(ctx))
	case "save":
		return nil, s.Save(ctx)
	case "confirm":
		return nil, s.Confirm(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", schema.ErrInvalid, cmd.Command)
	}
}

func seek(t float64, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return seekResult{Time: t}, nil
}

func step(caret models.TextLocation, ok bool, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return stepResult{Applied: ok, Caret: caret}, nil
}

// statusFor maps a command error to an HTTP status.
func statusFor(err error) int {
	var p *bridge.Problem
	switch {
	case errors.Is(err, schema.ErrInvalid):
		return http.StatusBadRequest
	case edit.IsValidation(err), errors.Is(err, edit.ErrNoDraft):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrNotReady),
		errors.Is(err, session.ErrReadOnly),
		errors.Is(err, session.ErrReloadRequired),
		errors.Is(err, session.ErrAlreadyConfirmed),
		errors.Is(err, session.ErrReset),
		errors.Is(err, playback.ErrNotLoaded),
		errors.Is(err, playback.ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &p):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
