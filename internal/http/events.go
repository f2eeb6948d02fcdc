package http

import (
	"transcript-editor-service/internal/bridge"
	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/service/playback"
)

// Event types pushed to the page.
const (
	EventLocationChanged  = "locationChanged"
	EventHighlightChanged = "highlightChanged"
	EventUndoRedo         = "undoRedoAvailabilityChanged"
	EventUnsavedSegments  = "unsavedSegmentsChanged"
	EventCommitError      = "commitError"
	EventStateChanged     = "stateChanged"
	EventSnapshot         = "snapshot"
	EventReply            = "reply"
)

type highlightPayload struct {
	Word    models.HighlightPayload `json:"word"`
	Segment models.HighlightPayload `json:"segment"`
}

type undoRedoPayload struct {
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

type unsavedPayload struct {
	SegmentIDs []string `json:"segmentIds"`
}

type commitErrorPayload struct {
	Kind    bridge.Kind `json:"kind"`
	Message string      `json:"message"`
}

type statePayload struct {
	State playback.State `json:"state"`
}

// SessionEvents forwards session events to every connected page.
type SessionEvents struct {
	hub *Hub
}

// NewSessionEvents returns a session listener backed by hub.
func NewSessionEvents(hub *Hub) *SessionEvents {
	return &SessionEvents{hub: hub}
}

func (e *SessionEvents) OnLocationChanged(loc models.Location) {
	e.hub.Broadcast(Message{Type: EventLocationChanged, Payload: loc})
}

func (e *SessionEvents) OnHighlightChanged(word, segment models.HighlightPayload) {
	e.hub.Broadcast(Message{Type: EventHighlightChanged, Payload: highlightPayload{word, segment}})
}

func (e *SessionEvents) OnUndoRedoAvailabilityChanged(canUndo, canRedo bool) {
	e.hub.Broadcast(Message{Type: EventUndoRedo, Payload: undoRedoPayload{canUndo, canRedo}})
}

func (e *SessionEvents) OnUnsavedSegmentsChanged(ids []string) {
	if ids == nil {
		ids = []string{}
	}
	e.hub.Broadcast(Message{Type: EventUnsavedSegments, Payload: unsavedPayload{ids}})
}

func (e *SessionEvents) OnCommitError(kind bridge.Kind, message string) {
	e.hub.Broadcast(Message{Type: EventCommitError, Payload: commitErrorPayload{kind, message}})
}

func (e *SessionEvents) OnStateChanged(state playback.State) {
	e.hub.Broadcast(Message{Type: EventStateChanged, Payload: statePayload{state}})
}
