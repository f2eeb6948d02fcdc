package session

import (
	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/service/playback"
)

// DisabledControls lists which page controls are currently unavailable.
type DisabledControls struct {
	Undo    bool `json:"undo"`
	Redo    bool `json:"redo"`
	Save    bool `json:"save"`
	Confirm bool `json:"confirm"`
	Split   bool `json:"split"`
	Merge   bool `json:"merge"`
	Edit    bool `json:"edit"`
}

// Snapshot is a point-in-time view of the session for the page.
type Snapshot struct {
	TranscriptID   string           `json:"transcriptId"`
	State          playback.State   `json:"state"`
	Location       models.Location  `json:"location"`
	PlaybackTime   float64          `json:"playbackTime"`
	Duration       float64          `json:"duration"`
	AutoSeekLock   bool             `json:"autoSeekLock"`
	ReadOnly       bool             `json:"readOnly"`
	Confirmed      bool             `json:"confirmed"`
	ReloadRequired bool             `json:"reloadRequired"`
	InFlight       bool             `json:"inFlight"`
	CanUndo        bool             `json:"canUndo"`
	CanRedo        bool             `json:"canRedo"`
	Unsaved        []string         `json:"unsaved"`
	Disabled       DisabledControls `json:"disabled"`
	Segments       []models.Segment `json:"segments"`
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		TranscriptID:   s.transcriptID,
		State:          s.controller.State(),
		Location:       s.controller.Location(),
		PlaybackTime:   s.controller.PlaybackTime(),
		Duration:       s.controller.Duration(),
		AutoSeekLock:   s.controller.AutoSeekLock(),
		ReadOnly:       s.cfg.ReadOnly,
		Confirmed:      s.confirmed,
		ReloadRequired: s.reloadRequired,
		InFlight:       s.inFlight,
		CanUndo:        s.history.CanUndo(),
		CanRedo:        s.history.CanRedo(),
		Unsaved:        s.history.Unsaved(),
		Disabled:       s.disabledLocked(),
		Segments:       s.doc.Segments(),
	}
}

// Controls returns which controls are currently unavailable.
func (s *Session) Controls() DisabledControls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabledLocked()
}

func (s *Session) disabledLocked() DisabledControls {
	loaded := s.controller.State().IsLoaded()
	blocked := s.inFlight || !loaded || s.reloadRequired || s.cfg.ReadOnly
	return DisabledControls{
		Undo:    blocked || !s.history.CanUndo(),
		Redo:    blocked || !s.history.CanRedo(),
		Save:    blocked || len(s.history.Unsaved()) == 0,
		Confirm: s.inFlight || !loaded || s.reloadRequired || s.cfg.ReadOnly || s.confirmed,
		Split:   blocked || !s.doc.HasWords(),
		Merge:   blocked || s.doc.Len() < 2,
		Edit:    blocked,
	}
}

func (s *Session) checkReadyLocked() error {
	switch {
	case s.closed:
		return ErrClosed
	case !s.controller.State().IsLoaded():
		return ErrNotReady
	case s.reloadRequired:
		return ErrReloadRequired
	case s.inFlight:
		return ErrBusy
	}
	return nil
}

func (s *Session) checkEditableLocked() error {
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}
	return s.checkReadyLocked()
}
