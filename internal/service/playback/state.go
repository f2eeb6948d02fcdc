// Package playback keeps audio playback and the transcript cursor in sync.
package playback

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the playback state of an editor session.
type State int

const (
	// StateIdle - Nothing loaded.
	StateIdle State = iota
	// StateLoading - Transcript and/or audio metadata are being fetched.
	StateLoading
	// StateReady - Segments and audio metadata are available, never played.
	StateReady
	// StatePlaying - Audio is playing and ticks are being resolved.
	StatePlaying
	// StatePaused - Playback stopped by the user or end of media.
	StatePaused
	// StateSeeking - An explicit seek is in progress.
	StateSeeking
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateLoading:
		return "LOADING"
	case StateReady:
		return "READY"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	case StateSeeking:
		return "SEEKING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsLoaded returns true once the transcript and audio are available.
func (s State) IsLoaded() bool {
	return s >= StateReady
}

// Errors for invalid state transitions.
var (
	ErrNotLoaded         = errors.New("playback not loaded")
	ErrAlreadyPlaying    = errors.New("already playing")
	ErrNotPlaying        = errors.New("not playing")
	ErrNotSeeking        = errors.New("no seek in progress")
	ErrInvalidTransition = errors.New("invalid playback transition")
)

// Machine manages the playback state transitions.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → LOADING → READY ──Play()──→ PLAYING ──Pause()/End()──→ PAUSED
//	                   │                  ↑                          │
//	                   │                  └─────────Play()───────────┘
//	                   │
//	any loaded state ──Seek()──→ SEEKING ──SeekDone()──→ PLAYING or PAUSED
//
// Rules:
//   - SEEKING returns to PLAYING if playback was running when the seek began,
//     otherwise to PAUSED.
//   - Reset() returns to IDLE from any state.
type Machine struct {
	mu         sync.RWMutex
	state      State
	resumeTo   State
	haveAudio  bool
	haveScript bool
}

// NewMachine creates a machine in IDLE state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// BeginLoad transitions to LOADING. Allowed from IDLE only.
func (m *Machine) BeginLoad() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, m.state, StateLoading)
	}
	m.state = StateLoading
	m.haveAudio = false
	m.haveScript = false
	return nil
}

// TranscriptLoaded records that segments are available. Returns true if the
// machine became READY.
func (m *Machine) TranscriptLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.haveScript = true
	return m.maybeReady()
}

// AudioLoaded records that audio metadata is available. Returns true if the
// machine became READY.
func (m *Machine) AudioLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.haveAudio = true
	return m.maybeReady()
}

func (m *Machine) maybeReady() bool {
	if m.state == StateLoading && m.haveAudio && m.haveScript {
		m.state = StateReady
		return true
	}
	return false
}

// Play transitions READY or PAUSED to PLAYING.
func (m *Machine) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateReady, StatePaused:
		m.state = StatePlaying
		return nil
	case StatePlaying:
		return ErrAlreadyPlaying
	case StateSeeking:
		// Playback resumes once the seek completes.
		m.resumeTo = StatePlaying
		return nil
	default:
		return ErrNotLoaded
	}
}

// Pause transitions PLAYING to PAUSED. Also used for end of media.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StatePlaying:
		m.state = StatePaused
		return nil
	case StateSeeking:
		m.resumeTo = StatePaused
		return nil
	case StateReady, StatePaused:
		return ErrNotPlaying
	default:
		return ErrNotLoaded
	}
}

// Seek transitions any loaded state to SEEKING, remembering whether playback
// should resume afterwards.
func (m *Machine) Seek() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StatePlaying:
		m.resumeTo = StatePlaying
	case StateReady, StatePaused:
		m.resumeTo = StatePaused
	case StateSeeking:
		// A new seek supersedes the pending one; keep the original resume state.
	default:
		return ErrNotLoaded
	}
	m.state = StateSeeking
	return nil
}

// SeekDone returns from SEEKING to the state that preceded it.
func (m *Machine) SeekDone() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSeeking {
		return m.state, ErrNotSeeking
	}
	m.state = m.resumeTo
	return m.state, nil
}

// IsPlaying returns true if audio is running, including a seek that will resume playback.
func (m *Machine) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StatePlaying || (m.state == StateSeeking && m.resumeTo == StatePlaying)
}

// Reset returns the machine to IDLE from any state. Idempotent.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
	m.resumeTo = StateIdle
	m.haveAudio = false
	m.haveScript = false
}
