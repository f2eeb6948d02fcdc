package session

import (
	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/service/playback"
)

// Play starts playback and the fixed-interval tick.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if err := s.controller.Play(); err != nil {
		return err
	}
	s.syncClockLocked()
	return nil
}

// Pause pauses playback.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if err := s.controller.Pause(); err != nil {
		return err
	}
	s.syncClockLocked()
	return nil
}

// Stop pauses and rewinds to the start.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	target, err := s.controller.Stop()
	if err != nil {
		return err
	}
	s.clock.Seek(target)
	s.syncClockLocked()
	return nil
}

// Seek jumps to t. Returns the clamped time the media should seek to.
func (s *Session) Seek(t float64) (float64, error) {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	target, err := s.controller.Seek(t)
	if err != nil {
		return 0, err
	}
	return target, s.completeSeekLocked(target)
}

// Skip jumps forward or backward by the configured interval.
func (s *Session) Skip(forward bool) (float64, error) {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	target, err := s.controller.Skip(forward)
	if err != nil {
		return 0, err
	}
	return target, s.completeSeekLocked(target)
}

// WordClicked seeks to the clicked word. Returns the time the media should seek to.
func (s *Session) WordClicked(loc models.Location) (float64, error) {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	target, err := s.controller.OnWordClicked(loc)
	if err != nil {
		return 0, err
	}
	return target, s.completeSeekLocked(target)
}

// TimeUpdate handles a native time report from the media element.
func (s *Session) TimeUpdate(t float64) {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if s.controller.OnTimeUpdate(t) {
		s.clock.Seek(t)
	}
}

// EndOfMedia handles the media reaching its end.
func (s *Session) EndOfMedia() {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	s.endLocked()
}

// SetAutoSeekLock engages or releases the auto-seek lock.
func (s *Session) SetAutoSeekLock(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.SetAutoSeekLock(locked)
}

// SetPlaybackRate changes the speed of the session clock.
func (s *Session) SetPlaybackRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.SetRate(rate)
}

func (s *Session) endLocked() {
	s.controller.End(s.clock.Position())
	s.syncClockLocked()
}

// completeSeekLocked moves the clock to target and finishes the seek. The
// session clock lands immediately, so the seek completes in the same step.
func (s *Session) completeSeekLocked(target float64) error {
	s.clock.Seek(target)
	if err := s.controller.SeekDone(target); err != nil {
		return err
	}
	s.syncClockLocked()
	return nil
}

// syncClockLocked runs the clock and the poller only while playing.
func (s *Session) syncClockLocked() {
	if s.controller.State() == playback.StatePlaying {
		s.clock.Play()
		s.poller.Start()
		return
	}
	s.clock.Pause()
	s.poller.Stop()
}
