// Package session runs one transcript editor session: it owns the current
// transcript version and wires the resolver, the playback controller, the
// edit operations, the history and the persistence bridge together.
//
// All state lives behind one mutex. Listener callbacks are queued while the
// mutex is held and delivered after it is released, in order.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"transcript-editor-service/internal/bridge"
	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/observability/logging"
	"transcript-editor-service/internal/observability/metrics"
	"transcript-editor-service/internal/service/edit"
	"transcript-editor-service/internal/service/history"
	"transcript-editor-service/internal/service/playback"
	"transcript-editor-service/internal/service/resolver"
	"transcript-editor-service/internal/service/transcript"
)

var (
	ErrNotReady         = errors.New("session not ready")
	ErrBusy             = errors.New("a commit is in flight")
	ErrReadOnly         = errors.New("session is read-only")
	ErrReloadRequired   = errors.New("transcript changed server-side, reload required")
	ErrAlreadyConfirmed = errors.New("transcript already confirmed")
	ErrReset            = errors.New("session was reset")
	ErrClosed           = errors.New("session closed")
)

// Listener receives session events. Calls are made from session goroutines
// without the state lock held, one at a time. A listener must not call back
// into methods that change session state.
type Listener interface {
	OnLocationChanged(loc models.Location)
	OnHighlightChanged(word, segment models.HighlightPayload)
	OnUndoRedoAvailabilityChanged(canUndo, canRedo bool)
	OnUnsavedSegmentsChanged(ids []string)
	OnCommitError(kind bridge.Kind, message string)
	OnStateChanged(state playback.State)
}

// Publisher receives audit events for committed edits.
type Publisher interface {
	PublishEdit(ctx context.Context, event models.EditEvent) error
	PublishConfirmed(ctx context.Context, event models.TranscriptConfirmed) error
}

// Config holds session settings.
type Config struct {
	ReadOnly      bool
	Playback      playback.Config
	TickInterval  time.Duration
	Resolver      resolver.Config
	CommitTimeout time.Duration
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	return Config{
		Playback:      playback.DefaultConfig(),
		TickInterval:  30 * time.Millisecond,
		Resolver:      resolver.DefaultConfig(),
		CommitTimeout: 30 * time.Second,
	}
}

// Session is one editor session.
type Session struct {
	mu     sync.Mutex
	emitMu sync.Mutex

	cfg       Config
	bridge    bridge.Bridge
	publisher Publisher
	listener  Listener
	metrics   *metrics.Metrics
	log       zerolog.Logger

	worker     *resolver.Worker
	controller *playback.Controller
	clock      *playback.MediaClock
	poller     *playback.Poller
	history    *history.Manager
	draft      edit.WordDraft

	transcriptID   string
	doc            *transcript.Transcript
	epoch          uint64
	inFlight       bool
	confirmed      bool
	reloadRequired bool
	closed         bool

	pending []func(Listener)
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates an idle session. A nil publisher disables audit events; a nil
// listener drops session events.
func New(cfg Config, b bridge.Bridge, p Publisher, l Listener, m *metrics.Metrics) *Session {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if l == nil {
		l = nopListener{}
	}
	s := &Session{
		cfg:       cfg,
		bridge:    b,
		publisher: p,
		listener:  l,
		metrics:   m,
		log:       logging.WithComponent("session"),
		worker:    resolver.NewWorker(cfg.Resolver, m),
		clock:     playback.NewMediaClock(nil),
		history:   history.NewManager(),
		doc:       transcript.Empty(),
		done:      make(chan struct{}),
	}
	s.controller = playback.NewController(cfg.Playback, s.worker, controllerSink{s}, m)
	s.poller = playback.NewPoller(cfg.TickInterval, s.clock, s.onTick)

	s.wg.Add(1)
	go s.consume()
	return s
}

// Close stops the session's goroutines.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.epoch++
	s.poller.Stop()
	close(s.done)
	s.mu.Unlock()

	s.worker.Close()
	s.wg.Wait()
}

// consume applies resolver responses.
func (s *Session) consume() {
	defer s.wg.Done()
	for {
		select {
		case resp := <-s.worker.Responses():
			s.mu.Lock()
			s.controller.HandleResolved(resp)
			s.mu.Unlock()
			s.flush()
		case <-s.done:
			return
		}
	}
}

// onTick runs on the poller goroutine.
func (s *Session) onTick(t float64) {
	s.mu.Lock()
	if s.clock.Ended() {
		s.endLocked()
	} else {
		s.controller.OnPlaybackTick(t)
	}
	s.mu.Unlock()
	s.flush()
}

// Reset returns the session to IDLE in one step: cursor, transcript, history,
// draft and in-flight state are all cleared, and pending resolver and commit
// results are invalidated.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.flush()
}

func (s *Session) resetLocked() {
	s.epoch++
	s.poller.Stop()
	s.clock.Reset()
	s.controller.Reset()
	s.history.Clear()
	s.draft.Discard()
	s.doc = transcript.Empty()
	s.transcriptID = ""
	s.inFlight = false
	s.confirmed = false
	s.reloadRequired = false
	s.metrics.RecordReset()
	s.emitHistoryLocked()
}

// Load resets the session and fetches a transcript. duration is the audio
// length when already known, otherwise 0 and SetMediaDuration follows.
func (s *Session) Load(ctx context.Context, transcriptID string, duration float64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.resetLocked()
	if err := s.controller.BeginLoad(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.transcriptID = transcriptID
	if duration > 0 {
		s.setDurationLocked(duration)
	}
	epoch := s.epoch
	s.mu.Unlock()
	s.flush()

	log := logging.WithTranscript(transcriptID)
	start := time.Now()
	segs, err := s.bridge.GetSegments(ctx, transcriptID)
	var doc *transcript.Transcript
	if err == nil {
		doc, err = transcript.New(segs)
		if err != nil {
			err = &bridge.Problem{Kind: bridge.KindUnknown, Message: "The server returned an inconsistent transcript."}
		}
	}

	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrReset
	}
	if err != nil {
		p := bridge.AsProblem(err)
		log.Error().Err(err).Str("kind", string(p.Kind)).Msg("Failed to load transcript")
		s.resetLocked()
		s.emit(func(l Listener) { l.OnCommitError(p.Kind, p.UserMessage()) })
		return p
	}

	s.doc = doc
	s.controller.SetTranscript(doc)
	s.metrics.RecordLoad(time.Since(start).Seconds())
	log.Info().
		Int("segments", doc.Len()).
		Dur("took", time.Since(start)).
		Msg("Transcript loaded")
	return nil
}

// SetMediaDuration records the audio length once its metadata is available.
func (s *Session) SetMediaDuration(seconds float64) {
	s.mu.Lock()
	s.setDurationLocked(seconds)
	s.mu.Unlock()
	s.flush()
}

func (s *Session) setDurationLocked(seconds float64) {
	s.clock.SetDuration(seconds)
	s.controller.SetDuration(seconds)
}

// TranscriptID returns the loaded transcript id.
func (s *Session) TranscriptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcriptID
}

// Transcript returns the current transcript version.
func (s *Session) Transcript() *transcript.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// emit queues a listener call. Must hold s.mu.
func (s *Session) emit(fn func(Listener)) {
	s.pending = append(s.pending, fn)
}

// flush delivers queued listener calls. Must not hold s.mu.
func (s *Session) flush() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range batch {
		fn(s.listener)
	}
}

func (s *Session) emitHistoryLocked() {
	canUndo, canRedo := s.history.CanUndo(), s.history.CanRedo()
	ids := s.history.Unsaved()
	s.metrics.SetUnsaved(len(ids))
	s.emit(func(l Listener) {
		l.OnUndoRedoAvailabilityChanged(canUndo, canRedo)
		l.OnUnsavedSegmentsChanged(ids)
	})
}

// controllerSink forwards controller output into the session event queue.
// The controller is only driven with s.mu held.
type controllerSink struct{ s *Session }

func (c controllerSink) OnLocationChanged(loc models.Location) {
	c.s.emit(func(l Listener) { l.OnLocationChanged(loc) })
}

func (c controllerSink) OnHighlightChanged(word, segment models.HighlightPayload) {
	c.s.emit(func(l Listener) { l.OnHighlightChanged(word, segment) })
}

func (c controllerSink) OnStateChanged(state playback.State) {
	c.s.emit(func(l Listener) { l.OnStateChanged(state) })
}

type nopListener struct{}

func (nopListener) OnLocationChanged(models.Location)                                   {}
func (nopListener) OnHighlightChanged(models.HighlightPayload, models.HighlightPayload) {}
func (nopListener) OnUndoRedoAvailabilityChanged(bool, bool)                            {}
func (nopListener) OnUnsavedSegmentsChanged([]string)                                   {}
func (nopListener) OnCommitError(bridge.Kind, string)                                   {}
func (nopListener) OnStateChanged(playback.State)                                       {}
