package playback

import (
	"time"

	"github.com/rs/zerolog"

	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/observability/logging"
	"transcript-editor-service/internal/observability/metrics"
	"transcript-editor-service/internal/service/resolver"
	"transcript-editor-service/internal/service/transcript"
)

// Resolver accepts location requests; responses come back through HandleResolved.
type Resolver interface {
	Submit(req resolver.Request)
}

// Listener receives controller output. Implementations must not call back
// into the controller.
type Listener interface {
	OnLocationChanged(loc models.Location)
	OnHighlightChanged(word, segment models.HighlightPayload)
	OnStateChanged(state State)
}

// Config holds controller tuning.
type Config struct {
	// SeekSlop is added to a clicked word's start so the seek lands inside it.
	SeekSlop float64
	// SkipInterval is the jump used by Skip.
	SkipInterval time.Duration
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		SeekSlop:     0.00001,
		SkipInterval: 5 * time.Second,
	}
}

// Controller owns the playback time and the highlighted location.
//
// Every resolve request is tagged with a monotonically increasing sequence
// number and only the response to the newest request is applied. Anything
// that invalidates the current picture (a click, an edit, a reset) bumps the
// sequence so in-flight answers are dropped instead of rewinding the cursor.
//
// The controller is not safe for concurrent use; the editor session
// serializes access.
type Controller struct {
	machine  *Machine
	resolver Resolver
	listener Listener
	cfg      Config
	metrics  *metrics.Metrics
	log      zerolog.Logger

	doc      *transcript.Transcript
	duration float64

	seq          uint64
	playbackTime float64
	location     models.Location

	highlighted   bool
	wordHighlight models.HighlightPayload
	segHighlight  models.HighlightPayload

	autoSeekLock bool
	// suppressTimeUpdate is set by a word click so the next time report,
	// which still carries the pre-click position, is ignored once.
	suppressTimeUpdate bool
}

// NewController creates a controller in IDLE state.
func NewController(cfg Config, r Resolver, l Listener, m *metrics.Metrics) *Controller {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Controller{
		machine:  NewMachine(),
		resolver: r,
		listener: l,
		cfg:      cfg,
		metrics:  m,
		log:      logging.WithComponent("playback"),
		doc:      transcript.Empty(),
	}
}

// State returns the current playback state.
func (c *Controller) State() State { return c.machine.State() }

// Location returns the current highlighted location.
func (c *Controller) Location() models.Location { return c.location }

// PlaybackTime returns the last accepted playback time.
func (c *Controller) PlaybackTime() float64 { return c.playbackTime }

// Duration returns the audio duration.
func (c *Controller) Duration() float64 { return c.duration }

// AutoSeekLock reports whether clicks leave the current location untouched.
func (c *Controller) AutoSeekLock() bool { return c.autoSeekLock }

// Seq returns the sequence number of the newest resolve request.
func (c *Controller) Seq() uint64 { return c.seq }

// Highlight returns the current word and segment highlight, if any.
func (c *Controller) Highlight() (word, segment models.HighlightPayload, ok bool) {
	return c.wordHighlight, c.segHighlight, c.highlighted
}

// SetAutoSeekLock engages or releases the auto-seek lock.
func (c *Controller) SetAutoSeekLock(locked bool) { c.autoSeekLock = locked }

// BeginLoad starts loading a transcript.
func (c *Controller) BeginLoad() error {
	if err := c.machine.BeginLoad(); err != nil {
		return err
	}
	c.emitState()
	return nil
}

// SetTranscript hands the controller a new transcript version. While loading
// it counts towards READY; afterwards the current time is resolved again,
// since indices from the previous version may no longer be valid.
func (c *Controller) SetTranscript(doc *transcript.Transcript) {
	if doc == nil {
		doc = transcript.Empty()
	}
	c.doc = doc
	switch c.machine.State() {
	case StateIdle:
	case StateLoading:
		if c.machine.TranscriptLoaded() {
			c.onReady()
		}
	default:
		c.request(c.playbackTime, true)
	}
}

// SetDuration records the audio duration. While loading it counts towards READY.
func (c *Controller) SetDuration(seconds float64) {
	c.duration = seconds
	if c.machine.State() == StateLoading && c.machine.AudioLoaded() {
		c.onReady()
	}
}

func (c *Controller) onReady() {
	c.emitState()
	c.playbackTime = 0
	c.request(0, true)
}

// Play starts playback.
func (c *Controller) Play() error {
	if err := c.machine.Play(); err != nil {
		return err
	}
	c.emitState()
	return nil
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	if err := c.machine.Pause(); err != nil {
		return err
	}
	c.emitState()
	return nil
}

// End handles end of media: playback pauses at the reported time.
func (c *Controller) End(at float64) {
	if c.machine.Pause() == nil {
		c.emitState()
	}
	c.handleTime(at, false)
}

// Stop pauses and rewinds to the start. Returns the time the media should seek to.
func (c *Controller) Stop() (float64, error) {
	st := c.machine.State()
	if !st.IsLoaded() {
		return 0, ErrNotLoaded
	}
	if c.machine.IsPlaying() {
		c.machine.Pause()
		c.emitState()
	}
	c.suppressTimeUpdate = false
	c.handleTime(0, false)
	return 0, nil
}

// Seek begins an explicit seek to t, clamped to the media. Returns the
// clamped target the media should seek to.
func (c *Controller) Seek(t float64) (float64, error) {
	t = c.clamp(t)
	if err := c.machine.Seek(); err != nil {
		return 0, err
	}
	c.suppressTimeUpdate = false
	c.emitState()
	return t, nil
}

// SeekDone completes a seek and reports the time the media landed on. After a
// word click the cursor is already placed, so the landing only moves the
// playback time and the next time report stays suppressed.
func (c *Controller) SeekDone(at float64) error {
	if _, err := c.machine.SeekDone(); err != nil {
		return err
	}
	c.emitState()
	if c.suppressTimeUpdate {
		c.playbackTime = c.clamp(at)
		c.seq++
		return nil
	}
	c.handleTime(at, false)
	return nil
}

// Skip seeks forward or backward by the configured interval.
func (c *Controller) Skip(forward bool) (float64, error) {
	delta := c.cfg.SkipInterval.Seconds()
	if !forward {
		delta = -delta
	}
	return c.Seek(c.playbackTime + delta)
}

// OnPlaybackTick is called by the fixed-interval poller. Ticks are ignored
// unless playback is running.
func (c *Controller) OnPlaybackTick(t float64) bool {
	if c.machine.State() != StatePlaying {
		return false
	}
	c.metrics.RecordTick()
	return c.handleTime(t, false)
}

// OnTimeUpdate handles a native media time report outside the tick cadence.
func (c *Controller) OnTimeUpdate(t float64) bool {
	if !c.machine.State().IsLoaded() {
		return false
	}
	return c.handleTime(t, false)
}

// OnWordClicked seeks to the clicked word and, unless the auto-seek lock is
// engaged, moves the highlighted location there immediately. Returns the time
// the media should seek to.
func (c *Controller) OnWordClicked(loc models.Location) (float64, error) {
	if !c.machine.State().IsLoaded() {
		return 0, ErrNotLoaded
	}
	if _, err := c.doc.Word(loc); err != nil {
		return 0, err
	}

	target, err := c.Seek(c.doc.WordTime(loc) + c.cfg.SeekSlop)
	if err != nil {
		return 0, err
	}

	c.suppressTimeUpdate = true
	c.playbackTime = target
	// Anything resolved for the pre-click time is now stale.
	c.seq++
	c.buildHighlight(loc)
	if !c.autoSeekLock {
		c.setLocation(loc, false)
	}
	return target, nil
}

// HandleResolved applies a resolver response if it answers the newest request.
func (c *Controller) HandleResolved(resp resolver.Response) bool {
	if resp.Seq != c.seq {
		c.metrics.RecordResolverStale()
		c.log.Debug().
			Uint64("seq", resp.Seq).
			Uint64("latest", c.seq).
			Msg("Discarded stale resolve response")
		return false
	}
	if !c.machine.State().IsLoaded() {
		return false
	}

	changed := resp.Location != c.location
	c.setLocation(resp.Location, resp.InitialLoad)
	if resp.InitialLoad || changed || !c.highlighted {
		c.buildHighlight(resp.Location)
	}
	return true
}

// Reset returns to IDLE and clears all cursor state in one step. In-flight
// resolve responses are invalidated.
func (c *Controller) Reset() {
	c.machine.Reset()
	c.seq++
	c.doc = transcript.Empty()
	c.duration = 0
	c.playbackTime = 0
	c.location = models.Location{}
	c.highlighted = false
	c.wordHighlight = models.HighlightPayload{}
	c.segHighlight = models.HighlightPayload{}
	c.suppressTimeUpdate = false
	c.emitState()
	c.listener.OnLocationChanged(c.location)
}

func (c *Controller) handleTime(t float64, initial bool) bool {
	if c.suppressTimeUpdate {
		c.suppressTimeUpdate = false
		c.log.Debug().Float64("time", t).Msg("Suppressed time update after word click")
		return false
	}
	c.playbackTime = c.clamp(t)
	c.request(c.playbackTime, initial)
	return true
}

func (c *Controller) request(t float64, initial bool) {
	c.seq++
	c.resolver.Submit(resolver.Request{
		Seq:         c.seq,
		Time:        t,
		Segments:    c.doc.Segments(),
		InitialLoad: initial,
	})
}

func (c *Controller) setLocation(loc models.Location, force bool) {
	if loc == c.location && !force {
		return
	}
	c.location = loc
	c.listener.OnLocationChanged(loc)
}

func (c *Controller) buildHighlight(loc models.Location) {
	seg, err := c.doc.Get(loc.SegmentIndex)
	if err != nil {
		return
	}
	segPayload := models.HighlightPayload{
		Text: seg.Transcript,
		Time: models.TimeWindow{Start: seg.Start, End: seg.End()},
	}
	var wordPayload models.HighlightPayload
	if w, err := c.doc.Word(loc); err == nil {
		start := seg.Start + w.Start
		wordPayload = models.HighlightPayload{
			Text: w.DisplayText(),
			Time: models.TimeWindow{Start: start, End: start + w.Length},
		}
	}
	c.wordHighlight = wordPayload
	c.segHighlight = segPayload
	c.highlighted = true
	c.listener.OnHighlightChanged(wordPayload, segPayload)
}

func (c *Controller) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if c.duration > 0 && t > c.duration {
		return c.duration
	}
	return t
}

func (c *Controller) emitState() {
	c.listener.OnStateChanged(c.machine.State())
}
