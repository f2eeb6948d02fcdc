package playback

import (
	"testing"
	"time"

	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/service/resolver"
	"transcript-editor-service/internal/service/transcript"
)

// testResolver records requests; tests answer them explicitly.
type testResolver struct {
	requests []resolver.Request
}

func (r *testResolver) Submit(req resolver.Request) {
	r.requests = append(r.requests, req)
}

func (r *testResolver) last() resolver.Request {
	return r.requests[len(r.requests)-1]
}

func (r *testResolver) answer(req resolver.Request) resolver.Response {
	return resolver.Response{
		Seq:         req.Seq,
		Time:        req.Time,
		Location:    resolver.Resolve(req.Time, req.Segments),
		InitialLoad: req.InitialLoad,
	}
}

type highlight struct {
	word, segment models.HighlightPayload
}

type testListener struct {
	locations  []models.Location
	highlights []highlight
	states     []State
}

func (l *testListener) OnLocationChanged(loc models.Location) {
	l.locations = append(l.locations, loc)
}

func (l *testListener) OnHighlightChanged(word, segment models.HighlightPayload) {
	l.highlights = append(l.highlights, highlight{word, segment})
}

func (l *testListener) OnStateChanged(state State) {
	l.states = append(l.states, state)
}

func segments() []models.Segment {
	return []models.Segment{
		{ID: "a", Start: 0, Length: 2, Transcript: "hi", WordAlignments: []models.WordAlignment{
			{Word: "hi", Start: 0, Length: 1},
		}},
		{ID: "b", Start: 2, Length: 3, Transcript: "bye now", WordAlignments: []models.WordAlignment{
			{Word: "by|e", Start: 0, Length: 1},
			{Word: "now", Start: 1.5, Length: 1},
		}},
	}
}

func newReadyController(t *testing.T) (*Controller, *testResolver, *testListener) {
	t.Helper()
	r := &testResolver{}
	l := &testListener{}
	c := NewController(DefaultConfig(), r, l, nil)

	if err := c.BeginLoad(); err != nil {
		t.Fatalf("BeginLoad: %v", err)
	}
	doc, err := transcript.New(segments())
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	c.SetTranscript(doc)
	c.SetDuration(5)
	if c.State() != StateReady {
		t.Fatalf("expected StateReady, got %v", c.State())
	}
	// Initial resolve at time 0.
	if !c.HandleResolved(r.answer(r.last())) {
		t.Fatal("initial response should be applied")
	}
	return c, r, l
}

func TestController_ReadyRequestsInitialLocation(t *testing.T) {
	_, r, l := newReadyController(t)

	first := r.requests[0]
	if first.Time != 0 || !first.InitialLoad {
		t.Errorf("expected initial request at time 0, got %+v", first)
	}
	if len(l.locations) != 1 || l.locations[0] != (models.Location{}) {
		t.Errorf("expected forced location (0,0), got %v", l.locations)
	}
	if len(l.highlights) != 1 {
		t.Fatalf("expected one highlight, got %d", len(l.highlights))
	}
	h := l.highlights[0]
	if h.word.Text != "hi" || h.word.Time != (models.TimeWindow{Start: 0, End: 1}) {
		t.Errorf("unexpected word highlight %+v", h.word)
	}
	if h.segment.Text != "hi" || h.segment.Time != (models.TimeWindow{Start: 0, End: 2}) {
		t.Errorf("unexpected segment highlight %+v", h.segment)
	}
}

func TestController_TicksIgnoredUnlessPlaying(t *testing.T) {
	c, r, _ := newReadyController(t)
	n := len(r.requests)

	if c.OnPlaybackTick(1) {
		t.Error("tick in READY should be ignored")
	}
	if len(r.requests) != n {
		t.Error("ignored tick must not issue a request")
	}

	c.Play()
	if !c.OnPlaybackTick(1) {
		t.Error("tick while playing should be handled")
	}
	if r.last().Time != 1 {
		t.Errorf("expected request at 1, got %v", r.last().Time)
	}
}

func TestController_HighlightOnlyWhenLocationChanges(t *testing.T) {
	c, r, l := newReadyController(t)
	c.Play()

	c.OnPlaybackTick(0.5)
	c.HandleResolved(r.answer(r.last()))
	if len(l.highlights) != 1 {
		t.Errorf("same word must not rebuild the highlight, got %d", len(l.highlights))
	}

	c.OnPlaybackTick(2.2)
	c.HandleResolved(r.answer(r.last()))
	if len(l.highlights) != 2 {
		t.Fatalf("expected highlight rebuild, got %d", len(l.highlights))
	}
	h := l.highlights[1]
	if h.word.Text != "bye" {
		t.Errorf("expected separator removed from word text, got %q", h.word.Text)
	}
	if h.word.Time != (models.TimeWindow{Start: 2, End: 3}) {
		t.Errorf("unexpected word window %+v", h.word.Time)
	}
	if c.Location() != (models.Location{SegmentIndex: 1, WordIndex: 0}) {
		t.Errorf("unexpected location %v", c.Location())
	}
}

func TestController_DiscardsStaleResponses(t *testing.T) {
	c, r, l := newReadyController(t)
	c.Play()

	c.OnPlaybackTick(3.6)
	late := r.last()
	c.OnPlaybackTick(0.2)
	latest := r.last()

	// Newer answer arrives first; the older one must not rewind the cursor.
	if !c.HandleResolved(r.answer(latest)) {
		t.Error("latest response should be applied")
	}
	if c.HandleResolved(r.answer(late)) {
		t.Error("stale response should be discarded")
	}
	if c.Location() != (models.Location{}) {
		t.Errorf("expected location (0,0), got %v", c.Location())
	}
	for _, loc := range l.locations {
		if loc.SegmentIndex == 1 {
			t.Errorf("stale location was emitted: %v", loc)
		}
	}
}

func TestController_WordClick(t *testing.T) {
	c, r, l := newReadyController(t)
	c.Play()
	before := len(r.requests)

	target, err := c.OnWordClicked(models.Location{SegmentIndex: 1, WordIndex: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target != 3.5+DefaultConfig().SeekSlop {
		t.Errorf("expected seek to word start plus slop, got %v", target)
	}
	if c.State() != StateSeeking {
		t.Errorf("expected StateSeeking, got %v", c.State())
	}
	if c.Location() != (models.Location{SegmentIndex: 1, WordIndex: 1}) {
		t.Errorf("click should move the location immediately, got %v", c.Location())
	}
	if got := l.highlights[len(l.highlights)-1].word.Text; got != "now" {
		t.Errorf("expected clicked word highlighted, got %q", got)
	}

	// The seek landing only moves the playback time.
	if err := c.SeekDone(target); err != nil {
		t.Fatalf("SeekDone: %v", err)
	}
	if len(r.requests) != before {
		t.Error("seek landing after a click must not resolve")
	}
	if c.PlaybackTime() != target {
		t.Errorf("expected playback time %v, got %v", target, c.PlaybackTime())
	}
	if c.State() != StatePlaying {
		t.Errorf("expected to resume PLAYING, got %v", c.State())
	}

	// The next time report still carries the pre-click position and is dropped.
	if c.OnTimeUpdate(0.4) {
		t.Error("first time update after a click must be suppressed")
	}
	if len(r.requests) != before {
		t.Error("suppressed time update must not resolve")
	}
	if c.Location() != (models.Location{SegmentIndex: 1, WordIndex: 1}) {
		t.Errorf("suppressed update moved the location to %v", c.Location())
	}

	// Only once.
	c.OnPlaybackTick(3.6)
	if len(r.requests) != before+1 {
		t.Error("subsequent ticks must be processed")
	}
}

func TestController_PlainSeekIsNotSuppressed(t *testing.T) {
	c, r, _ := newReadyController(t)

	c.OnWordClicked(models.Location{SegmentIndex: 1, WordIndex: 0})
	c.SeekDone(c.PlaybackTime())
	before := len(r.requests)

	// An explicit seek supersedes the pending click suppression.
	target, err := c.Seek(1.2)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if err := c.SeekDone(target); err != nil {
		t.Fatalf("SeekDone: %v", err)
	}
	if len(r.requests) != before+1 || r.last().Time != 1.2 {
		t.Errorf("expected a resolve for the seek target, got %d requests", len(r.requests)-before)
	}
	if !c.OnTimeUpdate(1.3) {
		t.Error("time updates after a plain seek must be processed")
	}
}

func TestController_WordClickInvalidatesInFlight(t *testing.T) {
	c, r, _ := newReadyController(t)
	c.Play()

	c.OnPlaybackTick(0.1)
	inflight := r.last()
	c.OnWordClicked(models.Location{SegmentIndex: 1, WordIndex: 0})

	if c.HandleResolved(r.answer(inflight)) {
		t.Error("response issued before the click must be discarded")
	}
	if c.Location() != (models.Location{SegmentIndex: 1, WordIndex: 0}) {
		t.Errorf("unexpected location %v", c.Location())
	}
}

func TestController_WordClickWithAutoSeekLock(t *testing.T) {
	c, _, l := newReadyController(t)
	c.SetAutoSeekLock(true)
	n := len(l.locations)

	if _, err := c.OnWordClicked(models.Location{SegmentIndex: 1, WordIndex: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Location() != (models.Location{}) {
		t.Errorf("locked click must not move the location, got %v", c.Location())
	}
	if len(l.locations) != n {
		t.Error("locked click must not emit a location change")
	}
	if got := l.highlights[len(l.highlights)-1].word.Text; got != "now" {
		t.Errorf("clicked word should still be highlighted, got %q", got)
	}
}

func TestController_WordClickInvalidLocation(t *testing.T) {
	c, _, _ := newReadyController(t)
	if _, err := c.OnWordClicked(models.Location{SegmentIndex: 5, WordIndex: 0}); err == nil {
		t.Error("expected error for invalid location")
	}
	if c.State() != StateReady {
		t.Errorf("invalid click must not change state, got %v", c.State())
	}
}

func TestController_SkipClamps(t *testing.T) {
	c, _, _ := newReadyController(t)

	target, err := c.Skip(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target != 0 {
		t.Errorf("expected rewind clamped to 0, got %v", target)
	}
	c.SeekDone(target)

	target, _ = c.Skip(true)
	if target != 5 {
		t.Errorf("expected skip clamped to duration 5, got %v", target)
	}
}

func TestController_StopRewinds(t *testing.T) {
	c, r, _ := newReadyController(t)
	c.Play()
	c.OnPlaybackTick(3)

	if _, err := c.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != StatePaused {
		t.Errorf("expected StatePaused, got %v", c.State())
	}
	if r.last().Time != 0 {
		t.Errorf("expected resolve at 0, got %v", r.last().Time)
	}
}

func TestController_EndOfMediaPauses(t *testing.T) {
	c, _, _ := newReadyController(t)
	c.Play()
	c.End(5)

	if c.State() != StatePaused {
		t.Errorf("expected StatePaused, got %v", c.State())
	}
	if c.PlaybackTime() != 5 {
		t.Errorf("expected playback time 5, got %v", c.PlaybackTime())
	}
}

func TestController_SetTranscriptReresolves(t *testing.T) {
	c, r, l := newReadyController(t)
	c.Play()
	c.OnPlaybackTick(3.6)
	c.HandleResolved(r.answer(r.last()))
	nh := len(l.highlights)

	segs := segments()
	segs[1].Transcript = "bye later"
	doc, _ := transcript.New(segs)
	c.SetTranscript(doc)

	req := r.last()
	if !req.InitialLoad || req.Time != 3.6 {
		t.Errorf("expected forced re-resolve at 3.6, got %+v", req)
	}
	c.HandleResolved(r.answer(req))
	if len(l.highlights) != nh+1 {
		t.Error("forced re-resolve should rebuild the highlight")
	}
	if got := l.highlights[len(l.highlights)-1].segment.Text; got != "bye later" {
		t.Errorf("expected new segment text, got %q", got)
	}
}

func TestController_ResetInvalidatesInFlight(t *testing.T) {
	c, r, l := newReadyController(t)
	c.Play()
	c.OnPlaybackTick(3)
	inflight := r.last()

	c.Reset()

	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
	if c.HandleResolved(r.answer(inflight)) {
		t.Error("response from before reset must be discarded")
	}
	if _, _, ok := c.Highlight(); ok {
		t.Error("reset must clear the highlight")
	}
	if l.locations[len(l.locations)-1] != (models.Location{}) {
		t.Error("reset must report the starting location")
	}
	if c.PlaybackTime() != 0 || c.Duration() != 0 {
		t.Error("reset must clear playback time and duration")
	}
}

func TestMediaClock(t *testing.T) {
	now := time.Unix(0, 0)
	clock := NewMediaClock(func() time.Time { return now })
	clock.SetDuration(10)

	clock.Play()
	now = now.Add(2 * time.Second)
	if got := clock.Position(); got != 2 {
		t.Errorf("expected 2, got %v", got)
	}

	clock.SetRate(0.5)
	now = now.Add(2 * time.Second)
	if got := clock.Position(); got != 3 {
		t.Errorf("expected 3 at half rate, got %v", got)
	}

	clock.Pause()
	now = now.Add(5 * time.Second)
	if got := clock.Position(); got != 3 {
		t.Errorf("paused clock moved: %v", got)
	}

	clock.Seek(9)
	clock.SetRate(1)
	clock.Play()
	now = now.Add(3 * time.Second)
	if got := clock.Position(); got != 10 {
		t.Errorf("expected clamp to duration, got %v", got)
	}
	if !clock.Ended() {
		t.Error("expected Ended at duration")
	}
}

func TestPoller_TicksUntilStopped(t *testing.T) {
	ticks := make(chan float64, 100)
	src := NewMediaClock(nil)
	src.Seek(1.5)

	p := NewPoller(5*time.Millisecond, src, func(tm float64) {
		select {
		case ticks <- tm:
		default:
		}
	})
	p.Start()
	p.Start()
	if !p.Running() {
		t.Error("expected poller running")
	}

	select {
	case tm := <-ticks:
		if tm != 1.5 {
			t.Errorf("expected 1.5, got %v", tm)
		}
	case <-time.After(time.Second):
		t.Fatal("no tick received")
	}

	p.Stop()
	p.Stop()
	if p.Running() {
		t.Error("expected poller stopped")
	}
}
