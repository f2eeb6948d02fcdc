package playback

import (
	"sync"
	"time"
)

// TimeSource reports the live playback position in seconds.
type TimeSource interface {
	Position() float64
}

// MediaClock tracks the playback position of the audio being edited. It
// advances with wall time while running, scaled by the playback rate.
type MediaClock struct {
	mu       sync.Mutex
	now      func() time.Time
	position float64
	anchor   time.Time
	running  bool
	rate     float64
	duration float64
}

// NewMediaClock creates a stopped clock at position 0. A nil now uses time.Now.
func NewMediaClock(now func() time.Time) *MediaClock {
	if now == nil {
		now = time.Now
	}
	return &MediaClock{now: now, rate: 1}
}

// Position returns the current position, clamped to the duration when known.
func (c *MediaClock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *MediaClock) positionLocked() float64 {
	p := c.position
	if c.running {
		p += c.now().Sub(c.anchor).Seconds() * c.rate
	}
	if c.duration > 0 && p > c.duration {
		p = c.duration
	}
	return p
}

// Ended reports whether a running clock reached the end of the media.
func (c *MediaClock) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration > 0 && c.positionLocked() >= c.duration
}

// Play starts the clock from its current position.
func (c *MediaClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.anchor = c.now()
	c.running = true
}

// Pause freezes the clock at its current position.
func (c *MediaClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.position = c.positionLocked()
	c.running = false
}

// Seek moves the clock to t without changing whether it runs.
func (c *MediaClock) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < 0 {
		t = 0
	}
	c.position = t
	c.anchor = c.now()
}

// SetRate changes the playback rate, keeping the current position.
func (c *MediaClock) SetRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate <= 0 {
		return
	}
	c.position = c.positionLocked()
	c.anchor = c.now()
	c.rate = rate
}

// Rate returns the playback rate.
func (c *MediaClock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// SetDuration records the media duration.
func (c *MediaClock) SetDuration(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duration = seconds
}

// Reset stops the clock at 0 and forgets the duration.
func (c *MediaClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = 0
	c.running = false
	c.duration = 0
	c.rate = 1
}

// Poller reads a TimeSource at a fixed interval while started. Native media
// time events fire every few hundred milliseconds, too coarse for word-level
// highlighting, so the live clock is sampled instead.
type Poller struct {
	mu       sync.Mutex
	interval time.Duration
	source   TimeSource
	onTick   func(t float64)
	stop     chan struct{}
}

// NewPoller creates a stopped poller.
func NewPoller(interval time.Duration, source TimeSource, onTick func(t float64)) *Poller {
	if interval <= 0 {
		interval = 30 * time.Millisecond
	}
	return &Poller{interval: interval, source: source, onTick: onTick}
}

// Start begins polling. Idempotent.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	go p.run(stop)
}

func (p *Poller) run(stop chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.onTick(p.source.Position())
		case <-stop:
			return
		}
	}
}

// Stop ends polling. Idempotent and safe to call from onTick; a tick already
// being delivered may still complete.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil
}

// Running reports whether the poller is started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}
