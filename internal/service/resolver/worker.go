package resolver

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"transcript-editor-service/internal/models"
	"transcript-editor-service/internal/observability/logging"
	"transcript-editor-service/internal/observability/metrics"
)

// Request asks for the location at Time. Seq is a monotonic tag chosen by the
// caller; it is echoed back so stale responses can be discarded.
type Request struct {
	Seq         uint64
	Time        float64
	Segments    []models.Segment
	InitialLoad bool
}

// Response carries the resolved location for the request with the same Seq.
type Response struct {
	Seq         uint64
	Time        float64
	Location    models.Location
	InitialLoad bool
}

// Config sizes the worker pool.
type Config struct {
	Workers   int
	QueueSize int
}

// DefaultConfig returns a two-worker pool with a small queue.
func DefaultConfig() Config {
	return Config{Workers: 2, QueueSize: 16}
}

// Worker resolves requests off the caller's goroutine.
//
// With more than one worker, responses may arrive out of request order; the
// consumer is expected to drop responses whose Seq is not the latest it issued.
type Worker struct {
	requests  chan Request
	responses chan Response
	quit      chan struct{}
	wg        sync.WaitGroup
	once      sync.Once
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewWorker creates a worker pool. Start must be called before Submit.
func NewWorker(cfg Config, m *metrics.Metrics) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	w := &Worker{
		requests:  make(chan Request, cfg.QueueSize),
		responses: make(chan Response, cfg.QueueSize),
		quit:      make(chan struct{}),
		metrics:   m,
		log:       logging.WithComponent("resolver"),
	}
	w.start(cfg.Workers)
	return w
}

func (w *Worker) start(n int) {
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.requests:
			start := time.Now()
			loc := Resolve(req.Time, req.Segments)
			w.metrics.RecordResolve(time.Since(start).Seconds())

			resp := Response{Seq: req.Seq, Time: req.Time, Location: loc, InitialLoad: req.InitialLoad}
			select {
			case w.responses <- resp:
			case <-w.quit:
				return
			}
		case <-w.quit:
			return
		}
	}
}

// Submit queues a request without blocking. When the queue is full the oldest
// queued request is dropped, since only the newest one can still be applied.
func (w *Worker) Submit(req Request) {
	for {
		select {
		case <-w.quit:
			return
		default:
		}
		select {
		case w.requests <- req:
			return
		default:
		}
		select {
		case old := <-w.requests:
			w.metrics.RecordResolverDropped()
			w.log.Debug().Uint64("seq", old.Seq).Msg("Dropped queued resolve request")
		default:
		}
	}
}

// Responses returns the channel resolved locations are delivered on.
func (w *Worker) Responses() <-chan Response {
	return w.responses
}

// Close stops all workers. Pending requests are abandoned.
func (w *Worker) Close() {
	w.once.Do(func() {
		close(w.quit)
		w.wg.Wait()
	})
}
