package timeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/reactor/pkg/reactive"
)

const (
	// DefaultCapacity is the number of events a Recorder retains.
	DefaultCapacity = 4096

	// DefaultSubscriberBuffer is the channel buffer of a subscription.
	DefaultSubscriberBuffer = 256
)

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

type recorderConfig struct {
	capacity int
	session  string
	logger   *slog.Logger
	now      func() time.Time
}

// WithCapacity sets how many events are retained. Older events are
// overwritten. Default: DefaultCapacity.
func WithCapacity(n int) RecorderOption {
	return func(c *recorderConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithSession sets the session id. Default: a random UUID.
func WithSession(id string) RecorderOption {
	return func(c *recorderConfig) {
		c.session = id
	}
}

// WithLogger sets the logger used to report dropped deliveries.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(c *recorderConfig) {
		c.logger = logger
	}
}

func withClock(now func() time.Time) RecorderOption {
	return func(c *recorderConfig) {
		c.now = now
	}
}

// Recorder is a reactive.Instrumentation that keeps a bounded ring of
// events. Instrumentation callbacks arrive on the runtime goroutine; every
// other method may be called from any goroutine.
type Recorder struct {
	session string
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	ring    []Event
	start   int
	size    int
	seq     uint64
	dropped uint64
	subs    map[uint64]chan Event
	nextSub uint64
}

var _ reactive.Instrumentation = (*Recorder)(nil)

// NewRecorder creates a Recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	cfg := recorderConfig{
		capacity: DefaultCapacity,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.session == "" {
		cfg.session = uuid.NewString()
	}

	return &Recorder{
		session: cfg.session,
		logger:  cfg.logger,
		now:     cfg.now,
		ring:    make([]Event, cfg.capacity),
		subs:    make(map[uint64]chan Event),
	}
}

// Session returns the session id stamped on snapshots.
func (r *Recorder) Session() string {
	return r.session
}

// FlushStarted implements reactive.Instrumentation.
func (r *Recorder) FlushStarted(info reactive.FlushInfo) {
	r.record(Event{
		Kind:      KindFlushStarted,
		Time:      info.Start,
		Flush:     info.Seq,
		QueueSize: info.QueueSize,
	})
}

// WatcherRan implements reactive.Instrumentation.
func (r *Recorder) WatcherRan(info reactive.RunInfo) {
	ev := Event{
		Kind:       KindWatcherRan,
		Time:       info.Start,
		Flush:      info.Seq,
		WatcherID:  info.WatcherID,
		Expression: info.Expression,
		Index:      info.Index,
		Duration:   info.Duration,
	}
	if info.Err != nil {
		ev.Error = info.Err.Error()
	}
	r.record(ev)
}

// CycleDetected implements reactive.Instrumentation.
func (r *Recorder) CycleDetected(err *reactive.CycleError) {
	r.record(Event{
		Kind:       KindCycleDetected,
		Time:       r.now(),
		WatcherID:  err.WatcherID,
		Expression: err.Expression,
		Runs:       err.Count,
		Error:      err.Error(),
	})
}

// FlushFinished implements reactive.Instrumentation.
func (r *Recorder) FlushFinished(stats reactive.FlushStats) {
	r.record(Event{
		Kind:     KindFlushFinished,
		Time:     r.now(),
		Flush:    stats.Seq,
		Runs:     stats.Runs,
		Updated:  stats.Updated,
		Duration: stats.Duration,
		Aborted:  stats.Aborted,
	})
}

func (r *Recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	ev.Seq = r.seq

	// A cycle is reported between the last run and the end of its flush.
	if ev.Kind == KindCycleDetected && r.size > 0 {
		ev.Flush = r.at(r.size - 1).Flush
	}

	if r.size < len(r.ring) {
		r.ring[(r.start+r.size)%len(r.ring)] = ev
		r.size++
	} else {
		r.ring[r.start] = ev
		r.start = (r.start + 1) % len(r.ring)
		r.dropped++
	}

	for id, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			r.logger.Warn("timeline: subscriber too slow, dropping event",
				"session", r.session,
				"subscriber", id,
				"seq", ev.Seq)
		}
	}
}

func (r *Recorder) at(i int) Event {
	return r.ring[(r.start+i)%len(r.ring)]
}

// Events returns the retained events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eventsLocked()
}

func (r *Recorder) eventsLocked() []Event {
	events := make([]Event, r.size)
	for i := range events {
		events[i] = r.at(i)
	}
	return events
}

// Len returns the number of retained events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Snapshot copies the retained events into a new Timeline with a fresh id.
func (r *Recorder) Snapshot() *Timeline {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &Timeline{
		ID:      uuid.NewString(),
		Session: r.session,
		Created: r.now(),
		Dropped: r.dropped,
		Events:  r.eventsLocked(),
	}
}

// Reset discards the retained events. Sequence numbers keep increasing.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.ring)
	r.start = 0
	r.size = 0
	r.dropped = 0
}

// Subscribe returns a channel receiving every event recorded from now on and
// a function that ends the subscription and closes the channel. Events are
// dropped, not queued, when the channel buffer is full.
func (r *Recorder) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSub++
	id := r.nextSub
	ch := make(chan Event, buffer)
	r.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (r *Recorder) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
