package timeline

import "time"

// Kind identifies what an Event records.
type Kind string

const (
	KindFlushStarted  Kind = "flush_started"
	KindWatcherRan    Kind = "watcher_ran"
	KindCycleDetected Kind = "cycle_detected"
	KindFlushFinished Kind = "flush_finished"
)

// Event is one entry of a timeline. Fields not meaningful for a Kind are zero.
type Event struct {
	Seq        uint64        `json:"seq"`
	Kind       Kind          `json:"kind"`
	Time       time.Time     `json:"time"`
	Flush      uint64        `json:"flush"`
	WatcherID  uint64        `json:"watcherId,omitempty"`
	Expression string        `json:"expression,omitempty"`
	Index      int           `json:"index,omitempty"`
	QueueSize  int           `json:"queueSize,omitempty"`
	Runs       int           `json:"runs,omitempty"`
	Updated    int           `json:"updated,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Aborted    bool          `json:"aborted,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Timeline is a persisted snapshot of a Recorder.
type Timeline struct {
	ID      string    `json:"id"`
	Session string    `json:"session"`
	Created time.Time `json:"created"`
	Dropped uint64    `json:"dropped"`
	Events  []Event   `json:"events"`
}

// Summary describes a stored timeline. Fields a backend cannot know without
// loading the timeline are zero.
type Summary struct {
	ID      string    `json:"id"`
	Session string    `json:"session,omitempty"`
	Created time.Time `json:"created"`
	Events  int       `json:"events,omitempty"`
	Size    int64     `json:"size,omitempty"`
}

func summarize(t *Timeline) Summary {
	return Summary{
		ID:      t.ID,
		Session: t.Session,
		Created: t.Created,
		Events:  len(t.Events),
	}
}
