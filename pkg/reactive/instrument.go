package reactive

import "time"

// Instrumentation observes the scheduler. Implementations are called on the
// runtime's goroutine, inside the flush, and must not block.
type Instrumentation interface {
	FlushStarted(info FlushInfo)
	WatcherRan(info RunInfo)
	CycleDetected(err *CycleError)
	FlushFinished(stats FlushStats)
}

// FlushInfo describes a flush about to run.
type FlushInfo struct {
	Seq       uint64
	QueueSize int
	Start     time.Time
}

// RunInfo describes one watcher run inside a flush.
type RunInfo struct {
	Seq        uint64
	Index      int
	WatcherID  uint64
	Expression string
	Start      time.Time
	Duration   time.Duration
	Err        error
}

// FlushStats summarizes a finished flush.
type FlushStats struct {
	Seq      uint64
	Runs     int
	Updated  int
	Duration time.Duration
	Aborted  bool
}

type nopInstrumentation struct{}

func (nopInstrumentation) FlushStarted(FlushInfo)    {}
func (nopInstrumentation) WatcherRan(RunInfo)        {}
func (nopInstrumentation) CycleDetected(*CycleError) {}
func (nopInstrumentation) FlushFinished(FlushStats)  {}

type multiInstrumentation []Instrumentation

// Multi fans every event out to each of is, in order. Nil entries are skipped.
func Multi(is ...Instrumentation) Instrumentation {
	var m multiInstrumentation
	for _, i := range is {
		if i != nil {
			m = append(m, i)
		}
	}
	return m
}

func (m multiInstrumentation) FlushStarted(info FlushInfo) {
	for _, i := range m {
		i.FlushStarted(info)
	}
}

func (m multiInstrumentation) WatcherRan(info RunInfo) {
	for _, i := range m {
		i.WatcherRan(info)
	}
}

func (m multiInstrumentation) CycleDetected(err *CycleError) {
	for _, i := range m {
		i.CycleDetected(err)
	}
}

func (m multiInstrumentation) FlushFinished(stats FlushStats) {
	for _, i := range m {
		i.FlushFinished(stats)
	}
}
