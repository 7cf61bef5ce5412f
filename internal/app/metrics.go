package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks session counters.
type Metrics struct {
	// Frame timing
	frameCount   atomic.Uint64
	frameTotalNs atomic.Int64
	frameMaxNs   atomic.Int64
	lastFrameNs  atomic.Int64

	// Input handling
	inputCount   atomic.Uint64
	inputTotalNs atomic.Int64
	inputDropped atomic.Uint64

	// Outline requests
	outlineCount   atomic.Uint64
	outlineFailed  atomic.Uint64
	outlineTotalNs atomic.Int64

	// History notifications seen on the bus
	historyChanges atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordFrame records how long one frame took to draw.
func (m *Metrics) RecordFrame(duration time.Duration) {
	ns := duration.Nanoseconds()

	m.frameCount.Add(1)
	m.frameTotalNs.Add(ns)
	m.lastFrameNs.Store(ns)

	for {
		old := m.frameMaxNs.Load()
		if ns <= old || m.frameMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordInput records input processing timing.
func (m *Metrics) RecordInput(duration time.Duration) {
	m.inputCount.Add(1)
	m.inputTotalNs.Add(duration.Nanoseconds())
}

// RecordInputDropped records a dropped input event.
func (m *Metrics) RecordInputDropped() {
	m.inputDropped.Add(1)
}

// RecordOutline records one finished outline request.
func (m *Metrics) RecordOutline(duration time.Duration, err error) {
	m.outlineCount.Add(1)
	m.outlineTotalNs.Add(duration.Nanoseconds())
	if err != nil {
		m.outlineFailed.Add(1)
	}
}

// RecordHistoryChange counts a history notification.
func (m *Metrics) RecordHistoryChange() {
	m.historyChanges.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Uptime:         time.Since(m.startTime),
		FrameCount:     m.frameCount.Load(),
		MaxFrameTimeNs: m.frameMaxNs.Load(),
		LastFrameNs:    m.lastFrameNs.Load(),
		InputCount:     m.inputCount.Load(),
		InputDropped:   m.inputDropped.Load(),
		OutlineCount:   m.outlineCount.Load(),
		OutlineFailed:  m.outlineFailed.Load(),
		HistoryChanges: m.historyChanges.Load(),
	}
	if s.FrameCount > 0 {
		s.AvgFrameTimeNs = m.frameTotalNs.Load() / int64(s.FrameCount)
	}
	if s.InputCount > 0 {
		s.AvgInputTimeNs = m.inputTotalNs.Load() / int64(s.InputCount)
	}
	if s.OutlineCount > 0 {
		s.AvgOutline = time.Duration(m.outlineTotalNs.Load() / int64(s.OutlineCount))
	}
	return s
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime         time.Duration
	FrameCount     uint64
	AvgFrameTimeNs int64
	MaxFrameTimeNs int64
	LastFrameNs    int64
	InputCount     uint64
	AvgInputTimeNs int64
	InputDropped   uint64
	OutlineCount   uint64
	OutlineFailed  uint64
	AvgOutline     time.Duration
	HistoryChanges uint64
}

// AvgFPS returns the average frames per second.
func (s MetricsSnapshot) AvgFPS() float64 {
	if s.AvgFrameTimeNs == 0 {
		return 0
	}
	return 1e9 / float64(s.AvgFrameTimeNs)
}

// Timer provides a simple way to measure elapsed time.
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer.
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
