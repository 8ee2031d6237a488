// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具
//
// Package progress turns encoder time samples into throttled progress events.

package progress

import (
	"time"
)

// MinInterval is the minimum wall-clock gap between two emitted updates of
// one job. Complete ignores it.
const MinInterval = 500 * time.Millisecond

// Event is one progress notification for a job
type Event struct {
	Job         string   `json:"job"`
	Filename    string   `json:"filename"`
	Percentage  float64  `json:"percentage"`
	CurrentTime float64  `json:"current_time"`
	TotalTime   float64  `json:"total_time"`
	ETA         *float64 `json:"eta_seconds"`
}

// Done reports whether the event is terminal
func (e Event) Done() bool {
	return e.Percentage >= 100
}

// Sink receives progress events. A sink shared between jobs of a batch is
// called from several goroutines at once and must synchronize its own state.
type Sink func(Event)

// Tracker accumulates samples of one job. It is not safe for concurrent use;
// the job's stderr reader is its only caller.
type Tracker struct {
	job      string
	filename string
	total    float64
	sink     Sink
	interval time.Duration
	now      func() time.Time
	last     time.Time
	started  time.Time
}

// NewTracker creates a tracker for a media file of total seconds. A nil sink
// turns the tracker into a no-op.
func NewTracker(job, filename string, total float64, sink Sink) *Tracker {
	t := &Tracker{
		job:      job,
		filename: filename,
		total:    total,
		sink:     sink,
		interval: MinInterval,
		now:      time.Now,
	}
	t.started = t.now()
	return t
}

// SetClock replaces the wall clock. Used by tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
	t.started = now()
}

// Elapsed is the wall-clock time since the tracker was created
func (t *Tracker) Elapsed() time.Duration {
	return t.now().Sub(t.started)
}

// Update records the encoder position. The event is dropped when the
// previous emission is less than MinInterval ago.
func (t *Tracker) Update(current, speed float64) {
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return
	}
	t.last = now

	if t.sink == nil {
		return
	}

	ev := Event{
		Job:         t.job,
		Filename:    t.filename,
		Percentage:  t.percentage(current),
		CurrentTime: current,
		TotalTime:   t.total,
	}
	if speed > 0 && current > 0 {
		eta := (t.total - current) / speed
		if eta < 0 {
			eta = 0
		}
		ev.ETA = &eta
	}
	t.sink(ev)
}

// Complete emits the terminal 100% event.
func (t *Tracker) Complete() {
	t.last = t.now()
	if t.sink == nil {
		return
	}
	eta := 0.0
	t.sink(Event{
		Job:         t.job,
		Filename:    t.filename,
		Percentage:  100,
		CurrentTime: t.total,
		TotalTime:   t.total,
		ETA:         &eta,
	})
}

func (t *Tracker) percentage(current float64) float64 {
	if t.total <= 0 {
		return 0
	}
	p := current / t.total * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
