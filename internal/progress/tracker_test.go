// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package progress

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(total float64) (*Tracker, *fakeClock, *[]Event, *[]time.Time) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var events []Event
	var times []time.Time
	tr := NewTracker("job-1", "clip.mp4", total, func(e Event) {
		events = append(events, e)
		times = append(times, clock.t)
	})
	tr.SetClock(clock.now)
	return tr, clock, &events, &times
}

func TestUpdateAtTotalIsComplete(t *testing.T) {
	for _, total := range []float64{0.5, 1, 90.5, 3600} {
		tr, _, events, _ := newTestTracker(total)
		tr.Update(total, 1)
		if len(*events) != 1 {
			t.Fatalf("total %v: got %d events", total, len(*events))
		}
		ev := (*events)[0]
		if ev.Percentage != 100 {
			t.Errorf("total %v: percentage = %v, want 100", total, ev.Percentage)
		}
		if ev.ETA == nil || *ev.ETA != 0 {
			t.Errorf("total %v: eta = %v, want 0", total, ev.ETA)
		}
	}
}

func TestUpdateComputesPercentageAndETA(t *testing.T) {
	tr, _, events, _ := newTestTracker(100)
	tr.Update(25, 2)

	ev := (*events)[0]
	if ev.Percentage != 25 {
		t.Errorf("percentage = %v, want 25", ev.Percentage)
	}
	if ev.ETA == nil || *ev.ETA != 37.5 {
		t.Errorf("eta = %v, want 37.5", ev.ETA)
	}
	if ev.Job != "job-1" || ev.Filename != "clip.mp4" || ev.TotalTime != 100 {
		t.Errorf("event = %+v", ev)
	}
}

func TestUpdateWithoutSpeedHasNoETA(t *testing.T) {
	tr, clock, events, _ := newTestTracker(100)
	tr.Update(10, 0)
	clock.advance(time.Second)
	tr.Update(0, 1.5)

	for i, ev := range *events {
		if ev.ETA != nil {
			t.Errorf("event %d: eta = %v, want nil", i, *ev.ETA)
		}
	}
}

func TestUpdateClampsPercentage(t *testing.T) {
	tr, clock, events, _ := newTestTracker(10)
	tr.Update(15, 1)
	clock.advance(time.Second)
	tr.Update(-3, 1)

	if got := (*events)[0].Percentage; got != 100 {
		t.Errorf("over total: %v, want 100", got)
	}
	if got := (*events)[1].Percentage; got != 0 {
		t.Errorf("negative time: %v, want 0", got)
	}
}

func TestThrottle(t *testing.T) {
	tr, clock, events, times := newTestTracker(100)

	// 100 samples 100ms apart: emissions at 0, 500, 1000, ... ms.
	for i := 0; i < 100; i++ {
		tr.Update(float64(i), 1)
		clock.advance(100 * time.Millisecond)
	}

	if len(*events) != 20 {
		t.Errorf("got %d events, want 20", len(*events))
	}
	for i := 1; i < len(*times); i++ {
		if gap := (*times)[i].Sub((*times)[i-1]); gap < MinInterval {
			t.Fatalf("events %d and %d are %v apart", i-1, i, gap)
		}
	}
	// Latest sample wins: the second emission carries the sample taken at 500ms.
	if got := (*events)[1].CurrentTime; got != 5 {
		t.Errorf("second event current time = %v, want 5", got)
	}
}

func TestCompleteBypassesThrottle(t *testing.T) {
	tr, _, events, _ := newTestTracker(42)
	tr.Update(1, 1)
	tr.Update(2, 1)
	tr.Complete()

	if len(*events) != 2 {
		t.Fatalf("got %d events, want 2", len(*events))
	}
	last := (*events)[1]
	if last.Percentage != 100 || last.CurrentTime != 42 || last.ETA == nil || *last.ETA != 0 {
		t.Errorf("terminal event = %+v", last)
	}
	if !last.Done() {
		t.Error("terminal event not Done")
	}
}

func TestZeroDurationReportsZeroUntilComplete(t *testing.T) {
	tr, _, events, _ := newTestTracker(0)
	tr.Update(5, 1)
	tr.Complete()
	if (*events)[0].Percentage != 0 {
		t.Errorf("percentage = %v, want 0", (*events)[0].Percentage)
	}
	if (*events)[1].Percentage != 100 {
		t.Errorf("complete percentage = %v", (*events)[1].Percentage)
	}
}

func TestNilSink(t *testing.T) {
	tr := NewTracker("j", "f", 10, nil)
	tr.Update(1, 1)
	tr.Complete()
}
