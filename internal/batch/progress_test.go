// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package batch

import (
	"strconv"
	"sync"
	"testing"
)

func TestProgressOverall(t *testing.T) {
	p := NewProgress(4)
	p.Update("a", 50)
	p.Update("b", 100)
	if got := p.Overall(); got != 37.5 {
		t.Errorf("overall = %v, want 37.5", got)
	}
	if p.Completed() != 1 {
		t.Errorf("completed = %d", p.Completed())
	}
}

func TestProgressCompletedCountsOnce(t *testing.T) {
	p := NewProgress(2)
	p.Update("a", 100)
	p.Update("a", 100)
	p.Update("a", 40)
	p.Update("a", 100)
	if p.Completed() != 1 {
		t.Errorf("completed = %d, want 1", p.Completed())
	}
}

func TestProgressNeverExceedsTotal(t *testing.T) {
	p := NewProgress(2)
	for i := 0; i < 5; i++ {
		p.Update(strconv.Itoa(i), 100)
	}
	if p.Completed() != 2 {
		t.Errorf("completed = %d", p.Completed())
	}
	if p.Overall() != 100 {
		t.Errorf("overall = %v", p.Overall())
	}
}

func TestProgressClamps(t *testing.T) {
	p := NewProgress(1)
	p.Update("a", 150)
	if p.Overall() != 100 || p.Completed() != 1 {
		t.Errorf("snapshot = %+v", p.Snapshot())
	}
	p.Update("a", -5)
	if p.Overall() != 0 {
		t.Errorf("overall = %v", p.Overall())
	}
}

func TestProgressZeroTotal(t *testing.T) {
	p := NewProgress(0)
	p.Update("a", 100)
	if p.Overall() != 0 || p.Completed() != 0 {
		t.Errorf("snapshot = %+v", p.Snapshot())
	}
}

func TestProgressConcurrent(t *testing.T) {
	const jobs = 50
	p := NewProgress(jobs)

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for pct := 0.0; pct <= 100; pct += 10 {
				p.Update(key, pct)
			}
		}(strconv.Itoa(i))
	}

	last := 0
	for i := 0; i < 1000; i++ {
		c := p.Completed()
		if c < last || c > jobs {
			t.Fatalf("completed went from %d to %d", last, c)
		}
		last = c
	}
	wg.Wait()

	s := p.Snapshot()
	if s.Completed != jobs || s.Overall != 100 || len(s.Jobs) != jobs {
		t.Errorf("snapshot = completed %d overall %v jobs %d", s.Completed, s.Overall, len(s.Jobs))
	}
}
