// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package batch

import "sync"

// Progress aggregates the percentages of the jobs of one batch. It is safe
// for concurrent use.
type Progress struct {
	mu        sync.Mutex
	total     int
	jobs      map[string]float64
	done      map[string]bool
	completed int
}

// Snapshot is a consistent copy of a Progress
type Snapshot struct {
	Total     int                `json:"total"`
	Completed int                `json:"completed"`
	Overall   float64            `json:"overall"`
	Jobs      map[string]float64 `json:"jobs"`
}

// NewProgress tracks total jobs
func NewProgress(total int) *Progress {
	return &Progress{
		total: total,
		jobs:  make(map[string]float64),
		done:  make(map[string]bool),
	}
}

// Update stores the latest percentage of a job. A job counts as completed
// the first time it reaches 100.
func (p *Progress) Update(key string, percentage float64) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobs[key] = percentage
	if percentage >= 100 && !p.done[key] && p.completed < p.total {
		p.done[key] = true
		p.completed++
	}
}

// Overall is the mean percentage over all jobs, including those that have
// not reported yet.
func (p *Progress) Overall() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overall()
}

func (p *Progress) overall() float64 {
	if p.total <= 0 {
		return 0
	}
	var sum float64
	for _, v := range p.jobs {
		sum += v
	}
	o := sum / float64(p.total)
	if o > 100 {
		o = 100
	}
	return o
}

// Completed is the number of jobs that reached 100%
func (p *Progress) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// Total is the number of jobs in the batch
func (p *Progress) Total() int {
	return p.total
}

// Snapshot copies the current state
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	jobs := make(map[string]float64, len(p.jobs))
	for k, v := range p.jobs {
		jobs[k] = v
	}
	return Snapshot{
		Total:     p.total,
		Completed: p.completed,
		Overall:   p.overall(),
		Jobs:      jobs,
	}
}
