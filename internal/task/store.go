// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具
//
// Package task keeps the jobs and batches submitted to the server in memory
// and runs them in the background.

package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ZSC714725/videocompressor/internal/batch"
	"github.com/ZSC714725/videocompressor/internal/compress"
	"github.com/ZSC714725/videocompressor/internal/logger"
	"github.com/ZSC714725/videocompressor/internal/metrics"
	"github.com/ZSC714725/videocompressor/internal/progress"

	"github.com/lithammer/shortuuid/v4"
)

// State of a job
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the job has ended
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Job is a submitted compression job
type Job struct {
	ID        string
	BatchID   string
	Request   compress.Request
	CreatedAt int64

	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.RWMutex
	state     State
	updatedAt int64
	last      *progress.Event
	result    *compress.Result
}

// State returns the current state
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// UpdatedAt is the unix time of the last state change
func (j *Job) UpdatedAt() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.updatedAt
}

// LastEvent returns the most recent progress event
func (j *Job) LastEvent() (progress.Event, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return progress.Event{}, false
	}
	return *j.last, true
}

// Result returns the result once the job has ended
func (j *Job) Result() (compress.Result, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.result == nil {
		return compress.Result{}, false
	}
	return *j.result, true
}

// Log returns the encoder's stderr tail of a finished job
func (j *Job) Log() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.result == nil {
		return nil
	}
	return append([]string(nil), j.result.Log...)
}

// Done is closed when the job has ended
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) setState(to State) State {
	j.mu.Lock()
	defer j.mu.Unlock()
	from := j.state
	j.state = to
	j.updatedAt = time.Now().Unix()
	return from
}

func (j *Job) record(e progress.Event) {
	j.mu.Lock()
	j.last = &e
	j.mu.Unlock()
}

// finish stores the result. It returns false if the job had already ended.
func (j *Job) finish(res compress.Result) (from, to State, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	from = j.state
	if from.Terminal() {
		return from, from, false
	}

	switch {
	case res.Success:
		to = StateSucceeded
	case j.ctx.Err() != nil:
		to = StateCancelled
	default:
		to = StateFailed
	}
	j.state = to
	j.updatedAt = time.Now().Unix()
	j.result = &res
	close(j.done)
	return from, to, true
}

// Batch groups jobs submitted together
type Batch struct {
	ID        string
	JobIDs    []string
	CreatedAt int64
	Progress  *batch.Progress

	done    chan struct{}
	mu      sync.RWMutex
	results []compress.Result
}

// Results in completion order. Empty until the batch has ended.
func (b *Batch) Results() []compress.Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]compress.Result(nil), b.results...)
}

// Finished reports whether every job of the batch has ended
func (b *Batch) Finished() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Done is closed when the batch has ended
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

func (b *Batch) complete(results []compress.Result) {
	b.mu.Lock()
	b.results = results
	b.mu.Unlock()
	close(b.done)
}

// Store manages jobs in memory
type Store interface {
	// Submit queues a single job
	Submit(req compress.Request) (*Job, error)
	// SubmitBatch queues the requests as one batch
	SubmitBatch(reqs []compress.Request) (*Batch, error)
	Get(id string) (*Job, error)
	List(ids []string, batchID string) []*Job
	GetBatch(id string) (*Batch, error)
	// Cancel stops a job. Cancelling an ended job does nothing.
	Cancel(id string) error
	// Delete cancels a job and forgets it
	Delete(id string) error
	// Close cancels all jobs and waits for them to end
	Close()
}

type store struct {
	runner      batch.Runner
	concurrency int
	logger      logger.Logger
	metrics     *metrics.Metrics

	// slots is shared by every submission
	slots  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	jobs    map[string]*Job
	batches map[string]*Batch
	seq     uint64
	closed  bool
}

// NewStore creates a job store
func NewStore(config Config) (Store, error) {
	if config.Runner == nil {
		return nil, errors.New("task: no runner")
	}

	s := &store{
		runner:      config.Runner,
		concurrency: config.Concurrency,
		logger:      config.Logger,
		metrics:     config.Metrics,
		jobs:        make(map[string]*Job),
		batches:     make(map[string]*Batch),
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	s.slots = make(chan struct{}, s.concurrency)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s, nil
}

func (s *store) Submit(req compress.Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	j := s.newJob(s.ctx, req, "")
	s.logger.Info("job %s: queued, %s -> %s", j.ID, req.Input, req.Output)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(j, nil)
	}()

	return j, nil
}

func (s *store) SubmitBatch(reqs []compress.Request) (*Batch, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, batch.ErrNoJobs)
	}
	for _, r := range reqs {
		if r.Output == "" {
			return nil, fmt.Errorf("%w: %w: %s", ErrInvalidRequest, batch.ErrMissingOutputDirectory, r.Input)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	if err := batch.CheckOutputs(reqs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	b := &Batch{
		ID:        shortuuid.New(),
		CreatedAt: time.Now().Unix(),
		Progress:  batch.NewProgress(len(reqs)),
		done:      make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(s.ctx)
	runner := &jobRunner{store: s, jobs: make(map[string]*Job, len(reqs))}
	tagged := make([]compress.Request, 0, len(reqs))
	for _, r := range reqs {
		j := s.newJob(ctx, r, b.ID)
		runner.jobs[j.ID] = j
		b.JobIDs = append(b.JobIDs, j.ID)
		tagged = append(tagged, j.Request)
	}
	s.batches[b.ID] = b
	s.metrics.BatchSubmitted()
	s.logger.Info("batch %s: queued %d jobs", b.ID, len(reqs))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		results, err := batch.NewScheduler(runner, s.logger).Run(ctx, tagged, s.concurrency, b.Progress, nil)
		if err != nil {
			s.logger.Error("batch %s: %v", b.ID, err)
		}
		// jobs the scheduler skipped after a cancel never reached the runner
		for _, j := range runner.jobs {
			s.finish(j, cancelled(j))
		}
		b.complete(results)
	}()

	return b, nil
}

// newJob registers a job. The caller holds the lock.
func (s *store) newJob(parent context.Context, req compress.Request, batchID string) *Job {
	now := time.Now().Unix()
	s.seq++

	j := &Job{
		ID:        shortuuid.New(),
		BatchID:   batchID,
		CreatedAt: now,
		seq:       s.seq,
		done:      make(chan struct{}),
		state:     StateQueued,
		updatedAt: now,
	}
	req.ID = j.ID
	j.Request = req
	j.ctx, j.cancel = context.WithCancel(parent)

	s.jobs[j.ID] = j
	return j
}

// execute waits for a free slot and runs the job. Events are recorded on
// the job and forwarded to sink, which may be nil.
func (s *store) execute(j *Job, sink progress.Sink) compress.Result {
	select {
	case s.slots <- struct{}{}:
	case <-j.ctx.Done():
		res := cancelled(j)
		s.finish(j, res)
		return res
	}
	defer func() { <-s.slots }()

	if j.ctx.Err() != nil {
		res := cancelled(j)
		s.finish(j, res)
		return res
	}

	from := j.setState(StateRunning)
	s.logger.Info("job %s: state %s -> %s", j.ID, from, StateRunning)

	res := s.runner.Compress(j.ctx, j.Request, func(e progress.Event) {
		j.record(e)
		if sink != nil {
			sink(e)
		}
	})
	s.finish(j, res)
	return res
}

func (s *store) finish(j *Job, res compress.Result) {
	from, to, ok := j.finish(res)
	if !ok {
		return
	}
	j.cancel()
	if to == StateSucceeded {
		s.logger.Info("job %s: state %s -> %s", j.ID, from, to)
	} else {
		s.logger.Warn("job %s: state %s -> %s: %s", j.ID, from, to, res.Error)
	}
}

func cancelled(j *Job) compress.Result {
	err := fmt.Errorf("%w: %v", compress.ErrCompressionFailed, context.Canceled)
	return compress.Result{
		InputPath:  j.Request.Input,
		OutputPath: j.Request.Output,
		Err:        err,
		Error:      err.Error(),
	}
}

func (s *store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// List returns jobs in submission order, optionally filtered by id and batch
func (s *store) List(ids []string, batchID string) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Job
	for _, j := range s.jobs {
		if len(batchID) > 0 && j.BatchID != batchID {
			continue
		}
		if len(ids) > 0 {
			found := false
			for _, id := range ids {
				if j.ID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, j)
	}

	sort.Slice(out, func(a, b int) bool { return out[a].seq < out[b].seq })
	return out
}

func (s *store) GetBatch(id string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", ErrNotFound, id)
	}
	return b, nil
}

func (s *store) Cancel(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	j.cancel()
	return nil
}

func (s *store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}

	j.cancel()
	delete(s.jobs, id)
	return nil
}

func (s *store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// jobRunner hands batch requests to the store so that they share its slots
type jobRunner struct {
	store *store
	jobs  map[string]*Job
}

func (r *jobRunner) Compress(ctx context.Context, req compress.Request, sink progress.Sink) compress.Result {
	return r.store.execute(r.jobs[req.ID], sink)
}
