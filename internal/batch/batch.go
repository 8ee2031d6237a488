// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具
//
// Package batch runs many compression jobs with bounded parallelism. A
// failing job never affects the others.

package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/videocompressor/internal/compress"
	"github.com/ZSC714725/videocompressor/internal/logger"
	"github.com/ZSC714725/videocompressor/internal/progress"
)

var (
	ErrMissingOutputDirectory = errors.New("output directory required for inputs without output path")
	ErrNoJobs                 = errors.New("no jobs given")
	ErrInvalidConcurrency     = errors.New("concurrency must be at least 1")
	ErrDuplicateOutput        = errors.New("several jobs write the same output")
)

// OutputExt is the extension of generated output names
const OutputExt = ".webm"

// Runner runs one job. *compress.Compressor implements it.
type Runner interface {
	Compress(ctx context.Context, req compress.Request, sink progress.Sink) compress.Result
}

// Entry is a batch item: a bare input, or an input with its output path
type Entry struct {
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
}

// BuildRequests turns entries into requests. Bare inputs are written to
// outputDir as <name>.webm. Every request copies the settings of template.
func BuildRequests(entries []Entry, outputDir string, template compress.Request) ([]compress.Request, error) {
	reqs := make([]compress.Request, 0, len(entries))
	for _, e := range entries {
		req := template
		req.ID = ""
		req.Input = e.Input
		req.Output = e.Output
		if req.Output == "" {
			if outputDir == "" {
				return nil, fmt.Errorf("%w: %s", ErrMissingOutputDirectory, e.Input)
			}
			req.Output = OutputPath(outputDir, e.Input)
		}
		reqs = append(reqs, req)
	}
	if err := CheckOutputs(reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// CheckOutputs fails when two requests resolve to the same output file
func CheckOutputs(reqs []compress.Request) error {
	seen := make(map[string]string, len(reqs))
	for _, r := range reqs {
		out, err := filepath.Abs(r.Output)
		if err != nil {
			out = filepath.Clean(r.Output)
		}
		if prev, ok := seen[out]; ok {
			return fmt.Errorf("%w: %s and %s -> %s", ErrDuplicateOutput, prev, r.Input, r.Output)
		}
		seen[out] = r.Input
	}
	return nil
}

// OutputPath is <dir>/<input name without extension>.webm
func OutputPath(dir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+OutputExt)
}

// Scheduler runs batches on a Runner
type Scheduler struct {
	runner Runner
	logger logger.Logger
}

// NewScheduler creates a Scheduler. log may be nil.
func NewScheduler(runner Runner, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{runner: runner, logger: log}
}

// CompressBatch runs reqs on at most limit workers and returns one result
// per request, in completion order. sink may be called from several
// goroutines at once.
func (s *Scheduler) CompressBatch(ctx context.Context, reqs []compress.Request, limit int, sink progress.Sink) ([]compress.Result, error) {
	return s.Run(ctx, reqs, limit, NewProgress(len(reqs)), sink)
}

// Run is CompressBatch with a caller supplied Progress, so that the batch
// can be observed while it runs. Progress is keyed by the request index.
func (s *Scheduler) Run(ctx context.Context, reqs []compress.Request, limit int, prog *Progress, sink progress.Sink) ([]compress.Result, error) {
	if len(reqs) == 0 {
		return nil, ErrNoJobs
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidConcurrency, limit)
	}
	for _, r := range reqs {
		if r.Output == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingOutputDirectory, r.Input)
		}
	}
	if err := CheckOutputs(reqs); err != nil {
		return nil, err
	}
	if prog == nil {
		prog = NewProgress(len(reqs))
	}

	type job struct {
		index int
		req   compress.Request
	}

	start := time.Now()
	workers := min(limit, len(reqs))
	queue := make(chan job)
	results := make([]compress.Result, 0, len(reqs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	s.logger.Info("batch: %d jobs on %d workers", len(reqs), workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				res := s.runOne(ctx, strconv.Itoa(j.index), j.req, prog, sink)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}

	for i, r := range reqs {
		queue <- job{index: i, req: r}
	}
	close(queue)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.logger.Info("batch: %d succeeded, %d failed in %s", len(results)-failed, failed, time.Since(start).Round(time.Millisecond))

	return results, nil
}

func (s *Scheduler) runOne(ctx context.Context, key string, req compress.Request, prog *Progress, sink progress.Sink) (res compress.Result) {
	// every job counts as completed once it ends, even without events
	defer prog.Update(key, 100)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic: %v", compress.ErrCompressionFailed, r)
			res = compress.Result{InputPath: req.Input, OutputPath: req.Output, Err: err, Error: err.Error()}
		}
	}()

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("%w: not started: %v", compress.ErrCompressionFailed, err)
		return compress.Result{InputPath: req.Input, OutputPath: req.Output, Err: err, Error: err.Error()}
	}

	return s.runner.Compress(ctx, req, func(e progress.Event) {
		prog.Update(key, e.Percentage)
		if sink != nil {
			sink(e)
		}
	})
}
