// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZSC714725/videocompressor/internal/compress"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg/probe"
	"github.com/ZSC714725/videocompressor/internal/progress"
)

// fakeRunner reports progress in steps and fails inputs listed in fail
type fakeRunner struct {
	fail    map[string]bool
	panic   map[string]bool
	delay   time.Duration
	running int32
	peak    int32
}

func (r *fakeRunner) Compress(ctx context.Context, req compress.Request, sink progress.Sink) compress.Result {
	n := atomic.AddInt32(&r.running, 1)
	defer atomic.AddInt32(&r.running, -1)
	for {
		p := atomic.LoadInt32(&r.peak)
		if n <= p || atomic.CompareAndSwapInt32(&r.peak, p, n) {
			break
		}
	}

	if r.panic[req.Input] {
		panic("boom")
	}

	for _, pct := range []float64{25, 50, 75} {
		sink(progress.Event{Job: req.Key(), Percentage: pct})
		time.Sleep(r.delay)
	}
	sink(progress.Event{Job: req.Key(), Percentage: 100})

	if r.fail[req.Input] {
		err := fmt.Errorf("%w: exit 1", compress.ErrCompressionFailed)
		return compress.Result{InputPath: req.Input, OutputPath: req.Output, Err: err, Error: err.Error()}
	}
	return compress.Result{Success: true, InputPath: req.Input, OutputPath: req.Output}
}

func requests(inputs ...string) []compress.Request {
	var reqs []compress.Request
	for _, in := range inputs {
		reqs = append(reqs, compress.Request{Input: in, Output: in + ".webm"})
	}
	return reqs
}

func TestBatchIsolatesFailures(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"b.mp4": true}, delay: time.Millisecond}
	s := NewScheduler(runner, nil)

	results, err := s.CompressBatch(context.Background(), requests("a.mp4", "b.mp4", "c.mp4"), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
			if r.InputPath != "b.mp4" || !errors.Is(r.Err, compress.ErrCompressionFailed) {
				t.Errorf("unexpected failure %+v", r)
			}
		}
	}
	if failed != 1 {
		t.Errorf("%d failures, want 1", failed)
	}
}

func TestBatchOneResultPerJob(t *testing.T) {
	var inputs []string
	for i := 0; i < 25; i++ {
		inputs = append(inputs, fmt.Sprintf("clip%02d.mp4", i))
	}
	s := NewScheduler(&fakeRunner{}, nil)

	results, err := s.CompressBatch(context.Background(), requests(inputs...), 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range results {
		got = append(got, r.InputPath)
	}
	sort.Strings(got)
	for i, in := range inputs {
		if got[i] != in {
			t.Fatalf("results = %v", got)
		}
	}
}

func TestBatchBoundsConcurrency(t *testing.T) {
	runner := &fakeRunner{delay: 5 * time.Millisecond}
	s := NewScheduler(runner, nil)

	if _, err := s.CompressBatch(context.Background(), requests("1", "2", "3", "4", "5", "6", "7"), 3, nil); err != nil {
		t.Fatal(err)
	}
	if peak := atomic.LoadInt32(&runner.peak); peak > 3 || peak < 1 {
		t.Errorf("peak concurrency = %d", peak)
	}
}

func TestBatchForwardsEventsAndTracksProgress(t *testing.T) {
	s := NewScheduler(&fakeRunner{delay: time.Millisecond}, nil)
	prog := NewProgress(3)

	var mu sync.Mutex
	var lastCompleted int
	monotonic := true
	count := 0
	sink := func(e progress.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
		c := prog.Completed()
		if c < lastCompleted || c > prog.Total() {
			monotonic = false
		}
		lastCompleted = c
	}

	if _, err := s.Run(context.Background(), requests("a", "b", "c"), 2, prog, sink); err != nil {
		t.Fatal(err)
	}
	if count != 12 {
		t.Errorf("forwarded %d events, want 12", count)
	}
	if !monotonic {
		t.Error("completed count went backwards or exceeded total")
	}
	if prog.Completed() != 3 || prog.Overall() != 100 {
		t.Errorf("completed=%d overall=%v", prog.Completed(), prog.Overall())
	}
}

func TestBatchRecoversPanics(t *testing.T) {
	s := NewScheduler(&fakeRunner{panic: map[string]bool{"bad": true}}, nil)
	results, err := s.CompressBatch(context.Background(), requests("good", "bad"), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	for _, r := range results {
		if r.InputPath == "bad" && (r.Success || !errors.Is(r.Err, compress.ErrCompressionFailed)) {
			t.Errorf("panic result = %+v", r)
		}
		if r.InputPath == "good" && !r.Success {
			t.Errorf("good job failed: %+v", r)
		}
	}
}

func TestBatchCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScheduler(&fakeRunner{}, nil)

	results, err := s.CompressBatch(ctx, requests("a", "b"), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	for _, r := range results {
		if r.Success || !errors.Is(r.Err, compress.ErrCompressionFailed) {
			t.Errorf("result = %+v", r)
		}
	}
}

func TestBatchStructuralErrors(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, nil)
	ctx := context.Background()

	if _, err := s.CompressBatch(ctx, nil, 2, nil); !errors.Is(err, ErrNoJobs) {
		t.Errorf("empty: %v", err)
	}
	if _, err := s.CompressBatch(ctx, requests("a"), 0, nil); !errors.Is(err, ErrInvalidConcurrency) {
		t.Errorf("limit 0: %v", err)
	}
	reqs := []compress.Request{{Input: "a"}}
	if _, err := s.CompressBatch(ctx, reqs, 1, nil); !errors.Is(err, ErrMissingOutputDirectory) {
		t.Errorf("no output: %v", err)
	}
}

func TestBuildRequests(t *testing.T) {
	tmpl := compress.Request{ID: "ignored", Preset: "web-small", PreserveAlpha: true}
	entries := []Entry{
		{Input: "/videos/holiday.final.mov"},
		{Input: "/videos/b.mp4", Output: "/elsewhere/custom.webm"},
		{Input: "noext"},
	}

	reqs, err := BuildRequests(entries, "/out", tmpl)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join("/out", "holiday.final.webm"),
		"/elsewhere/custom.webm",
		filepath.Join("/out", "noext.webm"),
	}
	for i, r := range reqs {
		if r.Output != want[i] {
			t.Errorf("output %d = %q, want %q", i, r.Output, want[i])
		}
		if r.Preset != "web-small" || !r.PreserveAlpha || r.ID != "" {
			t.Errorf("template not applied: %+v", r)
		}
	}
}

func TestBuildRequestsMissingOutputDir(t *testing.T) {
	_, err := BuildRequests([]Entry{{Input: "a.mp4", Output: "a.webm"}, {Input: "b.mp4"}}, "", compress.Request{})
	if !errors.Is(err, ErrMissingOutputDirectory) {
		t.Errorf("err = %v", err)
	}
	if _, err := BuildRequests([]Entry{{Input: "a.mp4", Output: "a.webm"}}, "", compress.Request{}); err != nil {
		t.Errorf("explicit pairs need no directory: %v", err)
	}
}

func TestBuildRequestsDuplicateOutputs(t *testing.T) {
	entries := []Entry{{Input: "/a/x.mp4"}, {Input: "/b/x.mov"}}
	if _, err := BuildRequests(entries, "/out", compress.Request{}); !errors.Is(err, ErrDuplicateOutput) {
		t.Errorf("same base name: err = %v", err)
	}

	entries = []Entry{{Input: "/a/x.mp4", Output: "/out/y.webm"}, {Input: "/b/y.mp4"}}
	if _, err := BuildRequests(entries, "/out/sub/..", compress.Request{}); !errors.Is(err, ErrDuplicateOutput) {
		t.Errorf("pair against generated name: err = %v", err)
	}
}

func TestBatchRejectsDuplicateOutputs(t *testing.T) {
	runner := &fakeRunner{}
	reqs := []compress.Request{
		{Input: "a.mp4", Output: "out.webm"},
		{Input: "b.mp4", Output: "./out.webm"},
	}
	if _, err := NewScheduler(runner, nil).CompressBatch(context.Background(), reqs, 2, nil); !errors.Is(err, ErrDuplicateOutput) {
		t.Errorf("err = %v", err)
	}
	if atomic.LoadInt32(&runner.peak) != 0 {
		t.Error("jobs started for a rejected batch")
	}
}

type staticProber struct{}

func (staticProber) Probe(ctx context.Context, path string) (probe.Metadata, error) {
	return probe.Metadata{Duration: 10, Width: 640, Height: 360, Codec: "vp9"}, nil
}

func TestBatchKeepsSourceWhenOutputIsInput(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\nprintf 'Output #0 same as Input #0 - exiting\\n' >&2\nexit 1\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "holiday.webm")
	if err := os.WriteFile(src, []byte("source video"), 0o644); err != nil {
		t.Fatal(err)
	}

	ff, err := ffmpeg.New(ffmpeg.Config{Binary: bin})
	if err != nil {
		t.Fatal(err)
	}
	c, err := compress.New(compress.Config{FFmpeg: ff, Prober: staticProber{}})
	if err != nil {
		t.Fatal(err)
	}

	reqs, err := BuildRequests([]Entry{{Input: src}}, dir, compress.Request{})
	if err != nil {
		t.Fatal(err)
	}
	results, err := NewScheduler(c, nil).CompressBatch(context.Background(), reqs, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Success || !errors.Is(results[0].Err, compress.ErrInvalidOutputPath) {
		t.Errorf("results = %+v", results)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("source removed: %v", err)
	}
	if string(data) != "source video" {
		t.Errorf("source changed: %q", data)
	}
}
