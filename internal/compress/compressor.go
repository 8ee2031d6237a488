// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具
//
// Package compress runs single compression jobs: it validates the request,
// builds the ffmpeg command, and supervises the encoder while reporting
// progress.

package compress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/ZSC714725/videocompressor/internal/ffmpeg"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg/parse"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg/probe"
	"github.com/ZSC714725/videocompressor/internal/logger"
	"github.com/ZSC714725/videocompressor/internal/metrics"
	"github.com/ZSC714725/videocompressor/internal/preset"
	"github.com/ZSC714725/videocompressor/internal/process"
	"github.com/ZSC714725/videocompressor/internal/progress"
)

// tailLines is how many stderr lines end up in a failure description
const tailLines = 10

// Config for a Compressor
type Config struct {
	FFmpeg  ffmpeg.FFmpeg
	Prober  probe.Prober
	Presets *preset.Registry
	// DefaultPreset is used for requests without a preset name
	DefaultPreset string
	Logger        logger.Logger
	Metrics       *metrics.Metrics
}

// Compressor runs jobs. It is safe for concurrent use.
type Compressor struct {
	ffmpeg        ffmpeg.FFmpeg
	prober        probe.Prober
	presets       *preset.Registry
	defaultPreset string
	logger        logger.Logger
	metrics       *metrics.Metrics
}

// New creates a Compressor
func New(config Config) (*Compressor, error) {
	if config.FFmpeg == nil {
		return nil, fmt.Errorf("%w: no ffmpeg", ffmpeg.ErrEncoderNotFound)
	}
	if config.Prober == nil {
		return nil, fmt.Errorf("%w: no prober", ffmpeg.ErrEncoderNotFound)
	}

	c := &Compressor{
		ffmpeg:        config.FFmpeg,
		prober:        config.Prober,
		presets:       config.Presets,
		defaultPreset: config.DefaultPreset,
		logger:        config.Logger,
		metrics:       config.Metrics,
	}
	if c.presets == nil {
		c.presets = preset.NewRegistry()
	}
	if c.defaultPreset == "" {
		c.defaultPreset = preset.DefaultName
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	return c, nil
}

// Presets returns the registry used to resolve preset names
func (c *Compressor) Presets() *preset.Registry {
	return c.presets
}

// Compress runs req to completion. Progress events go to sink, which may be
// nil. The job ends early when ctx is cancelled.
func (c *Compressor) Compress(ctx context.Context, req Request, sink progress.Sink) (res Result) {
	start := time.Now()
	key := req.Key()
	res = Result{InputPath: req.Input, OutputPath: req.Output}

	c.logger.Debug("job %s: pending", key)

	defer func() {
		if r := recover(); r != nil {
			res.fail(fmt.Errorf("%w: panic: %v", ErrCompressionFailed, r))
		}
		res.Elapsed = time.Since(start)
		if res.Success {
			c.logger.Info("job %s: succeeded, %d -> %d bytes (ratio %.2f) in %s",
				key, res.InputSize, res.OutputSize, res.CompressionRatio, res.Elapsed.Round(time.Millisecond))
		} else {
			c.logger.Error("job %s: failed: %v", key, res.Err)
		}
		c.metrics.JobFinished(metrics.Job{
			Codec:      res.Codec,
			Success:    res.Success,
			Elapsed:    res.Elapsed,
			InputSize:  res.InputSize,
			OutputSize: res.OutputSize,
			Ratio:      res.CompressionRatio,
			PeakRSS:    res.PeakMemory,
		})
	}()

	p, meta, err := c.prepare(ctx, req, &res)
	if err != nil {
		res.fail(err)
		return res
	}

	lock, err := lockOutput(req.Output)
	if err != nil {
		res.fail(err)
		return res
	}
	defer func() {
		if err := unlockOutput(lock); err != nil {
			res.warn(err.Error())
		}
	}()

	args, err := BuildArgs(req, p, meta)
	if err != nil {
		res.fail(err)
		return res
	}

	c.logger.Info("job %s: running, %s %s", key, c.ffmpeg.Binary(), quoteArgs(args))
	c.run(ctx, req, args, meta, sink, &res)
	return res
}

// prepare is the pending stage. It fills the preset, codec, size and
// duration fields of res.
func (c *Compressor) prepare(ctx context.Context, req Request, res *Result) (preset.Preset, probe.Metadata, error) {
	if err := req.Validate(); err != nil {
		return preset.Preset{}, probe.Metadata{}, err
	}

	name := req.Preset
	if name == "" {
		name = c.defaultPreset
	}
	p, err := c.presets.Get(name)
	if err != nil {
		return preset.Preset{}, probe.Metadata{}, err
	}
	res.Preset = p.Name
	res.Codec = string(p.Codec)
	if req.Codec != "" {
		res.Codec = string(req.Codec)
	}

	// alpha against the preset codec, before touching any file
	capa, err := preset.Capabilities(preset.Codec(res.Codec))
	if err != nil {
		return preset.Preset{}, probe.Metadata{}, err
	}
	if req.PreserveAlpha && !capa.SupportsAlpha {
		return preset.Preset{}, probe.Metadata{}, fmt.Errorf("%w: preset %s uses %s", preset.ErrAlphaUnsupported, p.Name, res.Codec)
	}

	if err := c.ffmpeg.ValidateInput(req.Input); err != nil {
		return preset.Preset{}, probe.Metadata{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	size, err := checkInput(req.Input)
	if err != nil {
		return preset.Preset{}, probe.Metadata{}, err
	}
	res.InputSize = size

	if err := c.ffmpeg.ValidateOutput(req.Output); err != nil {
		return preset.Preset{}, probe.Metadata{}, fmt.Errorf("%w: %v", ErrInvalidOutputPath, err)
	}
	if err := checkSameFile(req.Input, req.Output); err != nil {
		return preset.Preset{}, probe.Metadata{}, err
	}
	if err := checkOutput(req.Output); err != nil {
		return preset.Preset{}, probe.Metadata{}, err
	}

	meta, err := c.prober.Probe(ctx, req.Input)
	if err != nil {
		return preset.Preset{}, probe.Metadata{}, fmt.Errorf("%w: %s: %v", ErrInvalidInput, req.Input, err)
	}
	res.Duration = meta.Duration

	return p, meta, nil
}

// run is the running stage
func (c *Compressor) run(ctx context.Context, req Request, args []string, meta probe.Metadata, sink progress.Sink, res *Result) {
	tracker := progress.NewTracker(req.Key(), filepath.Base(req.Input), meta.Duration, sink)
	parser := c.ffmpeg.NewParser(func(s parse.Sample) {
		tracker.Update(s.Time, s.Speed)
	})

	proc, err := c.ffmpeg.NewProcess(ffmpeg.ProcessConfig{
		Args:   args,
		Parser: parser,
		Logger: c.logger,
	})
	if err != nil {
		res.fail(fmt.Errorf("%w: %v", ErrCompressionFailed, err))
		return
	}

	c.metrics.JobStarted()
	exit, runErr := process.Run(ctx, proc)
	c.metrics.JobStopped()

	// the reader goroutine is done once Run returns
	tracker.Complete()

	res.ExitCode = exit.Code
	res.PeakMemory = exit.PeakRSS
	for _, l := range parser.Log() {
		res.Log = append(res.Log, l.Data)
	}

	switch {
	case runErr != nil && ctx.Err() != nil:
		res.fail(fmt.Errorf("%w: %v", ErrCompressionFailed, ctx.Err()))
	case runErr != nil:
		res.fail(fmt.Errorf("%w: starting ffmpeg: %v", ErrCompressionFailed, runErr))
	case exit.Stale:
		res.fail(fmt.Errorf("%w: ffmpeg stalled and was stopped", ErrCompressionFailed))
	case !exit.Success():
		res.fail(fmt.Errorf("%w: ffmpeg exited with code %d: %s", ErrCompressionFailed, exit.Code, parser.Tail(tailLines)))
	}

	if res.Err != nil {
		c.removeOutput(req.Output, res)
		return
	}

	fi, err := os.Stat(req.Output)
	if err != nil {
		res.fail(fmt.Errorf("%w: output not written: %v", ErrCompressionFailed, err))
		return
	}
	res.OutputSize = fi.Size()
	res.CompressionRatio = ratio(res.InputSize, res.OutputSize)
	res.Success = true
}

// removeOutput deletes a partial artifact. Failing to do so is only a
// warning.
func (c *Compressor) removeOutput(path string, res *Result) {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}
	c.logger.Warn("could not remove partial output %s: %v", path, err)
	res.warn(fmt.Sprintf("partial output %s not removed: %v", path, err))
}

func checkInput(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: not found: %s", ErrInvalidInput, path)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: not a file: %s", ErrInvalidInput, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: not readable: %v", ErrInvalidInput, err)
	}
	f.Close()
	return fi.Size(), nil
}

// checkSameFile refuses an output that is the input itself, directly or
// through a link.
func checkSameFile(input, output string) error {
	in, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutputPath, err)
	}
	if in == out {
		return fmt.Errorf("%w: output is the input file %s", ErrInvalidOutputPath, input)
	}

	inInfo, err := os.Stat(in)
	if err != nil {
		return nil
	}
	if outInfo, err := os.Stat(out); err == nil && os.SameFile(inInfo, outInfo) {
		return fmt.Errorf("%w: output %s is the same file as input %s", ErrInvalidOutputPath, output, input)
	}
	return nil
}

// checkOutput creates the output directory and makes sure both the
// directory and an existing output file are writable.
func checkOutput(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutputPath, err)
	}
	dir := filepath.Dir(abs)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: cannot create output directory %s: %v", ErrInvalidOutputPath, dir, err)
	}

	if fi, err := os.Stat(abs); err == nil {
		if fi.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrInvalidOutputPath, path)
		}
		f, err := os.OpenFile(abs, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("%w: output file is not writable: %v", ErrInvalidOutputPath, err)
		}
		f.Close()
	}

	tmp, err := os.CreateTemp(dir, ".vcompress-*")
	if err != nil {
		return fmt.Errorf("%w: output directory %s is not writable: %v", ErrInvalidOutputPath, dir, err)
	}
	tmp.Close()
	os.Remove(tmp.Name())
	return nil
}

// LockDir holds the output lock files. A lock file is kept after unlock so
// that every job of one output locks the same inode.
var LockDir = filepath.Join(os.TempDir(), "vcompress-locks")

// lockPath maps an output to its lock file in LockDir
func lockPath(output string) (string, error) {
	abs, err := filepath.Abs(output)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(LockDir, hex.EncodeToString(sum[:16])+".lock"), nil
}

// lockOutput takes an advisory lock for the output so that two jobs never
// write the same file.
func lockOutput(path string) (*flock.Flock, error) {
	name, err := lockPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: lock: %v", ErrInvalidOutputPath, err)
	}
	if err := os.MkdirAll(LockDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: lock directory: %v", ErrInvalidOutputPath, err)
	}
	lock := flock.New(name)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock: %v", ErrInvalidOutputPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is being written by another job", ErrInvalidOutputPath, path)
	}
	return lock, nil
}

func unlockOutput(lock *flock.Flock) error {
	if err := lock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %v", lock.Path(), err)
	}
	return nil
}
