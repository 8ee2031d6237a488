// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package compress

import (
	"fmt"
	"time"

	"github.com/ZSC714725/videocompressor/internal/config"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg"
	"github.com/ZSC714725/videocompressor/internal/logger"
	"github.com/ZSC714725/videocompressor/internal/metrics"
)

// FromConfig wires the encoder, the prober and the presets described by cfg
// into a Compressor. The FFmpeg is returned for skills queries.
func FromConfig(cfg *config.Config, log logger.Logger, m *metrics.Metrics) (*Compressor, ffmpeg.FFmpeg, error) {
	in, err := ffmpeg.NewValidator(cfg.FFmpeg.AllowInput, cfg.FFmpeg.BlockInput)
	if err != nil {
		return nil, nil, fmt.Errorf("input validator: %w", err)
	}
	out, err := ffmpeg.NewValidator(cfg.FFmpeg.AllowOutput, cfg.FFmpeg.BlockOutput)
	if err != nil {
		return nil, nil, fmt.Errorf("output validator: %w", err)
	}

	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		MaxLogLines:     cfg.FFmpeg.MaxLogLines,
		StaleTimeout:    time.Duration(cfg.FFmpeg.StaleTimeout) * time.Second,
		SampleUsage:     cfg.FFmpeg.SampleUsage,
		ValidatorInput:  in,
		ValidatorOutput: out,
	})
	if err != nil {
		return nil, nil, err
	}

	prober, err := ffmpeg.NewProber(cfg.FFmpeg.ProbePath)
	if err != nil {
		return nil, nil, err
	}

	presets, err := cfg.Registry()
	if err != nil {
		return nil, nil, err
	}

	c, err := New(Config{
		FFmpeg:        ff,
		Prober:        prober,
		Presets:       presets,
		DefaultPreset: cfg.Jobs.DefaultPreset,
		Logger:        log,
		Metrics:       m,
	})
	if err != nil {
		return nil, nil, err
	}
	return c, ff, nil
}
