// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package task

import (
	"github.com/ZSC714725/videocompressor/internal/batch"
	"github.com/ZSC714725/videocompressor/internal/logger"
	"github.com/ZSC714725/videocompressor/internal/metrics"
)

// Config for a Store
type Config struct {
	// Runner executes the jobs, usually a *compress.Compressor
	Runner batch.Runner
	// Concurrency is the number of jobs running at the same time across
	// all submissions. Defaults to 1.
	Concurrency int
	Logger      logger.Logger
	Metrics     *metrics.Metrics
}
