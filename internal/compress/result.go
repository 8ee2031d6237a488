// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package compress

import (
	"time"
)

// Result is the outcome of one job. Failures are reported here, never as a
// separate error return.
type Result struct {
	Success    bool   `json:"success"`
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Preset     string `json:"preset,omitempty"`
	Codec      string `json:"codec,omitempty"`
	// Sizes in bytes
	InputSize  int64 `json:"input_size"`
	OutputSize int64 `json:"output_size"`
	// CompressionRatio is InputSize/OutputSize, 0 when nothing was written
	CompressionRatio float64 `json:"compression_ratio"`
	// Duration of the media in seconds
	Duration float64       `json:"duration"`
	Elapsed  time.Duration `json:"elapsed"`
	ExitCode int           `json:"exit_code"`
	// PeakMemory is the encoder's peak RSS in bytes, 0 if not sampled
	PeakMemory uint64   `json:"peak_memory"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
	Err        error    `json:"-"`
	// Log is the tail of the encoder's stderr
	Log []string `json:"-"`
}

// SpaceSaved is the size reduction in percent
func (r Result) SpaceSaved() float64 {
	if r.InputSize <= 0 || r.OutputSize <= 0 {
		return 0
	}
	return (1 - float64(r.OutputSize)/float64(r.InputSize)) * 100
}

func (r *Result) fail(err error) {
	r.Success = false
	r.Err = err
	r.Error = err.Error()
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func ratio(in, out int64) float64 {
	if out <= 0 {
		return 0
	}
	return float64(in) / float64(out)
}
