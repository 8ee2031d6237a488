// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package api

import (
	"github.com/ZSC714725/videocompressor/internal/batch"
	"github.com/ZSC714725/videocompressor/internal/progress"
)

// Overrides replace single preset values
type Overrides struct {
	VideoBitrate string `json:"video_bitrate"`
	AudioBitrate string `json:"audio_bitrate"`
	CRF          *int   `json:"crf"`
	Speed        *int   `json:"speed"`
	// WxH, "0x0" removes the preset's cap
	MaxResolution string `json:"max_resolution"`
}

// JobSettings are shared by single jobs and batches
type JobSettings struct {
	Preset        string    `json:"preset"`
	Codec         string    `json:"codec"`
	PreserveAlpha bool      `json:"preserve_alpha"`
	Overrides     Overrides `json:"overrides"`
}

// JobRequest for POST /job. Without output the file goes to the configured
// output directory.
type JobRequest struct {
	Input  string `json:"input" binding:"required"`
	Output string `json:"output"`
	JobSettings
}

// BatchRequest for POST /batch
type BatchRequest struct {
	Jobs      []batch.Entry `json:"jobs" binding:"required"`
	OutputDir string        `json:"output_dir"`
	JobSettings
}

// Job represents a job in API responses
type Job struct {
	ID        string          `json:"id"`
	BatchID   string          `json:"batch_id,omitempty"`
	State     string          `json:"state"`
	Input     string          `json:"input"`
	Output    string          `json:"output"`
	Preset    string          `json:"preset,omitempty"`
	Codec     string          `json:"codec,omitempty"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
	Progress  *progress.Event `json:"progress,omitempty"`
	Result    *JobResult      `json:"result,omitempty"`
}

// JobResult is the outcome of an ended job
type JobResult struct {
	Success          bool     `json:"success"`
	InputSize        int64    `json:"input_size_bytes"`
	OutputSize       int64    `json:"output_size_bytes"`
	CompressionRatio float64  `json:"compression_ratio"`
	SpaceSaved       float64  `json:"space_saved_percent"`
	Duration         float64  `json:"duration_seconds"`
	Elapsed          float64  `json:"elapsed_seconds"`
	ExitCode         int      `json:"exit_code"`
	PeakMemory       uint64   `json:"peak_memory_bytes"`
	Warnings         []string `json:"warnings,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// JobReport holds the encoder log of a job
type JobReport struct {
	ID       string   `json:"id"`
	State    string   `json:"state"`
	ExitCode int      `json:"exit_code"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Log      []string `json:"log"`
}

// Batch represents a batch in API responses
type Batch struct {
	ID        string  `json:"id"`
	CreatedAt int64   `json:"created_at"`
	Finished  bool    `json:"finished"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Overall   float64 `json:"overall"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Jobs      []Job   `json:"jobs"`
}

// Preset in API format
type Preset struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Codec         string `json:"codec"`
	VideoBitrate  string `json:"video_bitrate"`
	AudioBitrate  string `json:"audio_bitrate"`
	AudioCodec    string `json:"audio_codec"`
	CRF           int    `json:"crf"`
	Speed         int    `json:"speed"`
	TwoPass       bool   `json:"two_pass"`
	MaxResolution string `json:"max_resolution,omitempty"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
