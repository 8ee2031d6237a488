// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package compress

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input file")
	ErrInvalidOutputPath = errors.New("invalid output path")
	ErrCompressionFailed = errors.New("compression failed")
	ErrInvalidRequest    = errors.New("invalid request")
)
