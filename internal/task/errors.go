// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package task

import "errors"

var (
	ErrNotFound       = errors.New("job not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrClosed         = errors.New("store closed")
)
