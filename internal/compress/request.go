// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package compress

import (
	"fmt"
	"strings"

	"github.com/ZSC714725/videocompressor/internal/preset"
)

// Overrides replace single preset values. Empty strings and nil pointers
// keep the preset's value.
type Overrides struct {
	VideoBitrate string `json:"video_bitrate,omitempty"`
	AudioBitrate string `json:"audio_bitrate,omitempty"`
	CRF          *int   `json:"crf,omitempty"`
	Speed        *int   `json:"speed,omitempty"`
	// A zero resolution removes the preset's cap
	MaxResolution *preset.Resolution `json:"max_resolution,omitempty"`
}

// Request describes one compression job
type Request struct {
	// ID tags progress events. The input path is used when empty.
	ID            string       `json:"id,omitempty"`
	Input         string       `json:"input"`
	Output        string       `json:"output"`
	Preset        string       `json:"preset,omitempty"`
	Codec         preset.Codec `json:"codec,omitempty"`
	PreserveAlpha bool         `json:"preserve_alpha,omitempty"`
	Overrides     Overrides    `json:"overrides"`
}

// Key is the job identifier carried by progress events
func (r Request) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Input
}

// Validate checks what can be checked without the preset. Range checks that
// depend on the preset codec are repeated by BuildArgs.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Output) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidOutputPath)
	}

	if r.Codec != "" {
		capa, err := preset.Capabilities(r.Codec)
		if err != nil {
			return err
		}
		if r.PreserveAlpha && !capa.SupportsAlpha {
			return fmt.Errorf("%w: requested with %s", preset.ErrAlphaUnsupported, r.Codec)
		}
		if r.Overrides.Speed != nil {
			if err := capa.CheckSpeed(*r.Overrides.Speed); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
			}
		}
	}

	o := r.Overrides
	if o.CRF != nil {
		if err := preset.CheckCRF(*o.CRF); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if o.Speed != nil && *o.Speed < 0 {
		return fmt.Errorf("%w: negative speed %d", ErrInvalidRequest, *o.Speed)
	}
	if o.MaxResolution != nil && !o.MaxResolution.IsZero() && (o.MaxResolution.Width <= 0 || o.MaxResolution.Height <= 0) {
		return fmt.Errorf("%w: max resolution %s", ErrInvalidRequest, o.MaxResolution)
	}
	return nil
}
