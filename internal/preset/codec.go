// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package preset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCodec      = errors.New("invalid codec")
	ErrAlphaUnsupported  = errors.New("alpha channel is only supported with vp9")
	ErrInvalidPreset     = errors.New("invalid preset")
	ErrInvalidResolution = errors.New("invalid resolution")
)

// Codec is a WebM video codec selector
type Codec string

const (
	VP9 Codec = "vp9"
	VP8 Codec = "vp8"
)

// Capability describes how ffmpeg is driven for one codec. The speed flag
// spelling differs between libvpx and libvpx-vp9.
type Capability struct {
	Encoder       string
	SpeedFlag     string
	SpeedMin      int
	SpeedMax      int
	SupportsAlpha bool
	RowMT         bool
}

// CRF bounds shared by both libvpx encoders.
const (
	CRFMin = 0
	CRFMax = 63
)

var capabilities = map[Codec]Capability{
	VP9: {
		Encoder:       "libvpx-vp9",
		SpeedFlag:     "-speed",
		SpeedMin:      0,
		SpeedMax:      5,
		SupportsAlpha: true,
		RowMT:         true,
	},
	VP8: {
		Encoder:   "libvpx",
		SpeedFlag: "-cpu-used",
		SpeedMin:  0,
		SpeedMax:  16,
	},
}

// Codecs lists the supported codecs in a stable order
func Codecs() []Codec {
	return []Codec{VP9, VP8}
}

// ParseCodec normalizes s and checks that it names a supported codec.
func ParseCodec(s string) (Codec, error) {
	c := Codec(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := capabilities[c]; !ok {
		return "", fmt.Errorf("%w: %q, must be vp8 or vp9", ErrInvalidCodec, s)
	}
	return c, nil
}

// Capabilities returns the capability entry of c.
func Capabilities(c Codec) (Capability, error) {
	capa, ok := capabilities[c]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %q, must be vp8 or vp9", ErrInvalidCodec, string(c))
	}
	return capa, nil
}

// Valid reports whether c is a supported codec
func (c Codec) Valid() bool {
	_, ok := capabilities[c]
	return ok
}

// CheckSpeed reports whether speed is within the codec's effort range.
func (c Capability) CheckSpeed(speed int) error {
	if speed < c.SpeedMin || speed > c.SpeedMax {
		return fmt.Errorf("speed %d out of range %d-%d for %s", speed, c.SpeedMin, c.SpeedMax, c.Encoder)
	}
	return nil
}

// CheckCRF reports whether crf is within the libvpx quality range.
func CheckCRF(crf int) error {
	if crf < CRFMin || crf > CRFMax {
		return fmt.Errorf("crf %d out of range %d-%d", crf, CRFMin, CRFMax)
	}
	return nil
}
