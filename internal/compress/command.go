// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package compress

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZSC714725/videocompressor/internal/ffmpeg/probe"
	"github.com/ZSC714725/videocompressor/internal/preset"
)

// BuildArgs returns the ffmpeg arguments, without the binary, that encode
// req with preset p. meta is only used to decide on downscaling. The result
// depends on nothing but the arguments.
func BuildArgs(req Request, p preset.Preset, meta probe.Metadata) ([]string, error) {
	codec := p.Codec
	if req.Codec != "" {
		codec = req.Codec
	}
	capa, err := preset.Capabilities(codec)
	if err != nil {
		return nil, err
	}
	if req.PreserveAlpha && !capa.SupportsAlpha {
		return nil, fmt.Errorf("%w: requested with %s", preset.ErrAlphaUnsupported, codec)
	}

	o := req.Overrides
	videoBitrate := p.VideoBitrate
	if o.VideoBitrate != "" {
		videoBitrate = o.VideoBitrate
	}
	audioBitrate := p.AudioBitrate
	if o.AudioBitrate != "" {
		audioBitrate = o.AudioBitrate
	}
	crf := p.CRF
	if o.CRF != nil {
		crf = *o.CRF
	}
	speed := p.Speed
	if o.Speed != nil {
		speed = *o.Speed
	}
	maxRes := p.MaxResolution
	if o.MaxResolution != nil {
		maxRes = *o.MaxResolution
	}

	if err := preset.CheckCRF(crf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	// a preset speed valid for vp9 may be out of range after a codec override
	if err := capa.CheckSpeed(speed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	args := []string{"-i", req.Input, "-c:v", capa.Encoder}

	if req.PreserveAlpha {
		args = append(args,
			"-pix_fmt", "yuva420p",
			"-auto-alt-ref", "0",
			"-metadata:s:v:0", "alpha_mode=1",
		)
	}

	args = append(args,
		"-b:v", videoBitrate,
		"-crf", strconv.Itoa(crf),
		capa.SpeedFlag, strconv.Itoa(speed),
	)

	if !maxRes.IsZero() && (meta.Width > maxRes.Width || meta.Height > maxRes.Height) {
		// commas are escaped for the filtergraph parser, no shell is involved
		args = append(args, "-vf", fmt.Sprintf(
			`scale=min(%d\,iw):min(%d\,ih):force_original_aspect_ratio=decrease`,
			maxRes.Width, maxRes.Height,
		))
	}

	if capa.RowMT {
		args = append(args, "-row-mt", "1")
	}

	if p.AudioCodec != "" {
		args = append(args, "-c:a", p.AudioCodec, "-b:a", audioBitrate)
	}

	args = append(args, "-y", req.Output)
	return args, nil
}

// quoteArgs renders args for a log line
func quoteArgs(args []string) string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = strconv.Quote(a)
		}
		out[i] = a
	}
	return strings.Join(out, " ")
}
