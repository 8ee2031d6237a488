// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/videocompressor/internal/compress"
	"github.com/ZSC714725/videocompressor/internal/preset"
	"github.com/ZSC714725/videocompressor/internal/progress"
)

// jobFlags are the encoder settings shared by compress and batch
type jobFlags struct {
	preset        string
	codec         string
	alpha         bool
	videoBitrate  string
	audioBitrate  string
	crf           int
	speed         int
	maxResolution string
	asJSON        bool
	quiet         bool
}

func (f *jobFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.preset, "preset", "p", "", "Preset name (default from config)")
	flags.StringVar(&f.codec, "codec", "", "Video codec: vp9 or vp8 (default from preset)")
	flags.BoolVar(&f.alpha, "alpha", false, "Keep the alpha channel (vp9 only)")
	flags.StringVar(&f.videoBitrate, "video-bitrate", "", "Video bitrate, e.g. 1M")
	flags.StringVar(&f.audioBitrate, "audio-bitrate", "", "Audio bitrate, e.g. 128k")
	flags.IntVar(&f.crf, "crf", 0, "Constant rate factor 0-63")
	flags.IntVar(&f.speed, "speed", 0, "Encoder speed, higher is faster")
	flags.StringVar(&f.maxResolution, "max-resolution", "", "Resolution cap WxH, or none")
	flags.BoolVar(&f.asJSON, "json", false, "Print results as JSON")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "Hide progress")
}

// request builds the settings part of a request. Input and Output are left
// to the caller.
func (f *jobFlags) request(cmd *cobra.Command) (compress.Request, error) {
	req := compress.Request{
		Preset:        f.preset,
		PreserveAlpha: f.alpha,
		Overrides: compress.Overrides{
			VideoBitrate: f.videoBitrate,
			AudioBitrate: f.audioBitrate,
		},
	}

	if f.codec != "" {
		codec, err := preset.ParseCodec(f.codec)
		if err != nil {
			return req, err
		}
		req.Codec = codec
	}
	if cmd.Flags().Changed("crf") {
		crf := f.crf
		req.Overrides.CRF = &crf
	}
	if cmd.Flags().Changed("speed") {
		speed := f.speed
		req.Overrides.Speed = &speed
	}

	limit, err := preset.ParseCap(f.maxResolution)
	if err != nil {
		return req, err
	}
	req.Overrides.MaxResolution = limit

	return req, nil
}

func newCompressCommand(ctx *cliContext) *cobra.Command {
	var opts jobFlags

	cmd := &cobra.Command{
		Use:   "compress <input> <output>",
		Short: "Compress one video to WebM",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(cmd)
			if err != nil {
				return err
			}
			req.Input, req.Output = args[0], args[1]

			compressor, _, err := ctx.compressor()
			if err != nil {
				return err
			}

			view := newProgressView(cmd.ErrOrStderr(), filepath.Base(req.Input), opts.quiet || opts.asJSON)
			res := compressor.Compress(cmd.Context(), req, func(e progress.Event) {
				view.set(e.Percentage, formatETA(e.ETA))
			})
			view.finish()

			out := cmd.OutOrStdout()
			if opts.asJSON {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else {
				renderResult(out, res)
			}

			if !res.Success {
				if res.Err != nil {
					return res.Err
				}
				return fmt.Errorf("compress %s failed", req.Input)
			}
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}
