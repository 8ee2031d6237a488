// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ZSC714725/videocompressor/internal/ffmpeg"
	"github.com/ZSC714725/videocompressor/internal/preset"
)

func newPresetsCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Name", "Codec", "Video", "Audio", "CRF", "Speed", "Max", "Description")
			for _, p := range reg.List() {
				table.Append(p.Name, string(p.Codec), p.VideoBitrate, p.AudioBitrate,
					strconv.Itoa(p.CRF), strconv.Itoa(p.Speed), capText(p.MaxResolution), p.Description)
			}
			table.Render()
			return nil
		},
	}
}

func capText(r preset.Resolution) string {
	if r.IsZero() {
		return "-"
	}
	return r.String()
}

func newProbeCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Show the metadata of a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			prober, err := ffmpeg.NewProber(cfg.FFmpeg.ProbePath)
			if err != nil {
				return err
			}
			meta, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Field", "Value")
			table.Append("File", args[0])
			if st, err := os.Stat(args[0]); err == nil {
				table.Append("Size", humanize.Bytes(uint64(st.Size())))
			}
			table.Append("Duration", fmt.Sprintf("%.2fs", meta.Duration))
			table.Append("Resolution", fmt.Sprintf("%dx%d", meta.Width, meta.Height))
			table.Append("Codec", meta.Codec)
			if meta.FPS > 0 {
				table.Append("FPS", fmt.Sprintf("%.3f", meta.FPS))
			}
			if meta.Bitrate > 0 {
				table.Append("Bitrate", humanize.SI(float64(meta.Bitrate), "b/s"))
			}
			table.Append("Alpha", strconv.FormatBool(meta.HasAlpha))
			table.Render()
			return nil
		},
	}
}

func newSkillsCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "Check what the ffmpeg binary can do for WebM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			ff, err := ffmpeg.New(ffmpeg.Config{Binary: cfg.FFmpeg.Path})
			if err != nil {
				return err
			}
			sk, err := ff.Skills()
			if err != nil {
				return err
			}
			sup := ffmpeg.SupportOf(sk)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Feature", "Available")
			table.Append("ffmpeg", ff.Binary()+" "+sup.Version)
			for _, c := range preset.Codecs() {
				capa, _ := preset.Capabilities(c)
				table.Append(fmt.Sprintf("%s (%s)", c, capa.Encoder), yesNo(sup.Codecs[c]))
			}
			table.Append("opus", yesNo(sup.Opus))
			table.Append("vorbis", yesNo(sup.Vorbis))
			table.Append("scale filter", yesNo(sup.Scale))
			table.Append("webm muxer", yesNo(sup.WebM))
			table.Render()

			if !sup.Ready() {
				return errors.New("ffmpeg can't produce WebM output")
			}
			return nil
		},
	}
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
