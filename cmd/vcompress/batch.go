// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/videocompressor/internal/batch"
	"github.com/ZSC714725/videocompressor/internal/progress"
)

func newBatchCommand(ctx *cliContext) *cobra.Command {
	var opts jobFlags
	var outputDir string
	var jobs int

	cmd := &cobra.Command{
		Use:   "batch <input>...",
		Short: "Compress several videos into one directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.Jobs.OutputDir
			}
			if jobs <= 0 {
				jobs = cfg.Jobs.Concurrency
			}

			template, err := opts.request(cmd)
			if err != nil {
				return err
			}
			entries := make([]batch.Entry, 0, len(args))
			for _, in := range args {
				entries = append(entries, batch.Entry{Input: in})
			}
			reqs, err := batch.BuildRequests(entries, outputDir, template)
			if errors.Is(err, batch.ErrMissingOutputDirectory) {
				return fmt.Errorf("%w (use --output-dir)", err)
			}
			if err != nil {
				return err
			}

			compressor, _, err := ctx.compressor()
			if err != nil {
				return err
			}

			prog := batch.NewProgress(len(reqs))
			view := newProgressView(cmd.ErrOrStderr(), fmt.Sprintf("%d files", len(reqs)), opts.quiet || opts.asJSON)
			results, err := batch.NewScheduler(compressor, ctx.logger()).Run(cmd.Context(), reqs, jobs, prog, func(progress.Event) {
				view.set(prog.Overall(), fmt.Sprintf("(%d/%d done)", prog.Completed(), prog.Total()))
			})
			view.finish()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			if opts.asJSON {
				for _, res := range results {
					if !res.Success {
						failed++
					}
				}
				if err := writeJSON(out, results); err != nil {
					return err
				}
			} else {
				failed = renderResults(out, results)
			}

			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", failed, len(results))
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Output directory (default from config)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Jobs running at the same time (default from config)")
	return cmd
}
