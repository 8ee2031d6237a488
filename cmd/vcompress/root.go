// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package main

import (
	"github.com/spf13/cobra"

	"github.com/ZSC714725/videocompressor/internal/compress"
	"github.com/ZSC714725/videocompressor/internal/config"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg"
	"github.com/ZSC714725/videocompressor/internal/logger"
)

// cliContext loads the configuration once per invocation
type cliContext struct {
	configPath string
	ffmpegPath string
	probePath  string
	logLevel   string

	cfg *config.Config
	log logger.Logger
}

func (c *cliContext) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}
	if c.ffmpegPath != "" {
		cfg.FFmpeg.Path = c.ffmpegPath
	}
	if c.probePath != "" {
		cfg.FFmpeg.ProbePath = c.probePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.cfg = cfg
	return cfg, nil
}

func (c *cliContext) logger() logger.Logger {
	if c.log == nil {
		c.log, _ = logger.NewWithConfig(logger.Config{
			Prefix: "vcompress",
			Level:  logger.ParseLevel(c.logLevel),
		})
	}
	return c.log
}

func (c *cliContext) compressor() (*compress.Compressor, ffmpeg.FFmpeg, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return compress.FromConfig(cfg, c.logger(), nil)
}

func newRootCommand() *cobra.Command {
	ctx := &cliContext{}

	rootCmd := &cobra.Command{
		Use:           "vcompress",
		Short:         "Compress videos to WebM with ffmpeg",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&ctx.ffmpegPath, "ffmpeg", "", "FFmpeg binary (overrides config)")
	rootCmd.PersistentFlags().StringVar(&ctx.probePath, "ffprobe", "", "FFprobe binary (overrides config)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newCompressCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newPresetsCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))
	rootCmd.AddCommand(newSkillsCommand(ctx))

	return rootCmd
}
