// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/videocompressor/internal/api"
	"github.com/ZSC714725/videocompressor/internal/compress"
	"github.com/ZSC714725/videocompressor/internal/config"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg"
	"github.com/ZSC714725/videocompressor/internal/logger"
	"github.com/ZSC714725/videocompressor/internal/metrics"
	"github.com/ZSC714725/videocompressor/internal/task"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML or TOML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	outputDir := flag.String("output-dir", "", "Directory for jobs without output path (overrides config)")
	concurrency := flag.Int("concurrency", 0, "Jobs running at the same time (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}

	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if *outputDir != "" {
		cfg.Jobs.OutputDir = *outputDir
	}
	if *concurrency > 0 {
		cfg.Jobs.Concurrency = *concurrency
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config: %v", err)
	}

	lg, err := logger.NewWithConfig(logger.Config{
		Prefix: "videocompressor",
		Level:  logger.ParseLevel(cfg.Log.Level),
		File:   cfg.Log.File,
	})
	if err != nil {
		log.Fatalf("Logger: %v", err)
	}
	defer logger.Close(lg)

	m := metrics.New()

	compressor, ff, err := compress.FromConfig(cfg, lg, m)
	if err != nil {
		log.Fatalf("FFmpeg init: %v", err)
	}

	if sk, err := ff.Skills(); err != nil {
		lg.Warn("can't detect ffmpeg skills: %v", err)
	} else if sup := ffmpeg.SupportOf(sk); !sup.Ready() {
		lg.Warn("ffmpeg %s can't produce WebM (codecs %v, webm muxer %v)", sup.Version, sup.Codecs, sup.WebM)
	} else {
		lg.Info("ffmpeg %s, codecs %v, opus %v", sup.Version, sup.Codecs, sup.Opus)
	}

	store, err := task.NewStore(task.Config{
		Runner:      compressor,
		Concurrency: cfg.Jobs.Concurrency,
		Logger:      lg,
		Metrics:     m,
	})
	if err != nil {
		log.Fatalf("Store: %v", err)
	}

	handler := api.NewHandler(api.Config{
		Store:     store,
		FFmpeg:    ff,
		Presets:   compressor.Presets(),
		OutputDir: cfg.Jobs.OutputDir,
	})

	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/metrics", gin.WrapH(m.Handler()))
	handler.Register(r.Group("/api/v3"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{Addr: cfg.Server.Bind, Handler: r}
	go func() {
		lg.Info("VideoCompressor listening on %s (%d concurrent jobs)", cfg.Server.Bind, cfg.Jobs.Concurrency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	// 先取消任务并等待编码进程退出, 进度流随之结束
	store.Close()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("shutdown: %v", err)
	}
}
