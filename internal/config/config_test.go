// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZSC714725/videocompressor/internal/preset"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Bind != ":8080" || cfg.FFmpeg.Path != "ffmpeg" || cfg.Jobs.Concurrency != 2 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.FFmpeg.StaleTimeout != DefaultStaleTimeout {
		t.Errorf("stale timeout = %d, want %d", cfg.FFmpeg.StaleTimeout, DefaultStaleTimeout)
	}
}

func TestLoadStaleTimeoutCanBeDisabled(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
ffmpeg:
  stale_timeout_seconds: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FFmpeg.StaleTimeout != 0 {
		t.Errorf("stale timeout = %d", cfg.FFmpeg.StaleTimeout)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
server:
  bind: ":9000"
ffmpeg:
  path: /opt/ffmpeg
  stale_timeout_seconds: 30
jobs:
  concurrency: 4
  output_dir: /tmp/out
  default_preset: tiny
presets:
  tiny:
    codec: vp8
    video_bitrate: 300k
    audio_bitrate: 64k
    crf: 40
    speed: 8
    max_resolution: 640x360
    audio_codec: none
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Bind != ":9000" {
		t.Errorf("bind = %q", cfg.Server.Bind)
	}
	if cfg.FFmpeg.ProbePath != "ffprobe" {
		t.Errorf("probe path not filled: %q", cfg.FFmpeg.ProbePath)
	}
	if cfg.FFmpeg.StaleTimeout != 30 || cfg.Jobs.Concurrency != 4 {
		t.Errorf("ffmpeg/jobs = %+v / %+v", cfg.FFmpeg, cfg.Jobs)
	}

	r, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	p, err := r.Get("tiny")
	if err != nil {
		t.Fatalf("Get tiny: %v", err)
	}
	if p.Codec != preset.VP8 || p.AudioCodec != "" {
		t.Errorf("tiny = %+v", p)
	}
	if p.MaxResolution != (preset.Resolution{Width: 640, Height: 360}) {
		t.Errorf("max resolution = %+v", p.MaxResolution)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "cfg.toml", `
[server]
bind = ":7000"

[jobs]
concurrency = 3

[presets.square]
codec = "vp9"
video_bitrate = "800k"
audio_bitrate = "96k"
crf = 30
speed = 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Bind != ":7000" || cfg.Jobs.Concurrency != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	r, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	p, err := r.Get("square")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.AudioCodec != preset.DefaultAudioCodec {
		t.Errorf("audio codec = %q, want default", p.AudioCodec)
	}
}

func TestLoadRejectsInvalidPreset(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
presets:
  broken:
    codec: vp9
    video_bitrate: 1M
    audio_bitrate: 128k
    crf: 10
    speed: 9
`)
	if _, err := Load(path); !errors.Is(err, preset.ErrInvalidPreset) {
		t.Errorf("Load = %v, want ErrInvalidPreset", err)
	}
}

func TestLoadRejectsBadConcurrency(t *testing.T) {
	path := writeFile(t, "cfg.yaml", "jobs:\n  concurrency: -1\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for negative concurrency")
	}
}
