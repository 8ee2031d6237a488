// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package compress

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZSC714725/videocompressor/internal/config"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg/probe"
)

func fakeBinary(t *testing.T, dir, name string) string {
	t.Helper()
	bin := filepath.Join(dir, name)
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.FFmpeg.Path = fakeBinary(t, dir, "ffmpeg")
	cfg.FFmpeg.ProbePath = fakeBinary(t, dir, "ffprobe")
	cfg.FFmpeg.BlockOutput = []string{`^/etc/`}
	cfg.Jobs.DefaultPreset = "web-small"
	cfg.Presets = map[string]config.PresetConfig{
		"tiny": {Codec: "vp8", VideoBitrate: "200k", AudioBitrate: "48k", CRF: 40, Speed: 8},
	}

	c, ff, err := FromConfig(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ff.Binary() != cfg.FFmpeg.Path {
		t.Errorf("binary = %q", ff.Binary())
	}
	if _, err := c.Presets().Get("tiny"); err != nil {
		t.Errorf("custom preset missing: %v", err)
	}
	if c.defaultPreset != "web-small" {
		t.Errorf("default preset = %q", c.defaultPreset)
	}
	if err := ff.ValidateOutput("/etc/passwd.webm"); !errors.Is(err, ffmpeg.ErrPathNotAllowed) {
		t.Errorf("blocked output accepted: %v", err)
	}
}

func TestFromConfigMissingProber(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.FFmpeg.Path = fakeBinary(t, dir, "ffmpeg")
	cfg.FFmpeg.ProbePath = filepath.Join(dir, "no-such-ffprobe")

	_, _, err := FromConfig(cfg, nil, nil)
	if !errors.Is(err, ffmpeg.ErrEncoderNotFound) || !errors.Is(err, probe.ErrProberNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestFromConfigBadExpression(t *testing.T) {
	cfg := config.Default()
	cfg.FFmpeg.AllowInput = []string{"(["}
	if _, _, err := FromConfig(cfg, nil, nil); err == nil {
		t.Error("expected error")
	}
}
