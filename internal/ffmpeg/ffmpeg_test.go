// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZSC714725/videocompressor/internal/ffmpeg/parse"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg/probe"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg/skills"
	"github.com/ZSC714725/videocompressor/internal/preset"
	"github.com/ZSC714725/videocompressor/internal/process"
)

func fakeBinary(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewMissingBinary(t *testing.T) {
	_, err := New(Config{Binary: filepath.Join(t.TempDir(), "ffmpeg")})
	if !errors.Is(err, ErrEncoderNotFound) {
		t.Errorf("err = %v, want ErrEncoderNotFound", err)
	}
}

func TestNewProberMissingBinary(t *testing.T) {
	_, err := NewProber(filepath.Join(t.TempDir(), "ffprobe"))
	if !errors.Is(err, ErrEncoderNotFound) || !errors.Is(err, probe.ErrProberNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestProcessFeedsParser(t *testing.T) {
	bin := fakeBinary(t, `printf 'frame=   12 fps=24 q=30.0 size=8kB time=00:00:00.50 bitrate=N/A speed=1.5x\r' >&2
exit 0`)
	f, err := New(Config{Binary: bin, MaxLogLines: 10})
	if err != nil {
		t.Fatal(err)
	}
	if f.Binary() != bin {
		t.Errorf("binary = %q", f.Binary())
	}

	var samples []parse.Sample
	parser := f.NewParser(func(s parse.Sample) { samples = append(samples, s) })
	p, err := f.NewProcess(ProcessConfig{Args: []string{"-i", "in.mp4"}, Parser: parser})
	if err != nil {
		t.Fatal(err)
	}

	exit, err := process.Run(context.Background(), p)
	if err != nil || !exit.Success() {
		t.Fatalf("exit = %+v, err = %v", exit, err)
	}
	if len(samples) != 1 || samples[0].Time != 0.5 || samples[0].Speed != 1.5 {
		t.Errorf("samples = %+v", samples)
	}
}

func TestValidatorsDefaultToAllow(t *testing.T) {
	f, err := New(Config{Binary: fakeBinary(t, "exit 0")})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ValidateInput("/any/where.mp4"); err != nil {
		t.Error(err)
	}
	if err := f.ValidateOutput("/any/where.webm"); err != nil {
		t.Error(err)
	}
}

func TestSkillsAreLoadedLazily(t *testing.T) {
	f, err := New(Config{Binary: fakeBinary(t, "exit 1")})
	if err != nil {
		t.Fatalf("New must not run the binary: %v", err)
	}
	if _, err := f.Skills(); err == nil {
		t.Error("expected skills error from failing binary")
	}
	if err := f.ReloadSkills(); err == nil {
		t.Error("expected reload error")
	}
}

func TestSupportOf(t *testing.T) {
	s := skills.Skills{
		FFmpeg: skills.Info{Version: "6.1.1"},
		Codecs: skills.Codecs{
			Video: []skills.Codec{{Id: "vp9", Encoders: []string{"libvpx-vp9"}}},
			Audio: []skills.Codec{{Id: "opus", Encoders: []string{"libopus"}}},
		},
		Filters: []skills.Filter{{Id: "scale"}},
		Muxers:  []skills.Format{{Id: "webm"}},
	}
	sup := SupportOf(s)
	if !sup.Codecs[preset.VP9] || sup.Codecs[preset.VP8] {
		t.Errorf("codecs = %v", sup.Codecs)
	}
	if !sup.Opus || sup.Vorbis || !sup.Scale || !sup.WebM || !sup.Ready() {
		t.Errorf("support = %+v", sup)
	}

	sup.WebM = false
	if sup.Ready() {
		t.Error("ready without webm muxer")
	}
}
