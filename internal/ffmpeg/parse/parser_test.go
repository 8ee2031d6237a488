// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package parse

import (
	"strings"
	"testing"
)

func TestParseProgressStatusLine(t *testing.T) {
	line := "frame=  10 fps=30.0 q=28.0 size=100kB time=00:01:30.50 bitrate=900kbits/s speed=2.0x"
	s, ok := ParseProgress(line)
	if !ok {
		t.Fatal("line did not parse")
	}
	if s.Time != 90.5 {
		t.Errorf("time = %v, want 90.5", s.Time)
	}
	if s.Speed != 2.0 {
		t.Errorf("speed = %v, want 2.0", s.Speed)
	}
	if s.Frame != 10 || s.FPS != 30 {
		t.Errorf("frame/fps = %d/%v", s.Frame, s.FPS)
	}
}

func TestParseProgressHours(t *testing.T) {
	s, ok := ParseProgress("frame=123456 fps=60 q=-1.0 Lsize= 9000kB time=01:02:03.25 bitrate=1000kbits/s speed=0.75x")
	if !ok {
		t.Fatal("line did not parse")
	}
	if want := 3600.0 + 120 + 3.25; s.Time != want {
		t.Errorf("time = %v, want %v", s.Time, want)
	}
	if s.Speed != 0.75 {
		t.Errorf("speed = %v", s.Speed)
	}
}

func TestParseProgressRejects(t *testing.T) {
	lines := []string{
		"",
		"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':",
		"  Duration: 00:00:10.00, start: 0.000000, bitrate: 1000 kb/s",
		"frame=   10 fps=30.0 q=28.0 size=100kB time=N/A bitrate=N/A speed=N/A",
		"frame=   10 fps=30.0 q=28.0 size=100kB time=00:00:01.00 bitrate=N/A",
		// captured but not numeric
		"frame=   10 fps=1.2.3 q=28.0 size=100kB time=00:00:01.00 bitrate=N/A speed=1.0x",
		"frame=   10 fps=30 q=28.0 size=100kB time=00:00:1..0 bitrate=N/A speed=1.0x",
	}
	for _, line := range lines {
		if s, ok := ParseProgress(line); ok {
			t.Errorf("ParseProgress(%q) = %+v, want no sample", line, s)
		}
	}
}

func TestParserForwardsSamplesAndKeepsLog(t *testing.T) {
	var got []Sample
	p := New(Config{LogLines: 3, OnSample: func(s Sample) { got = append(got, s) }})

	lines := []string{
		"ffmpeg version 6.0",
		"frame=    0 fps=0.0 q=0.0 size=0kB time=00:00:00.00 bitrate=N/A speed=0x",
		"frame=   30 fps=30 q=28.0 size=10kB time=00:00:01.00 bitrate=80kbits/s speed=1.0x",
		"Conversion failed!",
	}
	var ret []uint64
	for _, l := range lines {
		ret = append(ret, p.Parse(l))
	}

	if ret[0] != 0 || ret[1] == 0 || ret[2] == 0 || ret[3] != 0 {
		t.Errorf("Parse return values = %v", ret)
	}
	if len(got) != 2 || got[1].Time != 1 {
		t.Errorf("forwarded samples = %+v", got)
	}
	last, ok := p.Last()
	if !ok || last.Frame != 30 {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
	if n := len(p.Log()); n != 3 {
		t.Errorf("log has %d lines, want 3 (ring size)", n)
	}
	if tail := p.Tail(5); tail != "Conversion failed!" {
		t.Errorf("Tail = %q", tail)
	}
}

func TestParserTailOrder(t *testing.T) {
	p := New(Config{LogLines: 10})
	for _, l := range []string{"a", "frame= 1 fps=1 time=00:00:00.10 speed=1x", "b", "  ", "c"} {
		p.Parse(l)
	}
	if tail := p.Tail(2); tail != strings.Join([]string{"b", "c"}, "\n") {
		t.Errorf("Tail(2) = %q", tail)
	}
	p.ResetLog()
	if len(p.Log()) != 0 {
		t.Error("ResetLog kept lines")
	}
	p.ResetStats()
	if _, ok := p.Last(); ok {
		t.Error("ResetStats kept sample")
	}
}
