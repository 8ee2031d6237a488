// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具
//
// Package probe reads media metadata with one ffprobe JSON call.

package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var (
	ErrProberNotFound = errors.New("ffprobe executable not found")
	ErrNoVideoStream  = errors.New("no video stream found")
)

// Metadata is what the compressor needs to know about an input file
type Metadata struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
	HasAlpha bool    `json:"has_alpha"`
	// Bitrate in bits per second, 0 if unknown
	Bitrate int64 `json:"bitrate"`
	// FPS is 0 if unknown
	FPS float64 `json:"fps"`
}

// Prober returns the metadata of a media file
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}

type prober struct {
	binary string
}

// New looks up the ffprobe binary. The error wraps ErrProberNotFound.
func New(binary string) (Prober, error) {
	if binary == "" {
		binary = "ffprobe"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProberNotFound, binary, err)
	}
	return &prober{binary: path}, nil
}

func (p *prober) Probe(ctx context.Context, path string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	cmd.Env = []string{}

	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	return ParseJSON(out)
}

// ParseJSON converts raw ffprobe JSON output into Metadata of the first
// video stream. Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (Metadata, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		if s.CodecType != "video" || s.Disposition["attached_pic"] == 1 {
			continue
		}
		return Metadata{
			Duration: parseFloat(raw.Format.Duration),
			Width:    s.Width,
			Height:   s.Height,
			Codec:    s.CodecName,
			HasAlpha: hasAlpha(s),
			Bitrate:  parseInt64(raw.Format.BitRate),
			FPS:      parseRate(s.RFrameRate),
		}, nil
	}
	return Metadata{}, ErrNoVideoStream
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	PixFmt      string            `json:"pix_fmt"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	RFrameRate  string            `json:"r_frame_rate"`
	Disposition map[string]int    `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

var alphaPixFmts = map[string]bool{
	"argb":   true,
	"bgra":   true,
	"abgr":   true,
	"ya8":    true,
	"ya16":   true,
	"ya16le": true,
	"ya16be": true,
}

func hasAlpha(s *ffprobeStream) bool {
	pf := s.PixFmt
	if strings.Contains(pf, "yuva") || strings.Contains(pf, "rgba") || strings.Contains(pf, "gbra") || alphaPixFmts[pf] {
		return true
	}
	// libvpx decodes as yuv420p and keeps alpha as a side stream
	for k, v := range s.Tags {
		if strings.EqualFold(k, "alpha_mode") && v == "1" {
			return true
		}
	}
	return false
}

// parseRate parses "num/den". A zero denominator is unknown.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return parseFloat(num)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
