// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Codec represents a codec with encoders and decoders
type Codec struct {
	Id       string   `json:"id"`
	Name     string   `json:"name"`
	Encoders []string `json:"encoders"`
	Decoders []string `json:"decoders"`
}

// Filter represents a supported filter
type Filter struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Format represents a muxer
type Format struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Library represents a linked av library
type Library struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

// Info is the version banner of the binary
type Info struct {
	Version       string    `json:"version"`
	Compiler      string    `json:"compiler"`
	Configuration string    `json:"configuration"`
	Libraries     []Library `json:"libraries"`
}

// Codecs groups codecs by media type
type Codecs struct {
	Audio []Codec `json:"audio"`
	Video []Codec `json:"video"`
}

// Skills are the detected capabilities of FFmpeg
type Skills struct {
	FFmpeg  Info     `json:"ffmpeg"`
	Filters []Filter `json:"filters"`
	Codecs  Codecs   `json:"codecs"`
	Muxers  []Format `json:"muxers"`
}

// New runs the binary with -version, -codecs, -filters and -formats
func New(binary string) (Skills, error) {
	c := Skills{}

	ff, err := getVersion(binary)
	if err != nil {
		return Skills{}, fmt.Errorf("can't parse ffmpeg version: %w", err)
	}
	if ff.Version == "" {
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}
	c.FFmpeg = ff
	c.Codecs = parseCodecs(output(binary, "-codecs"))
	c.Filters = parseFilters(output(binary, "-filters"))
	c.Muxers = parseMuxers(output(binary, "-formats"))

	return c, nil
}

// HasEncoder reports whether any audio or video codec lists the encoder
func (s Skills) HasEncoder(name string) bool {
	for _, group := range [][]Codec{s.Codecs.Video, s.Codecs.Audio} {
		for _, c := range group {
			for _, e := range c.Encoders {
				if e == name {
					return true
				}
			}
		}
	}
	return false
}

// HasFilter reports whether the filter is compiled in
func (s Skills) HasFilter(id string) bool {
	for _, f := range s.Filters {
		if f.Id == id {
			return true
		}
	}
	return false
}

// HasMuxer reports whether the output format is available
func (s Skills) HasMuxer(id string) bool {
	for _, f := range s.Muxers {
		if f.Id == id {
			return true
		}
	}
	return false
}

func output(binary string, arg string) []byte {
	cmd := exec.Command(binary, arg)
	cmd.Env = []string{}
	stdout, _ := cmd.Output()
	return stdout
}

func getVersion(binary string) (Info, error) {
	cmd := exec.Command(binary, "-version")
	cmd.Env = []string{}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Info{}, err
	}
	return parseVersion(out), nil
}

var (
	reVersion       = regexp.MustCompile(`^ffmpeg version (?:n)?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler      = regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary       = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
	reCodec         = regexp.MustCompile(`^\s([D.])([E.])([VAS]).{3} ([0-9A-Za-z_]+)\s+(.*?)(?:\(decoders:([^\)]+)\))?\s?(?:\(encoders:([^\)]+)\))?$`)
	reFilter        = regexp.MustCompile(`^\s[TSC.]{3} ([0-9A-Za-z_]+)\s+(?:.*?)\s+(.*)?$`)
	reFormat        = regexp.MustCompile(`^\s([D ])([E ])[d ]? ([0-9A-Za-z_,]+)\s+(.*?)$`)
)

func parseVersion(data []byte) Info {
	f := Info{}

	if m := reVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		f.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}

func parseFilters(data []byte) []Filter {
	var filters []Filter
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if m := reFilter.FindStringSubmatch(scanner.Text()); m != nil {
			filters = append(filters, Filter{Id: m[1], Name: m[2]})
		}
	}
	return filters
}

// subtitle codecs are skipped, nothing here burns or copies them
func parseCodecs(data []byte) Codecs {
	codecs := Codecs{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reCodec.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		c := Codec{Id: m[4], Name: strings.TrimSpace(m[5])}
		if m[1] == "D" {
			if len(m[6]) == 0 {
				c.Decoders = []string{m[4]}
			} else {
				c.Decoders = strings.Fields(m[6])
			}
		}
		if m[2] == "E" {
			if len(m[7]) == 0 {
				c.Encoders = []string{m[4]}
			} else {
				c.Encoders = strings.Fields(m[7])
			}
		}
		switch m[3] {
		case "V":
			codecs.Video = append(codecs.Video, c)
		case "A":
			codecs.Audio = append(codecs.Audio, c)
		}
	}
	return codecs
}

func parseMuxers(data []byte) []Format {
	var muxers []Format
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reFormat.FindStringSubmatch(scanner.Text())
		if m == nil || m[2] != "E" {
			continue
		}
		for _, id := range strings.Split(m[3], ",") {
			muxers = append(muxers, Format{Id: id, Name: m[4]})
		}
	}
	return muxers
}
