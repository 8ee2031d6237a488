// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package parse

import (
	"container/ring"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/videocompressor/internal/process"
)

// Sample is the encoder position reported by one status line
type Sample struct {
	Frame uint64  `json:"frame"`
	FPS   float64 `json:"fps"`
	Time  float64 `json:"time_seconds"`
	Speed float64 `json:"speed"`
}

// frame=  123 fps=30 q=28.0 size=1024kB time=00:00:04.10 bitrate=2048.0kbits/s speed=1.0x
var reProgress = regexp.MustCompile(`frame=\s*(\d+)\s+fps=\s*([\d.]+).*?time=(\d+):(\d+):([\d.]+).*?speed=\s*([\d.]+)x`)

// ParseProgress extracts a Sample from a status line. Lines that do not
// match, or whose captured fields are not numbers, report false.
func ParseProgress(line string) (Sample, bool) {
	m := reProgress.FindStringSubmatch(line)
	if m == nil {
		return Sample{}, false
	}

	frame, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return Sample{}, false
	}
	fps, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Sample{}, false
	}
	h, err := strconv.Atoi(m[3])
	if err != nil {
		return Sample{}, false
	}
	mm, err := strconv.Atoi(m[4])
	if err != nil {
		return Sample{}, false
	}
	s, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return Sample{}, false
	}
	speed, err := strconv.ParseFloat(m[6], 64)
	if err != nil {
		return Sample{}, false
	}

	return Sample{
		Frame: frame,
		FPS:   fps,
		Time:  float64(h*3600+mm*60) + s,
		Speed: speed,
	}, true
}

// Parser implements process.Parser for ffmpeg stderr. It keeps the last
// lines for error reports and forwards each Sample to OnSample.
type Parser interface {
	process.Parser
	Last() (Sample, bool)
	Tail(n int) string
}

// Config for the parser
type Config struct {
	LogLines int
	OnSample func(Sample)
}

type parser struct {
	log      *ring.Ring
	logLines int
	onSample func(Sample)

	last    Sample
	hasLast bool
	lock    sync.RWMutex
}

// New creates a Parser
func New(config Config) Parser {
	p := &parser{
		logLines: config.LogLines,
		onSample: config.OnSample,
	}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	p.log = ring.New(p.logLines)
	return p
}

func (p *parser) Parse(line string) uint64 {
	now := time.Now()

	p.lock.Lock()
	p.log.Value = process.Line{Timestamp: now, Data: line}
	p.log = p.log.Next()

	sample, ok := ParseProgress(line)
	if ok {
		p.last = sample
		p.hasLast = true
	}
	p.lock.Unlock()

	if !ok {
		return 0
	}
	if p.onSample != nil {
		p.onSample(sample)
	}
	// frame=0 still counts as liveness for the stale watchdog
	return sample.Frame + 1
}

func (p *parser) ResetStats() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.last = Sample{}
	p.hasLast = false
}

func (p *parser) ResetLog() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.log = ring.New(p.logLines)
}

func (p *parser) Log() []process.Line {
	var out []process.Line
	p.lock.RLock()
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(process.Line))
		}
	})
	p.lock.RUnlock()
	return out
}

func (p *parser) Last() (Sample, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.last, p.hasLast
}

// Tail joins the last n non-progress lines, which is where ffmpeg prints
// its error messages.
func (p *parser) Tail(n int) string {
	lines := p.Log()
	var keep []string
	for i := len(lines) - 1; i >= 0 && len(keep) < n; i-- {
		data := strings.TrimSpace(lines[i].Data)
		if data == "" || strings.HasPrefix(data, "frame=") {
			continue
		}
		keep = append(keep, data)
	}
	for i, j := 0, len(keep)-1; i < j; i, j = i+1, j-1 {
		keep[i], keep[j] = keep[j], keep[i]
	}
	return strings.Join(keep, "\n")
}
