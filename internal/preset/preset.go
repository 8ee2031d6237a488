// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package preset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Resolution is a width/height pair. The zero value means "no cap".
type Resolution struct {
	Width  int `json:"width" yaml:"width" toml:"width"`
	Height int `json:"height" yaml:"height" toml:"height"`
}

// IsZero reports whether r carries no cap
func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

func (r Resolution) String() string {
	if r.IsZero() {
		return ""
	}
	return strconv.Itoa(r.Width) + "x" + strconv.Itoa(r.Height)
}

// ParseResolution parses "1920x1080". An empty string yields the zero value.
func ParseResolution(s string) (Resolution, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Resolution{}, nil
	}
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	return Resolution{Width: width, Height: height}, nil
}

// ParseCap parses a resolution override. An empty string means no override,
// "none" or "0x0" removes the cap.
func ParseCap(s string) (*Resolution, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "":
		return nil, nil
	case "none", "0", "0x0":
		return &Resolution{}, nil
	}
	r, err := ParseResolution(s)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Preset is a named bundle of encoder defaults
type Preset struct {
	Name          string
	Description   string
	Codec         Codec
	VideoBitrate  string
	AudioBitrate  string
	CRF           int
	Speed         int
	TwoPass       bool
	MaxResolution Resolution
	AudioCodec    string
}

// Validate checks codec membership and the CRF/speed ranges of the codec.
func (p Preset) Validate() error {
	capa, err := Capabilities(p.Codec)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidPreset, p.Name, err)
	}
	if err := CheckCRF(p.CRF); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidPreset, p.Name, err)
	}
	if err := capa.CheckSpeed(p.Speed); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidPreset, p.Name, err)
	}
	if strings.TrimSpace(p.VideoBitrate) == "" {
		return fmt.Errorf("%w %q: empty video bitrate", ErrInvalidPreset, p.Name)
	}
	if p.AudioCodec != "" && strings.TrimSpace(p.AudioBitrate) == "" {
		return fmt.Errorf("%w %q: audio codec %s without bitrate", ErrInvalidPreset, p.Name, p.AudioCodec)
	}
	return nil
}

// DefaultAudioCodec is used by all built-in presets
const DefaultAudioCodec = "libopus"

// DefaultName is the preset used when a request names none
const DefaultName = "web"

var builtin = map[string]Preset{
	"web": {
		Name:          "web",
		Description:   "Web Optimized",
		Codec:         VP9,
		VideoBitrate:  "1M",
		AudioBitrate:  "128k",
		CRF:           31,
		Speed:         4,
		MaxResolution: Resolution{Width: 1920, Height: 1080},
		AudioCodec:    DefaultAudioCodec,
	},
	"web-small": {
		Name:          "web-small",
		Description:   "Web Small",
		Codec:         VP9,
		VideoBitrate:  "500k",
		AudioBitrate:  "96k",
		CRF:           35,
		Speed:         4,
		MaxResolution: Resolution{Width: 1280, Height: 720},
		AudioCodec:    DefaultAudioCodec,
	},
	"archive": {
		Name:         "archive",
		Description:  "Archive Quality",
		Codec:        VP9,
		VideoBitrate: "3M",
		AudioBitrate: "192k",
		CRF:          20,
		Speed:        1,
		TwoPass:      true,
		AudioCodec:   DefaultAudioCodec,
	},
	"high-quality": {
		Name:         "high-quality",
		Description:  "High Quality",
		Codec:        VP9,
		VideoBitrate: "5M",
		AudioBitrate: "256k",
		CRF:          15,
		Speed:        2,
		TwoPass:      true,
		AudioCodec:   DefaultAudioCodec,
	},
	"vp8-legacy": {
		Name:          "vp8-legacy",
		Description:   "VP8 Legacy Compatible",
		Codec:         VP8,
		VideoBitrate:  "1M",
		AudioBitrate:  "128k",
		CRF:           10,
		Speed:         3,
		MaxResolution: Resolution{Width: 1920, Height: 1080},
		AudioCodec:    DefaultAudioCodec,
	},
	"alpha-web": {
		Name:          "alpha-web",
		Description:   "Web with Alpha Channel",
		Codec:         VP9,
		VideoBitrate:  "1.5M",
		AudioBitrate:  "128k",
		CRF:           28,
		Speed:         3,
		MaxResolution: Resolution{Width: 1920, Height: 1080},
		AudioCodec:    DefaultAudioCodec,
	},
}

// Registry resolves preset names. Custom presets shadow built-ins.
type Registry struct {
	mu     sync.RWMutex
	custom map[string]Preset
}

// NewRegistry returns a registry holding only the built-in presets
func NewRegistry() *Registry {
	return &Registry{custom: make(map[string]Preset)}
}

// Add registers a custom preset after validating it.
func (r *Registry) Add(name string, p Preset) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPreset)
	}
	p.Name = name
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.custom[name] = p
	r.mu.Unlock()
	return nil
}

// Get returns a copy of the named preset
func (r *Registry) Get(name string) (Preset, error) {
	if name == "" {
		name = DefaultName
	}
	r.mu.RLock()
	p, ok := r.custom[name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}
	if p, ok := builtin[name]; ok {
		return p, nil
	}
	return Preset{}, fmt.Errorf("%w: unknown preset %q, available presets: %s",
		ErrInvalidPreset, name, strings.Join(r.Names(), ", "))
}

// Names lists every known preset name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(builtin)+len(r.custom))
	for name := range builtin {
		seen[name] = struct{}{}
	}
	for name := range r.custom {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all presets ordered by name
func (r *Registry) List() []Preset {
	names := r.Names()
	out := make([]Preset, 0, len(names))
	for _, name := range names {
		if p, err := r.Get(name); err == nil {
			out = append(out, p)
		}
	}
	return out
}
