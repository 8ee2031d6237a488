// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package ffmpeg

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ZSC714725/videocompressor/internal/ffmpeg/parse"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg/probe"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg/skills"
	"github.com/ZSC714725/videocompressor/internal/logger"
	"github.com/ZSC714725/videocompressor/internal/preset"
	"github.com/ZSC714725/videocompressor/internal/process"
)

// ErrEncoderNotFound is returned when the ffmpeg or ffprobe executable
// can't be located
var ErrEncoderNotFound = errors.New("encoder executable not found")

// FFmpeg manages the ffmpeg binary and creates processes for it
type FFmpeg interface {
	Binary() string
	NewProcess(config ProcessConfig) (process.Process, error)
	NewParser(onSample func(parse.Sample)) parse.Parser
	ValidateInput(path string) error
	ValidateOutput(path string) error
	Skills() (skills.Skills, error)
	ReloadSkills() error
}

// ProcessConfig for creating a process
type ProcessConfig struct {
	Args          []string
	Parser        process.Parser
	Logger        logger.Logger
	OnStart       func()
	OnExit        func(process.Exit)
	OnStateChange func(from, to string)
}

// Config for FFmpeg
type Config struct {
	Binary          string
	MaxLogLines     int
	StaleTimeout    time.Duration
	SampleUsage     bool
	ValidatorInput  Validator
	ValidatorOutput Validator
}

type ffmpeg struct {
	binary       string
	validatorIn  Validator
	validatorOut Validator
	logLines     int
	staleTimeout time.Duration
	sampleUsage  bool

	skills     *skills.Skills
	skillsLock sync.Mutex
}

// New looks up the binary. Skills are detected on first use.
func New(config Config) (FFmpeg, error) {
	binary, err := Lookup(config.Binary, "ffmpeg")
	if err != nil {
		return nil, err
	}

	f := &ffmpeg{
		binary:       binary,
		logLines:     config.MaxLogLines,
		staleTimeout: config.StaleTimeout,
		sampleUsage:  config.SampleUsage,
		validatorIn:  config.ValidatorInput,
		validatorOut: config.ValidatorOutput,
	}

	if f.logLines <= 0 {
		f.logLines = 100
	}
	if f.validatorIn == nil {
		f.validatorIn, _ = NewValidator(nil, nil)
	}
	if f.validatorOut == nil {
		f.validatorOut, _ = NewValidator(nil, nil)
	}

	return f, nil
}

// Lookup resolves name (or fallback when name is empty) in PATH
func Lookup(name, fallback string) (string, error) {
	if name == "" {
		name = fallback
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrEncoderNotFound, name, err)
	}
	return path, nil
}

// NewProber creates an ffprobe based prober. A missing binary is reported
// as ErrEncoderNotFound.
func NewProber(binary string) (probe.Prober, error) {
	p, err := probe.New(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoderNotFound, err)
	}
	return p, nil
}

func (f *ffmpeg) Binary() string {
	return f.binary
}

func (f *ffmpeg) NewProcess(config ProcessConfig) (process.Process, error) {
	sampler := process.NewNullSampler()
	if f.sampleUsage {
		sampler = process.NewSysSampler()
	}

	var log process.Logger
	if config.Logger != nil {
		log = config.Logger
	}

	return process.New(process.Config{
		Binary:        f.binary,
		Args:          config.Args,
		StaleTimeout:  f.staleTimeout,
		Parser:        config.Parser,
		Sampler:       sampler,
		Logger:        log,
		OnStart:       config.OnStart,
		OnExit:        config.OnExit,
		OnStateChange: config.OnStateChange,
	})
}

func (f *ffmpeg) NewParser(onSample func(parse.Sample)) parse.Parser {
	return parse.New(parse.Config{LogLines: f.logLines, OnSample: onSample})
}

func (f *ffmpeg) ValidateInput(path string) error {
	return f.validatorIn.Check(path)
}

func (f *ffmpeg) ValidateOutput(path string) error {
	return f.validatorOut.Check(path)
}

func (f *ffmpeg) Skills() (skills.Skills, error) {
	f.skillsLock.Lock()
	defer f.skillsLock.Unlock()

	if f.skills != nil {
		return *f.skills, nil
	}
	s, err := skills.New(f.binary)
	if err != nil {
		return skills.Skills{}, err
	}
	f.skills = &s
	return s, nil
}

func (f *ffmpeg) ReloadSkills() error {
	s, err := skills.New(f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = &s
	f.skillsLock.Unlock()
	return nil
}

// Support summarizes what the binary can do for WebM output
type Support struct {
	Version string                `json:"version"`
	Codecs  map[preset.Codec]bool `json:"codecs"`
	Opus    bool                  `json:"opus"`
	Vorbis  bool                  `json:"vorbis"`
	Scale   bool                  `json:"scale"`
	WebM    bool                  `json:"webm"`
}

// Ready reports whether at least one codec can produce a WebM file
func (s Support) Ready() bool {
	if !s.WebM {
		return false
	}
	for _, ok := range s.Codecs {
		if ok {
			return true
		}
	}
	return false
}

// SupportOf checks the skills against the codec capability table
func SupportOf(s skills.Skills) Support {
	sup := Support{
		Version: s.FFmpeg.Version,
		Codecs:  map[preset.Codec]bool{},
		Opus:    s.HasEncoder(preset.DefaultAudioCodec),
		Vorbis:  s.HasEncoder("libvorbis") || s.HasEncoder("vorbis"),
		Scale:   s.HasFilter("scale"),
		WebM:    s.HasMuxer("webm"),
	}
	for _, c := range preset.Codecs() {
		capa, _ := preset.Capabilities(c)
		sup.Codecs[c] = s.HasEncoder(capa.Encoder)
	}
	return sup
}
