// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZSC714725/videocompressor/internal/preset"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig            `yaml:"server" toml:"server"`
	FFmpeg  FFmpegConfig            `yaml:"ffmpeg" toml:"ffmpeg"`
	Jobs    JobsConfig              `yaml:"jobs" toml:"jobs"`
	Log     LogConfig               `yaml:"log" toml:"log"`
	Presets map[string]PresetConfig `yaml:"presets" toml:"presets"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind" toml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path         string   `yaml:"path" toml:"path"`
	ProbePath    string   `yaml:"probe_path" toml:"probe_path"`
	MaxLogLines  int      `yaml:"max_log_lines" toml:"max_log_lines"`
	StaleTimeout uint64   `yaml:"stale_timeout_seconds" toml:"stale_timeout_seconds"`
	SampleUsage  bool     `yaml:"sample_usage" toml:"sample_usage"`
	AllowInput   []string `yaml:"allow_input" toml:"allow_input"`
	BlockInput   []string `yaml:"block_input" toml:"block_input"`
	AllowOutput  []string `yaml:"allow_output" toml:"allow_output"`
	BlockOutput  []string `yaml:"block_output" toml:"block_output"`
}

// JobsConfig 任务调度配置
type JobsConfig struct {
	Concurrency   int    `yaml:"concurrency" toml:"concurrency"`
	OutputDir     string `yaml:"output_dir" toml:"output_dir"`
	DefaultPreset string `yaml:"default_preset" toml:"default_preset"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

// PresetConfig describes a custom preset. AudioCodec "none" disables audio
// arguments; an empty AudioCodec means libopus.
type PresetConfig struct {
	Description   string `yaml:"description" toml:"description"`
	Codec         string `yaml:"codec" toml:"codec"`
	VideoBitrate  string `yaml:"video_bitrate" toml:"video_bitrate"`
	AudioBitrate  string `yaml:"audio_bitrate" toml:"audio_bitrate"`
	CRF           int    `yaml:"crf" toml:"crf"`
	Speed         int    `yaml:"speed" toml:"speed"`
	TwoPass       bool   `yaml:"two_pass" toml:"two_pass"`
	MaxResolution string `yaml:"max_resolution" toml:"max_resolution"`
	AudioCodec    string `yaml:"audio_codec" toml:"audio_codec"`
}

// DefaultStaleTimeout is how many seconds the encoder may go without a
// progress line before it is stopped. 0 in a config file disables the check.
const DefaultStaleTimeout = 60

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: ":8080"},
		FFmpeg: FFmpegConfig{
			Path:        "ffmpeg",
			ProbePath:   "ffprobe",
			MaxLogLines:  100,
			StaleTimeout: DefaultStaleTimeout,
			SampleUsage:  true,
		},
		Jobs: JobsConfig{
			Concurrency:   2,
			DefaultPreset: preset.DefaultName,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load 从 YAML 或 TOML 文件加载配置. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.fill()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// 填充空值
func (c *Config) fill() {
	def := Default()
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = def.FFmpeg.Path
	}
	if c.FFmpeg.ProbePath == "" {
		c.FFmpeg.ProbePath = def.FFmpeg.ProbePath
	}
	if c.FFmpeg.MaxLogLines <= 0 {
		c.FFmpeg.MaxLogLines = def.FFmpeg.MaxLogLines
	}
	if c.Jobs.Concurrency == 0 {
		c.Jobs.Concurrency = def.Jobs.Concurrency
	}
	if c.Jobs.DefaultPreset == "" {
		c.Jobs.DefaultPreset = def.Jobs.DefaultPreset
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if c.Jobs.Concurrency < 1 {
		return fmt.Errorf("jobs.concurrency must be at least 1, got %d", c.Jobs.Concurrency)
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// Registry builds a preset registry with the configured custom presets.
func (c *Config) Registry() (*preset.Registry, error) {
	r := preset.NewRegistry()
	for name, pc := range c.Presets {
		p, err := pc.toPreset(name)
		if err != nil {
			return nil, err
		}
		if err := r.Add(name, p); err != nil {
			return nil, err
		}
	}
	if _, err := r.Get(c.Jobs.DefaultPreset); err != nil {
		return nil, fmt.Errorf("jobs.default_preset: %w", err)
	}
	return r, nil
}

func (pc PresetConfig) toPreset(name string) (preset.Preset, error) {
	codec, err := preset.ParseCodec(pc.Codec)
	if err != nil {
		return preset.Preset{}, fmt.Errorf("preset %s: %w", name, err)
	}
	res, err := preset.ParseResolution(pc.MaxResolution)
	if err != nil {
		return preset.Preset{}, fmt.Errorf("preset %s: %w", name, err)
	}

	audio := strings.TrimSpace(pc.AudioCodec)
	switch strings.ToLower(audio) {
	case "":
		audio = preset.DefaultAudioCodec
	case "none":
		audio = ""
	}

	return preset.Preset{
		Name:          name,
		Description:   pc.Description,
		Codec:         codec,
		VideoBitrate:  pc.VideoBitrate,
		AudioBitrate:  pc.AudioBitrate,
		CRF:           pc.CRF,
		Speed:         pc.Speed,
		TwoPass:       pc.TwoPass,
		MaxResolution: res,
		AudioCodec:    audio,
	}, nil
}
