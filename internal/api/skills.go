// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package api

import (
	"github.com/ZSC714725/videocompressor/internal/ffmpeg"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg/skills"
)

// SkillsResponse for API
type SkillsResponse struct {
	FFmpeg  skills.Info    `json:"ffmpeg"`
	Support ffmpeg.Support `json:"support"`
	Ready   bool           `json:"ready"`

	Codecs struct {
		Audio []SkillsCodec `json:"audio"`
		Video []SkillsCodec `json:"video"`
	} `json:"codecs"`

	Filters []string `json:"filters"`
	Muxers  []string `json:"muxers"`
}

// SkillsCodec lists the coders of one codec
type SkillsCodec struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Encoders []string `json:"encoders"`
	Decoders []string `json:"decoders"`
}

func skillsToAPI(s skills.Skills) SkillsResponse {
	resp := SkillsResponse{
		FFmpeg:  s.FFmpeg,
		Support: ffmpeg.SupportOf(s),
	}
	resp.Ready = resp.Support.Ready()

	resp.Codecs.Audio = codecsToAPI(s.Codecs.Audio)
	resp.Codecs.Video = codecsToAPI(s.Codecs.Video)

	resp.Filters = make([]string, len(s.Filters))
	for i, f := range s.Filters {
		resp.Filters[i] = f.Id
	}
	resp.Muxers = make([]string, len(s.Muxers))
	for i, m := range s.Muxers {
		resp.Muxers[i] = m.Id
	}

	return resp
}

func codecsToAPI(codecs []skills.Codec) []SkillsCodec {
	out := make([]SkillsCodec, len(codecs))
	for i, c := range codecs {
		out[i] = SkillsCodec{ID: c.Id, Name: c.Name, Encoders: c.Encoders, Decoders: c.Decoders}
	}
	return out
}
