// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/videocompressor/internal/batch"
	"github.com/ZSC714725/videocompressor/internal/compress"
	"github.com/ZSC714725/videocompressor/internal/ffmpeg"
	"github.com/ZSC714725/videocompressor/internal/preset"
	"github.com/ZSC714725/videocompressor/internal/task"
)

// DefaultProgressInterval is the cadence of the progress stream
const DefaultProgressInterval = 500 * time.Millisecond

// Config for a Handler
type Config struct {
	Store   task.Store
	FFmpeg  ffmpeg.FFmpeg
	Presets *preset.Registry
	// OutputDir receives jobs submitted without an output path
	OutputDir        string
	ProgressInterval time.Duration
}

// Handler holds dependencies
type Handler struct {
	store     task.Store
	ffmpeg    ffmpeg.FFmpeg
	presets   *preset.Registry
	outputDir string
	interval  time.Duration
}

// NewHandler creates API handler
func NewHandler(config Config) *Handler {
	h := &Handler{
		store:     config.Store,
		ffmpeg:    config.FFmpeg,
		presets:   config.Presets,
		outputDir: config.OutputDir,
		interval:  config.ProgressInterval,
	}
	if h.presets == nil {
		h.presets = preset.NewRegistry()
	}
	if h.interval <= 0 {
		h.interval = DefaultProgressInterval
	}
	return h
}

// Register adds the routes to g, usually the /api/v3 group
func (h *Handler) Register(g gin.IRouter) {
	g.GET("/presets", h.Presets)

	g.GET("/skills", h.Skills)
	g.POST("/skills/reload", h.ReloadSkills)

	g.GET("/job", h.ListJobs)
	g.POST("/job", h.AddJob)
	g.GET("/job/:id", h.GetJob)
	g.DELETE("/job/:id", h.DeleteJob)
	g.GET("/job/:id/progress", h.JobProgress)
	g.GET("/job/:id/report", h.GetReport)

	g.POST("/batch", h.AddBatch)
	g.GET("/batch/:id", h.GetBatch)
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// submitErr maps store errors to responses
func submitErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, task.ErrClosed):
		errResp(c, http.StatusServiceUnavailable, "Shutting down", err.Error())
	case errors.Is(err, task.ErrInvalidRequest):
		errResp(c, http.StatusBadRequest, "Invalid request", err.Error())
	default:
		errResp(c, http.StatusInternalServerError, "Submit failed", err.Error())
	}
}

// Presets GET /api/v3/presets
func (h *Handler) Presets(c *gin.Context) {
	list := h.presets.List()
	out := make([]Preset, 0, len(list))
	for _, p := range list {
		out = append(out, Preset{
			Name:          p.Name,
			Description:   p.Description,
			Codec:         string(p.Codec),
			VideoBitrate:  p.VideoBitrate,
			AudioBitrate:  p.AudioBitrate,
			AudioCodec:    p.AudioCodec,
			CRF:           p.CRF,
			Speed:         p.Speed,
			TwoPass:       p.TwoPass,
			MaxResolution: p.MaxResolution.String(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// Skills GET /api/v3/skills
func (h *Handler) Skills(c *gin.Context) {
	if h.ffmpeg == nil {
		errResp(c, http.StatusServiceUnavailable, "FFmpeg not configured", "")
		return
	}
	sk, err := h.ffmpeg.Skills()
	if err != nil {
		errResp(c, http.StatusInternalServerError, "Skills unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(sk))
}

// ReloadSkills POST /api/v3/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if h.ffmpeg == nil {
		errResp(c, http.StatusServiceUnavailable, "FFmpeg not configured", "")
		return
	}
	if err := h.ffmpeg.ReloadSkills(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	h.Skills(c)
}

// AddJob POST /api/v3/job
func (h *Handler) AddJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	r, err := h.template(req.JobSettings)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid settings", err.Error())
		return
	}
	r.Input = req.Input
	r.Output = req.Output
	if r.Output == "" {
		if h.outputDir == "" {
			errResp(c, http.StatusBadRequest, "Output required", batch.ErrMissingOutputDirectory.Error())
			return
		}
		r.Output = batch.OutputPath(h.outputDir, r.Input)
	}

	j, err := h.store.Submit(r)
	if err != nil {
		submitErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jobToAPI(j))
}

// ListJobs GET /api/v3/job
func (h *Handler) ListJobs(c *gin.Context) {
	batchID := c.DefaultQuery("batch", "")
	idStr := c.DefaultQuery("id", "")

	var ids []string
	if idStr != "" {
		ids = strings.FieldsFunc(idStr, func(r rune) bool { return r == ',' })
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
	}

	jobs := h.store.List(ids, batchID)
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToAPI(j))
	}

	c.JSON(http.StatusOK, out)
}

// GetJob GET /api/v3/job/:id
func (h *Handler) GetJob(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}
	c.JSON(http.StatusOK, jobToAPI(j))
}

// DeleteJob DELETE /api/v3/job/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// JobProgress GET /api/v3/job/:id/progress
//
// Server-sent events: "progress" with the latest event at a fixed cadence,
// then a final "result" once the job has ended.
func (h *Handler) JobProgress(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// set before the first flush, which may come before any event
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-j.Done():
			if e, ok := j.LastEvent(); ok {
				c.SSEvent("progress", e)
			}
			c.SSEvent("result", jobToAPI(j))
			return false
		case <-ticker.C:
			if e, ok := j.LastEvent(); ok {
				c.SSEvent("progress", e)
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetReport GET /api/v3/job/:id/report
func (h *Handler) GetReport(c *gin.Context) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}

	report := JobReport{ID: j.ID, State: string(j.State()), Log: []string{}}
	if res, ok := j.Result(); ok {
		report.ExitCode = res.ExitCode
		report.Error = res.Error
		report.Warnings = res.Warnings
		if len(res.Log) > 0 {
			report.Log = res.Log
		}
	}

	c.JSON(http.StatusOK, report)
}

// AddBatch POST /api/v3/batch
func (h *Handler) AddBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	tmpl, err := h.template(req.JobSettings)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid settings", err.Error())
		return
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = h.outputDir
	}
	reqs, err := batch.BuildRequests(req.Jobs, outputDir, tmpl)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid batch", err.Error())
		return
	}

	b, err := h.store.SubmitBatch(reqs)
	if err != nil {
		submitErr(c, err)
		return
	}

	c.JSON(http.StatusOK, h.batchToAPI(b))
}

// GetBatch GET /api/v3/batch/:id
func (h *Handler) GetBatch(c *gin.Context) {
	b, err := h.store.GetBatch(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown batch ID", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.batchToAPI(b))
}

// template turns the shared settings into a request without paths
func (h *Handler) template(s JobSettings) (compress.Request, error) {
	r := compress.Request{
		Preset:        s.Preset,
		PreserveAlpha: s.PreserveAlpha,
		Overrides: compress.Overrides{
			VideoBitrate: s.Overrides.VideoBitrate,
			AudioBitrate: s.Overrides.AudioBitrate,
			CRF:          s.Overrides.CRF,
			Speed:        s.Overrides.Speed,
		},
	}

	if s.Codec != "" {
		codec, err := preset.ParseCodec(s.Codec)
		if err != nil {
			return r, err
		}
		r.Codec = codec
	}

	maxRes, err := preset.ParseCap(s.Overrides.MaxResolution)
	if err != nil {
		return r, err
	}
	r.Overrides.MaxResolution = maxRes

	if s.Preset != "" {
		if _, err := h.presets.Get(s.Preset); err != nil {
			return r, err
		}
	}

	return r, nil
}

func jobToAPI(j *task.Job) Job {
	out := Job{
		ID:        j.ID,
		BatchID:   j.BatchID,
		State:     string(j.State()),
		Input:     j.Request.Input,
		Output:    j.Request.Output,
		Preset:    j.Request.Preset,
		Codec:     string(j.Request.Codec),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt(),
	}

	if e, ok := j.LastEvent(); ok {
		out.Progress = &e
	}

	if res, ok := j.Result(); ok {
		out.Preset = res.Preset
		out.Codec = res.Codec
		out.Result = &JobResult{
			Success:          res.Success,
			InputSize:        res.InputSize,
			OutputSize:       res.OutputSize,
			CompressionRatio: res.CompressionRatio,
			SpaceSaved:       res.SpaceSaved(),
			Duration:         res.Duration,
			Elapsed:          res.Elapsed.Seconds(),
			ExitCode:         res.ExitCode,
			PeakMemory:       res.PeakMemory,
			Warnings:         res.Warnings,
			Error:            res.Error,
		}
	}

	return out
}

func (h *Handler) batchToAPI(b *task.Batch) Batch {
	snap := b.Progress.Snapshot()
	out := Batch{
		ID:        b.ID,
		CreatedAt: b.CreatedAt,
		Finished:  b.Finished(),
		Total:     snap.Total,
		Completed: snap.Completed,
		Overall:   snap.Overall,
		Jobs:      make([]Job, 0, len(b.JobIDs)),
	}

	for _, id := range b.JobIDs {
		j, err := h.store.Get(id)
		if err != nil {
			// deleted
			continue
		}
		switch j.State() {
		case task.StateSucceeded:
			out.Succeeded++
		case task.StateFailed, task.StateCancelled:
			out.Failed++
		}
		out.Jobs = append(out.Jobs, jobToAPI(j))
	}

	return out
}
