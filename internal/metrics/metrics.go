// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具
//
// Package metrics exposes compression job counters in the Prometheus text
// format. A nil *Metrics is valid and records nothing.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vcompress"

// Metrics holds the job collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	jobs     *prometheus.CounterVec
	running  prometheus.Gauge
	duration *prometheus.HistogramVec
	ratio    prometheus.Histogram
	bytesIn  prometheus.Counter
	bytesOut prometheus.Counter
	peakRSS  prometheus.Gauge
	batches  prometheus.Counter
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Finished compression jobs by codec and status",
			},
			[]string{"codec", "status"},
		),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Encoder processes currently running",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall clock time of finished jobs",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"codec"},
		),
		ratio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compression_ratio",
			Help:      "Input size divided by output size of successful jobs",
			Buckets:   []float64{1, 1.5, 2, 3, 5, 8, 13, 21},
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Bytes read by successful jobs",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Bytes written by successful jobs",
		}),
		peakRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "encoder_last_peak_rss_bytes",
			Help:      "Peak resident memory of the most recent encoder process",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches submitted",
		}),
	}

	m.registry.MustRegister(
		m.jobs, m.running, m.duration, m.ratio,
		m.bytesIn, m.bytesOut, m.peakRSS, m.batches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Job is what a finished job reports
type Job struct {
	Codec      string
	Success    bool
	Elapsed    time.Duration
	InputSize  int64
	OutputSize int64
	Ratio      float64
	PeakRSS    uint64
}

// JobStarted marks an encoder as running
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

// JobStopped undoes JobStarted
func (m *Metrics) JobStopped() {
	if m == nil {
		return
	}
	m.running.Dec()
}

// JobFinished records a job outcome
func (m *Metrics) JobFinished(j Job) {
	if m == nil {
		return
	}
	codec := j.Codec
	if codec == "" {
		codec = "unknown"
	}
	status := "failed"
	if j.Success {
		status = "succeeded"
	}
	m.jobs.WithLabelValues(codec, status).Inc()
	m.duration.WithLabelValues(codec).Observe(j.Elapsed.Seconds())
	if j.PeakRSS > 0 {
		m.peakRSS.Set(float64(j.PeakRSS))
	}
	if !j.Success {
		return
	}
	m.bytesIn.Add(float64(j.InputSize))
	m.bytesOut.Add(float64(j.OutputSize))
	if j.Ratio > 0 {
		m.ratio.Observe(j.Ratio)
	}
}

// BatchSubmitted counts a batch
func (m *Metrics) BatchSubmitted() {
	if m == nil {
		return
	}
	m.batches.Inc()
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
