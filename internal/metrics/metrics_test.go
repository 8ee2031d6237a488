// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Result().Body)
	return string(body)
}

func TestJobMetrics(t *testing.T) {
	m := New()
	m.JobStarted()
	m.JobFinished(Job{Codec: "vp9", Success: true, Elapsed: 3 * time.Second, InputSize: 1000, OutputSize: 250, Ratio: 4})
	m.JobFinished(Job{Codec: "vp8", Elapsed: time.Second})
	m.JobStarted()
	m.JobStopped()
	m.BatchSubmitted()

	out := scrape(t, m)
	for _, want := range []string{
		`vcompress_jobs_total{codec="vp9",status="succeeded"} 1`,
		`vcompress_jobs_total{codec="vp8",status="failed"} 1`,
		`vcompress_jobs_running 1`,
		`vcompress_input_bytes_total 1000`,
		`vcompress_output_bytes_total 250`,
		`vcompress_compression_ratio_count 1`,
		`vcompress_batches_total 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.JobStarted()
	m.JobStopped()
	m.JobFinished(Job{})
	m.BatchSubmitted()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != 404 {
		t.Errorf("code = %d", w.Code)
	}
}
