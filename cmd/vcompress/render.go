// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"github.com/ZSC714725/videocompressor/internal/compress"
)

// lineStep is the percentage between two progress lines on a non terminal
const lineStep = 5

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressView draws a bar on a terminal and prints one line every
// lineStep percent otherwise. It is safe for concurrent use.
type progressView struct {
	mu    sync.Mutex
	out   io.Writer
	label string
	bar   *progressbar.ProgressBar
	last  int
	quiet bool
}

func newProgressView(out io.Writer, label string, quiet bool) *progressView {
	v := &progressView{out: out, label: label, last: -1, quiet: quiet}
	if !quiet && isTerminal(out) {
		v.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	return v
}

// set shows pct. detail is appended to the plain text line.
func (v *progressView) set(pct float64, detail string) {
	if v.quiet {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.bar != nil {
		_ = v.bar.Set(int(pct))
		return
	}

	step := int(pct) / lineStep * lineStep
	if step <= v.last {
		return
	}
	v.last = step
	if detail != "" {
		fmt.Fprintf(v.out, "%s: %3d%% %s\n", v.label, step, detail)
	} else {
		fmt.Fprintf(v.out, "%s: %3d%%\n", v.label, step)
	}
}

func (v *progressView) finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bar != nil {
		_ = v.bar.Finish()
	}
}

func formatETA(eta *float64) string {
	if eta == nil {
		return ""
	}
	return "ETA " + (time.Duration(*eta * float64(time.Second))).Round(time.Second).String()
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func status(res compress.Result) string {
	if res.Success {
		return "ok"
	}
	return "failed"
}

func renderResult(w io.Writer, res compress.Result) {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	table.Append("Status", status(res))
	table.Append("Input", res.InputPath)
	table.Append("Output", res.OutputPath)
	if res.Preset != "" {
		table.Append("Preset", fmt.Sprintf("%s (%s)", res.Preset, res.Codec))
	}
	table.Append("Input size", formatBytes(res.InputSize))
	table.Append("Output size", formatBytes(res.OutputSize))
	if res.Success {
		table.Append("Ratio", fmt.Sprintf("%.2fx", res.CompressionRatio))
		table.Append("Space saved", fmt.Sprintf("%.1f%%", res.SpaceSaved()))
	}
	table.Append("Elapsed", res.Elapsed.Round(time.Millisecond).String())
	if res.PeakMemory > 0 {
		table.Append("Peak memory", humanize.Bytes(res.PeakMemory))
	}
	for _, warn := range res.Warnings {
		table.Append("Warning", warn)
	}
	table.Render()

	// the encoder's last lines explain most failures
	if !res.Success && len(res.Log) > 0 {
		fmt.Fprintln(w)
		for _, line := range res.Log {
			fmt.Fprintln(w, line)
		}
	}
}

// renderResults prints one row per job and a summary line. It returns the
// number of failed jobs.
func renderResults(w io.Writer, results []compress.Result) int {
	table := tablewriter.NewWriter(w)
	table.Header("Input", "Output", "Status", "Size", "Ratio", "Saved", "Elapsed")

	var failed int
	var saved int64
	for _, res := range results {
		ratio, space := "-", "-"
		if res.Success {
			ratio = fmt.Sprintf("%.2fx", res.CompressionRatio)
			space = fmt.Sprintf("%.1f%%", res.SpaceSaved())
			saved += res.InputSize - res.OutputSize
		} else {
			failed++
		}
		table.Append(
			filepath.Base(res.InputPath),
			res.OutputPath,
			status(res),
			formatBytes(res.InputSize)+" -> "+formatBytes(res.OutputSize),
			ratio,
			space,
			res.Elapsed.Round(time.Millisecond).String(),
		)
	}
	table.Render()

	for _, res := range results {
		if !res.Success {
			fmt.Fprintf(w, "%s: %s\n", res.InputPath, res.Error)
		}
	}

	savedText := "0 B"
	if saved > 0 {
		savedText = humanize.Bytes(uint64(saved))
	}
	fmt.Fprintf(w, "%d succeeded, %d failed, %s saved\n", len(results)-failed, failed, savedText)
	return failed
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
