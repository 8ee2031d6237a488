// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package process

import (
	"sync"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Sampler measures CPU and memory of a running process and remembers the
// peak values seen between Start and Stop.
type Sampler interface {
	Start(pid int) error
	Stop()
	Sample() (cpu float64, memory uint64)
	Peak() (cpu float64, memory uint64)
}

type nullSampler struct{}

// NewNullSampler returns a sampler that measures nothing
func NewNullSampler() Sampler {
	return &nullSampler{}
}

func (s *nullSampler) Start(pid int) error       { return nil }
func (s *nullSampler) Stop()                     {}
func (s *nullSampler) Sample() (float64, uint64) { return 0, 0 }
func (s *nullSampler) Peak() (float64, uint64)   { return 0, 0 }

// sysSampler 使用 gopsutil 采集进程 CPU 和内存
type sysSampler struct {
	mu      sync.Mutex
	proc    *gopsutilprocess.Process
	peakCPU float64
	peakRSS uint64
}

// NewSysSampler 创建基于 gopsutil 的采样器
func NewSysSampler() Sampler {
	return &sysSampler{}
}

func (s *sysSampler) Start(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.proc = proc
	s.peakCPU = 0
	s.peakRSS = 0
	s.mu.Unlock()
	return nil
}

func (s *sysSampler) Stop() {
	s.mu.Lock()
	s.proc = nil
	s.mu.Unlock()
}

func (s *sysSampler) Sample() (cpu float64, memory uint64) {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc == nil {
		return 0, 0
	}

	if pct, err := proc.CPUPercent(); err == nil {
		cpu = pct
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		memory = info.RSS
	}

	s.mu.Lock()
	if cpu > s.peakCPU {
		s.peakCPU = cpu
	}
	if memory > s.peakRSS {
		s.peakRSS = memory
	}
	s.mu.Unlock()
	return cpu, memory
}

func (s *sysSampler) Peak() (float64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peakCPU, s.peakRSS
}
