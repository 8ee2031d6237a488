// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具
//
// Package process runs one encoder invocation to completion and reports how
// it ended.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"
)

// KillDelay is how long a stopped process may take to exit after the
// interrupt before it is killed.
var KillDelay = 5 * time.Second

var (
	ErrNoBinary       = errors.New("no valid binary given")
	ErrAlreadyStarted = errors.New("process already started")
)

// Process is a single run of an external program. It can be started once.
type Process interface {
	Status() Status
	Start() error
	Stop(wait bool) error
	Kill() error
	IsRunning() bool
	// Wait blocks until the process has exited. It returns immediately
	// with an empty Exit if Start was never called successfully.
	Wait() Exit
}

// Parser consumes the encoder's stderr one line at a time. A non-zero
// return value marks the line as progress, which resets the stale timer.
type Parser interface {
	Parse(line string) uint64
	ResetStats()
	ResetLog()
	Log() []Line
}

// Line is a timestamped stderr line
type Line struct {
	Timestamp time.Time
	Data      string
}

// nullParser treats every line as progress
type nullParser struct{}

func (nullParser) Parse(line string) uint64 { return 1 }
func (nullParser) ResetStats()              {}
func (nullParser) ResetLog()                {}
func (nullParser) Log() []Line              { return nil }

// Config for a process
type Config struct {
	Binary string
	Args   []string
	// Env of the child. Nil means an empty environment.
	Env            []string
	StaleTimeout   time.Duration
	SampleInterval time.Duration
	Parser         Parser
	Sampler        Sampler
	OnStart        func()
	OnExit         func(Exit)
	OnStateChange  func(from, to string)
	Logger         Logger
}

// Status of a process
type Status struct {
	State    string
	Duration time.Duration
	Time     time.Time
	CPU      struct {
		Current float64
		Peak    float64
	}
	Memory struct {
		Current uint64
		Peak    uint64
	}
}

// Exit describes how a run ended
type Exit struct {
	State string
	// Code is the exit status, -1 if the process did not exit on its own.
	Code int
	// Stopped is set when Stop or Kill was called before the process
	// exited, Stale when the watchdog did it.
	Stopped  bool
	Stale    bool
	Duration time.Duration
	PeakCPU  float64
	PeakRSS  uint64
	Err      error
}

// Success reports whether the process exited with status 0
func (e Exit) Success() bool {
	return e.State == stateFinished.String() && e.Code == 0
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateIdle      stateType = "idle"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFinished  stateType = "finished"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

// transitions lists the allowed successors of every state
var transitions = map[stateType][]stateType{
	stateIdle:      {stateStarting},
	stateStarting:  {stateRunning, stateFailed},
	stateRunning:   {stateFinishing, stateFinished, stateFailed, stateKilled},
	stateFinishing: {stateFinished, stateFailed, stateKilled},
}

type process struct {
	binary string
	args   []string
	env    []string
	cmd    *exec.Cmd
	stderr io.ReadCloser

	state struct {
		state stateType
		time  time.Time
		lock  sync.Mutex
	}
	stop struct {
		ordered bool
		stale   bool
		lock    sync.Mutex
	}
	parser  Parser
	sampler Sampler
	stale   struct {
		last    time.Time
		timeout time.Duration
		lock    sync.Mutex
	}
	sampleInterval time.Duration
	monitorCancel  context.CancelFunc
	killTimer      *time.Timer
	killTimerLock  sync.Mutex
	started        time.Time
	exit           Exit
	exited         chan struct{}
	logger         Logger
	callbacks      struct {
		onStart       func()
		onExit        func(Exit)
		onStateChange func(from, to string)
	}
}

// New creates a new process
func New(config Config) (Process, error) {
	if len(config.Binary) == 0 {
		return nil, ErrNoBinary
	}

	p := &process{
		binary:         config.Binary,
		args:           config.Args,
		env:            config.Env,
		parser:         config.Parser,
		sampler:        config.Sampler,
		sampleInterval: config.SampleInterval,
		logger:         config.Logger,
		exited:         make(chan struct{}),
	}

	if p.env == nil {
		p.env = []string{}
	}
	if p.parser == nil {
		p.parser = nullParser{}
	}
	if p.sampler == nil {
		p.sampler = NewNullSampler()
	}
	if p.sampleInterval <= 0 {
		p.sampleInterval = time.Second
	}
	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	p.state.state = stateIdle
	p.state.time = time.Now()
	p.stale.timeout = config.StaleTimeout
	p.callbacks.onStart = config.OnStart
	p.callbacks.onExit = config.OnExit
	p.callbacks.onStateChange = config.OnStateChange

	return p, nil
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	prev := p.state.state
	allowed := false
	for _, s := range transitions[prev] {
		if s == state {
			allowed = true
			break
		}
	}
	if !allowed {
		p.state.lock.Unlock()
		return fmt.Errorf("can't change from %s to %s", prev, state)
	}
	p.state.state = state
	p.state.time = time.Now()
	p.state.lock.Unlock()

	p.logger.Debug("process %s: %s -> %s", p.binary, prev, state)
	if p.callbacks.onStateChange != nil {
		p.callbacks.onStateChange(prev.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) Status() Status {
	p.state.lock.Lock()
	stateTime := p.state.time
	state := p.state.state
	p.state.lock.Unlock()

	var cpu float64
	var memory uint64
	if state.IsRunning() {
		cpu, memory = p.sampler.Sample()
	}
	peakCPU, peakRSS := p.sampler.Peak()

	s := Status{
		State:    state.String(),
		Duration: time.Since(stateTime),
		Time:     stateTime,
	}
	s.CPU.Current = cpu
	s.CPU.Peak = peakCPU
	s.Memory.Current = memory
	s.Memory.Peak = peakRSS
	return s
}

func (p *process) IsRunning() bool {
	return p.getState().IsRunning()
}

func (p *process) Start() error {
	if err := p.setState(stateStarting); err != nil {
		return ErrAlreadyStarted
	}

	var err error
	p.cmd = exec.Command(p.binary, p.args...)
	p.cmd.Env = p.env

	p.stderr, err = p.cmd.StderrPipe()
	if err == nil {
		err = p.cmd.Start()
	}
	if err != nil {
		p.parser.Parse(err.Error())
		p.setState(stateFailed)
		p.finish(Exit{State: stateFailed.String(), Code: -1, Err: err})
		return err
	}

	p.started = time.Now()
	pid := p.cmd.Process.Pid
	if err := p.sampler.Start(pid); err != nil {
		p.logger.Debug("usage sampling for pid %d unavailable: %v", pid, err)
	}

	p.setState(stateRunning)
	p.logger.Info("started %s (pid %d)", p.binary, pid)

	if p.callbacks.onStart != nil {
		p.callbacks.onStart()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.monitorCancel = cancel
	p.stale.lock.Lock()
	p.stale.last = time.Now()
	p.stale.lock.Unlock()

	go p.monitor(ctx)
	go p.reader()

	return nil
}

func (p *process) Stop(wait bool) error {
	p.stop.lock.Lock()
	p.stop.ordered = true
	p.stop.lock.Unlock()

	err := p.interrupt()
	if err == nil && wait {
		<-p.exited
	}
	return err
}

func (p *process) Kill() error {
	if !p.IsRunning() {
		return nil
	}
	p.stop.lock.Lock()
	p.stop.ordered = true
	p.stop.lock.Unlock()

	err := p.cmd.Process.Kill()
	<-p.exited
	return err
}

// interrupt asks the process to quit and arms the kill timer
func (p *process) interrupt() error {
	if p.getState() != stateRunning {
		return nil
	}
	if err := p.setState(stateFinishing); err != nil {
		// lost a race with the waiter
		return nil
	}

	var err error
	if runtime.GOOS == "windows" {
		err = p.cmd.Process.Kill()
	} else {
		err = p.cmd.Process.Signal(os.Interrupt)
		if err != nil {
			err = p.cmd.Process.Kill()
		} else {
			p.killTimerLock.Lock()
			p.killTimer = time.AfterFunc(KillDelay, func() {
				p.cmd.Process.Kill()
			})
			p.killTimerLock.Unlock()
		}
	}

	if err != nil {
		p.parser.Parse(err.Error())
	}
	return err
}

// monitor samples resource usage and enforces the stale timeout
func (p *process) monitor(ctx context.Context) {
	interval := p.sampleInterval
	if p.stale.timeout > 0 && p.stale.timeout < interval {
		interval = p.stale.timeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			p.sampler.Sample()

			if p.stale.timeout == 0 {
				continue
			}

			p.stale.lock.Lock()
			last := p.stale.last
			p.stale.lock.Unlock()

			if t.Sub(last) > p.stale.timeout {
				p.logger.Error("%s produced no progress for %s, stopping", p.binary, p.stale.timeout)
				p.stop.lock.Lock()
				p.stop.ordered = true
				p.stop.stale = true
				p.stop.lock.Unlock()
				p.interrupt()
				return
			}
		}
	}
}

func (p *process) reader() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLine)

	p.parser.ResetStats()
	p.parser.ResetLog()

	for scanner.Scan() {
		if n := p.parser.Parse(scanner.Text()); n != 0 {
			p.stale.lock.Lock()
			p.stale.last = time.Now()
			p.stale.lock.Unlock()
		}
	}
	// drain whatever is left so the child never blocks on a full pipe
	io.Copy(io.Discard, p.stderr)

	p.waiter()
}

func (p *process) waiter() {
	err := p.cmd.Wait()

	p.monitorCancel()
	p.killTimerLock.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
		p.killTimer = nil
	}
	p.killTimerLock.Unlock()

	p.stop.lock.Lock()
	stopped, stale := p.stop.ordered, p.stop.stale
	p.stop.lock.Unlock()

	exit := Exit{
		Code:     0,
		Stopped:  stopped,
		Stale:    stale,
		Duration: time.Since(p.started),
	}
	state := stateFinished

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status, ok := exitErr.Sys().(syscall.WaitStatus)
			if ok && status.Exited() {
				exit.Code = status.ExitStatus()
				state = stateFailed
			} else {
				exit.Code = -1
				state = stateKilled
			}
		} else {
			exit.Code = -1
			exit.Err = err
			state = stateKilled
		}
	}
	// ffmpeg exits with 255 after an interrupt
	if stopped && state == stateFailed {
		state = stateKilled
	}

	exit.PeakCPU, exit.PeakRSS = p.sampler.Peak()
	p.sampler.Stop()

	exit.State = state.String()
	p.setState(state)
	p.logger.Info("%s exited: state=%s code=%d after %s", p.binary, exit.State, exit.Code, exit.Duration.Round(time.Millisecond))

	p.finish(exit)
}

func (p *process) finish(exit Exit) {
	p.exit = exit
	close(p.exited)
	if p.callbacks.onExit != nil {
		p.callbacks.onExit(exit)
	}
}

func (p *process) Wait() Exit {
	if p.getState() == stateIdle {
		return Exit{}
	}
	<-p.exited
	return p.exit
}

// Run starts p and waits for it to exit. Cancelling ctx stops the process;
// the returned error is then ctx.Err().
func Run(ctx context.Context, p Process) (Exit, error) {
	if err := p.Start(); err != nil {
		return p.Wait(), err
	}

	done := make(chan Exit, 1)
	go func() {
		done <- p.Wait()
	}()

	select {
	case exit := <-done:
		return exit, nil
	case <-ctx.Done():
		p.Stop(false)
		exit := <-done
		return exit, ctx.Err()
	}
}

// scanLine splits on both \n and \r. ffmpeg rewrites its status line with
// a bare carriage return.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
