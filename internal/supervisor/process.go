package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-rwlock-bench/internal/logging"
	"github.com/randomizedcoder/go-rwlock-bench/internal/parser"
)

var (
	// ErrForceKilled is returned by Stop when SIGTERM was not enough.
	ErrForceKilled = errors.New("process did not exit gracefully")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("process already started")
)

// ProcessBuilder creates the command for one process.
// This interface keeps the supervisor decoupled from the server and
// client flag conventions.
type ProcessBuilder interface {
	// BuildCommand returns a ready-to-start command. The command must be
	// created with exec.CommandContext.
	BuildCommand(ctx context.Context) (*exec.Cmd, error)

	// Name returns a human-readable name for this process type.
	Name() string
}

// Callbacks contains optional hooks for process events.
type Callbacks struct {
	// OnStart is called after the process started.
	OnStart func(label string, pid int)

	// OnExit is called once the process has been reaped.
	OnExit func(label string, exitCode int, uptime time.Duration)
}

// Config holds configuration for creating a Process.
type Config struct {
	// Label names the process in logs ("server", "client/writer").
	Label     string
	Builder   ProcessBuilder
	Logger    *slog.Logger
	Callbacks Callbacks

	// Verbose logs every stderr line, not only warnings.
	Verbose bool

	// LineBuffer is the stdout channel capacity.
	LineBuffer int
}

// Process runs one command exactly once. Stdout is exposed as a
// parser.LineSource; stderr is consumed by a logging.StderrHandler.
//
// A single waiter goroutine reaps the child; Done is closed after that,
// and ExitCode, Uptime and Err are stable from then on.
type Process struct {
	label     string
	builder   ProcessBuilder
	logger    *slog.Logger
	callbacks Callbacks
	lineBuf   int

	state   State
	stateMu sync.RWMutex

	cmd       *exec.Cmd
	pid       int
	startTime time.Time

	stdout *parser.PipeReader
	stderr *logging.StderrHandler

	done       chan struct{}
	stderrDone chan struct{}

	exitCode int
	uptime   time.Duration
	waitErr  error
}

// New creates a Process. Nothing runs until Start.
func New(cfg Config) *Process {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	label := cfg.Label
	if label == "" && cfg.Builder != nil {
		label = cfg.Builder.Name()
	}
	return &Process{
		label:      label,
		builder:    cfg.Builder,
		logger:     logger,
		callbacks:  cfg.Callbacks,
		lineBuf:    cfg.LineBuffer,
		state:      StateCreated,
		stderr:     logging.NewStderrHandler(label, logger, cfg.Verbose),
		done:       make(chan struct{}),
		stderrDone: make(chan struct{}),
		exitCode:   -1,
	}
}

// Start spawns the process in its own process group and returns its
// stdout line source, already being read.
func (p *Process) Start(ctx context.Context) (parser.LineSource, error) {
	p.stateMu.Lock()
	if p.state != StateCreated {
		p.stateMu.Unlock()
		return nil, ErrAlreadyStarted
	}
	p.state = StateStarting
	p.stateMu.Unlock()

	fail := func(err error) (parser.LineSource, error) {
		p.finish(-1, 0, err)
		close(p.stderrDone)
		return nil, err
	}

	cmd, err := p.builder.BuildCommand(ctx)
	if err != nil {
		p.logger.Error("failed_to_build_command", "process", p.label, "error", err)
		return fail(fmt.Errorf("build %s command: %w", p.label, err))
	}

	// os.Pipe rather than cmd.StdoutPipe: Wait must not close the read
	// ends while the monitor is still consuming buffered output.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return fail(fmt.Errorf("stdout pipe: %w", err))
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return fail(fmt.Errorf("stderr pipe: %w", err))
	}

	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Context cancellation kills the whole group, not only the leader.
	cmd.Cancel = func() error {
		return signalGroup(cmd.Process, syscall.SIGKILL)
	}

	p.startTime = time.Now()
	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		p.logger.Error("failed_to_start_process", "process", p.label, "error", err)
		return fail(fmt.Errorf("start %s: %w", p.label, err))
	}

	// Close the parent's write ends so EOF arrives when the child exits.
	stdoutW.Close()
	stderrW.Close()

	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.setState(StateRunning)

	p.stdout = parser.NewPipeReader(stdoutR, p.label, p.lineBuf)
	go func() {
		p.stdout.Run()
		if n := p.stdout.OversizedLines(); n > 0 {
			p.logger.Warn("process_stdout_lines_oversized",
				"process", p.label,
				"lines", n,
				"max_bytes", parser.MaxLineSize,
			)
		}
		p.stdout.Close()
	}()
	go func() {
		defer close(p.stderrDone)
		p.stderr.HandleReader(stderrR)
		stderrR.Close()
	}()

	p.logger.Info("process_started",
		"process", p.label,
		"pid", p.pid,
	)
	if p.callbacks.OnStart != nil {
		p.callbacks.OnStart(p.label, p.pid)
	}

	go p.wait()
	return p.stdout, nil
}

// wait is the only caller of cmd.Wait.
func (p *Process) wait() {
	err := p.cmd.Wait()
	uptime := time.Since(p.startTime)
	code := extractExitCode(err)

	p.logger.Info("process_exited",
		"process", p.label,
		"pid", p.pid,
		"exit_code", code,
		"uptime", uptime.String(),
	)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// A non-zero exit is reported through ExitCode, not Err.
		err = nil
	}
	p.finish(code, uptime, err)

	if p.callbacks.OnExit != nil {
		p.callbacks.OnExit(p.label, code, uptime)
	}
}

func (p *Process) finish(code int, uptime time.Duration, err error) {
	p.stateMu.Lock()
	p.exitCode = code
	p.uptime = uptime
	p.waitErr = err
	p.state = StateExited
	p.stateMu.Unlock()
	close(p.done)
}

// Stop terminates the process by handle: SIGTERM to its process group,
// then SIGKILL if it has not exited within timeout. Returns
// ErrForceKilled when escalation was needed. Safe to call repeatedly and
// on a process that already exited.
func (p *Process) Stop(timeout time.Duration) error {
	if p.State() == StateCreated {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}

	p.setState(StateStopping)
	p.logger.Debug("process_stopping", "process", p.label, "pid", p.pid)
	_ = signalGroup(p.cmd.Process, syscall.SIGTERM)

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
	}

	p.logger.Warn("force_killing_process",
		"process", p.label,
		"pid", p.pid,
		"timeout", timeout.String(),
	)
	_ = signalGroup(p.cmd.Process, syscall.SIGKILL)

	select {
	case <-p.done:
	case <-time.After(timeout):
		p.logger.Error("process_unreaped_after_kill", "process", p.label, "pid", p.pid)
	}
	return ErrForceKilled
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return p.ExitCode(), p.Err()
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Done is closed once the process has been reaped (or failed to start).
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode returns the exit code, 128+signal for signalled exits, or -1
// while running or when the process never started.
func (p *Process) ExitCode() int {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.exitCode
}

// Err returns a start or wait failure other than a non-zero exit.
func (p *Process) Err() error {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.waitErr
}

// Uptime returns the running time so far, or the total once exited.
func (p *Process) Uptime() time.Duration {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	switch p.state {
	case StateExited:
		return p.uptime
	case StateRunning, StateStopping:
		return time.Since(p.startTime)
	default:
		return 0
	}
}

// StartTime returns when the process was spawned.
func (p *Process) StartTime() time.Time {
	return p.startTime
}

// Pid returns the process ID, or 0 before Start.
func (p *Process) Pid() int {
	return p.pid
}

// Label returns the process label.
func (p *Process) Label() string {
	return p.label
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

func (p *Process) setState(s State) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.state == StateExited {
		return
	}
	p.state = s
}

// StderrTail returns up to n recent stderr lines. Waits briefly for the
// stderr reader to reach EOF after exit so the tail is complete.
func (p *Process) StderrTail(n int) []string {
	select {
	case <-p.done:
		select {
		case <-p.stderrDone:
		case <-time.After(time.Second):
		}
	default:
	}
	return p.stderr.RecentLines(n)
}

// signalGroup signals the process group led by proc, falling back to the
// process itself when the group is gone.
func signalGroup(proc *os.Process, sig syscall.Signal) error {
	if proc == nil {
		return nil
	}
	if pgid, err := syscall.Getpgid(proc.Pid); err == nil {
		return syscall.Kill(-pgid, sig)
	}
	return proc.Signal(sig)
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}
	return 1
}
