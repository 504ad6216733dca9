package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-rwlock-bench/internal/config"
	"github.com/randomizedcoder/go-rwlock-bench/internal/monitor"
	"github.com/randomizedcoder/go-rwlock-bench/internal/parser"
	"github.com/randomizedcoder/go-rwlock-bench/internal/process"
	"github.com/randomizedcoder/go-rwlock-bench/internal/stats"
	"github.com/randomizedcoder/go-rwlock-bench/internal/supervisor"
)

// stderrTailLines is how much client stderr a failure report carries.
const stderrTailLines = 10

// ManagerCallbacks contains optional callbacks for client events.
type ManagerCallbacks struct {
	// OnClientStart is called when a client process starts.
	OnClientStart func(name string, pid int)

	// OnClientExit is called when a client process exits.
	OnClientExit func(name string, exitCode int, uptime time.Duration)

	// OnActiveChange is called with the running client count.
	OnActiveChange func(active int)
}

// ManagerConfig holds configuration for the ClientManager.
type ManagerConfig struct {
	ClientPath string
	WorkDir    string
	Host       string
	ExtraArgs  []string

	// Timeout bounds each client; StopTimeout is the SIGTERM grace.
	Timeout     time.Duration
	StopTimeout time.Duration

	MaxLines   int
	LineBuffer int
	Verbose    bool

	Logger    *slog.Logger
	Callbacks ManagerCallbacks
	OnLine    monitor.LineHook
}

// ClientProgress is the live view of one client.
type ClientProgress struct {
	Name     string
	Mode     process.Mode
	Threads  int
	Running  bool
	ExitCode int
	monitor.ProgressSnapshot
}

// clientRun tracks one launched client.
type clientRun struct {
	spec     config.ClientSpec
	progress *monitor.Progress
	proc     atomic.Pointer[supervisor.Process]
}

// ClientManager launches a scenario's clients concurrently, each with its
// own process handle and ClientMonitor, and waits for all of them.
type ClientManager struct {
	cfg ManagerConfig

	mu   sync.RWMutex
	runs []*clientRun

	activeCount atomic.Int64
}

// NewClientManager creates a new ClientManager.
func NewClientManager(cfg ManagerConfig) *ClientManager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 3 * time.Second
	}
	return &ClientManager{cfg: cfg}
}

// RunAll launches every client against port and blocks until each one has
// finished. Reports are returned in the order given; a failing client never
// cancels the others.
func (m *ClientManager) RunAll(ctx context.Context, port int, specs []config.ClientSpec) []stats.ClientReport {
	runs := make([]*clientRun, len(specs))
	for i, spec := range specs {
		runs[i] = &clientRun{spec: spec, progress: &monitor.Progress{}}
	}
	m.mu.Lock()
	m.runs = runs
	m.mu.Unlock()

	reports := make([]stats.ClientReport, len(specs))
	var g errgroup.Group
	for i, run := range runs {
		g.Go(func() error {
			reports[i] = m.runClient(ctx, port, run)
			return reports[i].Err
		})
	}
	if err := g.Wait(); err != nil {
		m.cfg.Logger.Debug("clients_finished_with_errors", "first_error", err)
	}
	return reports
}

// runClient runs one client to completion.
func (m *ClientManager) runClient(ctx context.Context, port int, run *clientRun) stats.ClientReport {
	spec := run.spec
	runner := process.NewClientRunner(process.ClientConfig{
		Name:       spec.Name,
		BinaryPath: m.cfg.ClientPath,
		WorkDir:    m.cfg.WorkDir,
		Host:       m.cfg.Host,
		Port:       port,
		Mode:       spec.Mode,
		Threads:    spec.Threads,
		ExtraArgs:  m.cfg.ExtraArgs,
	})
	rep := stats.ClientReport{
		Name:     spec.Name,
		Mode:     string(spec.Mode),
		Threads:  spec.Threads,
		Command:  runner.CommandString(),
		ExitCode: -1,
	}

	proc := supervisor.New(supervisor.Config{
		Label:   runner.Name(),
		Builder: runner,
		Logger:  m.cfg.Logger,
		Callbacks: supervisor.Callbacks{
			OnStart: func(_ string, pid int) {
				if m.cfg.Callbacks.OnClientStart != nil {
					m.cfg.Callbacks.OnClientStart(spec.Name, pid)
				}
			},
			OnExit: func(_ string, code int, uptime time.Duration) {
				if m.cfg.Callbacks.OnClientExit != nil {
					m.cfg.Callbacks.OnClientExit(spec.Name, code, uptime)
				}
			},
		},
		Verbose:    m.cfg.Verbose,
		LineBuffer: m.cfg.LineBuffer,
	})
	run.proc.Store(proc)

	// Termination goes through Stop, so the process itself is not tied
	// to ctx.
	launched := time.Now()
	src, err := proc.Start(context.WithoutCancel(ctx))
	if err != nil {
		rep.Err = fmt.Errorf("client %s: %w: %v", spec.Name, ErrClientFailed, err)
		return rep
	}
	m.setActive(m.activeCount.Add(1))
	defer func() { m.setActive(m.activeCount.Add(-1)) }()

	mon := monitor.NewClientMonitor(monitor.ClientConfig{
		Source:    src,
		Name:      spec.Name,
		StartTime: launched,
		MaxLines:  m.cfg.MaxLines,
		Logger:    m.cfg.Logger,
		Progress:  run.progress,
		OnLine:    m.cfg.OnLine,
	})
	results := mon.Start()

	runCtx := ctx
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	stopped := false
	select {
	case rep.Result = <-results:
	case <-runCtx.Done():
		stopped = true
		m.stop(proc)
		rep.Result = m.collect(results, src)
	}

	if !stopped {
		// Output ended; the process may still be running.
		if _, err := proc.Wait(runCtx); err != nil {
			stopped = true
			m.stop(proc)
		}
	}

	rep.ExitCode = proc.ExitCode()
	rep.Latency = stats.LatencySummaryOf(rep.Result)

	switch {
	case stopped && ctx.Err() != nil:
		rep.Err = fmt.Errorf("client %s: %w", spec.Name, ErrInterrupted)
	case stopped:
		rep.Err = fmt.Errorf("client %s: %w after %s", spec.Name, ErrClientTimeout, m.cfg.Timeout)
	case proc.Err() != nil:
		rep.Err = fmt.Errorf("client %s: %w: %v", spec.Name, ErrClientFailed, proc.Err())
	case rep.ExitCode != 0:
		rep.Err = fmt.Errorf("client %s: %w: exit code %d", spec.Name, ErrClientFailed, rep.ExitCode)
	}
	if rep.Err != nil {
		rep.StderrTail = proc.StderrTail(stderrTailLines)
	}
	return rep
}

// stop terminates a client by handle.
func (m *ClientManager) stop(proc *supervisor.Process) {
	if err := proc.Stop(m.cfg.StopTimeout); err != nil && !errors.Is(err, supervisor.ErrForceKilled) {
		m.cfg.Logger.Warn("client_stop_failed", "process", proc.Label(), "error", err)
	}
}

// collect receives the monitor result after the process was stopped. If
// some descendant still holds stdout open, the read end is closed so the
// monitor can finish.
func (m *ClientManager) collect(results <-chan stats.ClientResult, src parser.LineSource) stats.ClientResult {
	select {
	case r := <-results:
		return r
	case <-time.After(m.cfg.StopTimeout):
		src.Close()
		return <-results
	}
}

func (m *ClientManager) setActive(n int64) {
	if m.cfg.Callbacks.OnActiveChange != nil {
		m.cfg.Callbacks.OnActiveChange(int(n))
	}
}

// Snapshot returns the live state of the current scenario's clients.
func (m *ClientManager) Snapshot() []ClientProgress {
	m.mu.RLock()
	runs := m.runs
	m.mu.RUnlock()

	out := make([]ClientProgress, 0, len(runs))
	for _, r := range runs {
		cp := ClientProgress{
			Name:             r.spec.Name,
			Mode:             r.spec.Mode,
			Threads:          r.spec.Threads,
			ExitCode:         -1,
			ProgressSnapshot: r.progress.Snapshot(),
		}
		if proc := r.proc.Load(); proc != nil {
			cp.Running = proc.State().IsActive()
			cp.ExitCode = proc.ExitCode()
		}
		out = append(out, cp)
	}
	return out
}

// Reset forgets the previous scenario's clients.
func (m *ClientManager) Reset() {
	m.mu.Lock()
	m.runs = nil
	m.mu.Unlock()
}
