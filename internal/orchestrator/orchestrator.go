// Package orchestrator runs benchmark scenarios: for each one it resets
// the counter, launches the server and its clients, follows every output
// stream, and collects a report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randomizedcoder/go-rwlock-bench/internal/config"
	"github.com/randomizedcoder/go-rwlock-bench/internal/metrics"
	"github.com/randomizedcoder/go-rwlock-bench/internal/preflight"
	"github.com/randomizedcoder/go-rwlock-bench/internal/process"
	"github.com/randomizedcoder/go-rwlock-bench/internal/stats"
)

// ErrPreflightFailed is returned by Run when a preflight check fails.
var ErrPreflightFailed = errors.New("preflight checks failed (use --skip-preflight to override)")

// Orchestrator coordinates all components for a benchmark run.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	out     io.Writer
	version string
	runID   string

	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	clientManager *ClientManager

	mu        sync.RWMutex
	startTime time.Time
	current   scenarioState
	completed []CompletedScenario
	finished  bool
}

// New creates a new Orchestrator with the given configuration. The
// scenarios in cfg must already be resolved.
func New(cfg *config.Config, logger *slog.Logger, version string) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	runID := ulid.Make().String()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version: version,
		RunID:   runID,
	}, registry)

	orch := &Orchestrator{
		config:   cfg,
		logger:   logger,
		out:      os.Stdout,
		version:  version,
		runID:    runID,
		registry: registry,
		metrics:  collector,
		current:  scenarioState{phase: PhaseIdle},
	}
	if cfg.MetricsAddr != "" {
		orch.metricsServer = metrics.NewServerFor(cfg.MetricsAddr, registry, logger)
	}

	orch.clientManager = NewClientManager(ManagerConfig{
		ClientPath:  cfg.ClientPath,
		WorkDir:     cfg.WorkDir,
		Host:        cfg.Host,
		ExtraArgs:   cfg.ClientArgs,
		Timeout:     cfg.ClientTimeout,
		StopTimeout: cfg.StopTimeout,
		MaxLines:    cfg.MaxClientLines,
		LineBuffer:  cfg.LineBuffer,
		Verbose:     cfg.Verbose,
		Logger:      logger,
		OnLine:      collector.LineHook("client"),
		Callbacks: ManagerCallbacks{
			OnClientStart:  orch.onClientStart,
			OnClientExit:   orch.onClientExit,
			OnActiveChange: collector.SetActiveCount,
		},
	})

	return orch
}

// SetOutput redirects preflight results and scenario reports.
func (o *Orchestrator) SetOutput(w io.Writer) {
	o.out = w
}

// Run executes every scenario in order and blocks until completion or
// signal. A failed scenario does not stop the run; an interrupt skips the
// remaining scenarios. The returned summary is valid even with an error.
func (o *Orchestrator) Run(ctx context.Context) (stats.RunSummary, error) {
	o.mu.Lock()
	o.startTime = time.Now()
	o.mu.Unlock()

	summary := stats.RunSummary{RunID: o.runID}
	defer func() {
		o.mu.Lock()
		o.finished = true
		o.mu.Unlock()
	}()

	// Run preflight checks
	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.preflightOptions())
		preflight.PrintResults(o.out, result)
		if !result.Passed {
			return summary, ErrPreflightFailed
		}
	}

	// Start metrics server
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return summary, fmt.Errorf("failed to start metrics server: %w", err)
		}
		summary.MetricsAddr = o.metricsServer.Addr()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
				o.logger.Warn("metrics_server_shutdown_error", "error", err)
			}
		}()
	}

	// Setup signal handling
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o.logger.Info("run_starting",
		"run_id", o.runID,
		"version", o.version,
		"scenarios", len(o.config.Scenarios),
		"server", o.config.ServerPath,
		"client", o.config.ClientPath,
	)

	for i, sc := range o.config.Scenarios {
		if ctx.Err() != nil {
			o.logger.Info("run_interrupted", "skipped", len(o.config.Scenarios)-i)
			break
		}

		report := o.runScenario(ctx, i, sc)
		summary.Scenarios = append(summary.Scenarios, report)
		o.metrics.RecordScenario(report)
		o.recordCompleted(report)

		if !o.config.TUIEnabled {
			fmt.Fprint(o.out, stats.FormatScenarioReport(report))
		}
	}

	summary.Duration = time.Since(o.startTime)
	passed, failed := o.metrics.Totals()
	o.logger.Info("run_complete",
		"run_id", o.runID,
		"passed", passed,
		"failed", failed,
		"duration", summary.Duration.String(),
	)

	if o.config.MetricsFile != "" {
		if err := metrics.WriteTextfile(o.registry, o.config.MetricsFile); err != nil {
			return summary, fmt.Errorf("write metrics file: %w", err)
		}
		o.logger.Info("metrics_file_written", "path", o.config.MetricsFile)
	}

	if ctx.Err() != nil {
		return summary, ErrInterrupted
	}
	return summary, nil
}

func (o *Orchestrator) preflightOptions() preflight.Options {
	ports := make([]int, 0, len(o.config.Scenarios))
	seen := make(map[int]bool)
	for _, sc := range o.config.Scenarios {
		if !seen[sc.Port] {
			seen[sc.Port] = true
			ports = append(ports, sc.Port)
		}
	}
	return preflight.Options{
		ServerPath: o.config.ServerPath,
		ClientPath: o.config.ClientPath,
		WorkDir:    o.config.WorkDir,
		Host:       o.config.Host,
		Ports:      ports,
		Threads:    o.config.MaxConcurrentThreads(),
	}
}

func (o *Orchestrator) recordCompleted(r *stats.ScenarioReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, CompletedScenario{
		Name:         r.Name,
		Passed:       r.Passed(),
		FinalCounter: r.Server.FinalCounter,
		HasCounter:   r.Server.HasCounter,
		Segments:     len(r.Server.Segments),
		JainIndex:    r.Fairness.JainIndex,
		Duration:     r.Duration,
	})
}

// PrintCommands writes the seed, server and client commands of every
// scenario without running anything.
func (o *Orchestrator) PrintCommands(w io.Writer) {
	cfg := o.config
	for _, sc := range cfg.Scenarios {
		fmt.Fprintf(w, "# %s (priority %s, seed %d)\n", sc.Name, sc.Priority, sc.Seed)
		fmt.Fprintf(w, "echo %d > %s\n", sc.Seed, cfg.SeedPath())

		server := process.NewServerRunner(process.ServerConfig{
			BinaryPath: cfg.ServerPath,
			WorkDir:    cfg.WorkDir,
			Port:       sc.Port,
			Priority:   sc.Priority,
			ExtraArgs:  cfg.ServerArgs,
		})
		fmt.Fprintln(w, server.CommandString())

		for _, c := range sc.Clients {
			client := process.NewClientRunner(process.ClientConfig{
				Name:       c.Name,
				BinaryPath: cfg.ClientPath,
				WorkDir:    cfg.WorkDir,
				Host:       cfg.Host,
				Port:       sc.Port,
				Mode:       c.Mode,
				Threads:    c.Threads,
				ExtraArgs:  cfg.ClientArgs,
			})
			fmt.Fprintln(w, client.CommandString())
		}
		fmt.Fprintln(w)
	}
}

// Callback handlers

func (o *Orchestrator) onClientStart(name string, pid int) {
	if o.config.Verbose {
		o.logger.Debug("client_process_started", "client", name, "pid", pid)
	}
}

func (o *Orchestrator) onClientExit(name string, exitCode int, uptime time.Duration) {
	o.metrics.RecordExit("client", exitCode, uptime)
}

// RunID returns the run identifier.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Registry returns the Prometheus registry holding the run's metrics.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}
