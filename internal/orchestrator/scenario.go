package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/randomizedcoder/go-rwlock-bench/internal/config"
	"github.com/randomizedcoder/go-rwlock-bench/internal/monitor"
	"github.com/randomizedcoder/go-rwlock-bench/internal/process"
	"github.com/randomizedcoder/go-rwlock-bench/internal/stats"
	"github.com/randomizedcoder/go-rwlock-bench/internal/supervisor"
	"github.com/randomizedcoder/go-rwlock-bench/internal/timeseries"
)

const (
	serverStderrTailLines = 10
	rateSampleInterval    = time.Second
)

// runScenario executes one scenario end to end: seed, server, monitor,
// readiness, clients, stop, grace, cancel, collect. It always returns a
// report; failures are joined into report.Err.
func (o *Orchestrator) runScenario(ctx context.Context, index int, sc config.Scenario) *stats.ScenarioReport {
	cfg := o.config
	report := &stats.ScenarioReport{
		RunID:          o.runID,
		Name:           sc.Name,
		Priority:       string(sc.Priority),
		Port:           sc.Port,
		Seed:           sc.Seed,
		StartedAt:      time.Now(),
		ServerExitCode: -1,
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	log := o.logger.With("scenario", sc.Name, "run_id", o.runID)
	log.Info("scenario_starting",
		"priority", string(sc.Priority),
		"port", sc.Port,
		"seed", sc.Seed,
		"clients", len(sc.Clients),
		"threads", sc.TotalThreads(),
	)

	serverProgress := &monitor.Progress{}
	rate := timeseries.NewRateTracker()
	o.mu.Lock()
	o.current = scenarioState{
		index:    index,
		name:     sc.Name,
		priority: string(sc.Priority),
		port:     sc.Port,
		phase:    PhaseSeeding,
		server:   serverProgress,
		rate:     rate,
	}
	o.mu.Unlock()
	o.clientManager.Reset()

	// 1. Counter reset.
	if err := process.WriteSeed(cfg.SeedPath(), sc.Seed); err != nil {
		report.Err = fmt.Errorf("seed counter: %w", err)
		return report
	}

	// 2. Server.
	o.setPhase(PhaseStarting)
	serverRunner := process.NewServerRunner(process.ServerConfig{
		BinaryPath: cfg.ServerPath,
		WorkDir:    cfg.WorkDir,
		Port:       sc.Port,
		Priority:   sc.Priority,
		ExtraArgs:  cfg.ServerArgs,
	})
	report.ServerCommand = serverRunner.CommandString()

	server := supervisor.New(supervisor.Config{
		Label:   serverRunner.Name(),
		Builder: serverRunner,
		Logger:  log,
		Callbacks: supervisor.Callbacks{
			OnExit: func(_ string, code int, uptime time.Duration) {
				o.metrics.RecordExit("server", code, uptime)
			},
		},
		Verbose:    cfg.Verbose,
		LineBuffer: cfg.LineBuffer,
	})
	src, err := server.Start(context.WithoutCancel(ctx))
	if err != nil {
		report.Err = err
		return report
	}

	// 3. Fresh token and server monitor.
	token := monitor.NewToken()
	serverMon := monitor.NewServerMonitor(monitor.ServerConfig{
		Source:      src,
		Token:       token,
		IdleInitial: cfg.IdleInitial,
		IdleMax:     cfg.IdleMax,
		Logger:      log,
		Progress:    serverProgress,
		OnLine:      o.metrics.LineHook("server"),
	})
	serverResults := serverMon.Start()

	stopSampling := make(chan struct{})
	samplingDone := make(chan struct{})
	go func() {
		defer close(samplingDone)
		sampleRate(rate, serverProgress, stopSampling)
	}()

	var errs []error

	// 4. Readiness, then clients.
	o.setPhase(PhaseReadiness)
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(sc.Port))
	source, err := waitReady(ctx, addr, serverMon.Ready(), server.Done(), cfg.ReadyTimeout, supervisor.DefaultBackoffConfig())
	if err != nil {
		log.Error("server_not_ready", "error", err, "addr", addr)
		errs = append(errs, err)
	} else {
		report.ReadySource = source
		report.ReadyAfter = time.Since(report.StartedAt)
		log.Info("server_ready", "source", source, "after", report.ReadyAfter.String())

		if cfg.Warmup > 0 {
			o.setPhase(PhaseWarmup)
			sleepCtx(ctx, cfg.Warmup)
		}

		if ctx.Err() == nil {
			// 5. All clients concurrently; wait for every one.
			o.setPhase(PhaseClients)
			report.Clients = o.clientManager.RunAll(ctx, sc.Port, sc.Clients)
			for _, c := range report.Clients {
				if c.Err != nil {
					errs = append(errs, c.Err)
				}
			}
		}
	}

	// 6. Stop the server by handle.
	o.setPhase(PhaseStopping)
	if err := server.Stop(cfg.StopTimeout); errors.Is(err, supervisor.ErrForceKilled) {
		report.ServerForceKilled = true
		log.Warn("server_force_killed", "timeout", cfg.StopTimeout.String())
	}

	// 7. Grace, cancel, collect.
	o.setPhase(PhaseDraining)
	sleepCtx(ctx, cfg.GraceDelay)
	token.Cancel()

	select {
	case report.Server = <-serverResults:
	case <-time.After(cfg.ServerDrainTimeout):
		errs = append(errs, fmt.Errorf("%w within %s", ErrServerMonitorTimeout, cfg.ServerDrainTimeout))
		src.Close()
		report.Server = <-serverResults
	}
	close(stopSampling)
	<-samplingDone

	// 8. Report.
	report.Fairness = stats.FairnessOf(report.Server)
	report.ServerExitCode = server.ExitCode()
	report.ServerStderrTail = server.StderrTail(serverStderrTailLines)
	rates := rate.Stats()
	report.PeakOpsRate = rates.Peak1s
	report.AvgOpsRate = rates.AvgOverall

	if report.ReadySource != "" && !report.Server.HasCounter {
		errs = append(errs, ErrNoServerOutput)
	}
	if cfg.FailOnEmpty {
		for _, c := range report.Clients {
			if c.Err == nil && !c.Result.HasSamples() {
				errs = append(errs, fmt.Errorf("client %s: %w", c.Name, ErrEmptySampleSet))
			}
		}
	}
	if ctx.Err() != nil && !containsErr(errs, ErrInterrupted) {
		errs = append(errs, ErrInterrupted)
	}
	report.Err = errors.Join(errs...)

	o.setPhase(PhaseDone)
	log.Info("scenario_completed",
		"result", report.Result(),
		"final_counter", report.Server.FinalCounter,
		"segments", len(report.Server.Segments),
		"agents", len(report.Server.ClientsSeen),
		"server_exit_code", report.ServerExitCode,
		"duration", time.Since(report.StartedAt).String(),
	)
	if report.Err != nil {
		log.Warn("scenario_failed", "error", report.Err)
	}
	return report
}

// sampleRate feeds the server's well-formed line count into rt once per
// interval until stop is closed, then takes a final sample.
func sampleRate(rt *timeseries.RateTracker, p *monitor.Progress, stop <-chan struct{}) {
	ticker := time.NewTicker(rateSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			rt.Set(p.WellFormed())
			rt.RecordSample()
			return
		case <-ticker.C:
			rt.Set(p.WellFormed())
			rt.RecordSample()
		}
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func containsErr(errs []error, target error) bool {
	for _, err := range errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
