package orchestrator

import (
	"time"

	"github.com/randomizedcoder/go-rwlock-bench/internal/monitor"
	"github.com/randomizedcoder/go-rwlock-bench/internal/timeseries"
)

// Phase is the step a scenario is in.
type Phase string

// Scenario phases, in order.
const (
	PhaseIdle      Phase = "idle"
	PhaseSeeding   Phase = "seeding"
	PhaseStarting  Phase = "starting_server"
	PhaseReadiness Phase = "waiting_ready"
	PhaseWarmup    Phase = "warmup"
	PhaseClients   Phase = "running_clients"
	PhaseStopping  Phase = "stopping_server"
	PhaseDraining  Phase = "draining"
	PhaseDone      Phase = "done"
)

// CompletedScenario is the dashboard line of a finished scenario.
type CompletedScenario struct {
	Name         string
	Passed       bool
	FinalCounter int64
	HasCounter   bool
	Segments     int
	JainIndex    float64
	Duration     time.Duration
}

// RunProgress is a point-in-time view of the whole run.
type RunProgress struct {
	RunID     string
	StartTime time.Time
	Elapsed   time.Duration

	Index    int // zero-based index of the current scenario
	Total    int
	Scenario string
	Priority string
	Port     int
	Phase    Phase

	Server  monitor.ProgressSnapshot
	OpsRate timeseries.RateStats
	Clients []ClientProgress

	Completed []CompletedScenario
	Finished  bool
}

// scenarioState is the live state of the current scenario.
type scenarioState struct {
	index    int
	name     string
	priority string
	port     int
	phase    Phase
	server   *monitor.Progress
	rate     *timeseries.RateTracker
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.current.phase = p
	o.mu.Unlock()
	o.logger.Debug("scenario_phase", "scenario", o.current.name, "phase", string(p))
}

// Progress returns a snapshot of the run for dashboards. Safe to call
// from any goroutine at any time.
func (o *Orchestrator) Progress() RunProgress {
	o.mu.RLock()
	cur := o.current
	p := RunProgress{
		RunID:     o.runID,
		StartTime: o.startTime,
		Index:     cur.index,
		Total:     len(o.config.Scenarios),
		Scenario:  cur.name,
		Priority:  cur.priority,
		Port:      cur.port,
		Phase:     cur.phase,
		Completed: append([]CompletedScenario(nil), o.completed...),
		Finished:  o.finished,
	}
	o.mu.RUnlock()

	if !p.StartTime.IsZero() {
		p.Elapsed = time.Since(p.StartTime)
	}
	p.Server = cur.server.Snapshot()
	if cur.rate != nil {
		p.OpsRate = cur.rate.Stats()
	}
	p.Clients = o.clientManager.Snapshot()
	return p
}
