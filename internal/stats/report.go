package stats

import "time"

// ClientReport is one client's outcome within a scenario.
type ClientReport struct {
	Name    string
	Mode    string
	Threads int
	Command string

	Result  ClientResult
	Latency LatencySummary

	ExitCode   int
	StderrTail []string
	Err        error
}

// ScenarioReport is everything collected for one scenario.
type ScenarioReport struct {
	RunID    string
	Name     string
	Priority string
	Port     int
	Seed     int64

	StartedAt time.Time
	Duration  time.Duration

	// ReadySource is "first_line" or "tcp"; empty when the server never
	// became ready.
	ReadySource string
	ReadyAfter  time.Duration

	ServerCommand     string
	Server            ServerResult
	Fairness          Fairness
	ServerExitCode    int
	ServerForceKilled bool
	ServerStderrTail  []string

	// PeakOpsRate and AvgOpsRate are server counter lines per second.
	PeakOpsRate float64
	AvgOpsRate  float64

	Clients []ClientReport

	// Err joins every failure of the scenario; nil means it passed.
	Err error
}

// Passed reports whether the scenario completed without failures.
func (r *ScenarioReport) Passed() bool {
	return r.Err == nil
}

// Result returns "passed" or "failed".
func (r *ScenarioReport) Result() string {
	if r.Passed() {
		return "passed"
	}
	return "failed"
}

// RunSummary wraps the reports of a full run.
type RunSummary struct {
	RunID       string
	Duration    time.Duration
	Scenarios   []*ScenarioReport
	MetricsAddr string
}

// Failed returns the number of failed scenarios.
func (s RunSummary) Failed() int {
	n := 0
	for _, r := range s.Scenarios {
		if !r.Passed() {
			n++
		}
	}
	return n
}
