// Package metrics provides Prometheus metrics for rwlock-bench.
//
// Metrics are organized in three groups:
//   - Run: info gauge and scenario/line counters
//   - Scenario: server-side results labelled by scenario
//   - Client: per-client latency results labelled by scenario and client
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-rwlock-bench/internal/parser"
	"github.com/randomizedcoder/go-rwlock-bench/internal/stats"
)

const namespace = "rwbench"

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
	RunID   string
}

// Collector owns every rwlock-bench metric.
type Collector struct {
	mu sync.Mutex

	// Run
	info          *prometheus.GaugeVec
	scenarios     *prometheus.CounterVec
	lines         *prometheus.CounterVec
	activeClients prometheus.Gauge
	exits         *prometheus.CounterVec
	uptime        *prometheus.HistogramVec

	// Scenario
	finalCounter   *prometheus.GaugeVec
	segments       *prometheus.GaugeVec
	meanRun        *prometheus.GaugeVec
	maxRun         *prometheus.GaugeVec
	agents         *prometheus.GaugeVec
	jain           *prometheus.GaugeVec
	duration       *prometheus.GaugeVec
	peakOpsRate    *prometheus.GaugeVec
	counterRegress *prometheus.GaugeVec

	// Client
	clientMean    *prometheus.GaugeVec
	clientP95     *prometheus.GaugeVec
	clientExec    *prometheus.GaugeVec
	clientSamples *prometheus.GaugeVec

	passed int
	failed int
}

// NewCollectorWithRegistry creates a collector with a custom registry.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	scenarioLabels := []string{"scenario", "priority"}
	clientLabels := []string{"scenario", "client", "mode"}

	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the benchmark run (value always 1)",
		}, []string{"version", "run_id"}),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Completed scenarios by result",
		}, []string{"result"}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Output lines read by stream and classification",
		}, []string{"stream", "kind"}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_clients",
			Help:      "Currently running client processes",
		}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_exits_total",
			Help:      "Process exits by role and category",
		}, []string{"role", "category"}),
		uptime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_uptime_seconds",
			Help:      "Process lifetime distribution",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"role"}),

		finalCounter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_final_counter",
			Help:      "Last counter value reported by the server",
		}, scenarioLabels),
		segments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_segments",
			Help:      "Number of consecutive same-agent runs",
		}, scenarioLabels),
		meanRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_mean_run_length",
			Help:      "Mean lines per agent run",
		}, scenarioLabels),
		maxRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_max_run_length",
			Help:      "Longest agent run in lines",
		}, scenarioLabels),
		agents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_agents",
			Help:      "Distinct agents seen by the server monitor",
		}, scenarioLabels),
		jain: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_jain_index",
			Help:      "Jain fairness index over agent line shares (1 = perfectly fair)",
		}, scenarioLabels),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall-clock duration of the scenario",
		}, scenarioLabels),
		peakOpsRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_peak_ops_per_second",
			Help:      "Peak 1s rate of server counter lines",
		}, scenarioLabels),
		counterRegress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_counter_regressions",
			Help:      "Counter lines lower than their predecessor",
		}, scenarioLabels),

		clientMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_mean_latency",
			Help:      "Mean wait time reported by the client",
		}, clientLabels),
		clientP95: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_p95_latency",
			Help:      "95th percentile wait time reported by the client",
		}, clientLabels),
		clientExec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_exec_seconds",
			Help:      "Client wall-clock time from launch to end of stream",
		}, clientLabels),
		clientSamples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_samples",
			Help:      "Latency samples collected from the client",
		}, clientLabels),
	}

	registry.MustRegister(
		c.info, c.scenarios, c.lines, c.activeClients, c.exits, c.uptime,
		c.finalCounter, c.segments, c.meanRun, c.maxRun, c.agents, c.jain,
		c.duration, c.peakOpsRate, c.counterRegress,
		c.clientMean, c.clientP95, c.clientExec, c.clientSamples,
	)

	c.info.WithLabelValues(cfg.Version, cfg.RunID).Set(1)

	return c
}

// RecordLine counts one line read from a stream ("server" or "client").
func (c *Collector) RecordLine(stream string, kind parser.Kind) {
	c.lines.WithLabelValues(stream, kind.String()).Inc()
}

// LineHook returns a function suitable for monitor OnLine hooks.
func (c *Collector) LineHook(stream string) func(parser.Kind) {
	byKind := map[parser.Kind]prometheus.Counter{
		parser.KindNone:    c.lines.WithLabelValues(stream, parser.KindNone.String()),
		parser.KindCounter: c.lines.WithLabelValues(stream, parser.KindCounter.String()),
		parser.KindLatency: c.lines.WithLabelValues(stream, parser.KindLatency.String()),
	}
	return func(kind parser.Kind) {
		if ctr, ok := byKind[kind]; ok {
			ctr.Inc()
		}
	}
}

// SetActiveCount updates the running client count.
func (c *Collector) SetActiveCount(count int) {
	c.activeClients.Set(float64(count))
}

// RecordExit records a process exit event for role ("server" or "client").
func (c *Collector) RecordExit(role string, exitCode int, uptime time.Duration) {
	c.exits.WithLabelValues(role, exitCategory(exitCode)).Inc()
	c.uptime.WithLabelValues(role).Observe(uptime.Seconds())
}

// RecordScenario publishes every result of a finished scenario.
func (c *Collector) RecordScenario(r *stats.ScenarioReport) {
	c.mu.Lock()
	if r.Passed() {
		c.passed++
	} else {
		c.failed++
	}
	c.mu.Unlock()

	c.scenarios.WithLabelValues(r.Result()).Inc()

	labels := prometheus.Labels{"scenario": r.Name, "priority": r.Priority}
	if r.Server.HasCounter {
		c.finalCounter.With(labels).Set(float64(r.Server.FinalCounter))
	}
	c.segments.With(labels).Set(float64(r.Fairness.Segments))
	c.meanRun.With(labels).Set(r.Fairness.MeanRun)
	c.maxRun.With(labels).Set(float64(r.Fairness.MaxRun))
	c.agents.With(labels).Set(float64(len(r.Server.ClientsSeen)))
	c.jain.With(labels).Set(r.Fairness.JainIndex)
	c.duration.With(labels).Set(r.Duration.Seconds())
	c.peakOpsRate.With(labels).Set(r.PeakOpsRate)
	c.counterRegress.With(labels).Set(float64(r.Server.CounterRegressions))

	for _, cl := range r.Clients {
		cls := prometheus.Labels{"scenario": r.Name, "client": cl.Name, "mode": cl.Mode}
		c.clientMean.With(cls).Set(cl.Result.MeanLatency)
		c.clientP95.With(cls).Set(cl.Latency.P95)
		c.clientExec.With(cls).Set(cl.Result.ExecSeconds())
		c.clientSamples.With(cls).Set(float64(len(cl.Result.Samples)))
	}
}

// Totals returns the number of passed and failed scenarios recorded.
func (c *Collector) Totals() (passed, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passed, c.failed
}

func exitCategory(exitCode int) string {
	switch {
	case exitCode == 0:
		return "success"
	case exitCode > 128:
		return "signal"
	case exitCode < 0:
		return "unknown"
	default:
		return "error"
	}
}
