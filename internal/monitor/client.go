package monitor

import (
	"log/slog"
	"time"

	"github.com/randomizedcoder/go-rwlock-bench/internal/parser"
	"github.com/randomizedcoder/go-rwlock-bench/internal/stats"
)

// DefaultMaxLines bounds client collection when no budget is configured.
const DefaultMaxLines = 1_000_000

// ClientConfig holds configuration for a ClientMonitor.
type ClientConfig struct {
	Source parser.LineSource

	// Name labels the client in logs.
	Name string

	// StartTime is when the client process was launched. Zero means the
	// moment Run begins.
	StartTime time.Time

	// MaxLines is the line budget; collection stops once it is reached.
	MaxLines int

	Logger   *slog.Logger
	Progress *Progress
	OnLine   LineHook
}

// ClientMonitor reads a client's output until the client exits, collecting
// one latency sample per completed operation.
type ClientMonitor struct {
	source    parser.LineSource
	name      string
	startTime time.Time
	maxLines  int
	logger    *slog.Logger
	progress  *Progress
	onLine    LineHook
}

// NewClientMonitor creates a client monitor.
func NewClientMonitor(cfg ClientConfig) *ClientMonitor {
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = DefaultMaxLines
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ClientMonitor{
		source:    cfg.Source,
		name:      cfg.Name,
		startTime: cfg.StartTime,
		maxLines:  cfg.MaxLines,
		logger:    cfg.Logger,
		progress:  cfg.Progress,
		onLine:    cfg.OnLine,
	}
}

// Start runs the monitor in a new goroutine. The returned channel
// delivers exactly one result.
func (m *ClientMonitor) Start() <-chan stats.ClientResult {
	out := make(chan stats.ClientResult, 1)
	go func() {
		out <- m.Run()
	}()
	return out
}

// Run blocks until the stream ends or the line budget is reached.
func (m *ClientMonitor) Run() stats.ClientResult {
	start := m.startTime
	if start.IsZero() {
		start = time.Now()
	}

	var res stats.ClientResult
	for line := range m.source.Lines() {
		res.LinesRead++
		m.progress.line()

		if sample := parser.Parse(line); sample.Kind == parser.KindLatency {
			res.Samples = append(res.Samples, sample.Latency)
			m.progress.latency(sample.Latency)
			m.hook(parser.KindLatency)
		} else {
			res.Malformed++
			m.progress.malformedLine()
			m.hook(parser.KindNone)
		}

		if res.LinesRead >= m.maxLines {
			res.Truncated = true
			m.logger.Warn("client_line_budget_reached",
				"client", m.name,
				"max_lines", m.maxLines,
				"samples", len(res.Samples),
			)
			go m.source.Drain()
			break
		}
	}

	if !res.Truncated {
		if err := m.source.Err(); err != nil {
			res.StreamErr = err
			m.logger.Warn("client_stream_error", "client", m.name, "error", err)
		}
	}

	res.ExecTime = max(time.Since(start), 0)
	res.MeanLatency = stats.Mean(res.Samples)
	m.progress.finish()

	m.logger.Info("client_monitor_finished",
		"client", m.name,
		"samples", len(res.Samples),
		"lines", res.LinesRead,
		"malformed", res.Malformed,
		"exec_time", res.ExecTime.String(),
		"mean_latency", res.MeanLatency,
		"truncated", res.Truncated,
	)
	return res
}

func (m *ClientMonitor) hook(kind parser.Kind) {
	if m.onLine != nil {
		m.onLine(kind)
	}
}
